package evidence

import (
	"context"
	"os"
	"path/filepath"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/log"
)

// BundleSuffix is the file suffix of evidence bundles.
const BundleSuffix = ".rcevidence.tgz"

// Exporter writes evidence bundles to Dir and, when Reference is set,
// pushes them to an OCI registry.
type Exporter struct {
	Dir       string
	Reference string
	OCI       OCIOptions
	Logger    *log.Logger
}

// Export bundles c and returns where it ended up: ref@digest after a push,
// otherwise the local bundle path.
func (e *Exporter) Export(ctx context.Context, c Contents) (string, error) {
	logger := log.OrDefault(e.Logger).With("run_id", c.RunID)

	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.Wrap(errors.ErrCodeEvidenceExport, "evidence: create bundle directory", err)
	}

	bundlePath := filepath.Join(dir, c.RunID+BundleSuffix)
	m, err := Write(bundlePath, c)
	if err != nil {
		return "", err
	}
	logger.Info("evidence bundle written", "path", bundlePath, "files", len(m.Files))

	if e.Reference == "" {
		return bundlePath, nil
	}

	opts := e.OCI
	opts.Reference = TagFor(e.Reference, c.RunID)
	digest, err := Push(ctx, bundlePath, m, opts)
	if err != nil {
		return bundlePath, err
	}

	pushed := opts.Reference + "@" + digest.String()
	logger.Info("evidence bundle pushed", "reference", pushed)
	return pushed, nil
}
