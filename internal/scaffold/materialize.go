package scaffold

import (
	"os"
	"path/filepath"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/marker"
)

// Materialize writes the project tree under root, substituting m for every
// marker placeholder in the sources. root must be empty or not yet exist.
// Nothing location dependent is written, so two roots materialized from the
// same project and marker differ only in their absolute paths.
func (p *Project) Materialize(root string, m marker.Marker) error {
	if m.IsZero() {
		return errors.NewScaffoldInvalidError("marker is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := ensureEmpty(root); err != nil {
		return err
	}

	for _, f := range p.render(m.Apply) {
		target := filepath.Join(root, filepath.FromSlash(f.path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.NewScaffoldWriteError(f.path, err)
		}
		if err := os.WriteFile(target, []byte(f.content), 0644); err != nil {
			return errors.NewScaffoldWriteError(f.path, err)
		}
	}
	return nil
}

// Files returns the project-relative paths Materialize writes, in write order.
func (p *Project) Files() []string {
	var paths []string
	for _, f := range p.render(func(s string) string { return s }) {
		paths = append(paths, f.path)
	}
	return paths
}

func ensureEmpty(root string) error {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return errors.NewScaffoldWriteError(root, err)
		}
		return nil
	}
	if err != nil {
		return errors.NewScaffoldWriteError(root, err)
	}
	if !info.IsDir() {
		return errors.NewScaffoldNotEmptyError(root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return errors.NewScaffoldWriteError(root, err)
	}
	if len(entries) > 0 {
		return errors.NewScaffoldNotEmptyError(root)
	}
	return nil
}
