package evidence

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/google/go-containerregistry/pkg/v1/types"

	"github.com/remcomokveld/dagger/internal/version"
)

// OCI media types for evidence bundles.
const (
	LayerMediaType = "application/vnd.relocheck.evidence.layer.v1.tar+gzip"
	ArtifactType   = "application/vnd.relocheck.evidence.v1"
)

const artifactTypeAnnotation = "org.opencontainers.image.artifactType"

// OCIOptions configures registry access.
type OCIOptions struct {
	// Reference is the full OCI reference, e.g. ghcr.io/org/relocheck-evidence:run-1.
	Reference string

	// Insecure allows plain HTTP registries.
	Insecure bool

	// Keychain provides credentials. Defaults to authn.DefaultKeychain.
	Keychain authn.Keychain

	// UserAgent for registry requests. Defaults to the build's user agent.
	UserAgent string
}

func (o OCIOptions) withDefaults() OCIOptions {
	if o.Keychain == nil {
		o.Keychain = authn.DefaultKeychain
	}
	if o.UserAgent == "" {
		o.UserAgent = version.GetInfo().UserAgent()
	}
	return o
}

func (o OCIOptions) reference() (name.Reference, error) {
	var nameOpts []name.Option
	if o.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	ref, err := name.ParseReference(o.Reference, nameOpts...)
	if err != nil {
		return nil, registryError(err, o.Reference, "parse")
	}
	return ref, nil
}

func (o OCIOptions) remoteOptions(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(o.Keychain),
		remote.WithUserAgent(o.UserAgent),
	}
}

// Push uploads the bundle at bundlePath as a single-layer artifact and
// returns the pushed digest.
func Push(ctx context.Context, bundlePath string, m *Manifest, opts OCIOptions) (v1.Hash, error) {
	opts = opts.withDefaults()
	ref, err := opts.reference()
	if err != nil {
		return v1.Hash{}, err
	}

	layer, err := tarball.LayerFromFile(bundlePath, tarball.WithMediaType(LayerMediaType))
	if err != nil {
		return v1.Hash{}, exportError("create layer", err)
	}

	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return v1.Hash{}, exportError("append layer", err)
	}

	current, err := img.ConfigFile()
	if err != nil {
		return v1.Hash{}, exportError("read config", err)
	}

	img, err = mutate.ConfigFile(img, &v1.ConfigFile{
		Architecture: "unknown",
		OS:           "unknown",
		Config: v1.Config{
			Labels: map[string]string{
				"org.opencontainers.image.title":   m.RunID,
				"org.opencontainers.image.created": m.Created.Format("2006-01-02T15:04:05Z"),
				"dev.relocheck.scenario":           m.Scenario,
				"dev.relocheck.marker":             m.Marker,
			},
		},
		RootFS: current.RootFS,
	})
	if err != nil {
		return v1.Hash{}, exportError("set config", err)
	}

	img = mutate.Annotations(img, map[string]string{
		artifactTypeAnnotation: ArtifactType,
	}).(v1.Image)

	if err := remote.Write(ref, img, opts.remoteOptions(ctx)...); err != nil {
		return v1.Hash{}, registryError(err, opts.Reference, "push")
	}

	return img.Digest()
}

// Pull downloads the bundle stored at opts.Reference to outputPath.
func Pull(ctx context.Context, outputPath string, opts OCIOptions) (v1.Hash, error) {
	opts = opts.withDefaults()
	ref, err := opts.reference()
	if err != nil {
		return v1.Hash{}, err
	}

	img, err := remote.Image(ref, opts.remoteOptions(ctx)...)
	if err != nil {
		return v1.Hash{}, registryError(err, opts.Reference, "pull")
	}

	manifest, err := img.Manifest()
	if err != nil {
		return v1.Hash{}, exportError("read manifest", err)
	}
	if got := manifest.Annotations[artifactTypeAnnotation]; got != ArtifactType {
		return v1.Hash{}, exportError("pull",
			fmt.Errorf("%s is not an evidence bundle (artifact type %q)", opts.Reference, got))
	}
	if len(manifest.Layers) != 1 || manifest.Layers[0].MediaType != types.MediaType(LayerMediaType) {
		return v1.Hash{}, exportError("pull",
			fmt.Errorf("%s does not hold exactly one %s layer", opts.Reference, LayerMediaType))
	}

	layers, err := img.Layers()
	if err != nil {
		return v1.Hash{}, exportError("read layers", err)
	}
	rc, err := layers[0].Compressed()
	if err != nil {
		return v1.Hash{}, exportError("read layer", err)
	}
	defer rc.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return v1.Hash{}, exportError("create output", err)
	}
	if _, err := out.ReadFrom(rc); err != nil {
		out.Close()
		return v1.Hash{}, exportError("write output", err)
	}
	if err := out.Close(); err != nil {
		return v1.Hash{}, exportError("write output", err)
	}

	return img.Digest()
}

// TagFor appends tag to reference when the reference carries neither a tag
// nor a digest.
func TagFor(reference, tag string) string {
	if strings.Contains(reference, "@") {
		return reference
	}
	if strings.Contains(reference[strings.LastIndex(reference, "/")+1:], ":") {
		return reference
	}
	return reference + ":" + tag
}
