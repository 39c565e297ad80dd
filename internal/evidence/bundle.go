// Package evidence packs the artifacts of a failed relocation run into a
// gzip-compressed tarball and ships it to an OCI registry, so the failure
// can be inspected after the temporary workspace is gone.
package evidence

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/remcomokveld/dagger/internal/errors"
)

// Extraction limits.
const (
	MaxBundleSize = 256 * 1024 * 1024
	MaxFileSize   = 64 * 1024 * 1024
	MaxFileCount  = 1000
)

// ManifestName is the archive member describing the bundle.
const ManifestName = "manifest.json"

// Contents is what goes into a bundle. Files are keyed by their path inside
// the archive.
type Contents struct {
	RunID    string
	Scenario string
	Marker   string
	Files    map[string][]byte
}

// FileEntry describes one archive member.
type FileEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// Manifest is stored as manifest.json in every bundle.
type Manifest struct {
	RunID    string      `json:"run_id"`
	Scenario string      `json:"scenario"`
	Marker   string      `json:"marker"`
	Created  time.Time   `json:"created"`
	Files    []FileEntry `json:"files"`
}

// Write creates the bundle at dest and returns its manifest.
func Write(dest string, c Contents) (*Manifest, error) {
	names := make([]string, 0, len(c.Files))
	for name := range c.Files {
		if err := validateMemberPath(name); err != nil {
			return nil, exportError("invalid bundle member", err)
		}
		if name == ManifestName {
			return nil, exportError("invalid bundle member", fmt.Errorf("%s is reserved", ManifestName))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	m := &Manifest{
		RunID:    c.RunID,
		Scenario: c.Scenario,
		Marker:   c.Marker,
		Created:  time.Now().UTC(),
	}
	for _, name := range names {
		data := c.Files[name]
		m.Files = append(m.Files, FileEntry{Path: name, Size: int64(len(data)), Digest: digest(data)})
	}
	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, exportError("marshal manifest", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, exportError("create bundle", err)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	writeErr := writeMember(tw, ManifestName, manifestData, m.Created)
	for _, name := range names {
		if writeErr != nil {
			break
		}
		writeErr = writeMember(tw, name, c.Files[name], m.Created)
	}

	for _, closeErr := range []error{tw.Close(), gz.Close(), f.Close()} {
		if writeErr == nil {
			writeErr = closeErr
		}
	}
	if writeErr != nil {
		os.Remove(dest)
		return nil, exportError("write bundle", writeErr)
	}
	return m, nil
}

func writeMember(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0600,
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// Read opens a bundle and returns its manifest and members. Digests are
// checked against the manifest.
func Read(src string) (*Manifest, map[string][]byte, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, nil, exportError("open bundle", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, exportError("open gzip stream", err)
	}
	defer gz.Close()

	files, err := readMembers(tar.NewReader(gz))
	if err != nil {
		return nil, nil, err
	}

	raw, ok := files[ManifestName]
	if !ok {
		return nil, nil, exportError("read bundle", fmt.Errorf("%s is missing", ManifestName))
	}
	delete(files, ManifestName)

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, exportError("parse manifest", err)
	}

	for _, entry := range m.Files {
		data, ok := files[entry.Path]
		if !ok {
			return nil, nil, exportError("read bundle", fmt.Errorf("member %s listed in manifest is missing", entry.Path))
		}
		if got := digest(data); got != entry.Digest {
			return nil, nil, exportError("read bundle", fmt.Errorf("digest mismatch for %s: %s != %s", entry.Path, got, entry.Digest))
		}
	}
	return &m, files, nil
}

func readMembers(tr *tar.Reader) (map[string][]byte, error) {
	files := make(map[string][]byte)
	var total int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, exportError("read tar", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if len(files) >= MaxFileCount {
			return nil, exportError("read tar", fmt.Errorf("bundle exceeds maximum file count (%d)", MaxFileCount))
		}
		if hdr.Size > MaxFileSize {
			return nil, exportError("read tar", fmt.Errorf("member %s exceeds maximum size (%d bytes)", hdr.Name, MaxFileSize))
		}
		total += hdr.Size
		if total > MaxBundleSize {
			return nil, exportError("read tar", fmt.Errorf("bundle exceeds maximum total size (%d bytes)", MaxBundleSize))
		}
		if err := validateMemberPath(hdr.Name); err != nil {
			return nil, exportError("invalid path in bundle", err)
		}

		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(tr, hdr.Size))
		if err != nil {
			return nil, exportError("read member", err)
		}
		if n != hdr.Size {
			return nil, exportError("read member", fmt.Errorf("size mismatch for %s: expected %d, got %d", hdr.Name, hdr.Size, n))
		}
		files[hdr.Name] = buf.Bytes()
	}
}

// validateMemberPath rejects absolute paths, parent references and NUL bytes.
func validateMemberPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\x00") {
		return fmt.Errorf("null bytes not allowed in path: %q", p)
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "\\") {
		return fmt.Errorf("absolute paths not allowed: %s", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("parent directory references not allowed: %s", p)
	}
	return nil
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}

func exportError(op string, err error) *errors.HarnessError {
	return errors.Wrap(errors.ErrCodeEvidenceExport, "evidence: "+op, err)
}
