// Package fingerprint computes location-independent digests of project trees.
// Only root-relative paths and file contents contribute; absolute paths,
// permissions and timestamps do not.
package fingerprint

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// DefaultIgnore lists directory names produced by a build rather than the scaffold.
var DefaultIgnore = []string{".gradle", "build", ".idea"}

// Entry is the digest of one file.
type Entry struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

// Fingerprint is the digest of a whole tree plus its per-file entries,
// sorted by path.
type Fingerprint struct {
	Digest  string  `json:"digest"`
	Entries []Entry `json:"entries"`
}

// Short returns the first twelve hex characters of the digest.
func (f Fingerprint) Short() string {
	if len(f.Digest) > 12 {
		return f.Digest[:12]
	}
	return f.Digest
}

// Tree fingerprints every regular file under root, skipping directories
// named in ignore. A nil ignore uses DefaultIgnore.
func Tree(root string, ignore []string) (Fingerprint, error) {
	if ignore == nil {
		ignore = DefaultIgnore
	}
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		digest, size, err := fileDigest(path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: filepath.ToSlash(rel), Digest: digest, Size: size})
		return nil
	})
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	hasher := blake3.New()
	for _, e := range entries {
		fmt.Fprintf(hasher, "%s\x00%s\n", e.Path, e.Digest)
	}
	return Fingerprint{
		Digest:  fmt.Sprintf("%x", hasher.Sum(nil)),
		Entries: entries,
	}, nil
}

// Strings hashes parts with a separator so that ("ab","c") and ("a","bc") differ.
func Strings(parts ...string) string {
	hasher := blake3.New()
	for _, p := range parts {
		fmt.Fprintf(hasher, "%d:%s\x00", len(p), p)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Diff lists the paths whose presence or content differs between a and b.
func Diff(a, b Fingerprint) []string {
	index := make(map[string]string, len(a.Entries))
	for _, e := range a.Entries {
		index[e.Path] = e.Digest
	}

	var diff []string
	for _, e := range b.Entries {
		digest, ok := index[e.Path]
		if !ok || digest != e.Digest {
			diff = append(diff, e.Path)
		}
		delete(index, e.Path)
	}
	for path := range index {
		diff = append(diff, path)
	}
	sort.Strings(diff)
	return diff
}

func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := blake3.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), n, nil
}
