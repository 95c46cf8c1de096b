package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"skillshub/internal/faults"
)

// TreeHash computes a deterministic digest of a directory tree: SHA-256
// over the sorted slash-normalized relative paths and file contents.
// The result is invariant to traversal order and to the platform's path
// separator. Version-control metadata is excluded. A root that is a
// symlink is hashed through its resolved tree.
func TreeHash(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", faults.Wrap(faults.IO, err, "resolve tree root").At(root)
	}

	var files []string
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != resolved {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", faults.Wrap(faults.IO, err, "walk tree").At(root)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		h.Write([]byte(rel))
		h.Write([]byte{0})
		if err := hashFile(h, filepath.Join(resolved, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return faults.Wrap(faults.IO, err, "read file").At(path)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return faults.Wrap(faults.IO, err, "read file").At(path)
	}
	return nil
}
