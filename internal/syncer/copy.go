package syncer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"skillshub/internal/faults"
)

// CopyTree copies src into dst recursively, creating dst when missing.
// Existing files under dst are overwritten; files dst has that src does
// not are left alone, so a refresh never deletes anything outside the
// content it is writing. Version-control metadata is not copied.
func CopyTree(src, dst string) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return faults.Wrap(faults.IO, err, "resolve source").At(src)
	}

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if d.Name() == ".git" && path != resolved {
				return filepath.SkipDir
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return faults.Wrap(faults.IO, err, "create directory").At(target)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return faults.Wrap(faults.IO, err, "open source file").At(src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return faults.Wrap(faults.IO, err, "stat source file").At(src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return faults.Wrap(faults.IO, err, "create file").At(dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return faults.Wrap(faults.IO, err, "write file").At(dst)
	}
	if err := out.Close(); err != nil {
		return faults.Wrap(faults.IO, err, "write file").At(dst)
	}
	return nil
}

// removeAny deletes path symlink-aware: a link is removed without
// following it, a directory recursively. A missing path is not an error.
func removeAny(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return faults.Wrap(faults.IO, err, "stat").At(path)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return faults.Wrap(faults.IO, err, "remove link").At(path)
		}
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return faults.Wrap(faults.IO, err, "remove directory").At(path)
	}
	return nil
}
