package hub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"skillshub/internal/faults"
)

// extractZip unpacks an in-memory archive into destDir, skipping
// macOS resource forks and hidden entries. Entry paths are confined to
// destDir; an archive cannot write outside it.
func extractZip(data []byte, destDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return faults.Wrap(faults.Validation, err, "open zip archive")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return faults.Wrap(faults.IO, err, "create extract dir").At(destDir)
	}

	for _, f := range reader.File {
		name := f.Name
		if f.FileInfo().IsDir() || skipEntry(name) {
			continue
		}

		out, ok := securePath(destDir, name)
		if !ok {
			return faults.New(faults.Validation, "zip entry escapes extract dir: %s", name)
		}

		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return faults.Wrap(faults.IO, err, "create directory").At(filepath.Dir(out))
		}
		if err := writeEntry(f, out); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(f *zip.File, out string) error {
	src, err := f.Open()
	if err != nil {
		return faults.Wrap(faults.Validation, err, "read zip entry: %s", f.Name)
	}
	defer src.Close()

	dst, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return faults.Wrap(faults.IO, err, "create file").At(out)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return faults.Wrap(faults.IO, err, "write file").At(out)
	}
	return dst.Close()
}

// skipEntry drops macOS resource forks and entries whose path starts
// hidden at any level.
func skipEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// securePath joins an archive entry path onto root, rejecting escapes.
func securePath(root, name string) (string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return filepath.Join(root, cleaned), true
}
