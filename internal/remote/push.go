package remote

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"skillshub/internal/faults"
)

// MkdirAll creates a remote directory tree over SFTP. A failed create
// is tolerated only when a stat confirms the directory already exists;
// anything else (permissions, I/O) propagates, never silently treated
// as success.
func (c *Client) MkdirAll(remoteDir string) error {
	cl, err := c.sftpClient()
	if err != nil {
		return err
	}
	return sftpMkdirAll(cl, remoteDir)
}

type sftpFS interface {
	Mkdir(path string) error
	Stat(path string) (os.FileInfo, error)
}

func sftpMkdirAll(cl sftpFS, remoteDir string) error {
	remoteDir = path.Clean(remoteDir)
	if remoteDir == "/" || remoteDir == "." {
		return nil
	}

	if err := cl.Mkdir(remoteDir); err == nil {
		return nil
	}

	// Servers report "already exists" with varying codes; a stat is
	// the only portable confirmation.
	if info, statErr := cl.Stat(remoteDir); statErr == nil {
		if info.IsDir() {
			return nil
		}
		return faults.New(faults.IO, "remote path exists and is not a directory").At(remoteDir)
	}

	parent := path.Dir(remoteDir)
	if parent != remoteDir {
		if err := sftpMkdirAll(cl, parent); err != nil {
			return err
		}
	}

	if err := cl.Mkdir(remoteDir); err != nil {
		// A concurrent create may have raced us; verify before failing.
		if info, statErr := cl.Stat(remoteDir); statErr == nil && info.IsDir() {
			return nil
		}
		return faults.Wrap(faults.IO, err, "create remote directory").At(remoteDir)
	}
	return nil
}

// UploadDir pushes a local directory tree to remoteDir over SFTP,
// skipping version-control metadata. The local tree is validated
// before any remote directory is created.
func (c *Client) UploadDir(localDir, remoteDir string) error {
	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		return faults.New(faults.Validation, "local source directory does not exist").At(localDir)
	}

	cl, err := c.sftpClient()
	if err != nil {
		return err
	}
	if err := sftpMkdirAll(cl, remoteDir); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(localDir)
	if err != nil {
		return faults.Wrap(faults.IO, err, "resolve local directory").At(localDir)
	}

	return filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return faults.Wrap(faults.IO, err, "walk local directory").At(p)
		}
		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := path.Join(remoteDir, filepath.ToSlash(rel))

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return sftpMkdirAll(cl, target)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return faults.Wrap(faults.IO, err, "read local file").At(p)
		}
		f, err := cl.Create(target)
		if err != nil {
			return faults.Wrap(faults.IO, err, "create remote file").At(target)
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return faults.Wrap(faults.IO, err, "write remote file").At(target)
		}
		return f.Close()
	})
}
