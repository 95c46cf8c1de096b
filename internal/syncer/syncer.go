package syncer

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
)

// Mirror mechanisms, recorded in the catalog's skill_targets rows.
const (
	ModeSymlink    = "symlink"
	ModeJunction   = "junction"
	ModeCopy       = "copy"
	ModeRemoteCopy = "remote-copy"
)

// Options controls how Materialize picks a mechanism.
type Options struct {
	// ForceCopy bypasses the link fallback chain entirely. Set for
	// tools whose skill scanner does not dereference links.
	ForceCopy bool
	// Overwrite replaces a destination previously recorded as one of
	// our own mirrors. It does not bypass the conflict check for an
	// unrecognized destination; the caller makes that call explicitly
	// after surfacing the conflict.
	Overwrite bool
}

// Result describes one materialized mirror: the mechanism used and the
// identity recorded for the later remove safety check.
type Result struct {
	Mode        string
	DestPath    string
	LinkTarget  string
	ContentHash string
}

// Materialize mirrors the central copy at src into dest, trying
// symlink, then junction on Windows volumes, then full copy. A dest
// that already exists is a Conflict unless opts.Overwrite says the
// caller has verified it is ours.
func Materialize(src, dest string, opts Options) (*Result, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, faults.Wrap(faults.Validation, err, "source does not exist").At(src)
	}

	if _, err := os.Lstat(dest); err == nil {
		if !opts.Overwrite {
			return nil, faults.New(faults.Conflict, "target already exists").At(dest)
		}
		if err := removeAny(dest); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, faults.Wrap(faults.IO, err, "stat target").At(dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, faults.Wrap(faults.IO, err, "create target parent").At(dest)
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, faults.Wrap(faults.Validation, err, "resolve source").At(src)
	}

	if opts.ForceCopy {
		return materializeCopy(abs, dest)
	}

	if err := os.Symlink(abs, dest); err == nil {
		return &Result{Mode: ModeSymlink, DestPath: dest, LinkTarget: abs}, nil
	}

	// Symlink creation commonly fails on Windows without developer
	// mode; a junction needs no privilege there.
	if runtime.GOOS == "windows" {
		if err := makeJunction(abs, dest); err == nil {
			return &Result{Mode: ModeJunction, DestPath: dest, LinkTarget: abs}, nil
		}
	}

	return materializeCopy(abs, dest)
}

func materializeCopy(src, dest string) (*Result, error) {
	if err := CopyTree(src, dest); err != nil {
		return nil, err
	}
	hash, err := TreeHash(dest)
	if err != nil {
		return nil, err
	}
	return &Result{Mode: ModeCopy, DestPath: dest, ContentHash: hash}, nil
}

// makeJunction creates a Windows directory junction. mklink is a cmd
// builtin, not an executable.
func makeJunction(src, dest string) error {
	out, err := exec.Command("cmd", "/c", "mklink", "/J", dest, src).CombinedOutput()
	if err != nil {
		return faults.Wrap(faults.IO, err, "mklink /J: %s", string(out)).At(dest)
	}
	return nil
}

// Refresh re-syncs a copy-mode mirror from the central copy at src.
// Link modes need no work, the link already reflects current content.
// Returns the destination's content hash after the refresh and whether
// anything was copied.
func Refresh(src string, target *catalog.SkillTarget) (string, bool, error) {
	switch target.Mode {
	case ModeSymlink, ModeJunction:
		return "", false, nil
	}

	srcHash, err := TreeHash(src)
	if err != nil {
		return "", false, err
	}
	if srcHash == target.ContentHash {
		return srcHash, false, nil
	}

	if err := CopyTree(src, target.DestPath); err != nil {
		return "", false, err
	}
	return srcHash, true, nil
}

// Remove deletes the mirror recorded by target, but only when the
// destination still carries the identity this system created: link
// modes must still point at the recorded target, copy modes must still
// hash to the recorded content. Anything else occupies our path but is
// not ours, and removal is refused with a Conflict.
func Remove(target *catalog.SkillTarget) error {
	dest := target.DestPath

	info, err := os.Lstat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return faults.Wrap(faults.IO, err, "stat target").At(dest)
	}

	switch target.Mode {
	case ModeSymlink, ModeJunction:
		if info.Mode()&os.ModeSymlink == 0 && target.Mode == ModeSymlink {
			return faults.New(faults.Conflict, "destination is no longer a link").At(dest)
		}
		actual, err := os.Readlink(dest)
		if err == nil && target.LinkTarget != "" && !sameFile(actual, target.LinkTarget) {
			return faults.New(faults.Conflict,
				"link points at %s, expected %s", actual, target.LinkTarget).At(dest)
		}
	case ModeCopy:
		hash, err := TreeHash(dest)
		if err != nil {
			return err
		}
		if target.ContentHash != "" && hash != target.ContentHash {
			return faults.New(faults.Conflict,
				"destination content has diverged from the recorded mirror").At(dest)
		}
	}

	return removeAny(dest)
}

// sameFile compares two paths after cleaning and, where resolvable,
// symlink evaluation.
func sameFile(a, b string) bool {
	ca, cb := filepath.Clean(a), filepath.Clean(b)
	if ca == cb {
		return true
	}
	ra, errA := filepath.EvalSymlinks(ca)
	rb, errB := filepath.EvalSymlinks(cb)
	return errA == nil && errB == nil && ra == rb
}
