package syncer

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestTreeHashDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"SKILL.md":      "---\nname: demo\n---\nbody",
		"sub/helper.md": "helper",
		"zz/last.txt":   "last",
	})

	first, err := TreeHash(dir)
	require.NoError(t, err)
	second, err := TreeHash(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Same content in a different location hashes identically: only
	// relative paths participate.
	other := t.TempDir()
	writeTree(t, other, map[string]string{
		"SKILL.md":      "---\nname: demo\n---\nbody",
		"sub/helper.md": "helper",
		"zz/last.txt":   "last",
	})
	otherHash, err := TreeHash(other)
	require.NoError(t, err)
	assert.Equal(t, first, otherHash)
}

func TestTreeHashSeesContentChange(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"SKILL.md": "v1"})

	before, err := TreeHash(dir)
	require.NoError(t, err)

	writeTree(t, dir, map[string]string{"SKILL.md": "v2"})
	after, err := TreeHash(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestTreeHashIgnoresGitMetadata(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"SKILL.md": "x"})
	bare, err := TreeHash(dir)
	require.NoError(t, err)

	writeTree(t, dir, map[string]string{".git/HEAD": "ref: refs/heads/main"})
	withGit, err := TreeHash(dir)
	require.NoError(t, err)
	assert.Equal(t, bare, withGit)
}

func TestMaterializeSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privilege on windows")
	}
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeSymlink, res.Mode)

	actual, err := os.Readlink(dest)
	require.NoError(t, err)
	assert.True(t, sameFile(actual, src))
}

func TestMaterializeForceCopy(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x", "ref/a.txt": "a"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{ForceCopy: true})
	require.NoError(t, err)
	assert.Equal(t, ModeCopy, res.Mode)
	assert.NotEmpty(t, res.ContentHash)

	info, err := os.Lstat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode()&os.ModeSymlink)

	srcHash, err := TreeHash(src)
	require.NoError(t, err)
	assert.Equal(t, srcHash, res.ContentHash)
}

func TestMaterializeConflictOnOccupiedDest(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	dest := filepath.Join(t.TempDir(), "mirror")
	writeTree(t, dest, map[string]string{"notes.txt": "user data"})

	_, err := Materialize(src, dest, Options{})
	require.Error(t, err)
	assert.Equal(t, faults.Conflict, faults.KindOf(err))

	// The occupant is untouched.
	_, statErr := os.Stat(filepath.Join(dest, "notes.txt"))
	assert.NoError(t, statErr)
}

func TestRefreshSkipsWhenHashesMatch(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{ForceCopy: true})
	require.NoError(t, err)

	target := &catalog.SkillTarget{Mode: res.Mode, DestPath: dest, ContentHash: res.ContentHash}
	_, copied, err := Refresh(src, target)
	require.NoError(t, err)
	assert.False(t, copied)
}

func TestRefreshOverwritesWithoutDeleting(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "v1"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{ForceCopy: true})
	require.NoError(t, err)

	// The user drops an extra file into the mirror and the central
	// copy moves on.
	writeTree(t, dest, map[string]string{"extra.txt": "keep me"})
	writeTree(t, src, map[string]string{"SKILL.md": "v2"})

	target := &catalog.SkillTarget{Mode: res.Mode, DestPath: dest, ContentHash: res.ContentHash}
	newHash, copied, err := Refresh(src, target)
	require.NoError(t, err)
	assert.True(t, copied)
	assert.NotEqual(t, res.ContentHash, newHash)

	data, err := os.ReadFile(filepath.Join(dest, "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	_, statErr := os.Stat(filepath.Join(dest, "extra.txt"))
	assert.NoError(t, statErr, "refresh must never delete files it did not write")
}

func TestRemoveRefusesDivergedCopy(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{ForceCopy: true})
	require.NoError(t, err)

	// Someone edited the mirror; it is no longer the thing we created.
	writeTree(t, dest, map[string]string{"SKILL.md": "edited"})

	target := &catalog.SkillTarget{Mode: res.Mode, DestPath: dest, ContentHash: res.ContentHash}
	err = Remove(target)
	require.Error(t, err)
	assert.Equal(t, faults.Conflict, faults.KindOf(err))

	_, statErr := os.Stat(dest)
	assert.NoError(t, statErr, "a refused remove must leave the destination alone")
}

func TestRemoveDeletesMatchingCopy(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{ForceCopy: true})
	require.NoError(t, err)

	target := &catalog.SkillTarget{Mode: res.Mode, DestPath: dest, ContentHash: res.ContentHash}
	require.NoError(t, Remove(target))

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveDeletesMatchingLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privilege on windows")
	}
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{})
	require.NoError(t, err)

	target := &catalog.SkillTarget{Mode: res.Mode, DestPath: dest, LinkTarget: res.LinkTarget}
	require.NoError(t, Remove(target))

	_, statErr := os.Lstat(dest)
	assert.True(t, os.IsNotExist(statErr))

	// The central copy the link pointed at survives.
	_, statErr = os.Stat(filepath.Join(src, "SKILL.md"))
	assert.NoError(t, statErr)
}

func TestRemoveRefusesRepointedLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privilege on windows")
	}
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SKILL.md": "x"})
	elsewhere := t.TempDir()
	writeTree(t, elsewhere, map[string]string{"SKILL.md": "y"})
	dest := filepath.Join(t.TempDir(), "mirror")

	res, err := Materialize(src, dest, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(dest))
	require.NoError(t, os.Symlink(elsewhere, dest))

	target := &catalog.SkillTarget{Mode: res.Mode, DestPath: dest, LinkTarget: res.LinkTarget}
	err = Remove(target)
	require.Error(t, err)
	assert.Equal(t, faults.Conflict, faults.KindOf(err))
}

func TestRemoveMissingDestIsNoop(t *testing.T) {
	target := &catalog.SkillTarget{
		Mode:     ModeCopy,
		DestPath: filepath.Join(t.TempDir(), "never-created"),
	}
	assert.NoError(t, Remove(target))
}
