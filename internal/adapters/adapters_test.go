package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownAdapter(t *testing.T) {
	r := NewRegistryWith("/home/u", builtins)

	a, err := r.Get("claude")
	require.NoError(t, err)
	assert.Equal(t, "Claude Code", a.DisplayName)
	assert.True(t, a.FollowsSymlinks)
}

func TestGetUnknownAdapter(t *testing.T) {
	r := NewRegistryWith("/home/u", builtins)
	_, err := r.Get("vim")
	assert.Error(t, err)
}

func TestAllSorted(t *testing.T) {
	r := NewRegistryWith("/home/u", builtins)
	all := r.All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key, all[i].Key)
	}
}

func TestSkillsDirExpansion(t *testing.T) {
	r := NewRegistryWith("/home/u", builtins)
	dir, err := r.SkillsDir("claude")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/u", ".claude", "skills"), dir)
}

func TestIsInstalled(t *testing.T) {
	home := t.TempDir()
	r := NewRegistryWith(home, builtins)

	assert.False(t, r.IsInstalled("claude"))

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0755))
	assert.True(t, r.IsInstalled("claude"))
	assert.False(t, r.IsInstalled("codex"))
}

func TestInstalled(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".gemini"), 0755))

	r := NewRegistryWith(home, builtins)
	installed := r.Installed()
	require.Len(t, installed, 2)
	assert.Equal(t, "claude", installed[0].Key)
	assert.Equal(t, "gemini", installed[1].Key)
}

func TestNonLinkFollowingAdapterPresent(t *testing.T) {
	r := NewRegistryWith("/home/u", builtins)
	forced := 0
	for _, a := range r.All() {
		if !a.FollowsSymlinks {
			forced++
		}
	}
	assert.Equal(t, 1, forced, "exactly one built-in adapter requires full copies")
}

func TestSharingDir(t *testing.T) {
	home := t.TempDir()
	entries := []Adapter{
		{Key: "alpha", DisplayName: "Alpha", SkillsDir: "~/.shared/skills", DetectDir: "~/.alpha", FollowsSymlinks: true},
		{Key: "beta", DisplayName: "Beta", SkillsDir: "~/.shared/skills", DetectDir: "~/.beta", FollowsSymlinks: true},
		{Key: "gamma", DisplayName: "Gamma", SkillsDir: "~/.gamma/skills", DetectDir: "~/.gamma", FollowsSymlinks: true},
	}
	r := NewRegistryWith(home, entries)

	keys, err := r.SharingDir("alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, keys)

	keys, err = r.SharingDir("gamma")
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, keys)
}

func TestSharingDirResolvesLinks(t *testing.T) {
	home := t.TempDir()
	real := filepath.Join(home, "real-skills")
	require.NoError(t, os.MkdirAll(real, 0755))
	link := filepath.Join(home, "linked-skills")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entries := []Adapter{
		{Key: "direct", DisplayName: "Direct", SkillsDir: "~/real-skills", DetectDir: "~/.d", FollowsSymlinks: true},
		{Key: "via-link", DisplayName: "Via Link", SkillsDir: "~/linked-skills", DetectDir: "~/.v", FollowsSymlinks: true},
	}
	r := NewRegistryWith(home, entries)

	keys, err := r.SharingDir("direct")
	require.NoError(t, err)
	assert.Equal(t, []string{"direct", "via-link"}, keys)
}
