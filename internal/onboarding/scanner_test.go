package onboarding

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshub/internal/adapters"
	"skillshub/internal/catalog"
	"skillshub/internal/syncer"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestRegistry builds two installed tools under one fake home.
func newTestRegistry(t *testing.T) (*adapters.Registry, string) {
	t.Helper()
	home := t.TempDir()
	reg := adapters.NewRegistryWith(home, []adapters.Adapter{
		{Key: "claude", DisplayName: "Claude Code", SkillsDir: "~/.claude/skills", DetectDir: "~/.claude", FollowsSymlinks: true},
		{Key: "gemini", DisplayName: "Gemini CLI", SkillsDir: "~/.gemini/skills", DetectDir: "~/.gemini", FollowsSymlinks: false},
	})
	for _, dir := range []string{".claude/skills", ".gemini/skills"} {
		require.NoError(t, os.MkdirAll(filepath.Join(home, dir), 0755))
	}
	return reg, home
}

func writeSkill(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body), 0644))
}

func TestScanConflictingVariants(t *testing.T) {
	store := newTestStore(t)
	reg, home := newTestRegistry(t)

	writeSkill(t, filepath.Join(home, ".claude/skills/writer-helper"), "---\nname: writer-helper\n---\nversion a")
	writeSkill(t, filepath.Join(home, ".gemini/skills/writer-helper"), "---\nname: writer-helper\n---\nversion b")

	report, err := Scan(context.Background(), store, reg, filepath.Join(home, ".skillshub/skills"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.ToolsScanned)
	assert.Equal(t, 2, report.SkillsFound)
	require.Len(t, report.Groups, 1)

	g := report.Groups[0]
	assert.Equal(t, "writer-helper", g.Name)
	assert.True(t, g.HasConflict)
	assert.Len(t, g.Variants, 2)
}

func TestScanIdenticalVariantsDoNotConflict(t *testing.T) {
	store := newTestStore(t)
	reg, home := newTestRegistry(t)

	body := "---\nname: writer-helper\n---\nsame everywhere"
	writeSkill(t, filepath.Join(home, ".claude/skills/writer-helper"), body)
	writeSkill(t, filepath.Join(home, ".gemini/skills/writer-helper"), body)

	report, err := Scan(context.Background(), store, reg, filepath.Join(home, ".skillshub/skills"))
	require.NoError(t, err)

	require.Len(t, report.Groups, 1)
	assert.False(t, report.Groups[0].HasConflict)
	assert.Len(t, report.Groups[0].Variants, 2)
}

func TestScanIgnoresManagedContent(t *testing.T) {
	store := newTestStore(t)
	reg, home := newTestRegistry(t)

	dir := filepath.Join(home, ".claude/skills/managed-skill")
	writeSkill(t, dir, "---\nname: managed-skill\n---\nmanaged")
	hash, err := syncer.TreeHash(dir)
	require.NoError(t, err)

	require.NoError(t, store.CreateSkill(context.Background(), &catalog.Skill{
		Name:        "managed-skill",
		SourceType:  catalog.SourceLocal,
		CentralPath: dir,
		ContentHash: hash,
	}))

	report, err := Scan(context.Background(), store, reg, filepath.Join(home, ".skillshub/skills"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkillsFound)
	assert.Empty(t, report.Groups)
}

func TestScanIgnoresLinksIntoCentralRepo(t *testing.T) {
	store := newTestStore(t)
	reg, home := newTestRegistry(t)

	central := filepath.Join(home, ".skillshub/skills")
	owned := filepath.Join(central, "some-id")
	writeSkill(t, owned, "---\nname: linked-skill\n---\ncentral copy")

	link := filepath.Join(home, ".claude/skills/linked-skill")
	require.NoError(t, os.Symlink(owned, link))

	report, err := Scan(context.Background(), store, reg, central)
	require.NoError(t, err)
	assert.Empty(t, report.Groups, "links into the central repository are already managed")
}

func TestScanDeduplicatesSharedDirectories(t *testing.T) {
	store := newTestStore(t)
	home := t.TempDir()

	// Two tools reading one physical directory.
	shared := filepath.Join(home, "shared-skills")
	require.NoError(t, os.MkdirAll(shared, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".tool-a"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".tool-b"), 0755))

	reg := adapters.NewRegistryWith(home, []adapters.Adapter{
		{Key: "tool-a", DisplayName: "Tool A", SkillsDir: "~/shared-skills", DetectDir: "~/.tool-a", FollowsSymlinks: true},
		{Key: "tool-b", DisplayName: "Tool B", SkillsDir: "~/shared-skills", DetectDir: "~/.tool-b", FollowsSymlinks: true},
	})

	writeSkill(t, filepath.Join(shared, "writer-helper"), "---\nname: writer-helper\n---\nx")

	report, err := Scan(context.Background(), store, reg, filepath.Join(home, ".skillshub/skills"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.ToolsScanned)
	assert.Equal(t, 1, report.SkillsFound, "a shared directory is walked once")
	require.Len(t, report.Groups, 1)
	assert.Len(t, report.Groups[0].Variants, 1)
}

func TestScanSkipsEntriesWithoutManifest(t *testing.T) {
	store := newTestStore(t)
	reg, home := newTestRegistry(t)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude/skills/not-a-skill"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude/skills/stray.txt"), []byte("x"), 0644))

	report, err := Scan(context.Background(), store, reg, filepath.Join(home, ".skillshub/skills"))
	require.NoError(t, err)
	assert.Zero(t, report.SkillsFound)
	assert.Empty(t, report.Groups)
}
