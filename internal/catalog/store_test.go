package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"skillshub/internal/faults"
)

func newTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateFreshDatabase(t *testing.T) {
	s := newTestStore(t)

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	want := migrations[len(migrations)-1].version
	if v != want {
		t.Fatalf("expected schema version %d, got %d", want, v)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopening must not re-apply batches.
	s, err = Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != migrations[len(migrations)-1].version {
		t.Fatalf("unexpected schema version %d after reopen", v)
	}
}

func TestSkillCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sk := &Skill{
		Name:        "writer-helper",
		Description: "drafts text",
		SourceType:  SourceLocal,
		SourceRef:   "/src/writer-helper",
		CentralPath: "/hub/skills/abc",
		ContentHash: "deadbeef",
	}
	if err := s.CreateSkill(ctx, sk); err != nil {
		t.Fatal(err)
	}
	if sk.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetSkill(ctx, sk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "writer-helper" || got.ContentHash != "deadbeef" {
		t.Fatalf("unexpected skill: %+v", got)
	}

	got.ContentHash = "cafebabe"
	if err := s.UpdateSkill(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, err := s.GetSkill(ctx, sk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.ContentHash != "cafebabe" {
		t.Fatalf("expected updated hash, got %q", again.ContentHash)
	}

	byName, err := s.GetSkillByName(ctx, "writer-helper")
	if err != nil {
		t.Fatal(err)
	}
	if byName == nil || byName.ID != sk.ID {
		t.Fatal("lookup by name failed")
	}

	missing, err := s.GetSkillByName(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown name")
	}
}

func TestGetSkillNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSkill(context.Background(), "missing")
	if !faults.IsKind(err, faults.NotAvailable) {
		t.Fatalf("expected NotAvailable, got %v", err)
	}
}

func TestTargetUpsertIsUniquePerPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sk := &Skill{Name: "s1", SourceType: SourceLocal, CentralPath: "/hub/s1"}
	if err := s.CreateSkill(ctx, sk); err != nil {
		t.Fatal(err)
	}

	first := &SkillTarget{SkillID: sk.ID, TargetKey: "claude", Mode: "symlink", DestPath: "/home/u/.claude/skills/s1"}
	if err := s.UpsertTarget(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &SkillTarget{SkillID: sk.ID, TargetKey: "claude", Mode: "copy", DestPath: "/home/u/.claude/skills/s1"}
	if err := s.UpsertTarget(ctx, second); err != nil {
		t.Fatal(err)
	}

	targets, err := s.ListTargets(ctx, sk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target row, got %d", len(targets))
	}
	if targets[0].Mode != "copy" {
		t.Fatalf("expected upsert to replace mode, got %q", targets[0].Mode)
	}
}

func TestDeleteSkillCascadesTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sk := &Skill{Name: "s1", SourceType: SourceLocal, CentralPath: "/hub/s1"}
	if err := s.CreateSkill(ctx, sk); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTarget(ctx, &SkillTarget{SkillID: sk.ID, TargetKey: "claude", Mode: "symlink", DestPath: "/d"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSkill(ctx, sk.ID); err != nil {
		t.Fatal(err)
	}

	targets, err := s.ListTargetsByKey(ctx, "claude")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected cascade delete, %d rows remain", len(targets))
	}
}

func TestHostCRUDAndPortValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := &RemoteHost{Label: "x", Host: "example.com", Port: 70000, Username: "u"}
	if err := s.CreateHost(ctx, bad); !faults.IsKind(err, faults.Validation) {
		t.Fatalf("expected Validation for port 70000, got %v", err)
	}

	h := &RemoteHost{Label: "build box", Host: "10.0.0.5", Port: 22, Username: "ci", AuthMethod: "agent"}
	if err := s.CreateHost(ctx, h); err != nil {
		t.Fatal(err)
	}
	if h.Status != HostIdle {
		t.Fatalf("expected idle status, got %q", h.Status)
	}

	if err := s.SetHostStatus(ctx, h.ID, HostOK); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetHost(ctx, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != HostOK {
		t.Fatalf("expected ok, got %q", got.Status)
	}
	if got.LastSyncAt == "" {
		t.Fatal("expected last_sync_at to be stamped on ok")
	}
}

func TestCustomTargetCascadeOnHostDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h := &RemoteHost{Label: "box", Host: "h", Port: 22, Username: "u"}
	if err := s.CreateHost(ctx, h); err != nil {
		t.Fatal(err)
	}
	ct := &CustomTarget{Label: "deploy dir", Path: "/opt/skills", RemoteHostID: h.ID}
	if err := s.CreateCustomTarget(ctx, ct); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteHost(ctx, h.ID); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListCustomTargets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected cascade delete of custom targets, %d remain", len(list))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ttl, err := s.GitCacheTTL(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ttl != DefaultGitCacheTTL {
		t.Fatalf("expected default TTL, got %v", ttl)
	}

	if err := s.SetGitCacheTTLSecs(ctx, 60); err != nil {
		t.Fatal(err)
	}
	ttl, err = s.GitCacheTTL(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ttl.Seconds() != 60 {
		t.Fatalf("expected 60s, got %v", ttl)
	}

	if err := s.SetInstalledTools(ctx, []string{"claude", "codex"}); err != nil {
		t.Fatal(err)
	}
	keys, err := s.InstalledTools(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "claude" {
		t.Fatalf("unexpected installed tools: %v", keys)
	}
}

func TestRemoveManagedPathRefusesCentralRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := filepath.Join(t.TempDir(), "hub", "skills")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting(ctx, SettingCentralRoot, root); err != nil {
		t.Fatal(err)
	}

	err := s.RemoveManagedPath(ctx, root)
	if !faults.IsKind(err, faults.Conflict) {
		t.Fatalf("expected Conflict refusal, got %v", err)
	}
	if _, statErr := os.Stat(root); statErr != nil {
		t.Fatal("central root must survive the refused delete")
	}

	// A dotted path to the same place is refused too.
	err = s.RemoveManagedPath(ctx, filepath.Join(root, "..", "skills"))
	if !faults.IsKind(err, faults.Conflict) {
		t.Fatalf("expected Conflict for resolved alias, got %v", err)
	}
}

func TestRemoveManagedPathDeletesMirror(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := t.TempDir()
	root := filepath.Join(base, "hub", "skills")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting(ctx, SettingCentralRoot, root); err != nil {
		t.Fatal(err)
	}

	// A skill dir inside the root is deletable; only the root is not.
	skillDir := filepath.Join(root, "abc")
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveManagedPath(ctx, skillDir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(skillDir); !os.IsNotExist(err) {
		t.Fatal("expected skill dir removed")
	}

	// Symlinks are removed without following them.
	targetDir := filepath.Join(base, "data")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "mirror")
	if err := os.Symlink(targetDir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := s.RemoveManagedPath(ctx, link); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(link); !os.IsNotExist(err) {
		t.Fatal("expected link removed")
	}
	if _, err := os.Stat(targetDir); err != nil {
		t.Fatal("link referent must survive")
	}

	// Removing a path that is already gone is not an error.
	if err := s.RemoveManagedPath(ctx, filepath.Join(base, "never-existed")); err != nil {
		t.Fatal(err)
	}
}
