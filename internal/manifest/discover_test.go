package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDef(t *testing.T, dir, front string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\n" + front + "---\nbody\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverRootIsSkill(t *testing.T) {
	root := t.TempDir()
	writeDef(t, root, "name: solo\n")
	// A child definition must be ignored once the root wins.
	writeDef(t, filepath.Join(root, "nested"), "name: nested\n")

	cands, err := Discover(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].Name != "solo" || cands[0].Path != "" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
}

func TestDiscoverDirectChildren(t *testing.T) {
	root := t.TempDir()
	writeDef(t, filepath.Join(root, "alpha"), "name: alpha\n")
	writeDef(t, filepath.Join(root, "beta"), "name: beta\n")

	cands, err := Discover(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].Path != "alpha" || cands[1].Path != "beta" {
		t.Fatalf("unexpected order: %+v", cands)
	}
}

func TestDiscoverRecursiveFallback(t *testing.T) {
	root := t.TempDir()
	writeDef(t, filepath.Join(root, "bundle", "deep", "gamma"), "name: gamma\n")

	cands, err := Discover(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].Path != "bundle/deep/gamma" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
}

func TestDiscoverDefaultNameAppliesToRootOnly(t *testing.T) {
	root := t.TempDir()
	writeDef(t, root, "description: no name here\n")

	cands, err := Discover(root, "My Repo")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || !cands[0].Valid {
		t.Fatalf("expected one valid candidate: %+v", cands)
	}
	if cands[0].Name != "my-repo" {
		t.Fatalf("expected fallback name my-repo, got %q", cands[0].Name)
	}
}

func TestDiscoverInvalidCandidateDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	writeDef(t, filepath.Join(root, "good"), "name: good\n")
	bad := filepath.Join(root, "bad")
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, FileName), []byte("no frontmatter at all"), 0644); err != nil {
		t.Fatal(err)
	}

	cands, err := Discover(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	var valid, invalid int
	for _, c := range cands {
		if c.Valid {
			valid++
		} else {
			invalid++
			if c.Reason == "" {
				t.Fatal("invalid candidate should carry a reason")
			}
		}
	}
	if valid != 1 || invalid != 1 {
		t.Fatalf("expected 1 valid + 1 invalid, got %d/%d", valid, invalid)
	}
}
