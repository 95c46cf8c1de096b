// Package installer is the ingestion path into the central repository:
// importing skills from local folders, git repositories and the hub,
// updating them from their recorded source, deleting them, and
// relocating the repository itself.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
	"skillshub/internal/gitfetch"
	"skillshub/internal/hub"
	"skillshub/internal/manifest"
	"skillshub/internal/syncer"
)

// MultiSkillsError reports that a source offered several skills where
// one was expected; the caller re-lists candidates and imports a
// selection.
type MultiSkillsError struct {
	Count int
}

func (e *MultiSkillsError) Error() string {
	return fmt.Sprintf("source contains %d skills", e.Count)
}

// Installer owns ingestion into the central repository. It holds no
// state of its own; everything durable lives in the catalog.
type Installer struct {
	store   *catalog.Store
	fetcher *gitfetch.Fetcher
	hub     *hub.Client
}

// New creates an installer over the given collaborators. hubClient may
// be nil when the hub feature is disabled.
func New(store *catalog.Store, fetcher *gitfetch.Fetcher, hubClient *hub.Client) *Installer {
	return &Installer{store: store, fetcher: fetcher, hub: hubClient}
}

// DefaultRoot is the central repository location used until the user
// relocates it.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".skillshub", "skills"), nil
}

// Root resolves and creates the central repository root. Inability to
// do so is fatal to the caller; nothing else in the engine works
// without the root.
func (i *Installer) Root(ctx context.Context) (string, error) {
	root, err := i.store.Setting(ctx, catalog.SettingCentralRoot)
	if err != nil {
		return "", err
	}
	if root == "" {
		root, err = DefaultRoot()
		if err != nil {
			return "", faults.Wrap(faults.IO, err, "resolve central repository root")
		}
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", faults.Wrap(faults.IO, err, "create central repository root").At(root)
	}
	return root, nil
}

// importDir copies srcDir into the central repository as a new skill.
// overrideName wins over the manifest name; defaultName covers a
// manifest without one.
func (i *Installer) importDir(ctx context.Context, srcDir, overrideName, defaultName, sourceType, sourceRef string) (*catalog.Skill, error) {
	raw, err := os.ReadFile(filepath.Join(srcDir, manifest.FileName))
	if err != nil {
		return nil, faults.Wrap(faults.Validation, err, "missing %s", manifest.FileName).At(srcDir)
	}
	m, err := manifest.ParseWithDefault(raw, defaultName)
	if err != nil {
		return nil, err
	}

	name := m.Name
	if overrideName != "" {
		name = manifest.NormalizeName(overrideName)
		if !manifest.ValidName(name) {
			return nil, faults.New(faults.Validation, "invalid skill name: %s", overrideName)
		}
	}

	if existing, err := i.store.GetSkillByName(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, faults.New(faults.Conflict, "a skill named %q already exists", name)
	}

	root, err := i.Root(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dest := filepath.Join(root, id)
	if err := syncer.CopyTree(srcDir, dest); err != nil {
		os.RemoveAll(dest)
		return nil, err
	}
	hash, err := syncer.TreeHash(dest)
	if err != nil {
		os.RemoveAll(dest)
		return nil, err
	}

	skill := &catalog.Skill{
		ID:          id,
		Name:        name,
		Description: m.Description,
		SourceType:  sourceType,
		SourceRef:   sourceRef,
		CentralPath: dest,
		ContentHash: hash,
	}
	if err := i.store.CreateSkill(ctx, skill); err != nil {
		os.RemoveAll(dest)
		return nil, err
	}
	return skill, nil
}

// pickSingle enforces the one-skill expectation of the plain import
// commands against a candidate list.
func pickSingle(cands []manifest.Candidate) (*manifest.Candidate, error) {
	var valid []manifest.Candidate
	for _, c := range cands {
		if c.Valid {
			valid = append(valid, c)
		}
	}
	switch len(valid) {
	case 0:
		if len(cands) > 0 {
			return nil, faults.New(faults.Validation, "no valid skill found: %s", cands[0].Reason)
		}
		return nil, faults.New(faults.Validation, "no skill definition found")
	case 1:
		return &valid[0], nil
	default:
		return nil, &MultiSkillsError{Count: len(valid)}
	}
}

// ReadContent returns the text of a skill's definition file from the
// central copy.
func (i *Installer) ReadContent(ctx context.Context, skillID string) (string, error) {
	skill, err := i.store.GetSkill(ctx, skillID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(skill.CentralPath, manifest.FileName))
	if err != nil {
		return "", faults.Wrap(faults.IO, err, "read skill content").At(skill.CentralPath)
	}
	return string(data), nil
}

// expandHome resolves a leading ~ in user-supplied paths.
func expandHome(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", faults.New(faults.Validation, "empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}
