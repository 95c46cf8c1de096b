package installer

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
	"skillshub/internal/manifest"
	"skillshub/internal/syncer"
)

// UpdateResult reports one skill's update: whether anything changed
// and which copy-mode targets were refreshed.
type UpdateResult struct {
	SkillID        string   `json:"skill_id"`
	Name           string   `json:"name"`
	Updated        bool     `json:"updated"`
	ContentHash    string   `json:"content_hash"`
	UpdatedTargets []string `json:"updated_targets,omitempty"`
}

// UpdateCheck is one row of a non-mutating update scan.
type UpdateCheck struct {
	SkillID         string `json:"skill_id"`
	Name            string `json:"name"`
	UpdateAvailable bool   `json:"update_available"`
	Error           string `json:"error,omitempty"`
}

// Update re-fetches a skill from its recorded source and, when the
// content changed, replaces the central copy and refreshes every
// copy-mode mirror. Link-mode mirrors follow the central copy by
// construction.
func (i *Installer) Update(ctx context.Context, skillID string) (*UpdateResult, error) {
	skill, err := i.store.GetSkill(ctx, skillID)
	if err != nil {
		return nil, err
	}

	srcDir, cleanup, err := i.sourceTree(ctx, skill, true)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	newHash, err := syncer.TreeHash(srcDir)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{SkillID: skill.ID, Name: skill.Name, ContentHash: skill.ContentHash}
	if newHash == skill.ContentHash {
		return result, nil
	}

	if err := i.replaceCentral(skill.CentralPath, srcDir); err != nil {
		return nil, err
	}
	skill.ContentHash = newHash
	if err := i.store.UpdateSkill(ctx, skill); err != nil {
		return nil, err
	}
	result.Updated = true
	result.ContentHash = newHash

	targets, err := i.store.ListTargets(ctx, skill.ID)
	if err != nil {
		return result, err
	}
	for idx := range targets {
		t := &targets[idx]
		if t.Mode != syncer.ModeCopy {
			continue
		}
		hash, copied, err := syncer.Refresh(skill.CentralPath, t)
		if err != nil {
			i.store.SetTargetError(ctx, t.SkillID, t.TargetKey, err.Error())
			log.Printf("[installer] refresh of %s for %s failed: %v", t.TargetKey, skill.Name, err)
			continue
		}
		if copied {
			t.ContentHash = hash
			t.Status = catalog.TargetSynced
			t.LastError = ""
			if err := i.store.UpsertTarget(ctx, t); err != nil {
				return result, err
			}
			result.UpdatedTargets = append(result.UpdatedTargets, t.TargetKey)
		}
	}
	return result, nil
}

// CheckUpdates reports per-skill update availability without touching
// the central repository. One skill's unreachable source never hides
// the others.
func (i *Installer) CheckUpdates(ctx context.Context) ([]UpdateCheck, error) {
	skills, err := i.store.ListSkills(ctx)
	if err != nil {
		return nil, err
	}

	checks := make([]UpdateCheck, 0, len(skills))
	for idx := range skills {
		skill := &skills[idx]
		check := UpdateCheck{SkillID: skill.ID, Name: skill.Name}

		srcDir, cleanup, err := i.sourceTree(ctx, skill, false)
		if err != nil {
			check.Error = err.Error()
			checks = append(checks, check)
			continue
		}
		hash, err := syncer.TreeHash(srcDir)
		cleanup()
		if err != nil {
			check.Error = err.Error()
		} else {
			check.UpdateAvailable = hash != skill.ContentHash
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// sourceTree materializes a skill's recorded source as a readable
// directory. fresh bypasses the git fetch cache. The cleanup func
// releases any temporary state.
func (i *Installer) sourceTree(ctx context.Context, skill *catalog.Skill, fresh bool) (string, func(), error) {
	noop := func() {}

	switch skill.SourceType {
	case catalog.SourceLocal:
		dir := skill.SourceRef
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", noop, faults.New(faults.NotAvailable, "source folder no longer exists").At(dir)
		}
		return dir, noop, nil

	case catalog.SourceGit:
		src, tree, err := i.fetchSource(ctx, skill.SourceRef, fresh)
		if err != nil {
			return "", noop, err
		}
		dir := filepath.Join(tree, filepath.FromSlash(src.Subpath))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", noop, faults.New(faults.NotAvailable, "subpath vanished from repository").At(dir)
		}
		return dir, noop, nil

	case catalog.SourceHub:
		if i.hub == nil {
			return "", noop, faults.New(faults.NotAvailable, "hub catalog is not configured")
		}
		tmp, err := os.MkdirTemp("", "skillshub-hub-")
		if err != nil {
			return "", noop, faults.Wrap(faults.IO, err, "create download dir")
		}
		cleanup := func() { os.RemoveAll(tmp) }
		dir, err := i.hub.Download(ctx, skill.SourceRef, "", tmp)
		if err != nil {
			cleanup()
			return "", noop, err
		}
		// The archive may nest the skill one level down.
		cands, err := manifest.Discover(dir, skill.SourceRef)
		if err == nil && len(cands) == 1 && cands[0].Valid && cands[0].Path != "" {
			dir = filepath.Join(dir, filepath.FromSlash(cands[0].Path))
		}
		return dir, cleanup, nil

	default:
		return "", noop, faults.New(faults.Validation, "unknown source type: %s", skill.SourceType)
	}
}

// replaceCentral swaps the central copy for newContent without ever
// exposing a half-written tree: the new content is staged as a sibling
// and renamed into place.
func (i *Installer) replaceCentral(centralPath, newContent string) error {
	parent := filepath.Dir(centralPath)
	staging, err := os.MkdirTemp(parent, filepath.Base(centralPath)+".new-")
	if err != nil {
		return faults.Wrap(faults.IO, err, "create staging dir").At(parent)
	}
	if err := syncer.CopyTree(newContent, staging); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.RemoveAll(centralPath); err != nil {
		os.RemoveAll(staging)
		return faults.Wrap(faults.IO, err, "clear central copy").At(centralPath)
	}
	if err := os.Rename(staging, centralPath); err != nil {
		os.RemoveAll(staging)
		return faults.Wrap(faults.IO, err, "adopt new central copy").At(centralPath)
	}
	return nil
}
