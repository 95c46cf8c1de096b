package installer

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
	"skillshub/internal/syncer"
)

// TargetFailure records one mirror that could not be removed.
type TargetFailure struct {
	TargetKey string `json:"target_key"`
	DestPath  string `json:"dest_path"`
	Error     string `json:"error"`
}

// RemoveReport is the outcome of a skill deletion. Failures are
// mirrors that were left in place; the skill row is only deleted when
// there are none.
type RemoveReport struct {
	SkillID  string          `json:"skill_id"`
	Removed  bool            `json:"removed"`
	Failures []TargetFailure `json:"failures,omitempty"`
}

// Remove deletes a skill: every mirror first, then the central copy,
// then the catalog row. A mirror the engine cannot verify as its own
// is left alone and reported; the skill survives so the user can
// resolve and retry. Remote-copy rows only lose their record, the
// remote files are out of reach here and cleaned up on the next host
// sync.
func (i *Installer) Remove(ctx context.Context, skillID string) (*RemoveReport, error) {
	skill, err := i.store.GetSkill(ctx, skillID)
	if err != nil {
		return nil, err
	}
	targets, err := i.store.ListTargets(ctx, skillID)
	if err != nil {
		return nil, err
	}

	report := &RemoveReport{SkillID: skillID}
	for idx := range targets {
		t := &targets[idx]
		if t.Mode != syncer.ModeRemoteCopy {
			if err := syncer.Remove(t); err != nil {
				report.Failures = append(report.Failures, TargetFailure{
					TargetKey: t.TargetKey,
					DestPath:  t.DestPath,
					Error:     err.Error(),
				})
				i.store.SetTargetError(ctx, t.SkillID, t.TargetKey, err.Error())
				continue
			}
		}
		if err := i.store.DeleteTarget(ctx, t.SkillID, t.TargetKey); err != nil {
			return report, err
		}
	}

	if len(report.Failures) > 0 {
		log.Printf("[installer] %s: %d mirrors left in place, skill kept", skill.Name, len(report.Failures))
		return report, nil
	}

	if err := i.store.RemoveManagedPath(ctx, skill.CentralPath); err != nil {
		return report, err
	}
	if err := i.store.DeleteSkill(ctx, skillID); err != nil {
		return report, err
	}
	report.Removed = true
	return report, nil
}

// SetCentralRoot relocates the central repository to newRoot, moving
// every skill directory, updating catalog rows and re-pointing
// link-mode mirrors. The old directories are only removed once their
// content is safely in place under the new root.
func (i *Installer) SetCentralRoot(ctx context.Context, newRoot string) error {
	newRoot, err := expandHome(newRoot)
	if err != nil {
		return err
	}
	oldRoot, err := i.Root(ctx)
	if err != nil {
		return err
	}
	if sameRoot(oldRoot, newRoot) {
		return nil
	}
	if strings.HasPrefix(filepath.Clean(newRoot)+string(filepath.Separator), filepath.Clean(oldRoot)+string(filepath.Separator)) {
		return faults.New(faults.Validation, "new root cannot live inside the current root").At(newRoot)
	}
	if err := os.MkdirAll(newRoot, 0755); err != nil {
		return faults.Wrap(faults.IO, err, "create new root").At(newRoot)
	}

	skills, err := i.store.ListSkills(ctx)
	if err != nil {
		return err
	}

	for idx := range skills {
		skill := &skills[idx]
		newPath := filepath.Join(newRoot, filepath.Base(skill.CentralPath))

		if err := moveDir(skill.CentralPath, newPath); err != nil {
			return faults.Wrap(faults.IO, err, "move %s", skill.Name).At(skill.CentralPath)
		}

		skill.CentralPath = newPath
		if err := i.store.UpdateSkill(ctx, skill); err != nil {
			return err
		}
		if err := i.repointLinks(ctx, skill, newPath); err != nil {
			return err
		}
	}

	return i.store.SetSetting(ctx, catalog.SettingCentralRoot, newRoot)
}

// repointLinks recreates link-mode mirrors against the skill's new
// central path. A mirror that fails to re-point is marked errored, not
// fatal to the relocation.
func (i *Installer) repointLinks(ctx context.Context, skill *catalog.Skill, newPath string) error {
	targets, err := i.store.ListTargets(ctx, skill.ID)
	if err != nil {
		return err
	}
	for idx := range targets {
		t := &targets[idx]
		switch t.Mode {
		case syncer.ModeSymlink, syncer.ModeJunction:
		default:
			continue
		}
		res, err := syncer.Materialize(newPath, t.DestPath, syncer.Options{Overwrite: true})
		if err != nil {
			i.store.SetTargetError(ctx, t.SkillID, t.TargetKey, err.Error())
			log.Printf("[installer] re-point %s for %s failed: %v", t.TargetKey, skill.Name, err)
			continue
		}
		t.Mode = res.Mode
		t.LinkTarget = res.LinkTarget
		t.ContentHash = res.ContentHash
		t.Status = catalog.TargetSynced
		t.LastError = ""
		if err := i.store.UpsertTarget(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// moveDir renames src to dst, falling back to copy-and-remove when the
// rename crosses devices.
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := syncer.CopyTree(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func sameRoot(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA == nil && errB == nil {
		return ra == rb
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
