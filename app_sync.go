package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"skillshub/internal/adapters"
	"skillshub/internal/catalog"
	"skillshub/internal/eventbus"
	"skillshub/internal/faults"
	"skillshub/internal/onboarding"
	"skillshub/internal/syncer"
)

// ToolInfo is one adapter's local status: installed now, and whether
// it appeared since the last check.
type ToolInfo struct {
	adapters.Adapter
	Installed      bool `json:"installed"`
	NewlyInstalled bool `json:"newly_installed"`
}

// OnboardingResult reports one applied onboarding choice: the imported
// skill and any variants that could not be re-materialized.
type OnboardingResult struct {
	Skill  *catalog.Skill `json:"skill"`
	Errors []string       `json:"errors,omitempty"`
}

// --- Tool status & onboarding ---

// GetToolStatus reports every known tool, whether it is installed, and
// whether it is newly installed since the previous check.
func (a *App) GetToolStatus() ([]ToolInfo, error) {
	previous, err := a.store.InstalledTools(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	seen := make(map[string]bool, len(previous))
	for _, k := range previous {
		seen[k] = true
	}

	var current []string
	out := make([]ToolInfo, 0, len(a.registry.All()))
	for _, adapter := range a.registry.All() {
		installed := a.registry.IsInstalled(adapter.Key)
		if installed {
			current = append(current, adapter.Key)
		}
		out = append(out, ToolInfo{
			Adapter:        adapter,
			Installed:      installed,
			NewlyInstalled: installed && len(previous) > 0 && !seen[adapter.Key],
		})
	}

	if err := a.store.SetInstalledTools(a.ctx, current); err != nil {
		return nil, a.fail(err)
	}
	return out, nil
}

// GetOnboardingPlan scans installed tools for unmanaged skill copies
// and groups them for user-directed import.
func (a *App) GetOnboardingPlan() (*onboarding.Report, error) {
	root, err := a.installer.Root(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	report, err := onboarding.Scan(a.ctx, a.store, a.registry, root)
	if err != nil {
		return nil, a.fail(err)
	}
	return report, nil
}

// ApplyOnboardingChoice adopts one discovered variant as the canonical
// central copy and, when resync is set, re-materializes every variant
// of the group as a mirror of it. Variant failures are collected, not
// fatal.
func (a *App) ApplyOnboardingChoice(name, adoptPath string, resync bool) (*OnboardingResult, error) {
	root, err := a.installer.Root(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	plan, err := onboarding.Scan(a.ctx, a.store, a.registry, root)
	if err != nil {
		return nil, a.fail(err)
	}
	var group *onboarding.Group
	for i := range plan.Groups {
		if plan.Groups[i].Name == name {
			group = &plan.Groups[i]
			break
		}
	}
	if group == nil {
		return nil, a.fail(faults.New(faults.NotAvailable, "no unmanaged skill named %q found", name))
	}

	skill, err := a.installer.ImportLocal(a.ctx, adoptPath, name)
	if err != nil {
		return nil, a.fail(err)
	}

	result := &OnboardingResult{Skill: skill}
	if resync {
		for _, v := range group.Variants {
			if err := a.adoptVariant(skill, v.Tool, v.Path); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s (%s): %v", v.Path, v.Tool, err))
			}
		}
	}

	a.bus.Publish(eventbus.TopicSkillChanged, skill.Name)
	return result, nil
}

// adoptVariant replaces one formerly unmanaged copy with a managed
// mirror of the central copy and records the target rows.
func (a *App) adoptVariant(skill *catalog.Skill, toolKey, destPath string) error {
	adapter, err := a.registry.Get(toolKey)
	if err != nil {
		return err
	}
	res, err := syncer.Materialize(skill.CentralPath, destPath, syncer.Options{
		ForceCopy: !adapter.FollowsSymlinks,
		Overwrite: true,
	})
	if err != nil {
		return err
	}
	return a.recordTargets(skill.ID, toolKey, res)
}

// --- Local sync ---

// SyncSkillToTool mirrors a skill into a tool's skills directory.
// An uninstalled tool and an occupied destination report structured
// identifiers so the frontend can branch; overwrite retries past the
// latter once the user has decided.
func (a *App) SyncSkillToTool(skillID, toolKey string, overwrite bool) error {
	adapter, err := a.registry.Get(toolKey)
	if err != nil {
		return a.fail(err)
	}
	if !a.registry.IsInstalled(toolKey) {
		return fmt.Errorf("TOOL_NOT_INSTALLED|%s", toolKey)
	}
	skill, err := a.store.GetSkill(a.ctx, skillID)
	if err != nil {
		return a.fail(err)
	}
	dir, err := a.registry.SkillsDir(toolKey)
	if err != nil {
		return a.fail(err)
	}
	dest := filepath.Join(dir, skill.Name)

	existing, err := a.store.GetTarget(a.ctx, skillID, toolKey)
	if err != nil {
		return a.fail(err)
	}
	opts := syncer.Options{
		ForceCopy: !adapter.FollowsSymlinks,
		// A recorded row means the occupied destination is our own
		// earlier mirror; replacing it needs no user decision.
		Overwrite: overwrite || existing != nil,
	}
	// A pair pinned to copy stays copy.
	if existing != nil && existing.Mode == syncer.ModeCopy {
		opts.ForceCopy = true
	}

	res, err := syncer.Materialize(skill.CentralPath, dest, opts)
	if err != nil {
		var f *faults.Fault
		if errors.As(err, &f) && f.Kind == faults.Conflict && f.Path != "" {
			return fmt.Errorf("TARGET_EXISTS|%s", f.Path)
		}
		return a.fail(err)
	}

	if err := a.recordTargets(skillID, toolKey, res); err != nil {
		return a.fail(err)
	}
	a.store.TouchSkillSync(a.ctx, skillID)
	a.bus.Publish(eventbus.TopicSyncFinished, fmt.Sprintf("%s -> %s", skill.Name, toolKey))
	return nil
}

// recordTargets writes a target row for every adapter sharing the
// synced tool's physical directory, so each of them knows the mirror
// exists.
func (a *App) recordTargets(skillID, toolKey string, res *syncer.Result) error {
	keys, err := a.registry.SharingDir(toolKey)
	if err != nil {
		return err
	}
	for _, key := range keys {
		t := &catalog.SkillTarget{
			SkillID:     skillID,
			TargetKey:   key,
			Mode:        res.Mode,
			DestPath:    res.DestPath,
			LinkTarget:  res.LinkTarget,
			ContentHash: res.ContentHash,
			Status:      catalog.TargetSynced,
		}
		if err := a.store.UpsertTarget(a.ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// UnsyncSkillFromTool removes a skill's mirror from a tool's skills
// directory, refusing when the destination no longer looks like ours.
func (a *App) UnsyncSkillFromTool(skillID, toolKey string) error {
	target, err := a.store.GetTarget(a.ctx, skillID, toolKey)
	if err != nil {
		return a.fail(err)
	}
	if target == nil {
		return nil
	}
	if err := syncer.Remove(target); err != nil {
		return a.fail(err)
	}

	keys, err := a.registry.SharingDir(toolKey)
	if err != nil {
		keys = []string{toolKey}
	}
	for _, key := range keys {
		if err := a.store.DeleteTarget(a.ctx, skillID, key); err != nil {
			return a.fail(err)
		}
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skillID)
	return nil
}

// --- Custom targets ---

// GetCustomTargets returns every configured custom target directory.
func (a *App) GetCustomTargets() ([]catalog.CustomTarget, error) {
	targets, err := a.store.ListCustomTargets(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	return targets, nil
}

// AddCustomTarget registers a destination directory, local when
// remoteHostID is empty.
func (a *App) AddCustomTarget(label, path, remoteHostID string) (*catalog.CustomTarget, error) {
	if path == "" {
		return nil, a.fail(faults.New(faults.Validation, "custom target path is required"))
	}
	if remoteHostID != "" {
		if _, err := a.store.GetHost(a.ctx, remoteHostID); err != nil {
			return nil, a.fail(err)
		}
	}
	t := &catalog.CustomTarget{Label: label, Path: path, RemoteHostID: remoteHostID}
	if err := a.store.CreateCustomTarget(a.ctx, t); err != nil {
		return nil, a.fail(err)
	}
	return t, nil
}

// DeleteCustomTarget removes a custom target; target rows recorded
// against it keep their key and are cleaned up per skill.
func (a *App) DeleteCustomTarget(id string) error {
	return a.fail(a.store.DeleteCustomTarget(a.ctx, id))
}

// SyncSkillToCustomTarget mirrors a skill into a custom target. Local
// targets get the usual link fallback chain; remote ones are uploaded
// over the host's connection.
func (a *App) SyncSkillToCustomTarget(skillID, customTargetID string, overwrite bool) error {
	custom, err := a.store.GetCustomTarget(a.ctx, customTargetID)
	if err != nil {
		return a.fail(err)
	}
	skill, err := a.store.GetSkill(a.ctx, skillID)
	if err != nil {
		return a.fail(err)
	}
	key := catalog.CustomTargetKey(custom.ID)

	if custom.RemoteHostID != "" {
		dest, err := a.pushSkillToHostDir(custom.RemoteHostID, skill, custom.Path)
		if err != nil {
			return a.fail(err)
		}
		t := &catalog.SkillTarget{
			SkillID:   skillID,
			TargetKey: key,
			Mode:      syncer.ModeRemoteCopy,
			DestPath:  dest,
			Status:    catalog.TargetSynced,
		}
		if err := a.store.UpsertTarget(a.ctx, t); err != nil {
			return a.fail(err)
		}
		a.store.TouchSkillSync(a.ctx, skillID)
		return nil
	}

	dest := filepath.Join(a.registry.Expand(custom.Path), skill.Name)
	existing, err := a.store.GetTarget(a.ctx, skillID, key)
	if err != nil {
		return a.fail(err)
	}
	res, err := syncer.Materialize(skill.CentralPath, dest, syncer.Options{
		Overwrite: overwrite || existing != nil,
	})
	if err != nil {
		var f *faults.Fault
		if errors.As(err, &f) && f.Kind == faults.Conflict && f.Path != "" {
			return fmt.Errorf("TARGET_EXISTS|%s", f.Path)
		}
		return a.fail(err)
	}
	t := &catalog.SkillTarget{
		SkillID:     skillID,
		TargetKey:   key,
		Mode:        res.Mode,
		DestPath:    res.DestPath,
		LinkTarget:  res.LinkTarget,
		ContentHash: res.ContentHash,
		Status:      catalog.TargetSynced,
	}
	if err := a.store.UpsertTarget(a.ctx, t); err != nil {
		return a.fail(err)
	}
	a.store.TouchSkillSync(a.ctx, skillID)
	return nil
}

// UnsyncSkillFromCustomTarget removes a skill's mirror from a custom
// target. Remote copies lose their record only; the files are swept on
// the next host sync.
func (a *App) UnsyncSkillFromCustomTarget(skillID, customTargetID string) error {
	key := catalog.CustomTargetKey(customTargetID)
	target, err := a.store.GetTarget(a.ctx, skillID, key)
	if err != nil {
		return a.fail(err)
	}
	if target == nil {
		return nil
	}
	if target.Mode != syncer.ModeRemoteCopy {
		if err := syncer.Remove(target); err != nil {
			return a.fail(err)
		}
	}
	return a.fail(a.store.DeleteTarget(a.ctx, skillID, key))
}
