package main

import (
	"skillshub/internal/catalog"
	"skillshub/internal/eventbus"
	"skillshub/internal/installer"
	"skillshub/internal/manifest"
)

// ManagedSkill is one catalog skill together with its mirror rows, the
// shape the skills list renders from.
type ManagedSkill struct {
	catalog.Skill
	Targets []catalog.SkillTarget `json:"targets"`
}

// --- Ingestion ---

// InstallLocalSkill imports the skill in a local folder. A folder with
// several candidates fails with MULTI_SKILLS|<count>; the frontend then
// lists candidates and installs a selection.
func (a *App) InstallLocalSkill(path, name string) (*catalog.Skill, error) {
	skill, err := a.installer.ImportLocal(a.ctx, path, name)
	if err != nil {
		return nil, a.fail(err)
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skill.Name)
	return skill, nil
}

// ListLocalSkillCandidates lists the skills a local folder offers.
func (a *App) ListLocalSkillCandidates(path string) ([]manifest.Candidate, error) {
	cands, err := a.installer.ListLocalCandidates(path)
	if err != nil {
		return nil, a.fail(err)
	}
	return cands, nil
}

// InstallLocalSelection imports one candidate out of a multi-skill
// local folder.
func (a *App) InstallLocalSelection(basePath, subpath, name string) (*catalog.Skill, error) {
	skill, err := a.installer.ImportLocalSelection(a.ctx, basePath, subpath, name)
	if err != nil {
		return nil, a.fail(err)
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skill.Name)
	return skill, nil
}

// InstallGitSkill imports the skill a repository URL points at.
func (a *App) InstallGitSkill(url, name string) (*catalog.Skill, error) {
	skill, err := a.installer.ImportGit(a.ctx, url, name)
	if err != nil {
		return nil, a.fail(err)
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skill.Name)
	return skill, nil
}

// ListGitSkillCandidates lists the skills a repository URL offers.
func (a *App) ListGitSkillCandidates(url string) ([]manifest.Candidate, error) {
	cands, err := a.installer.ListGitCandidates(a.ctx, url)
	if err != nil {
		return nil, a.fail(err)
	}
	return cands, nil
}

// InstallGitSelection imports one candidate out of a multi-skill
// repository.
func (a *App) InstallGitSelection(url, subpath, name string) (*catalog.Skill, error) {
	skill, err := a.installer.ImportGitSelection(a.ctx, url, subpath, name)
	if err != nil {
		return nil, a.fail(err)
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skill.Name)
	return skill, nil
}

// --- Managed skills ---

// GetManagedSkills returns every skill with its mirror rows.
func (a *App) GetManagedSkills() ([]ManagedSkill, error) {
	skills, err := a.store.ListSkills(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	out := make([]ManagedSkill, 0, len(skills))
	for _, sk := range skills {
		targets, err := a.store.ListTargets(a.ctx, sk.ID)
		if err != nil {
			return nil, a.fail(err)
		}
		out = append(out, ManagedSkill{Skill: sk, Targets: targets})
	}
	return out, nil
}

// ReadSkillContent returns the text of a skill's definition file.
func (a *App) ReadSkillContent(skillID string) (string, error) {
	content, err := a.installer.ReadContent(a.ctx, skillID)
	if err != nil {
		return "", a.fail(err)
	}
	return content, nil
}

// UpdateManagedSkill re-fetches a skill from its source and refreshes
// its copy-mode mirrors when the content changed.
func (a *App) UpdateManagedSkill(skillID string) (*installer.UpdateResult, error) {
	result, err := a.installer.Update(a.ctx, skillID)
	if err != nil {
		return nil, a.fail(err)
	}
	if result.Updated {
		a.bus.Publish(eventbus.TopicSkillChanged, result.Name)
	}
	return result, nil
}

// CheckSkillUpdates reports per-skill update availability without
// changing anything.
func (a *App) CheckSkillUpdates() ([]installer.UpdateCheck, error) {
	checks, err := a.installer.CheckUpdates(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	return checks, nil
}

// DeleteManagedSkill removes a skill, its mirrors and its central copy.
// Mirrors that no longer look like ours are left alone and reported;
// the skill row survives until they are resolved.
func (a *App) DeleteManagedSkill(skillID string) (*installer.RemoveReport, error) {
	report, err := a.installer.Remove(a.ctx, skillID)
	if err != nil {
		return nil, a.fail(err)
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skillID)
	return report, nil
}

// --- Central repository & settings ---

// GetCentralRepoPath returns the central repository root, creating it
// when missing.
func (a *App) GetCentralRepoPath() (string, error) {
	root, err := a.installer.Root(a.ctx)
	if err != nil {
		return "", a.fail(err)
	}
	return root, nil
}

// SetCentralRepoPath relocates the central repository, moving every
// skill and re-pointing link mirrors.
func (a *App) SetCentralRepoPath(path string) error {
	if err := a.installer.SetCentralRoot(a.ctx, path); err != nil {
		return a.fail(err)
	}
	a.bus.Publish(eventbus.TopicStatusChange, "central repository moved to "+path)
	return nil
}

// GetGitCacheTTLSecs returns the git cache freshness window in seconds.
func (a *App) GetGitCacheTTLSecs() (int, error) {
	ttl, err := a.store.GitCacheTTL(a.ctx)
	if err != nil {
		return 0, a.fail(err)
	}
	return int(ttl.Seconds()), nil
}

// SetGitCacheTTLSecs stores the git cache freshness window in seconds.
func (a *App) SetGitCacheTTLSecs(secs int) error {
	return a.fail(a.store.SetGitCacheTTLSecs(a.ctx, secs))
}

// GetGitCacheCleanupDays returns the cache eviction age in days.
func (a *App) GetGitCacheCleanupDays() (int, error) {
	days, err := a.store.GitCacheCleanupDays(a.ctx)
	if err != nil {
		return 0, a.fail(err)
	}
	return days, nil
}

// SetGitCacheCleanupDays stores the cache eviction age in days.
func (a *App) SetGitCacheCleanupDays(days int) error {
	return a.fail(a.store.SetGitCacheCleanupDays(a.ctx, days))
}

// ClearGitCacheNow drops every cached clone immediately.
func (a *App) ClearGitCacheNow() (int, error) {
	n, err := a.fetcher.Clear()
	if err != nil {
		return 0, a.fail(err)
	}
	if n > 0 {
		a.bus.Publish(eventbus.TopicCacheCleanup, n)
	}
	return n, nil
}
