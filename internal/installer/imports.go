package installer

import (
	"context"
	"os"
	"path/filepath"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
	"skillshub/internal/gitfetch"
	"skillshub/internal/manifest"
)

// ImportLocal ingests the skill in a local folder. A folder holding
// several skills fails with MultiSkillsError so the caller can list
// and select instead.
func (i *Installer) ImportLocal(ctx context.Context, path, name string) (*catalog.Skill, error) {
	src, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	cands, err := manifest.Discover(src, filepath.Base(src))
	if err != nil {
		return nil, err
	}
	picked, err := pickSingle(cands)
	if err != nil {
		return nil, err
	}
	return i.importCandidate(ctx, src, picked.Path, name, filepath.Base(src), catalog.SourceLocal, src)
}

// ListLocalCandidates lists the skills a local folder offers.
func (i *Installer) ListLocalCandidates(path string) ([]manifest.Candidate, error) {
	src, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	return manifest.Discover(src, filepath.Base(src))
}

// ImportLocalSelection ingests one candidate (by its relative path)
// out of a multi-skill local folder.
func (i *Installer) ImportLocalSelection(ctx context.Context, basePath, subpath, name string) (*catalog.Skill, error) {
	src, err := expandHome(basePath)
	if err != nil {
		return nil, err
	}
	return i.importCandidate(ctx, src, subpath, name, filepath.Base(src), catalog.SourceLocal,
		filepath.Join(src, filepath.FromSlash(subpath)))
}

// ImportGit ingests the skill a repository URL points at, through the
// fetch cache.
func (i *Installer) ImportGit(ctx context.Context, url, name string) (*catalog.Skill, error) {
	src, tree, err := i.fetchSource(ctx, url, false)
	if err != nil {
		return nil, err
	}
	cands, err := i.fetcher.Discover(tree, src.Subpath, src.RepoName)
	if err != nil {
		return nil, err
	}
	picked, err := pickSingle(cands)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(tree, filepath.FromSlash(src.Subpath))
	return i.importCandidate(ctx, base, picked.Path, name, src.RepoName, catalog.SourceGit, url)
}

// ListGitCandidates lists the skills a repository URL offers.
func (i *Installer) ListGitCandidates(ctx context.Context, url string) ([]manifest.Candidate, error) {
	src, tree, err := i.fetchSource(ctx, url, false)
	if err != nil {
		return nil, err
	}
	return i.fetcher.Discover(tree, src.Subpath, src.RepoName)
}

// ImportGitSelection ingests one candidate out of a multi-skill
// repository. subpath is relative to the URL's own subpath, matching
// the candidate listing.
func (i *Installer) ImportGitSelection(ctx context.Context, url, subpath, name string) (*catalog.Skill, error) {
	src, tree, err := i.fetchSource(ctx, url, false)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(tree, filepath.FromSlash(src.Subpath))
	return i.importCandidate(ctx, base, subpath, name, src.RepoName, catalog.SourceGit, url)
}

// ImportHub downloads a skill from the hub catalog and ingests it.
func (i *Installer) ImportHub(ctx context.Context, slug, version, name string) (*catalog.Skill, error) {
	if i.hub == nil {
		return nil, faults.New(faults.NotAvailable, "hub catalog is not configured")
	}

	tmp, err := os.MkdirTemp("", "skillshub-hub-")
	if err != nil {
		return nil, faults.Wrap(faults.IO, err, "create download dir")
	}
	defer os.RemoveAll(tmp)

	dir, err := i.hub.Download(ctx, slug, version, tmp)
	if err != nil {
		return nil, err
	}

	cands, err := manifest.Discover(dir, slug)
	if err != nil {
		return nil, err
	}
	picked, err := pickSingle(cands)
	if err != nil {
		return nil, err
	}
	return i.importCandidate(ctx, dir, picked.Path, name, slug, catalog.SourceHub, slug)
}

// importCandidate resolves a candidate's directory under base and
// imports it. The default name only applies when the candidate is the
// base itself.
func (i *Installer) importCandidate(ctx context.Context, base, rel, overrideName, defaultName, sourceType, sourceRef string) (*catalog.Skill, error) {
	dir := base
	if rel != "" {
		dir = filepath.Join(base, filepath.FromSlash(rel))
		defaultName = ""
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, faults.New(faults.Validation, "skill directory does not exist").At(dir)
	}
	return i.importDir(ctx, dir, overrideName, defaultName, sourceType, sourceRef)
}

// fetchSource resolves a URL and fetches its working tree, bypassing
// the freshness window when fresh is set.
func (i *Installer) fetchSource(ctx context.Context, url string, fresh bool) (*gitfetch.Source, string, error) {
	src, err := gitfetch.Resolve(url)
	if err != nil {
		return nil, "", err
	}
	var tree string
	if fresh {
		tree, err = i.fetcher.FetchFresh(ctx, src.Repo, src.Ref)
	} else {
		tree, err = i.fetcher.Fetch(ctx, src.Repo, src.Ref)
	}
	if err != nil {
		return nil, "", err
	}
	return src, tree, nil
}
