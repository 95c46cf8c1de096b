// Package onboarding reconciles skill directories that already exist
// on disk with the catalog: content the engine put there is ignored,
// everything else is grouped into variant groups for user-directed
// import.
package onboarding

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"skillshub/internal/adapters"
	"skillshub/internal/catalog"
	"skillshub/internal/manifest"
	"skillshub/internal/syncer"
)

// Variant is one discovered, unmanaged copy of a skill name.
type Variant struct {
	Tool        string `json:"tool"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	IsLink      bool   `json:"is_link"`
	LinkTarget  string `json:"link_target,omitempty"`
}

// Group collects every discovered variant of one name across all
// tools. HasConflict is set when the variants disagree on content or
// link target, which the import flow surfaces instead of resolving.
type Group struct {
	Name        string    `json:"name"`
	Variants    []Variant `json:"variants"`
	HasConflict bool      `json:"has_conflict"`
}

// Report is the result of one onboarding scan.
type Report struct {
	ToolsScanned int     `json:"tools_scanned"`
	SkillsFound  int     `json:"skills_found"`
	Groups       []Group `json:"groups"`
}

// Scan walks every distinct physical skills directory of the installed
// tools and classifies each skill-like entry against the catalog.
// Directories shared by several tools are scanned once; entries whose
// content hash is already tracked, or whose link resolves into the
// central repository, are already managed and skipped.
func Scan(ctx context.Context, store *catalog.Store, reg *adapters.Registry, centralRoot string) (*Report, error) {
	managed, err := managedHashes(ctx, store)
	if err != nil {
		return nil, err
	}

	centralReal := realpath(centralRoot)
	report := &Report{}
	groups := make(map[string]*Group)

	seen := make(map[string]bool) // physical dirs already walked
	for _, a := range reg.Installed() {
		dir, err := reg.SkillsDir(a.Key)
		if err != nil {
			continue
		}
		report.ToolsScanned++

		real := realpath(dir)
		if seen[real] {
			continue
		}
		seen[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("[onboarding] cannot read %s: %v", dir, err)
			}
			continue
		}

		for _, e := range entries {
			v, name, ok := classify(dir, e)
			if !ok {
				continue
			}
			report.SkillsFound++
			v.Tool = a.Key

			if managed[v.ContentHash] {
				continue
			}
			if v.IsLink && strings.HasPrefix(realpath(v.LinkTarget), centralReal+string(filepath.Separator)) {
				continue // a mirror of ours whose row we still hold
			}

			g, okG := groups[name]
			if !okG {
				g = &Group{Name: name}
				groups[name] = g
			}
			g.Variants = append(g.Variants, *v)
		}
	}

	for _, g := range groups {
		g.HasConflict = conflicting(g.Variants)
		report.Groups = append(report.Groups, *g)
	}
	sort.Slice(report.Groups, func(i, j int) bool { return report.Groups[i].Name < report.Groups[j].Name })
	return report, nil
}

// classify decides whether one directory entry looks like a skill and
// captures its identity. Links are hashed through their resolved tree.
func classify(parent string, e os.DirEntry) (*Variant, string, bool) {
	path := filepath.Join(parent, e.Name())

	isLink := e.Type()&os.ModeSymlink != 0
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, "", false // broken link or plain file
	}
	if _, err := os.Stat(filepath.Join(path, manifest.FileName)); err != nil {
		return nil, "", false
	}

	v := &Variant{Path: path, IsLink: isLink}
	if isLink {
		if target, err := os.Readlink(path); err == nil {
			if !filepath.IsAbs(target) {
				target = filepath.Join(parent, target)
			}
			v.LinkTarget = target
		}
	}

	hash, err := syncer.TreeHash(path)
	if err != nil {
		log.Printf("[onboarding] cannot hash %s: %v", path, err)
		return nil, "", false
	}
	v.ContentHash = hash
	return v, e.Name(), true
}

func conflicting(variants []Variant) bool {
	hashes := make(map[string]bool)
	links := make(map[string]bool)
	for _, v := range variants {
		hashes[v.ContentHash] = true
		if v.IsLink {
			links[realpath(v.LinkTarget)] = true
		}
	}
	return len(hashes) > 1 || len(links) > 1
}

func managedHashes(ctx context.Context, store *catalog.Store) (map[string]bool, error) {
	skills, err := store.ListSkills(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(skills))
	for _, s := range skills {
		if s.ContentHash != "" {
			out[s.ContentHash] = true
		}
	}
	return out, nil
}

func realpath(path string) string {
	if path == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
