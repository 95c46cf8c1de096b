package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"skillshub/internal/faults"
)

// Candidate is one skill definition found during a scan. Path is the
// candidate directory relative to the scanned root, "" when the root
// itself is the skill. Invalid candidates carry the reason instead of
// aborting the scan.
type Candidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
}

// Discover scans root for skill definition files. The root itself wins
// when it carries one; otherwise its direct children are checked, and
// only then a full recursive walk. defaultName names a root-level
// candidate whose frontmatter has no name field.
func Discover(root, defaultName string) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, faults.Wrap(faults.Validation, err, "scan root does not exist").At(root)
	}
	if !info.IsDir() {
		return nil, faults.New(faults.Validation, "scan root is not a directory").At(root)
	}

	if hasManifest(root) {
		return []Candidate{candidateAt(root, "", defaultName)}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, faults.Wrap(faults.IO, err, "read scan root").At(root)
	}
	var out []Candidate
	for _, e := range entries {
		if !entryIsDir(root, e) || e.Name() == ".git" {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if hasManifest(dir) {
			out = append(out, candidateAt(dir, e.Name(), ""))
		}
	}
	if len(out) > 0 {
		sortCandidates(out)
		return out, nil
	}

	// Nothing at the first two levels; walk the whole tree.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if path != root && hasManifest(path) {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			out = append(out, candidateAt(path, filepath.ToSlash(rel), ""))
			return filepath.SkipDir // a skill does not nest skills
		}
		return nil
	})
	if err != nil {
		return nil, faults.Wrap(faults.IO, err, "walk scan root").At(root)
	}
	sortCandidates(out)
	return out, nil
}

// candidateAt parses dir's skill definition into a Candidate, folding
// any parse failure into an invalid candidate.
func candidateAt(dir, relPath, defaultName string) Candidate {
	c := Candidate{Path: relPath}

	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	if err != nil {
		c.Reason = "missing " + FileName
		return c
	}
	if info.Size() > maxSkillFileSize {
		c.Reason = "skill file too large"
		return c
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		c.Reason = "unreadable " + FileName
		return c
	}

	m, err := ParseWithDefault(raw, defaultName)
	if err != nil {
		c.Reason = err.Error()
		return c
	}
	c.Name = m.Name
	c.Description = m.Description
	c.Valid = true
	return c
}

func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil && info.Mode().IsRegular()
}

// entryIsDir follows one level of symlink so a linked skill directory
// still counts as a candidate container.
func entryIsDir(root string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, e.Name()))
	return err == nil && info.IsDir()
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Path < cs[j].Path })
}
