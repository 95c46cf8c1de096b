package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"skillshub/internal/faults"
)

// FileName is the skill definition file expected at the root of every
// skill directory.
const FileName = "SKILL.md"

const maxSkillFileSize = 1 << 20 // 1MB limit for SKILL.md

var nameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// Manifest is the parsed frontmatter of a skill definition file.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Parse extracts and validates the frontmatter block of a skill
// definition file.
func Parse(raw []byte) (*Manifest, error) {
	return ParseWithDefault(raw, "")
}

// ParseWithDefault parses like Parse but substitutes defaultName when
// the frontmatter parses and lacks a name. Used when a repository root
// is itself the skill, so the repository name is the natural fallback
// rather than a placeholder.
func ParseWithDefault(raw []byte, defaultName string) (*Manifest, error) {
	front, _, ok := splitFrontmatter(string(raw))
	if !ok {
		return nil, faults.New(faults.Validation, "missing frontmatter block")
	}

	var m Manifest
	if err := yaml.Unmarshal([]byte(front), &m); err != nil {
		return nil, faults.Wrap(faults.Validation, err, "malformed frontmatter")
	}

	m.Name = NormalizeName(m.Name)
	if m.Name == "" {
		m.Name = NormalizeName(defaultName)
	}
	if m.Name == "" {
		return nil, faults.New(faults.Validation, "missing required field: name")
	}
	if !nameRE.MatchString(m.Name) {
		return nil, faults.New(faults.Validation, "invalid skill name: %s", m.Name)
	}

	m.Description = strings.ReplaceAll(m.Description, "\n", " ")
	m.Description = strings.ReplaceAll(m.Description, "\r", " ")
	m.Description = strings.TrimSpace(m.Description)

	return &m, nil
}

// ParseFile parses the skill definition file at path.
func ParseFile(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxSkillFileSize {
		return nil, faults.New(faults.Validation, "skill file too large: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load parses the skill definition file inside dir.
func Load(dir string) (*Manifest, error) {
	return ParseFile(filepath.Join(dir, FileName))
}

// ValidName reports whether s is already a valid skill name.
func ValidName(s string) bool {
	return nameRE.MatchString(s)
}

// NormalizeName converts a free-form title into a valid skill name:
// lowercased, whitespace runs collapsed to single hyphens, characters
// outside [a-z0-9_-] dropped, truncated to 64 characters.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	hyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			hyphen = false
		case unicode.IsSpace(r), r == '-', r == '.':
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}

	out := strings.TrimLeft(b.String(), "_-")
	if len(out) > 64 {
		out = out[:64]
	}
	return strings.TrimRight(out, "_-")
}

// fenceRunes are the characters accepted as frontmatter delimiters.
// Editors and converters routinely mangle the plain dashed fence into
// asterisk or typographic-dash runs, so all of them are accepted.
var fenceRunes = map[rune]bool{'-': true, '*': true, '—': true, '–': true}

// isFence reports whether line is a frontmatter delimiter: a run of at
// least three identical fence characters.
func isFence(line string) bool {
	runes := []rune(strings.TrimSpace(line))
	if len(runes) < 3 || !fenceRunes[runes[0]] {
		return false
	}
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

// splitFrontmatter separates the delimited frontmatter block from the
// body. The closing fence may use any accepted delimiter style, not
// necessarily the opening one.
func splitFrontmatter(raw string) (front string, body string, ok bool) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || !isFence(lines[0]) {
		return "", strings.TrimSpace(raw), false
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if isFence(lines[i]) {
			end = i
			break
		}
	}
	if end <= 0 {
		return "", strings.TrimSpace(raw), false
	}

	front = strings.Join(lines[1:end], "\n")
	if end+1 < len(lines) {
		body = strings.Join(lines[end+1:], "\n")
	}
	return strings.TrimSpace(front), strings.TrimSpace(body), true
}
