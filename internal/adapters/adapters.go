package adapters

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"skillshub/internal/faults"
)

// Adapter describes one consumer tool: where it expects skills, how to
// detect that it is installed, and whether its skill scanner resolves
// symbolic links. Tools whose walker does not dereference links always
// receive full copies; the rule keys on the capability flag, never on
// the adapter name.
type Adapter struct {
	Key             string `json:"key"`
	DisplayName     string `json:"display_name"`
	SkillsDir       string `json:"skills_dir"`
	DetectDir       string `json:"detect_dir"`
	FollowsSymlinks bool   `json:"follows_symlinks"`
}

// builtins is the table of supported tools. Paths are home-relative and
// expanded at resolution time; on remote hosts the leading ~/ is left to
// the remote shell.
var builtins = []Adapter{
	{Key: "claude", DisplayName: "Claude Code", SkillsDir: "~/.claude/skills", DetectDir: "~/.claude", FollowsSymlinks: true},
	{Key: "codex", DisplayName: "Codex CLI", SkillsDir: "~/.codex/skills", DetectDir: "~/.codex", FollowsSymlinks: true},
	{Key: "opencode", DisplayName: "OpenCode", SkillsDir: "~/.config/opencode/skill", DetectDir: "~/.config/opencode", FollowsSymlinks: true},
	{Key: "gemini", DisplayName: "Gemini CLI", SkillsDir: "~/.gemini/skills", DetectDir: "~/.gemini", FollowsSymlinks: false},
	{Key: "cursor", DisplayName: "Cursor", SkillsDir: "~/.cursor/skills", DetectDir: "~/.cursor", FollowsSymlinks: true},
}

// Registry resolves adapter paths against one home directory.
type Registry struct {
	home    string
	entries []Adapter
}

// NewRegistry creates a registry over the current user's home directory
// and the built-in adapter table.
func NewRegistry() (*Registry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewRegistryWith(home, builtins), nil
}

// NewRegistryWith builds a registry over an explicit home directory and
// adapter set.
func NewRegistryWith(home string, entries []Adapter) *Registry {
	return &Registry{home: home, entries: entries}
}

// All returns every adapter, sorted by key.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns the adapter for key.
func (r *Registry) Get(key string) (Adapter, error) {
	for _, a := range r.entries {
		if a.Key == key {
			return a, nil
		}
	}
	return Adapter{}, faults.New(faults.Validation, "unknown tool: %s", key)
}

// SkillsDir returns the expanded local skills directory for key.
func (r *Registry) SkillsDir(key string) (string, error) {
	a, err := r.Get(key)
	if err != nil {
		return "", err
	}
	return r.Expand(a.SkillsDir), nil
}

// IsInstalled reports whether the adapter's detection directory exists.
func (r *Registry) IsInstalled(key string) bool {
	a, err := r.Get(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(r.Expand(a.DetectDir))
	return err == nil && info.IsDir()
}

// Installed returns the adapters whose detection directory exists,
// sorted by key.
func (r *Registry) Installed() []Adapter {
	var out []Adapter
	for _, a := range r.All() {
		if r.IsInstalled(a.Key) {
			out = append(out, a)
		}
	}
	return out
}

// SharingDir returns the keys of every adapter whose resolved skills
// directory is the same physical directory as key's, key included.
// Tools that read one shared directory must be recorded together when a
// skill is synced into it.
func (r *Registry) SharingDir(key string) ([]string, error) {
	base, err := r.SkillsDir(key)
	if err != nil {
		return nil, err
	}
	baseReal := realpath(base)

	var keys []string
	for _, a := range r.All() {
		if realpath(r.Expand(a.SkillsDir)) == baseReal {
			keys = append(keys, a.Key)
		}
	}
	return keys, nil
}

// Expand replaces a leading ~ with the registry's home directory.
func (r *Registry) Expand(path string) string {
	if path == "~" {
		return r.home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(r.home, path[2:])
	}
	return path
}

// realpath resolves symlinks where possible so directories reached via
// different link chains compare equal.
func realpath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
