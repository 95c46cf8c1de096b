package remote

import (
	"context"
	"path"
	"strings"
	"sync"

	"skillshub/internal/adapters"
	"skillshub/internal/faults"
)

// stagingDir is the per-host central root skills are uploaded into;
// tool directories link into it, mirroring the local layout. Remote
// hosts carry no catalog, so entries are keyed by skill name.
const stagingDir = ".skillshub"

// SkillUpload is one skill to push: its name and the local central
// copy to read from.
type SkillUpload struct {
	Name      string
	LocalPath string
}

// PairError records one failed (skill, tool) cell of a sync matrix.
type PairError struct {
	Skill string `json:"skill"`
	Tool  string `json:"tool,omitempty"`
	Err   string `json:"error"`
}

// Report aggregates a sync batch: the skills whose every cell
// succeeded and the per-pair failures.
type Report struct {
	Synced []string    `json:"synced"`
	Errors []PairError `json:"errors"`
}

// SyncSkills pushes each skill into the host's staging root and links
// it into each selected tool's skills directory. Every (skill, tool)
// cell is attempted independently; a cell failure is recorded and
// never aborts siblings. Cancellation is observed at cell boundaries
// only, so no cell is ever left half-done by a cancel.
func SyncSkills(ctx context.Context, conn Conn, skills []SkillUpload, toolKeys []string, reg *adapters.Registry) (*Report, error) {
	report := &Report{}

	home, err := conn.Home()
	if err != nil {
		return report, err
	}
	if err := conn.MkdirAll(path.Join(home, stagingDir)); err != nil {
		return report, err
	}

	for _, skill := range skills {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		staging := path.Join(home, stagingDir, skill.Name)
		if err := conn.UploadDir(skill.LocalPath, staging); err != nil {
			report.Errors = append(report.Errors, PairError{Skill: skill.Name, Err: err.Error()})
			continue
		}

		ok := true
		for _, key := range toolKeys {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			adapter, err := reg.Get(key)
			if err != nil {
				report.Errors = append(report.Errors, PairError{Skill: skill.Name, Tool: key, Err: err.Error()})
				ok = false
				continue
			}
			target := path.Join(home, remoteRel(adapter.SkillsDir), skill.Name)
			if err := symlink(conn, staging, target); err != nil {
				report.Errors = append(report.Errors, PairError{Skill: skill.Name, Tool: key, Err: err.Error()})
				ok = false
			}
		}
		if ok {
			report.Synced = append(report.Synced, skill.Name)
		}
	}

	if len(report.Errors) > 0 {
		return report, faults.New(faults.PartialFailure,
			"%d of %d skills synced, %d failures",
			len(report.Synced), len(skills), len(report.Errors))
	}
	return report, nil
}

// PushToDir uploads one skill into an explicit remote directory, the
// path custom targets take.
func PushToDir(conn Conn, skill SkillUpload, destDir string) (string, error) {
	home, err := conn.Home()
	if err != nil {
		return "", err
	}
	dest := destDir
	if strings.HasPrefix(dest, "~/") {
		dest = path.Join(home, dest[2:])
	}
	dest = path.Join(dest, skill.Name)
	if err := conn.UploadDir(skill.LocalPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// ListSkills lists the skill names present in the host's staging root.
// A host that was never synced yields an empty list, not an error.
func ListSkills(conn Conn) ([]string, error) {
	out, err := conn.Exec("ls -1 ~/" + stagingDir + "/ 2>/dev/null || true")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// DirEntry is one child of a browsed remote directory.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// BrowseDirectory lists one level of a remote directory for the
// custom-target picker.
func BrowseDirectory(conn Conn, dir string) ([]DirEntry, error) {
	home, err := conn.Home()
	if err != nil {
		return nil, err
	}
	switch {
	case dir == "" || dir == "~":
		dir = home
	case strings.HasPrefix(dir, "~/"):
		dir = path.Join(home, dir[2:])
	}
	out, err := conn.Exec("ls -1p " + shellQuote(dir) + " 2>/dev/null || true")
	if err != nil {
		return nil, err
	}
	var entries []DirEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "/") {
			entries = append(entries, DirEntry{Name: strings.TrimSuffix(line, "/"), IsDir: true})
		} else {
			entries = append(entries, DirEntry{Name: line})
		}
	}
	return entries, nil
}

// symlink force-creates a link on the remote host, creating the
// target's parent first.
func symlink(conn Conn, source, target string) error {
	if parent := path.Dir(target); parent != "" && parent != "/" {
		if _, err := conn.Exec("mkdir -p " + shellQuote(parent)); err != nil {
			return err
		}
	}
	_, err := conn.Exec("ln -sfn " + shellQuote(source) + " " + shellQuote(target))
	return err
}

// shellQuote single-quotes a path for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Locks serializes access to each remote host: SSH sessions are not
// assumed safely shareable across concurrent commands, so one sync
// runs against a host at a time while distinct hosts proceed in
// parallel.
type Locks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{m: make(map[string]*sync.Mutex)}
}

// For returns the mutex owning hostID.
func (l *Locks) For(hostID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.m[hostID]
	if !ok {
		lock = &sync.Mutex{}
		l.m[hostID] = lock
	}
	return lock
}
