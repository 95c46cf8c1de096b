package remote

import (
	"strings"
	"sync"

	"skillshub/internal/adapters"
)

// ToolStatus is one tool's presence on a remote host.
type ToolStatus struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Installed   bool   `json:"installed"`
}

// DetectCache holds per-host tool detection results for the lifetime
// of a sync session. It is populated on first use and replaced only by
// an explicit re-detect; it is passed through calls rather than living
// in a package global.
type DetectCache struct {
	mu     sync.Mutex
	byHost map[string][]ToolStatus
}

func NewDetectCache() *DetectCache {
	return &DetectCache{byHost: make(map[string][]ToolStatus)}
}

func (c *DetectCache) get(hostID string) ([]ToolStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.byHost[hostID]
	return v, ok
}

func (c *DetectCache) put(hostID string, v []ToolStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHost[hostID] = v
}

// Cached returns the stored result for one host, letting callers skip
// dialing entirely on a warm cache.
func (c *DetectCache) Cached(hostID string) ([]ToolStatus, bool) {
	return c.get(hostID)
}

// Invalidate drops the cached result for one host.
func (c *DetectCache) Invalidate(hostID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byHost, hostID)
}

// DetectTools reports which registry tools exist on the remote host,
// from cache unless force re-probes. All directories are checked in
// one combined remote command rather than one round trip per tool.
func DetectTools(conn Conn, reg *adapters.Registry, cache *DetectCache, hostID string, force bool) ([]ToolStatus, error) {
	if cache != nil && !force {
		if cached, ok := cache.get(hostID); ok {
			return cached, nil
		}
	}

	all := reg.All()
	checks := make([]string, 0, len(all))
	for _, a := range all {
		dir := remoteRel(a.DetectDir)
		checks = append(checks,
			"[ -d ~/"+dir+" ] && echo 'EXISTS:"+a.Key+"' || echo 'MISSING:"+a.Key+"'")
	}

	out, err := conn.Exec(strings.Join(checks, " ; "))
	if err != nil {
		return nil, err
	}

	statuses := parseDetectOutput(out, all)
	if cache != nil {
		cache.put(hostID, statuses)
	}
	return statuses, nil
}

func parseDetectOutput(out string, all []adapters.Adapter) []ToolStatus {
	byKey := make(map[string]adapters.Adapter, len(all))
	for _, a := range all {
		byKey[a.Key] = a
	}

	var statuses []ToolStatus
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		var key string
		var installed bool
		switch {
		case strings.HasPrefix(line, "EXISTS:"):
			key, installed = strings.TrimPrefix(line, "EXISTS:"), true
		case strings.HasPrefix(line, "MISSING:"):
			key, installed = strings.TrimPrefix(line, "MISSING:"), false
		default:
			continue
		}
		if a, ok := byKey[key]; ok {
			statuses = append(statuses, ToolStatus{Key: a.Key, DisplayName: a.DisplayName, Installed: installed})
		}
	}
	return statuses
}

// remoteRel strips the local home marker from an adapter path; remote
// paths are built against the remote home instead.
func remoteRel(p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, "~/"), "~")
}
