package catalog

// Skill source kinds.
const (
	SourceLocal = "local"
	SourceGit   = "git"
	SourceHub   = "hub"
)

// Remote host connectivity statuses.
const (
	HostIdle    = "idle"
	HostSyncing = "syncing"
	HostOK      = "ok"
	HostError   = "error"
)

// Sync target statuses.
const (
	TargetSynced = "synced"
	TargetError  = "error"
)

// CustomTargetKey returns the target identifier recorded for a custom
// target row, distinguishing it from tool-adapter keys.
func CustomTargetKey(id string) string { return "custom:" + id }

// Skill is the catalog row for one managed skill. CentralPath is the
// single owned copy; every mirror is derived from it and disposable.
// Timestamps are RFC 3339 UTC; LastSyncAt is empty until the first sync.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SourceType  string `json:"source_type"`
	SourceRef   string `json:"source_ref"`
	CentralPath string `json:"central_path"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	LastSyncAt  string `json:"last_sync_at,omitempty"`
}

// SkillTarget records one mirror of one skill into one destination.
// TargetKey is a tool-adapter key or CustomTargetKey(id). LinkTarget
// and ContentHash record the mirror's identity as created, checked
// before the engine will delete the destination.
type SkillTarget struct {
	ID          string `json:"id"`
	SkillID     string `json:"skill_id"`
	TargetKey   string `json:"target_key"`
	Mode        string `json:"mode"`
	DestPath    string `json:"dest_path"`
	LinkTarget  string `json:"link_target,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Status      string `json:"status"`
	LastError   string `json:"last_error,omitempty"`
	SyncedAt    string `json:"synced_at,omitempty"`
}

// RemoteHost is an SSH-reachable machine with its own mirrors.
type RemoteHost struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	AuthMethod string `json:"auth_method"`
	KeyPath    string `json:"key_path,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	LastSyncAt string `json:"last_sync_at,omitempty"`
}

// CustomTarget is a user-chosen destination directory, local when
// RemoteHostID is empty.
type CustomTarget struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Path         string `json:"path"`
	RemoteHostID string `json:"remote_host_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}
