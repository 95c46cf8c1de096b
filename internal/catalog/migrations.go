package catalog

// migration is one versioned batch of schema statements. Batches are
// applied forward only; a shipped batch is never edited, schema changes
// get a new version.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS skills (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				source_type TEXT NOT NULL,
				source_ref TEXT NOT NULL DEFAULT '',
				central_path TEXT NOT NULL,
				content_hash TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'active',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				last_sync_at TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS skill_targets (
				id TEXT PRIMARY KEY,
				skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
				target_key TEXT NOT NULL,
				mode TEXT NOT NULL,
				dest_path TEXT NOT NULL,
				link_target TEXT NOT NULL DEFAULT '',
				content_hash TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'synced',
				last_error TEXT NOT NULL DEFAULT '',
				synced_at TEXT,
				UNIQUE(skill_id, target_key)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_skill_targets_key ON skill_targets(target_key)`,
			`CREATE TABLE IF NOT EXISTS remote_hosts (
				id TEXT PRIMARY KEY,
				label TEXT NOT NULL,
				host TEXT NOT NULL,
				port INTEGER NOT NULL DEFAULT 22,
				username TEXT NOT NULL,
				auth_method TEXT NOT NULL DEFAULT 'agent',
				key_path TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'idle',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				last_sync_at TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS custom_targets (
				id TEXT PRIMARY KEY,
				label TEXT NOT NULL,
				path TEXT NOT NULL,
				remote_host_id TEXT REFERENCES remote_hosts(id) ON DELETE CASCADE,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`ALTER TABLE skills ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
		},
	},
}
