package config

// Config is the top-level application configuration. Runtime-editable
// settings (central repo path, git cache TTL) live in the catalog settings
// table; this file holds engine tunables read once at startup.
type Config struct {
	SSH  SSHConfig  `json:"ssh"`
	Git  GitConfig  `json:"git"`
	Sync SyncConfig `json:"sync"`
	Hub  HubConfig  `json:"hub"`
	Log  LogConfig  `json:"log"`
}

type SSHConfig struct {
	ConnectTimeoutSecs int `json:"connect_timeout_secs"`
	SessionTimeoutSecs int `json:"session_timeout_secs"`
}

type GitConfig struct {
	CloneTimeoutSecs int  `json:"clone_timeout_secs"`
	PreferCLI        bool `json:"prefer_cli"`
}

type SyncConfig struct {
	MaxWorkers int `json:"max_workers"`
}

type HubConfig struct {
	BaseURL     string `json:"base_url,omitempty"`
	TimeoutSecs int    `json:"timeout_secs"`
}

type LogConfig struct {
	RingSize int `json:"ring_size"`
}
