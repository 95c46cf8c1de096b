package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"
)

// Settings keys. installed_tools_v1 keeps the versioned name it shipped
// with so existing databases keep their value.
const (
	SettingCentralRoot     = "central_repo_path"
	SettingGitCacheTTL     = "git_cache_ttl_secs"
	SettingGitCacheCleanup = "git_cache_cleanup_days"
	SettingInstalledTools  = "installed_tools_v1"
)

const (
	// DefaultGitCacheTTL bounds how long a cached clone is served
	// without a network fetch.
	DefaultGitCacheTTL = 600 * time.Second
	// DefaultGitCacheCleanupDays bounds how long unused clones stay on
	// disk at all.
	DefaultGitCacheCleanupDays = 7
)

// Setting returns the raw value for key, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting stores a raw value for key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GitCacheTTL returns the configured git cache freshness window.
func (s *Store) GitCacheTTL(ctx context.Context) (time.Duration, error) {
	raw, err := s.Setting(ctx, SettingGitCacheTTL)
	if err != nil {
		return 0, err
	}
	secs, convErr := strconv.Atoi(raw)
	if raw == "" || convErr != nil || secs <= 0 {
		return DefaultGitCacheTTL, nil
	}
	return time.Duration(secs) * time.Second, nil
}

// SetGitCacheTTLSecs stores the git cache freshness window in seconds.
func (s *Store) SetGitCacheTTLSecs(ctx context.Context, secs int) error {
	return s.SetSetting(ctx, SettingGitCacheTTL, strconv.Itoa(secs))
}

// GitCacheCleanupDays returns the age in days after which cached clones
// are evicted.
func (s *Store) GitCacheCleanupDays(ctx context.Context) (int, error) {
	raw, err := s.Setting(ctx, SettingGitCacheCleanup)
	if err != nil {
		return 0, err
	}
	days, convErr := strconv.Atoi(raw)
	if raw == "" || convErr != nil || days <= 0 {
		return DefaultGitCacheCleanupDays, nil
	}
	return days, nil
}

// SetGitCacheCleanupDays stores the cache eviction age in days.
func (s *Store) SetGitCacheCleanupDays(ctx context.Context, days int) error {
	return s.SetSetting(ctx, SettingGitCacheCleanup, strconv.Itoa(days))
}

// InstalledTools returns the set of tool keys seen installed on the
// last status check, used to report newly installed tools.
func (s *Store) InstalledTools(ctx context.Context) ([]string, error) {
	raw, err := s.Setting(ctx, SettingInstalledTools)
	if err != nil || raw == "" {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, nil // a mangled value just means no history
	}
	return keys, nil
}

// SetInstalledTools stores the set of currently installed tool keys.
func (s *Store) SetInstalledTools(ctx context.Context, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return s.SetSetting(ctx, SettingInstalledTools, string(data))
}
