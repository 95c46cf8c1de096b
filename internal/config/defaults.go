package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		SSH: SSHConfig{
			ConnectTimeoutSecs: 15,
			SessionTimeoutSecs: 30,
		},
		Git: GitConfig{
			CloneTimeoutSecs: 120,
			PreferCLI:        true,
		},
		Sync: SyncConfig{
			MaxWorkers: 4,
		},
		Hub: HubConfig{
			BaseURL:     "https://clawhub.ai",
			TimeoutSecs: 30,
		},
		Log: LogConfig{
			RingSize: 1000,
		},
	}
}
