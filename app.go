package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"skillshub/internal/adapters"
	"skillshub/internal/catalog"
	"skillshub/internal/config"
	"skillshub/internal/eventbus"
	"skillshub/internal/gitfetch"
	"skillshub/internal/hub"
	"skillshub/internal/installer"
	"skillshub/internal/remote"
	"skillshub/internal/security"
	"skillshub/internal/tasks"
)

// App struct holds the application state and exposes methods to the frontend.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg       *config.Config
	cfgLoader *config.Loader
	bus       *eventbus.Bus
	store     *catalog.Store
	registry  *adapters.Registry
	fetcher   *gitfetch.Fetcher
	hubClient *hub.Client
	installer *installer.Installer
	passes    *security.Passphrases
	pool      *tasks.Pool

	detectCache *remote.DetectCache
	hostLocks   *remote.Locks

	syncMu    sync.Mutex
	hostSyncs map[string]*tasks.Task

	logsMu sync.Mutex
	logs   []LogEntry
	logCap int
}

// LogEntry is a log line exposed to the frontend.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// NewApp creates a new App application struct.
func NewApp() *App {
	return &App{
		bus:         eventbus.New(),
		detectCache: remote.NewDetectCache(),
		hostLocks:   remote.NewLocks(),
		hostSyncs:   make(map[string]*tasks.Task),
	}
}

// startup is called when the Wails app starts. A catalog that cannot
// migrate or a central repository root that cannot be created leaves
// nothing to run; both are fatal.
func (a *App) startup(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.ctx = ctx
	a.cancel = cancel

	loader, err := config.NewLoader()
	if err != nil {
		log.Fatalf("[app] cannot create config loader: %v", err)
	}
	a.cfgLoader = loader

	cfg, err := loader.Load()
	if err != nil {
		log.Printf("[app] cannot load config, using defaults: %v", err)
		cfg = config.Defaults()
	}
	a.cfg = cfg
	a.logCap = cfg.Log.RingSize
	if a.logCap < 1 {
		a.logCap = 1000
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("[app] cannot resolve home directory: %v", err)
	}

	store, err := catalog.Open(filepath.Join(home, ".skillshub", "catalog.db"))
	if err != nil {
		log.Fatalf("[app] cannot open catalog: %v", err)
	}
	a.store = store

	registry, err := adapters.NewRegistry()
	if err != nil {
		log.Fatalf("[app] cannot build tool registry: %v", err)
	}
	a.registry = registry

	a.fetcher = gitfetch.New(
		filepath.Join(xdg.CacheHome, "skillshub", "git"),
		gitfetch.WithTTL(func() time.Duration {
			ttl, err := store.GitCacheTTL(context.Background())
			if err != nil {
				return catalog.DefaultGitCacheTTL
			}
			return ttl
		}),
		gitfetch.WithCloneTimeout(time.Duration(cfg.Git.CloneTimeoutSecs)*time.Second),
		gitfetch.WithPreferCLI(cfg.Git.PreferCLI),
	)
	a.hubClient = hub.New(cfg.Hub.BaseURL, time.Duration(cfg.Hub.TimeoutSecs)*time.Second)
	a.installer = installer.New(store, a.fetcher, a.hubClient)
	a.passes = security.NewPassphrases()
	a.pool = tasks.NewPool(cfg.Sync.MaxWorkers)

	if _, err := a.installer.Root(ctx); err != nil {
		log.Fatalf("[app] cannot create central repository root: %v", err)
	}

	a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		a.addLog("error", e.Payload)
	})
	a.bus.Subscribe(eventbus.TopicStatusChange, func(e eventbus.Event) {
		a.addLog("info", e.Payload)
	})
	for _, topic := range []eventbus.Topic{
		eventbus.TopicSyncStarted,
		eventbus.TopicSyncProgress,
		eventbus.TopicSyncFinished,
		eventbus.TopicHostStatus,
		eventbus.TopicSkillChanged,
		eventbus.TopicCacheCleanup,
	} {
		topic := topic
		a.bus.Subscribe(topic, func(e eventbus.Event) {
			wailsruntime.EventsEmit(a.ctx, string(topic), e.Payload)
		})
	}

	// Janitor sweep: evict cached clones past their shelf life.
	go func() {
		days, err := store.GitCacheCleanupDays(ctx)
		if err != nil {
			return
		}
		n, err := a.fetcher.Cleanup(days)
		if err != nil {
			log.Printf("[app] git cache cleanup: %v", err)
			return
		}
		if n > 0 {
			a.bus.Publish(eventbus.TopicCacheCleanup, fmt.Sprintf("evicted %d cached clones", n))
		}
	}()
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.pool != nil {
		a.pool.Wait()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// fail logs an engine error and converts it into the form the frontend
// branches on: typed selection errors become structured identifiers,
// everything else is the fault's rendered message.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}

	var multi *installer.MultiSkillsError
	if errors.As(err, &multi) {
		return fmt.Errorf("MULTI_SKILLS|%d", multi.Count)
	}

	a.bus.Publish(eventbus.TopicError, err)
	log.Printf("[app] %v", err)
	return err
}

func (a *App) addLog(level string, payload any) {
	entry := LogEntry{
		Level: level,
		Time:  time.Now().Format(time.RFC3339),
	}
	switch v := payload.(type) {
	case string:
		entry.Message = v
	case error:
		entry.Message = v.Error()
	default:
		entry.Message = fmt.Sprintf("%v", v)
	}
	a.logsMu.Lock()
	a.logs = append(a.logs, entry)
	if len(a.logs) > a.logCap {
		a.logs = a.logs[len(a.logs)-a.logCap/2:]
	}
	a.logsMu.Unlock()
}

// --- Wails Bindings (exposed to frontend) ---

// GetRecentLogs returns recent log entries.
func (a *App) GetRecentLogs() []LogEntry {
	a.logsMu.Lock()
	copied := make([]LogEntry, len(a.logs))
	copy(copied, a.logs)
	a.logsMu.Unlock()
	return copied
}
