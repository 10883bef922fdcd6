package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"todosync/internal/cache"
	"todosync/internal/config"
	"todosync/internal/connectivity"
	"todosync/internal/credentials"
	"todosync/internal/sharing"
	tasksync "todosync/internal/sync"
	"todosync/internal/utils"
	"todosync/store"
	"todosync/store/firebase"
	"todosync/store/sqlite"
)

// app bundles the wired components for one command invocation. Commands are
// short-lived: open, act, close.
type app struct {
	cfg     *config.Config
	cache   *cache.TaskCache
	local   *sqlite.Store
	remote  *firebase.Gateway
	monitor *connectivity.Monitor
	coord   *tasksync.Coordinator
	share   *sharing.Coordinator
}

// openApp loads config and wires the cache, stores, and coordinators.
// The remote gateway is only created when sync is enabled and a host is
// configured; everything else works offline.
func openApp(opts *Options, configFlag string) (*app, error) {
	configPath := configFlag
	if configPath == "" && opts != nil {
		configPath = opts.ConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.GetDatabasePath()
	if opts != nil && opts.DBPath != "" {
		dbPath = opts.DBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}

	local, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		cache: cache.New(),
		local: local,
	}

	syncEnabled := cfg.IsSyncEnabled() && cfg.Sync.Host != ""
	if syncEnabled {
		token := resolveToken(cfg)
		gw, err := firebase.New(firebase.Config{
			Host:      cfg.Sync.Host,
			AuthToken: token,
			Timeout:   cfg.GetSyncTimeout(),
		})
		if err != nil {
			_ = local.Close()
			return nil, err
		}
		a.remote = gw
	}

	a.monitor = connectivity.NewMonitor(cfg.GetAccountEmail(), syncEnabled)
	a.coord = tasksync.New(a.cache, a.local, a.remote, a.monitor)
	if a.remote != nil {
		a.share = sharing.New(a.cache, a.local, a.remote, a.monitor, a.coord.Recency())
	}
	return a, nil
}

// resolveToken fetches the auth token from the keyring or environment.
// A missing token is not fatal: public rules or a later setup may apply.
func resolveToken(cfg *config.Config) string {
	if !cfg.UseKeyring() {
		return os.Getenv(credentials.EnvToken)
	}
	mgr := credentials.NewManager()
	info, err := mgr.Get(context.Background(), cfg.GetAccountEmail())
	if err != nil || !info.Found {
		utils.Debugf("no stored credentials for %s", cfg.GetAccountEmail())
		return ""
	}
	return info.Token
}

// load populates the cache from the local store, merging with the remote
// tree when sync is available.
func (a *app) load(ctx context.Context) error {
	return a.coord.InitialLoad(ctx)
}

func (a *app) close() {
	if a.share != nil {
		a.share.Close()
	}
	a.coord.Close()
	a.cache.Close()
	if a.remote != nil {
		_ = a.remote.Close()
	}
	_ = a.local.Close()
}

// syncStateDir is where last-sync bookkeeping lives.
func (a *app) syncStateDir() string {
	return filepath.Dir(a.cfg.GetDatabasePath())
}

// findTask searches the cache by title using exact then partial matching.
func (a *app) findTask(searchTerm string, noPrompt bool) (store.Task, error) {
	if searchTerm == "" {
		return store.Task{}, fmt.Errorf("task title is required")
	}

	tasks := a.cache.GetAllTasks()

	for _, t := range tasks {
		if strings.EqualFold(t.Title, searchTerm) {
			return t, nil
		}
	}

	searchLower := strings.ToLower(searchTerm)
	var matches []store.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), searchLower) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return store.Task{}, fmt.Errorf("no task found matching '%s'", searchTerm)
	case 1:
		return matches[0], nil
	}

	if noPrompt {
		list := ""
		for _, m := range matches {
			list += fmt.Sprintf("  - %s\n", m.Title)
		}
		return store.Task{}, fmt.Errorf("multiple tasks match '%s':\n%s", searchTerm, list)
	}
	return store.Task{}, fmt.Errorf("multiple tasks match '%s' - please be more specific", searchTerm)
}
