// Package daemon provides the long-running scheduler for periodic syncs.
//
// The daemon:
// 1. Triggers sync runs on a fixed interval
// 2. Skips an interval when the previous run is still in flight
// 3. Watches the configuration file and reloads on change
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc executes one sync pass. The daemon invokes it on every tick.
type RunFunc func(ctx context.Context) error

// ReloadFunc is invoked after the configuration file changes. Returning
// an error keeps the previous configuration in effect.
type ReloadFunc func() error

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to trigger a sync run
	SyncInterval time.Duration

	// DebounceInterval is how long to wait after a config file event
	// before invoking the reload callback
	// This batches rapid editor writes together
	DebounceInterval time.Duration

	// ConfigPath is the configuration file to watch; empty disables watching
	ConfigPath string

	// RunOnStart triggers a sync immediately instead of waiting a full interval
	RunOnStart bool

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     15 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		RunOnStart:       true,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon schedules sync runs and reloads configuration on change.
type Daemon struct {
	run    RunFunc
	reload ReloadFunc
	config *Config

	watcher *fsnotify.Watcher

	syncing atomic.Bool

	reloadMu       sync.Mutex
	reloadPending  bool
	reloadQueuedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// The run function is called for every scheduled sync. Use Start() to
// begin scheduling.
func New(run RunFunc, config *Config) (*Daemon, error) {
	if run == nil {
		return nil, fmt.Errorf("run function cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 15 * time.Minute
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}

	var watcher *fsnotify.Watcher
	if config.ConfigPath != "" {
		var err error
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		run:     run,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// OnReload installs the configuration reload callback.
func (d *Daemon) OnReload(fn ReloadFunc) {
	d.reload = fn
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Optionally perform an initial sync
// 2. Trigger sync runs every SyncInterval
// 3. Watch the configuration file and reload on change
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting sync daemon (interval: %s)", d.config.SyncInterval)

	// Watch the directory so editor rename-over-save is still seen
	if d.watcher != nil {
		watchDir := filepath.Dir(d.config.ConfigPath)
		if err := d.watcher.Add(watchDir); err != nil {
			return fmt.Errorf("failed to watch config directory: %w", err)
		}
		d.config.Logger.Printf("Watching configuration: %s", d.config.ConfigPath)

		d.wg.Add(2)
		go d.watchConfigEvents()
		go d.processReloads()
	}

	if d.config.RunOnStart {
		d.runOnce()
	}

	d.wg.Add(1)
	go d.syncLoop()

	// Wait for shutdown
	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	// Signal shutdown
	d.cancel()

	// Close watcher
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	// Wait for goroutines to finish
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// TriggerSync starts a sync immediately unless one is already running.
// It reports whether a run was started.
func (d *Daemon) TriggerSync() bool {
	if !d.syncing.CompareAndSwap(false, true) {
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.syncing.Store(false)
		d.runSync()
	}()
	return true
}

// syncLoop triggers sync runs on the configured interval.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runOnce()
		}
	}
}

// runOnce runs a sync unless one is already in flight.
func (d *Daemon) runOnce() {
	if !d.syncing.CompareAndSwap(false, true) {
		d.config.Logger.Println("Previous sync still running, skipping this interval")
		return
	}
	defer d.syncing.Store(false)

	d.runSync()
}

func (d *Daemon) runSync() {
	start := time.Now()
	if err := d.run(d.ctx); err != nil {
		d.config.Logger.Printf("Sync failed: %v", err)
		return
	}
	d.config.Logger.Printf("Sync finished in %s", time.Since(start).Round(time.Millisecond))
}

// watchFileEvents monitors filesystem events and queues config reloads.
func (d *Daemon) watchConfigEvents() {
	defer d.wg.Done()

	configPath := filepath.Clean(d.config.ConfigPath)

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create, Write, Rename
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			// Only process the configuration file itself
			if filepath.Clean(event.Name) != configPath {
				continue
			}

			d.config.Logger.Printf("Config event: %s %s", event.Op, event.Name)
			d.queueReload()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueReload marks a pending reload with debouncing.
func (d *Daemon) queueReload() {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	d.reloadPending = true
	d.reloadQueuedAt = time.Now()
}

// processReloads invokes the reload callback once events settle.
func (d *Daemon) processReloads() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingReload()
		}
	}
}

// processPendingReload fires the reload if the queued change is old enough.
func (d *Daemon) processPendingReload() {
	d.reloadMu.Lock()
	if !d.reloadPending || time.Since(d.reloadQueuedAt) < d.config.DebounceInterval {
		d.reloadMu.Unlock()
		return
	}
	d.reloadPending = false
	d.reloadMu.Unlock()

	d.config.Logger.Println("Configuration changed, reloading")

	if d.reload == nil {
		return
	}
	if err := d.reload(); err != nil {
		d.config.Logger.Printf("Warning: reload failed, keeping previous configuration: %v", err)
	}
}

// IsSyncing reports whether a sync run is currently in flight.
func (d *Daemon) IsSyncing() bool {
	return d.syncing.Load()
}
