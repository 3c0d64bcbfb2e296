/*
scheduler.go - Automated database backup scheduler

PURPOSE:
  Periodically writes a hot copy of the ledger database and prunes old
  copies beyond the retention count.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each run writes rubber-<UTC timestamp>.db into the backup directory
  - Files are named so lexical order is chronological; pruning keeps the
    newest Retention files
  - Configuration is injected and can be swapped at runtime with Restart

CONFIGURATION:
  - Interval:  How often to back up (default: 24 hours)
  - Enabled:   Whether the ticker runs (RunNow always works)
  - Dir:       Backup directory
  - Retention: Number of backups to keep

USAGE:
  scheduler := NewBackupScheduler(store, cfg.Backup, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerBackup, BackupStatus endpoints
  - store/sqlite/writes.go: Backup (VACUUM INTO)
*/
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Prider/buy-rubber-sub000/config"
)

const (
	backupPrefix     = "rubber-"
	backupSuffix     = ".db"
	backupTimeLayout = "20060102T150405.000000000Z"
)

// Backuper writes a consistent copy of the database to a path.
type Backuper interface {
	Backup(ctx context.Context, destPath string) error
}

// BackupStatus is a snapshot of the scheduler state.
type BackupStatus struct {
	Enabled   bool       `json:"enabled"`
	Running   bool       `json:"running"`
	Dir       string     `json:"dir"`
	Interval  string     `json:"interval"`
	Retention int        `json:"retention"`
	Runs      int        `json:"runs"`
	LastRunID string     `json:"lastRunId,omitempty"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastFile  string     `json:"lastFile,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
}

// BackupScheduler handles automated database backups.
type BackupScheduler struct {
	store Backuper
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.Mutex
	cfg     config.BackupConfig
	ticker  *time.Ticker
	stop    chan struct{}
	done    chan struct{}
	nextRun time.Time

	// runMu serializes backup runs; state is guarded by mu.
	runMu     sync.Mutex
	runs      int
	lastRunID string
	lastRun   time.Time
	lastFile  string
	lastErr   string
}

// NewBackupScheduler creates a new scheduler. It does not start it.
func NewBackupScheduler(store Backuper, cfg config.BackupConfig, log zerolog.Logger) *BackupScheduler {
	return &BackupScheduler{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "backup").Logger(),
		now:   time.Now,
	}
}

// Start begins the scheduler if backups are enabled. Calling Start on a
// running scheduler does nothing.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.startLocked()
}

func (bs *BackupScheduler) startLocked() {
	if bs.ticker != nil {
		return
	}
	if !bs.cfg.Enabled {
		bs.log.Info().Msg("backup scheduler disabled, not starting")
		return
	}

	interval := bs.cfg.GetInterval()
	bs.ticker = time.NewTicker(interval)
	bs.stop = make(chan struct{})
	bs.done = make(chan struct{})
	bs.nextRun = bs.now().Add(interval)

	go bs.run(bs.ticker, bs.stop, bs.done, interval)

	bs.log.Info().Dur("interval", interval).Str("dir", bs.cfg.Dir).Msg("backup scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.stopLocked()
}

// stopLocked is called with mu held and releases it while waiting. The
// ticker fields are cleared before unlocking, so a concurrent Stop sees a
// stopped scheduler and waits on the same done channel.
func (bs *BackupScheduler) stopLocked() {
	done := bs.done
	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.ticker = nil
		bs.stop = nil
		bs.nextRun = time.Time{}
	}
	if done == nil {
		return
	}

	bs.mu.Unlock()
	<-done
	bs.mu.Lock()

	if bs.done == done {
		bs.done = nil
		bs.log.Info().Msg("backup scheduler stopped")
	}
}

// Restart applies cfg and restarts the ticker.
func (bs *BackupScheduler) Restart(cfg config.BackupConfig) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	// A Start may slip in while stopLocked waits; stop until idle.
	for {
		bs.stopLocked()
		if bs.ticker == nil {
			break
		}
	}
	bs.cfg = cfg
	bs.startLocked()
}

func (bs *BackupScheduler) run(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	for {
		select {
		case <-ticker.C:
			if _, _, err := bs.RunNow(context.Background()); err != nil {
				bs.log.Error().Err(err).Msg("scheduled backup failed")
			}
			bs.mu.Lock()
			if bs.ticker == ticker {
				bs.nextRun = bs.now().Add(interval)
			}
			bs.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// RunNow writes one backup, prunes old ones, and returns the run id and
// backup path.
func (bs *BackupScheduler) RunNow(ctx context.Context) (string, string, error) {
	bs.runMu.Lock()
	defer bs.runMu.Unlock()

	bs.mu.Lock()
	cfg := bs.cfg
	bs.mu.Unlock()

	runID := uuid.NewString()
	started := bs.now().UTC()
	dest := filepath.Join(cfg.Dir, backupPrefix+started.Format(backupTimeLayout)+backupSuffix)
	log := bs.log.With().Str("runId", runID).Str("path", dest).Logger()

	err := bs.store.Backup(ctx, dest)
	if err == nil {
		var pruned []string
		pruned, err = pruneBackups(cfg.Dir, cfg.Retention)
		if len(pruned) > 0 {
			log.Info().Strs("pruned", pruned).Msg("old backups removed")
		}
	}

	bs.mu.Lock()
	bs.runs++
	bs.lastRunID = runID
	bs.lastRun = started
	if err != nil {
		bs.lastErr = err.Error()
	} else {
		bs.lastErr = ""
		bs.lastFile = dest
	}
	bs.mu.Unlock()

	if err != nil {
		return runID, "", fmt.Errorf("backup %s: %w", runID, err)
	}
	log.Info().Dur("duration", bs.now().Sub(started)).Msg("backup written")
	return runID, dest, nil
}

// Status returns the current scheduler state.
func (bs *BackupScheduler) Status() BackupStatus {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	st := BackupStatus{
		Enabled:   bs.cfg.Enabled,
		Running:   bs.ticker != nil,
		Dir:       bs.cfg.Dir,
		Interval:  bs.cfg.GetInterval().String(),
		Retention: bs.cfg.Retention,
		Runs:      bs.runs,
		LastRunID: bs.lastRunID,
		LastFile:  bs.lastFile,
		LastError: bs.lastErr,
	}
	if !bs.lastRun.IsZero() {
		t := bs.lastRun
		st.LastRun = &t
	}
	if !bs.nextRun.IsZero() {
		t := bs.nextRun
		st.NextRun = &t
	}
	return st
}

// pruneBackups removes the oldest backup files in dir beyond retention.
// retention < 1 keeps everything.
func pruneBackups(dir string, retention int) ([]string, error) {
	if retention < 1 {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			names = append(names, name)
		}
	}
	if len(names) <= retention {
		return nil, nil
	}

	sort.Strings(names)
	stale := names[:len(names)-retention]
	for _, name := range stale {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("failed to remove backup %s: %w", name, err)
		}
	}
	return stale, nil
}
