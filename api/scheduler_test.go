package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prider/buy-rubber-sub000/config"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fileBackuper writes an empty file in place of a database copy.
type fileBackuper struct {
	calls atomic.Int32
	fail  error
}

func (f *fileBackuper) Backup(_ context.Context, dest string) error {
	f.calls.Add(1)
	if f.fail != nil {
		return f.fail
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, nil, 0o644)
}

// steppingClock advances one minute per call.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func backupConfig(dir string) config.BackupConfig {
	return config.BackupConfig{Enabled: true, Dir: dir, Interval: "1h", Retention: 3}
}

func listBackups(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// RUN NOW AND RETENTION
// =============================================================================

func TestBackupScheduler_RunNowPrunesBeyondRetention(t *testing.T) {
	// GIVEN: retention of 3
	// WHEN: five backups run
	// THEN: only the three newest files remain

	dir := t.TempDir()
	store := &fileBackuper{}
	bs := NewBackupScheduler(store, backupConfig(dir), zerolog.Nop())
	clock := &steppingClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	bs.now = clock.now

	var paths []string
	for i := 0; i < 5; i++ {
		_, path, err := bs.RunNow(context.Background())
		require.NoError(t, err)
		paths = append(paths, filepath.Base(path))
	}

	assert.Equal(t, int32(5), store.calls.Load())
	assert.Equal(t, paths[2:], listBackups(t, dir))
}

func TestBackupScheduler_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	cfg := backupConfig(dir)
	cfg.Retention = 1
	bs := NewBackupScheduler(&fileBackuper{}, cfg, zerolog.Nop())
	clock := &steppingClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	bs.now = clock.now

	for i := 0; i < 3; i++ {
		_, _, err := bs.RunNow(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, listBackups(t, dir), 2, "one backup plus the foreign file")
}

func TestBackupScheduler_RecordsFailure(t *testing.T) {
	store := &fileBackuper{fail: errors.New("disk full")}
	bs := NewBackupScheduler(store, backupConfig(t.TempDir()), zerolog.Nop())

	runID, path, err := bs.RunNow(context.Background())

	require.Error(t, err)
	assert.NotEmpty(t, runID)
	assert.Empty(t, path)
	st := bs.Status()
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, "disk full", st.LastError)
	assert.Empty(t, st.LastFile)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestBackupScheduler_TickerRunsBackups(t *testing.T) {
	store := &fileBackuper{}
	cfg := backupConfig(t.TempDir())
	cfg.Interval = "10ms"
	bs := NewBackupScheduler(store, cfg, zerolog.Nop())

	bs.Start()
	assert.Eventually(t, func() bool { return store.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, bs.Status().Running)
	assert.NotNil(t, bs.Status().NextRun)

	bs.Stop()
	st := bs.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.NextRun)

	calls := store.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, store.calls.Load(), "no runs after Stop")
}

func TestBackupScheduler_DisabledDoesNotStart(t *testing.T) {
	cfg := backupConfig(t.TempDir())
	cfg.Enabled = false
	bs := NewBackupScheduler(&fileBackuper{}, cfg, zerolog.Nop())

	bs.Start()
	assert.False(t, bs.Status().Running)
	bs.Stop()
}

func TestBackupScheduler_StartStopIdempotent(t *testing.T) {
	bs := NewBackupScheduler(&fileBackuper{}, backupConfig(t.TempDir()), zerolog.Nop())

	bs.Start()
	bs.Start()
	bs.Stop()
	bs.Stop()
	assert.False(t, bs.Status().Running)
}

func TestBackupScheduler_RestartAppliesConfig(t *testing.T) {
	cfg := backupConfig(t.TempDir())
	cfg.Enabled = false
	bs := NewBackupScheduler(&fileBackuper{}, cfg, zerolog.Nop())
	bs.Start()
	require.False(t, bs.Status().Running)

	newDir := t.TempDir()
	next := backupConfig(newDir)
	next.Interval = "2h"
	next.Retention = 10
	bs.Restart(next)
	defer bs.Stop()

	st := bs.Status()
	assert.True(t, st.Running)
	assert.Equal(t, newDir, st.Dir)
	assert.Equal(t, "2h0m0s", st.Interval)
	assert.Equal(t, 10, st.Retention)

	bs.Restart(cfg)
	assert.False(t, bs.Status().Running)
}

// slowBackuper blocks each backup until release is closed.
type slowBackuper struct {
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
	finished atomic.Bool
}

func (s *slowBackuper) Backup(context.Context, string) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	s.finished.Store(true)
	return nil
}

func TestBackupScheduler_ConcurrentStopDuringRun(t *testing.T) {
	// GIVEN: a scheduled backup in flight
	// WHEN: two Stops and a Restart race while it runs
	// THEN: nothing panics and every Stop returns after the run completes

	store := &slowBackuper{started: make(chan struct{}), release: make(chan struct{})}
	cfg := backupConfig(t.TempDir())
	cfg.Interval = "5ms"
	bs := NewBackupScheduler(store, cfg, zerolog.Nop())
	bs.Start()

	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled backup never started")
	}

	disabled := cfg
	disabled.Enabled = false

	var wg sync.WaitGroup
	var stoppedEarly atomic.Bool
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bs.Stop()
			if !store.finished.Load() {
				stoppedEarly.Store(true)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		bs.Restart(disabled)
	}()

	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.False(t, stoppedEarly.Load(), "Stop returned while a backup was running")
	assert.False(t, bs.Status().Running)
	bs.Stop()
}
