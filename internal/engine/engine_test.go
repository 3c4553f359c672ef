package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirandadam/hsync/internal/audit"
	"github.com/mirandadam/hsync/internal/engine"
	"github.com/mirandadam/hsync/internal/hashsum"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T, source, dest string) engine.Config {
	t.Helper()
	ix, err := index.Open(filepath.Join(t.TempDir(), "idx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	return engine.Config{
		SourceDir:            source,
		DestDir:              dest,
		Index:                ix,
		Audit:                audit.Open(filepath.Join(t.TempDir(), "hsync.log")),
		Algorithm:            hashsum.Default,
		BlockSize:            64 * 1024,
		QueueCapacity:        4,
		RetryAttempts:        3,
		RetryIntervalSeconds: 0,
	}
}

func readAll(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

// TestFullLifecycle mirrors the start of the original project's end-to-end
// scenario: a fresh sync followed by a no-op rerun. The later steps of that
// scenario are covered by the separate tests below.
func TestFullLifecycle(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(source, "a.txt"), []byte("Hello World"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(source, "large.bin"), make([]byte, 1<<20), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(source, "empty.txt"), []byte{}, 0644))

	cfg := newConfig(t, source, dest)

	require.NoError(t, engine.Run(context.Background(), cfg))

	assert.FileExists(t, filepath.Join(dest, "a.txt"))
	assert.FileExists(t, filepath.Join(dest, "large.bin"))
	assert.FileExists(t, filepath.Join(dest, "empty.txt"))

	n, err := cfg.Index.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	auditText := readAll(t, cfg.Audit.Path())
	assert.Contains(t, auditText, "Transferred:")

	// Rerunning with an unchanged source tree should find nothing pending
	// and skip transfer entirely.
	require.NoError(t, engine.Run(context.Background(), cfg))
	n, err = cfg.Index.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestRescanDetectsNewSourceFileRegardlessOfBacklog guards against the
// historical bug where reset_for_rescan marking everything pending caused
// the scan itself to be skipped, so a newly added source file was never
// observed.
func TestRescanDetectsNewSourceFileRegardlessOfBacklog(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "first.txt"), []byte("one"), 0644))

	cfg := newConfig(t, source, dest)
	require.NoError(t, engine.Run(context.Background(), cfg))

	require.NoError(t, os.WriteFile(filepath.Join(source, "second.txt"), []byte("two"), 0644))

	cfg.Rescan = true
	require.NoError(t, engine.Run(context.Background(), cfg))

	assert.FileExists(t, filepath.Join(dest, "second.txt"))
}

// TestSizeChangeWithPreservedMtimeIsRetransferred exercises the scanner's
// (mtime, size) equality check: a file edited in place with its mtime
// reset to the original value must still be detected via size.
func TestSizeChangeWithPreservedMtimeIsRetransferred(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	path := filepath.Join(source, "grows.txt")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0644))

	cfg := newConfig(t, source, dest)
	require.NoError(t, engine.Run(context.Background(), cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	mtime := info.ModTime()

	require.NoError(t, os.WriteFile(path, []byte("a much longer replacement body"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	cfg.Rescan = true
	require.NoError(t, engine.Run(context.Background(), cfg))

	got, err := os.ReadFile(filepath.Join(dest, "grows.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a much longer replacement body", string(got))
}

// TestDeleteExtrasRemovesOrphanedDestFile exercises the cleanup pass
// wired in after a successful transfer.
func TestDeleteExtrasRemovesOrphanedDestFile(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "keep.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "orphan.txt"), []byte("y"), 0644))

	cfg := newConfig(t, source, dest)
	cfg.DeleteExtras = true
	require.NoError(t, engine.Run(context.Background(), cfg))

	assert.FileExists(t, filepath.Join(dest, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(dest, "orphan.txt"))
}

// TestGhostBacklogEntryIsSkippedNotFatal covers a row whose source file
// vanished between scan and transfer: the producer must log a skip and
// leave the row pending rather than failing the run.
func TestGhostBacklogEntryIsSkippedNotFatal(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()

	cfg := newConfig(t, source, dest)
	require.NoError(t, cfg.Index.Upsert(index.FileRecord{
		SourcePath:   filepath.Join(source, "gone.txt"),
		DestPath:     filepath.Join(dest, "gone.txt"),
		ModifiedDate: time.Now().Unix(),
		Size:         3,
	}, index.StatusPending))

	require.NoError(t, engine.Run(context.Background(), cfg))

	auditText := readAll(t, cfg.Audit.Path())
	assert.Contains(t, auditText, "source file no longer exists")
}
