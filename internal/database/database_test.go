package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCartRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.LoadCart(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SaveCart(ctx, "s1", []byte(`[{"id":"a"}]`)))
	require.NoError(t, db.SaveCart(ctx, "s1", []byte(`[{"id":"b"}]`)))

	data, err := db.LoadCart(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(data))

	require.NoError(t, db.DeleteCart(ctx, "s1"))
	_, err = db.LoadCart(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeCarts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveCart(ctx, "old", []byte(`[]`)))
	n, err := db.PurgeCarts(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestJournal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)

	first := &JournalEntry{RecordID: "r1", Email: "a@example.org", Pickup: "2026-01-12 15:00:00", Items: "#1 Leiter", ItemCount: 1, CreatedAt: base}
	second := &JournalEntry{RecordID: "r2", Email: "b@example.org", Pickup: "2026-01-15 16:00:00", Items: "#2 Bohrer, #3 Zelt", ItemCount: 2, CreatedAt: base.Add(time.Hour)}
	require.NoError(t, db.RecordReservation(ctx, first))
	require.NoError(t, db.RecordReservation(ctx, second))
	require.NoError(t, db.RecordReservation(ctx, &JournalEntry{RecordID: "r1", Email: "dup@example.org", Pickup: "x", Items: "x", CreatedAt: base}))

	count, err := db.CountReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := db.ListReservations(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].RecordID)
	assert.Equal(t, "a@example.org", all[1].Email)

	window, err := db.ListReservations(ctx, base.Add(30*time.Minute), time.Time{})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 2, window[0].ItemCount)

	pickups, err := db.ListPickups(ctx, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, pickups, 1)
	assert.Equal(t, "r2", pickups[0].RecordID)

	none, err := db.ListPickups(ctx, time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, none)

	purged, err := db.PurgeReservations(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	count, err = db.CountReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBackup(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	dir := filepath.Join(t.TempDir(), "backups")

	require.NoError(t, db.SaveCart(context.Background(), "s1", []byte(`[]`)))

	svc := NewBackupService(db, BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 1}, &logger)
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	stale := filepath.Join(dir, "backup_20000101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	old := time.Now().AddDate(0, 0, -3)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, path)
}
