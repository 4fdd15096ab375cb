package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/darkobas2/util-beeget/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *RetrievalRepository {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRetrievalRepository(db)
}

func TestTrackRetrieval_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.TrackRetrieval(storage.RetrievalRecord{
		RunID:       "run-1",
		SwarmHash:   "abc123",
		FilePath:    "downloaded_file_abc123.dat",
		Bytes:       5,
		Status:      storage.StatusDownloaded,
		RetrievedAt: now,
	}))

	records, err := repo.GetRetrievals()
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "abc123", records[0].SwarmHash)
	assert.Equal(t, "downloaded_file_abc123.dat", records[0].FilePath)
	assert.Equal(t, int64(5), records[0].Bytes)
	assert.Equal(t, storage.StatusDownloaded, records[0].Status)
	assert.True(t, records[0].RetrievedAt.Equal(now))
}

func TestGetRetrievals_NewestFirst(t *testing.T) {
	repo := newTestRepository(t)

	base := time.Now().UTC().Truncate(time.Second)

	for i, hash := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.TrackRetrieval(storage.RetrievalRecord{
			RunID:       "run",
			SwarmHash:   hash,
			Status:      storage.StatusFailed,
			RetrievedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := repo.GetRetrievals()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].SwarmHash)
	assert.Equal(t, "old", records[2].SwarmHash)
}

func TestGetRetrievals_Empty(t *testing.T) {
	repo := newTestRepository(t)

	records, err := repo.GetRetrievals()
	require.NoError(t, err)
	assert.Empty(t, records)
}
