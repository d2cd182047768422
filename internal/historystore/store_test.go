package historystore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newsbrief/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsert_InsertThenFind(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	entry := domain.HistoryEntry{
		URL: "https://example.com/a", NormalizedURL: "https://example.com/a",
		Title: "A", Source: "src1", FirstSeenAt: now, LastSeenAt: now,
	}
	require.NoError(t, s.Upsert(entry))

	found, err := s.FindByNormalizedURL("https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, entry.Title, found.Title)
	require.Equal(t, now, found.FirstSeenAt)
}

func TestUpsert_ResightingAdvancesLastSeenNotFirstSeen(t *testing.T) {
	s := openTestStore(t)
	first := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(domain.HistoryEntry{
		URL: "https://example.com/a", NormalizedURL: "https://example.com/a",
		Title: "A", Source: "src1", FirstSeenAt: first, LastSeenAt: first,
	}))
	require.NoError(t, s.Upsert(domain.HistoryEntry{
		URL: "https://example.com/a", NormalizedURL: "https://example.com/a",
		Title: "A", Source: "src1", FirstSeenAt: later, LastSeenAt: later,
	}))

	found, err := s.FindByNormalizedURL("https://example.com/a")
	require.NoError(t, err)
	require.Equal(t, first, found.FirstSeenAt)
	require.Equal(t, later, found.LastSeenAt)
}

func TestUpsert_MergeSemanticsNeverOverwriteWithNull(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	published := now.Add(-time.Hour)
	require.NoError(t, s.Upsert(domain.HistoryEntry{
		URL: "https://example.com/a", NormalizedURL: "https://example.com/a",
		Title: "A", Source: "src1", FirstSeenAt: now, LastSeenAt: now,
		PublishedAt: &published, DateConfidence: domain.ConfidenceHigh,
	}))
	require.NoError(t, s.Upsert(domain.HistoryEntry{
		URL: "https://example.com/a", NormalizedURL: "https://example.com/a",
		Title: "A", Source: "src1", FirstSeenAt: now, LastSeenAt: now.Add(time.Minute),
	}))

	found, err := s.FindByNormalizedURL("https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, found.PublishedAt)
	require.Equal(t, domain.ConfidenceHigh, found.DateConfidence)
}

func TestBulkUpsert_CountIncreasesByN(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	entries := []domain.HistoryEntry{
		{URL: "https://a.com/1", NormalizedURL: "https://a.com/1", Title: "A", Source: "s", FirstSeenAt: now, LastSeenAt: now},
		{URL: "https://a.com/2", NormalizedURL: "https://a.com/2", Title: "B", Source: "s", FirstSeenAt: now, LastSeenAt: now},
	}
	require.NoError(t, s.BulkUpsert(entries))
	stats, err := s.GetStats()
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Total)
}

func TestFindExistingURLs(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Upsert(domain.HistoryEntry{
		URL: "https://a.com/1", NormalizedURL: "https://a.com/1", Title: "A", Source: "s", FirstSeenAt: now, LastSeenAt: now,
	}))
	existing, err := s.FindExistingURLs([]string{"https://a.com/1", "https://a.com/2"})
	require.NoError(t, err)
	require.True(t, existing["https://a.com/1"])
	require.False(t, existing["https://a.com/2"])
}

func TestCleanup_RemovesOnlyByFirstSeenAt(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().UTC().AddDate(0, 0, -100)
	recent := time.Now().UTC()
	require.NoError(t, s.Upsert(domain.HistoryEntry{
		URL: "https://a.com/old", NormalizedURL: "https://a.com/old", Title: "Old", Source: "s",
		FirstSeenAt: old, LastSeenAt: recent, // recently re-seen but old first_seen_at
	}))
	n, err := s.Cleanup(nil, 90)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	found, err := s.FindByNormalizedURL("https://a.com/old")
	require.NoError(t, err)
	require.Nil(t, found)
}
