package journal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plk/internal/detect"
	"plk/internal/pulsar"
)

func sampleEntry(session, boundary string) Entry {
	return Entry{
		SessionID:       session,
		BoundaryID:      boundary,
		Origin:          "controller",
		StartedAt:       time.Unix(1700000000, 123456789),
		Duration:        3 * time.Millisecond,
		Changed:         []string{"parameters", "residuals"},
		BeforeParams:    "00000000000000aa",
		BeforeTOAs:      "00000000000000bb",
		BeforeResiduals: "0000000000000000",
		AfterParams:     "00000000000000cc",
		AfterTOAs:       "00000000000000bb",
		AfterResiduals:  "00000000000000dd",
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, sampleEntry("s1", "b1")))
	require.NoError(t, store.Append(ctx, sampleEntry("s1", "b2")))
	require.NoError(t, store.Append(ctx, sampleEntry("s2", "b3")))

	entries, err := store.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "b1", entries[0].BoundaryID)
	require.Equal(t, []string{"parameters", "residuals"}, entries[0].Changed)
	require.Equal(t, "00000000000000cc", entries[0].AfterParams)
	require.Equal(t, 3*time.Millisecond, entries[0].Duration)
	require.Equal(t, time.Unix(1700000000, 123456789).UnixNano(), entries[0].StartedAt.UnixNano())

	recent, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "b3", recent[0].BoundaryID)
}

func TestSQLiteStoreFailedEntry(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	e := sampleEntry("s1", "b1")
	e.Failed = true
	e.Err = "fit failed"
	e.Changed = nil
	require.NoError(t, store.Append(context.Background(), e))

	entries, err := store.GetBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, entries[0].Failed)
	require.Equal(t, "fit failed", entries[0].Err)
	require.Empty(t, entries[0].Changed)
}

func TestMemoryStoreRecentOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"b1", "b2", "b3"} {
		require.NoError(t, store.Append(ctx, sampleEntry("s1", id)))
	}

	recent, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "b3", recent[0].BoundaryID)
	require.Equal(t, "b2", recent[1].BoundaryID)
}

func TestBoundaryRecorderPersistsDigests(t *testing.T) {
	store := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := NewBoundaryRecorder(store, "session-x", logger)

	rec.RecordBoundary(detect.BoundaryRecord{
		BoundaryID: "b9",
		Origin:     "console",
		StartedAt:  time.Now(),
		Before:     detect.Baseline{Params: pulsar.Digest(0xaa)},
		After:      detect.Baseline{Params: pulsar.Digest(0xbb)},
		Changed:    []string{"parameters"},
	})

	entries, err := store.GetBySession(context.Background(), "session-x")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "00000000000000aa", entries[0].BeforeParams)
	require.Equal(t, "00000000000000bb", entries[0].AfterParams)
	require.Equal(t, "console", entries[0].Origin)
}
