package leaderboard

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/db"
	"github.com/blameazu/minesweeper/internal/store"
)

func newTestService(t *testing.T, topN int) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	st := store.New(&db.DB{DB: gormDB})
	require.NoError(t, st.Migrate())
	return New(st, nil, topN)
}

func sampleReplay(t *testing.T) *Replay {
	t.Helper()
	board, err := json.Marshal(map[string]int{"width": 9})
	require.NoError(t, err)
	steps, err := json.Marshal([]int{1, 2, 3})
	require.NoError(t, err)
	return &Replay{Board: board, Steps: steps}
}

func TestSubmitFirstEntryAlwaysUpserts(t *testing.T) {
	svc := newTestService(t, 10)
	entry, err := svc.Submit(1, "beginner", 30000, sampleReplay(t))
	require.NoError(t, err)
	assert.Equal(t, int64(30000), entry.TimeMs)
	assert.True(t, entry.HasReplay)
}

func TestSubmitStrictlyBetterTimeReplacesEntry(t *testing.T) {
	svc := newTestService(t, 10)
	_, err := svc.Submit(1, "beginner", 30000, sampleReplay(t))
	require.NoError(t, err)

	entry, err := svc.Submit(1, "beginner", 25000, sampleReplay(t))
	require.NoError(t, err)
	assert.Equal(t, int64(25000), entry.TimeMs)

	entries, err := svc.Query("beginner", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(25000), entries[0].TimeMs)
}

func TestSubmitWorseTimeIsIgnored(t *testing.T) {
	svc := newTestService(t, 10)
	_, err := svc.Submit(1, "beginner", 25000, nil)
	require.NoError(t, err)

	entry, err := svc.Submit(1, "beginner", 30000, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), entry.TimeMs)
}

func TestReplayNotRetainedWhenEntryFallsOutsideTopN(t *testing.T) {
	svc := newTestService(t, 1)
	first, err := svc.Submit(1, "beginner", 10000, sampleReplay(t))
	require.NoError(t, err)
	assert.True(t, first.HasReplay)

	// user2's entry is strictly worse than user1's, and topN=1, so it
	// never lands in the top N and its replay is never persisted
	// (spec.md §4.5: "otherwise drop the replay payload").
	second, err := svc.Submit(2, "beginner", 20000, sampleReplay(t))
	require.NoError(t, err)
	assert.False(t, second.HasReplay)

	_, err = svc.Replay(second.ID)
	require.Error(t, err)

	_, err = svc.Replay(first.ID)
	require.NoError(t, err)
}

func TestReplayRetrievable(t *testing.T) {
	svc := newTestService(t, 10)
	entry, err := svc.Submit(1, "beginner", 25000, sampleReplay(t))
	require.NoError(t, err)

	r, err := svc.Replay(entry.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":9}`, string(r.Board))
}

func TestQueryOrdersByTimeThenCreatedAt(t *testing.T) {
	svc := newTestService(t, 10)
	svc = svc.WithClock(func() time.Time { return time.Unix(100, 0) })
	_, err := svc.Submit(1, "beginner", 20000, nil)
	require.NoError(t, err)

	svc = svc.WithClock(func() time.Time { return time.Unix(50, 0) })
	_, err = svc.Submit(2, "beginner", 20000, nil)
	require.NoError(t, err)

	entries, err := svc.Query("beginner", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].UserID) // earlier created_at wins the tie
}
