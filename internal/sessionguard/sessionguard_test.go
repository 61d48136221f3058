package sessionguard

import (
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

func newTestGuard(t *testing.T) (*Guard, *store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	st := store.New(&db.DB{DB: gormDB})
	require.NoError(t, st.Migrate())
	return New(st), st
}

func TestBusyFalseWithNoMatches(t *testing.T) {
	guard, st := newTestGuard(t)
	err := st.Tx(func(tx *gorm.DB) error {
		busy, err := guard.Busy(tx, 1)
		require.NoError(t, err)
		assert.False(t, busy)
		return nil
	})
	require.NoError(t, err)
}

func TestBusyTrueWithPendingOrActiveMatch(t *testing.T) {
	guard, st := newTestGuard(t)
	for _, status := range []store.MatchStatus{store.StatusPending, store.StatusActive} {
		require.NoError(t, st.Tx(func(tx *gorm.DB) error {
			m := &store.Match{Status: status, HostID: 1, CreatedAt: time.Now(), LastActivityAt: time.Now()}
			require.NoError(t, tx.Create(m).Error)
			require.NoError(t, tx.Create(&store.MatchPlayer{MatchID: m.ID, UserID: 1, JoinedAt: time.Now()}).Error)
			return nil
		}))
		require.NoError(t, st.Tx(func(tx *gorm.DB) error {
			busy, err := guard.Busy(tx, 1)
			require.NoError(t, err)
			assert.True(t, busy)
			return nil
		}))
		require.NoError(t, st.Tx(func(tx *gorm.DB) error {
			return tx.Exec("DELETE FROM match_players WHERE user_id = 1").Error
		}))
		require.NoError(t, st.Tx(func(tx *gorm.DB) error {
			return tx.Exec("DELETE FROM matches WHERE host_id = 1").Error
		}))
	}
}

func TestBusyFalseWhenOnlyFinishedMatchExists(t *testing.T) {
	guard, st := newTestGuard(t)
	require.NoError(t, st.Tx(func(tx *gorm.DB) error {
		m := &store.Match{Status: store.StatusFinished, HostID: 1, CreatedAt: time.Now(), LastActivityAt: time.Now()}
		require.NoError(t, tx.Create(m).Error)
		return tx.Create(&store.MatchPlayer{MatchID: m.ID, UserID: 1, JoinedAt: time.Now()}).Error
	}))

	require.NoError(t, st.Tx(func(tx *gorm.DB) error {
		busy, err := guard.Busy(tx, 1)
		require.NoError(t, err)
		assert.False(t, busy)
		return nil
	}))
}
