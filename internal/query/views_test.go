package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/db"
	"github.com/blameazu/minesweeper/internal/match"
	"github.com/blameazu/minesweeper/internal/sessionguard"
	"github.com/blameazu/minesweeper/internal/store"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestViews(t *testing.T) (*Views, *match.Engine, *testClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	st := store.New(&db.DB{DB: gormDB})
	require.NoError(t, st.Migrate())

	guard := sessionguard.New(st)
	clk := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	engine := match.New(st, guard, nil, match.Config{
		IdleMinutes:          10,
		PreStartDelaySecs:    3,
		DefaultCountdownSecs: 300,
		MaxPlayersPerMatch:   2,
	}).WithClock(clk.Now)

	require.NoError(t, st.Tx(func(tx *gorm.DB) error {
		if err := tx.Create(&store.User{ID: 1, Handle: "alice", CreatedAt: clk.Now()}).Error; err != nil {
			return err
		}
		return tx.Create(&store.User{ID: 2, Handle: "bob", CreatedAt: clk.Now()}).Error
	}))

	return New(st, engine), engine, clk
}

// TestMatchStateRedactsOpponentProgressUntilFinished implements spec.md
// §8 scenario 6.
func TestMatchStateRedactsOpponentProgressUntilFinished(t *testing.T) {
	views, engine, clk := newTestViews(t)

	m, _, hostToken, err := engine.CreateMatch(1, "beginner")
	require.NoError(t, err)
	_, _, guestToken, err := engine.JoinMatch(m.ID, 2)
	require.NoError(t, err)
	require.NoError(t, engine.SetReady(m.ID, guestToken, true))
	_, err = engine.StartMatch(m.ID, hostToken)
	require.NoError(t, err)
	clk.Advance(3 * time.Second)

	_, err = engine.SendStep(m.ID, hostToken, match.StepInput{Action: store.ActionReveal, X: m.SafeStartX, Y: m.SafeStartY})
	require.NoError(t, err)

	dur := int64(1000)
	_, _, err = engine.Finish(m.ID, hostToken, match.FinishInput{
		Outcome:    store.ResultWin,
		DurationMs: &dur,
		Progress:   `{"board":{"cells":[{"revealed":true,"mine":false}]}}`,
	})
	require.NoError(t, err)

	// Match not finished yet (bob hasn't finished): bob must not see
	// alice's progress even though alice already submitted finish.
	stateForBob, err := views.MatchState(m.ID, 2)
	require.NoError(t, err)
	for _, p := range stateForBob.Players {
		if p.UserID == 1 {
			require.Empty(t, p.Progress)
		}
	}

	// alice may see her own progress at any time.
	stateForAlice, err := views.MatchState(m.ID, 1)
	require.NoError(t, err)
	for _, p := range stateForAlice.Players {
		if p.UserID == 1 {
			require.NotEmpty(t, p.Progress)
		}
	}

	_, _, err = engine.Finish(m.ID, guestToken, match.FinishInput{Outcome: store.ResultLose, DurationMs: &dur})
	require.NoError(t, err)

	finalState, err := views.MatchState(m.ID, 2)
	require.NoError(t, err)
	for _, p := range finalState.Players {
		if p.UserID == 1 {
			require.NotEmpty(t, p.Progress)
		}
	}
}

// TestCreateThenStateBoardMatches implements spec.md §8's round-trip
// property: "create -> state returns a match whose board matches the
// create response byte-for-byte."
func TestCreateThenStateBoardMatches(t *testing.T) {
	views, engine, _ := newTestViews(t)

	m, _, _, err := engine.CreateMatch(1, "beginner")
	require.NoError(t, err)

	state, err := views.MatchState(m.ID, 1)
	require.NoError(t, err)
	require.Equal(t, m.Width, state.Board.Width)
	require.Equal(t, m.Height, state.Board.Height)
	require.Equal(t, m.Mines, state.Board.Mines)
	require.Equal(t, m.Seed, state.Board.Seed)
	require.Equal(t, m.Difficulty, state.Board.Difficulty)
	require.Equal(t, m.SafeStartX, state.Board.SafeStart.X)
	require.Equal(t, m.SafeStartY, state.Board.SafeStart.Y)
}

func TestActiveSessionReflectsCurrentMatch(t *testing.T) {
	views, engine, _ := newTestViews(t)

	none, err := views.ActiveSession(1)
	require.NoError(t, err)
	require.False(t, none.Active)

	m, _, _, err := engine.CreateMatch(1, "beginner")
	require.NoError(t, err)

	session, err := views.ActiveSession(1)
	require.NoError(t, err)
	require.True(t, session.Active)
	require.Equal(t, m.ID, session.MatchID)
	require.Equal(t, store.StatusPending, session.Status)
}
