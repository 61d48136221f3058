// Package query implements the Query Views component (spec.md §4.4):
// read-side projections over Store state, with the progress/result
// redaction rules applied at the boundary instead of left to callers.
package query

import (
	"time"

	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/boardspec"
	"github.com/blameazu/minesweeper/internal/match"
	"github.com/blameazu/minesweeper/internal/store"
)

// Views is the Query Views component.
type Views struct {
	store  *store.Store
	engine *match.Engine
}

func New(st *store.Store, engine *match.Engine) *Views {
	return &Views{store: st, engine: engine}
}

// PlayerView is one seat's projection, redacted for the requesting
// caller per spec.md §4.4: a reader may see their own progress but not
// an opponent's until the match is finished. result/rank are never
// separately redacted — they simply hold their zero value (ResultNone,
// nil) until the seat has actually called finish, so the "don't observe
// your own result early" rule is satisfied by the data model itself.
type PlayerView struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	SeatOrder  int                `json:"seat_order"`
	Ready      bool               `json:"ready"`
	Result     store.PlayerResult `json:"result"`
	Rank       *int               `json:"rank,omitempty"`
	StepsCount int                `json:"steps_count"`
	DurationMs *int64             `json:"duration_ms,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Progress   string             `json:"progress,omitempty"`
}

// MatchStateView is the match_state(id) projection.
type MatchStateView struct {
	ID            int64              `json:"id"`
	Status        store.MatchStatus  `json:"status"`
	Board         boardspec.Envelope `json:"board"`
	HostID        int64              `json:"host_id"`
	MaxPlayers    int                `json:"max_players"`
	CountdownSecs int                `json:"countdown_secs"`
	CreatedAt     time.Time          `json:"created_at"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	Players       []PlayerView       `json:"players"`
}

// MatchState implements match_state(id): full match + all players,
// applying timeout evaluation before returning (spec.md §4.4) and
// redacting opponents' progress from callerUserID's view while the
// match hasn't finished.
func (v *Views) MatchState(matchID int64, callerUserID int64) (*MatchStateView, error) {
	m, err := v.engine.Sync(matchID)
	if err != nil {
		return nil, err
	}

	var players []store.MatchPlayer
	err = v.store.Tx(func(tx *gorm.DB) error {
		var err error
		players, err = v.store.ListPlayers(tx, matchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &MatchStateView{
		ID:            m.ID,
		Status:        m.Status,
		HostID:        m.HostID,
		MaxPlayers:    m.MaxPlayers,
		CountdownSecs: m.CountdownSecs,
		CreatedAt:     m.CreatedAt,
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
		Board: boardspec.Envelope{
			Width:      m.Width,
			Height:     m.Height,
			Mines:      m.Mines,
			Seed:       m.Seed,
			Difficulty: m.Difficulty,
			SafeStart:  boardspec.Cell{X: m.SafeStartX, Y: m.SafeStartY},
		},
		Players: make([]PlayerView, len(players)),
	}

	for i, p := range players {
		pv := PlayerView{
			ID:         p.ID,
			UserID:     p.UserID,
			SeatOrder:  p.SeatOrder,
			Ready:      p.Ready,
			Result:     p.Result,
			Rank:       p.Rank,
			StepsCount: p.StepsCount,
			DurationMs: p.DurationMs,
			FinishedAt: p.FinishedAt,
			Progress:   p.Progress,
		}
		if m.Status != store.StatusFinished && p.UserID != callerUserID {
			pv.Progress = ""
		}
		out.Players[i] = pv
	}
	return out, nil
}

// MatchSummary is one row of recent_matches(limit).
type MatchSummary struct {
	ID         int64             `json:"id"`
	Status     store.MatchStatus `json:"status"`
	Difficulty string            `json:"difficulty"`
	CreatedAt  time.Time         `json:"created_at"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
	Players    []PlayerSummary   `json:"players"`
}

// PlayerSummary is the compact per-player projection recent_matches
// advertises (spec.md §4.4: "compact per-player summary") — no
// progress, since this view never exposes in-flight detail.
type PlayerSummary struct {
	UserID int64              `json:"user_id"`
	Result store.PlayerResult `json:"result"`
	Rank   *int               `json:"rank,omitempty"`
}

// RecentMatches implements recent_matches(limit=10).
func (v *Views) RecentMatches(limit int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var (
		matches []store.Match
		byMatch map[int64][]store.MatchPlayer
	)
	err := v.store.Tx(func(tx *gorm.DB) error {
		var err error
		matches, err = v.store.ListRecentMatches(tx, limit)
		if err != nil {
			return err
		}
		byMatch = make(map[int64][]store.MatchPlayer, len(matches))
		for _, m := range matches {
			players, err := v.store.ListPlayers(tx, m.ID)
			if err != nil {
				return err
			}
			byMatch[m.ID] = players
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]MatchSummary, len(matches))
	for i, m := range matches {
		players := byMatch[m.ID]
		summaries := make([]PlayerSummary, len(players))
		for j, p := range players {
			summaries[j] = PlayerSummary{UserID: p.UserID, Result: p.Result, Rank: p.Rank}
		}
		out[i] = MatchSummary{
			ID:         m.ID,
			Status:     m.Status,
			Difficulty: m.Difficulty,
			CreatedAt:  m.CreatedAt,
			EndedAt:    m.EndedAt,
			Players:    summaries,
		}
	}
	return out, nil
}

// ActiveSessionView is the active_session(user) projection (spec.md §6
// "GET active"): {active, match_id?, player_id?, board?, status?,
// host_id?}. player_token is intentionally absent — only its hash is
// ever persisted (spec.md §9), so the server cannot recover the raw
// seat token on a later read; a reconnecting client is expected to have
// kept the token it was issued at create/join time.
type ActiveSessionView struct {
	Active   bool               `json:"active"`
	MatchID  int64              `json:"match_id,omitempty"`
	PlayerID int64              `json:"player_id,omitempty"`
	Board    *boardspec.Envelope `json:"board,omitempty"`
	Status   store.MatchStatus  `json:"status,omitempty"`
	HostID   int64              `json:"host_id,omitempty"`
}

// ActiveSession implements active_session(user): the unique current
// match/player tuple, if any.
func (v *Views) ActiveSession(userID int64) (*ActiveSessionView, error) {
	var (
		p *store.MatchPlayer
		m *store.Match
	)
	err := v.store.Tx(func(tx *gorm.DB) error {
		var err error
		p, m, err = v.store.ActiveSessionForUser(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &ActiveSessionView{Active: false}, nil
	}
	return &ActiveSessionView{
		Active:   true,
		MatchID:  m.ID,
		PlayerID: p.ID,
		Status:   m.Status,
		HostID:   m.HostID,
		Board: &boardspec.Envelope{
			Width:      m.Width,
			Height:     m.Height,
			Mines:      m.Mines,
			Seed:       m.Seed,
			Difficulty: m.Difficulty,
			SafeStart:  boardspec.Cell{X: m.SafeStartX, Y: m.SafeStartY},
		},
	}, nil
}

// StepView is one row of match_steps(id).
type StepView struct {
	Seq       int             `json:"seq"`
	PlayerID  int64           `json:"player_id"`
	Action    store.StepAction `json:"action"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	ElapsedMs *int64          `json:"elapsed_ms,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MatchSteps implements match_steps(id): the full log ordered by seq,
// used for replays (spec.md §4.4).
func (v *Views) MatchSteps(matchID int64) ([]StepView, error) {
	var steps []store.MatchStep
	err := v.store.Tx(func(tx *gorm.DB) error {
		var err error
		steps, err = v.store.ListSteps(tx, matchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]StepView, len(steps))
	for i, s := range steps {
		out[i] = StepView{
			Seq:       s.Seq,
			PlayerID:  s.PlayerID,
			Action:    s.Action,
			X:         s.X,
			Y:         s.Y,
			ElapsedMs: s.ElapsedMs,
			CreatedAt: s.CreatedAt,
		}
	}
	return out, nil
}
