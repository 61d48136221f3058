// Package match implements the Match Engine (spec.md §4.3): the
// lifecycle state machine, readiness protocol, step ingestion, finish,
// timeout evaluation, and end-of-match ranking.
package match

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/auth"
	"github.com/blameazu/minesweeper/internal/boardspec"
	"github.com/blameazu/minesweeper/internal/locks"
	"github.com/blameazu/minesweeper/internal/sessionguard"
	"github.com/blameazu/minesweeper/internal/store"
)

// Config holds the tunables enumerated in spec.md §6.
type Config struct {
	IdleMinutes        int
	PreStartDelaySecs  int
	DefaultCountdownSecs int
	MaxPlayersPerMatch int
}

// Engine is the Match Engine component.
type Engine struct {
	store *store.Store
	guard *sessionguard.Guard
	lock  locks.Locker
	cfg   Config
	now   func() time.Time
}

func New(st *store.Store, guard *sessionguard.Guard, lock locks.Locker, cfg Config) *Engine {
	if lock == nil {
		lock = locks.NoopLocker{}
	}
	return &Engine{store: st, guard: guard, lock: lock, cfg: cfg, now: time.Now}
}

// WithClock overrides the engine's notion of "now" (tests only).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) lockKey(matchID int64) string { return fmt.Sprintf("match:%d", matchID) }

// lockAndSync locks the match row and evaluates the lazy timeout rules
// (spec.md §4.3.3) against it; if that evaluation force-finished the
// match, it reloads the row so callers never act on a stale in-memory
// status.
func (e *Engine) lockAndSync(tx *gorm.DB, matchID int64) (*store.Match, error) {
	match, err := e.store.LockMatch(tx, matchID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	changed, err := e.evaluateTimeout(tx, match)
	if err != nil {
		return nil, err
	}
	if changed {
		match, err = e.store.GetMatch(tx, matchID)
		if err != nil {
			return nil, err
		}
	}
	return match, nil
}

// withMatchLock acquires the optional distributed lock, then runs fn
// inside a Store transaction. Every exported Engine operation that
// touches an existing match goes through this, except the read-only
// SeatOwner lookup.
func (e *Engine) withMatchLock(matchID int64, fn func(tx *gorm.DB) error) error {
	release, err := e.lock.Acquire(context.Background(), e.lockKey(matchID))
	if err != nil {
		return ErrUnavailable("acquiring match lock: %v", err)
	}
	defer release()
	return e.store.Tx(fn)
}

// Sync loads a match applying lazy timeout evaluation (spec.md §4.3.3,
// §4.4 "applies timeout evaluation before returning"), without otherwise
// mutating it. Query Views calls this before projecting read-side state
// so a stale idle/countdown deadline never reads as still-active.
func (e *Engine) Sync(matchID int64) (*store.Match, error) {
	var m *store.Match
	err := e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}
		m = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SeatOwner resolves the MatchPlayer a raw seat token names, without
// taking the match lock or evaluating timeouts — used only to identify a
// caller for read-side redaction (Query Views), never to authorize a
// mutation.
func (e *Engine) SeatOwner(matchID int64, rawToken string) (*store.MatchPlayer, error) {
	var p *store.MatchPlayer
	err := e.store.Tx(func(tx *gorm.DB) error {
		var err error
		p, err = e.store.GetPlayerByToken(tx, matchID, auth.HashToken(rawToken))
		return err
	})
	if err != nil {
		return nil, translateUnauthorized(err)
	}
	return p, nil
}

// CreateMatch implements spec.md §4.3 create_match.
func (e *Engine) CreateMatch(userID int64, difficulty string) (*store.Match, *store.MatchPlayer, string, error) {
	var (
		m     *store.Match
		p     *store.MatchPlayer
		token string
	)
	err := e.store.Tx(func(tx *gorm.DB) error {
		busy, err := e.guard.Busy(tx, userID)
		if err != nil {
			return err
		}
		if busy {
			return ErrAlreadyInMatch("user %d already has an active session", userID)
		}

		board, err := boardspec.Generate(difficulty)
		if err != nil {
			return ErrBadRequest("%v", err)
		}

		now := e.now()
		m = &store.Match{
			Status:         store.StatusPending,
			Width:          board.Width,
			Height:         board.Height,
			Mines:          board.Mines,
			Seed:           board.Seed,
			Difficulty:     board.Difficulty,
			SafeStartX:     board.SafeStartX,
			SafeStartY:     board.SafeStartY,
			HostID:         userID,
			MaxPlayers:     e.cfg.MaxPlayersPerMatch,
			CountdownSecs:  e.cfg.DefaultCountdownSecs,
			CreatedAt:      now,
			LastActivityAt: now,
		}
		if err := e.store.CreateMatch(tx, m); err != nil {
			return err
		}

		raw, hash := auth.NewSeatToken()
		token = raw
		p = &store.MatchPlayer{
			MatchID:   m.ID,
			UserID:    userID,
			TokenHash: hash,
			SeatOrder: 0,
			Ready:     false,
			Result:    store.ResultNone,
			JoinedAt:  now,
		}
		return e.store.CreatePlayer(tx, p)
	})
	if err != nil {
		return nil, nil, "", err
	}
	return m, p, token, nil
}

// JoinMatch implements spec.md §4.3 join_match.
func (e *Engine) JoinMatch(matchID int64, userID int64) (*store.Match, *store.MatchPlayer, string, error) {
	var (
		m     *store.Match
		p     *store.MatchPlayer
		token string
	)
	err := e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}

		busy, err := e.guard.Busy(tx, userID)
		if err != nil {
			return err
		}
		if busy {
			return ErrAlreadyInMatch("user %d already has an active session", userID)
		}

		if match.Status != store.StatusPending {
			return ErrInvalidState("match %d is not pending", matchID)
		}

		players, err := e.store.ListPlayers(tx, matchID)
		if err != nil {
			return err
		}
		if len(players) >= match.MaxPlayers {
			return ErrInvalidState("match %d is full", matchID)
		}

		raw, hash := auth.NewSeatToken()
		token = raw
		p = &store.MatchPlayer{
			MatchID:   matchID,
			UserID:    userID,
			TokenHash: hash,
			SeatOrder: len(players),
			Ready:     false,
			Result:    store.ResultNone,
			JoinedAt:  e.now(),
		}
		if err := e.store.CreatePlayer(tx, p); err != nil {
			return err
		}
		m = match
		return nil
	})
	if err != nil {
		return nil, nil, "", err
	}
	return m, p, token, nil
}

// SetReady implements spec.md §4.3 set_ready. Host readiness is always
// implicitly true; the call is idempotent for non-hosts.
func (e *Engine) SetReady(matchID int64, rawToken string, ready bool) error {
	return e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}

		p, err := e.store.GetPlayerByToken(tx, matchID, auth.HashToken(rawToken))
		if err != nil {
			return translateUnauthorized(err)
		}
		if match.Status != store.StatusPending {
			return ErrInvalidState("match %d is not pending", matchID)
		}
		if p.UserID == match.HostID {
			return nil // host is always ready; no-op
		}
		if p.Ready == ready {
			return nil // idempotent
		}
		p.Ready = ready
		return e.store.SavePlayer(tx, p)
	})
}

// StartMatch implements spec.md §4.3 start_match.
func (e *Engine) StartMatch(matchID int64, rawToken string) (*store.Match, error) {
	var result *store.Match
	err := e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}

		p, err := e.store.GetPlayerByToken(tx, matchID, auth.HashToken(rawToken))
		if err != nil {
			return translateUnauthorized(err)
		}
		if p.UserID != match.HostID {
			return ErrInvalidState("only the host may start match %d", matchID)
		}

		if match.Status == store.StatusActive {
			result = match // idempotent repeat of an identical start request
			return nil
		}
		if match.Status != store.StatusPending {
			return ErrInvalidState("match %d is not pending", matchID)
		}

		players, err := e.store.ListPlayers(tx, matchID)
		if err != nil {
			return err
		}
		if len(players) < 2 {
			return ErrInvalidState("match %d needs at least 2 players to start", matchID)
		}
		for _, pl := range players {
			if pl.UserID == match.HostID {
				continue
			}
			if !pl.Ready {
				return ErrInvalidState("player %d is not ready", pl.UserID)
			}
		}

		now := e.now()
		started := now.Add(time.Duration(e.cfg.PreStartDelaySecs) * time.Second)
		match.Status = store.StatusActive
		match.StartedAt = &started
		match.LastActivityAt = now
		if err := e.store.SaveMatch(tx, match); err != nil {
			return err
		}
		result = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StepInput carries the parameters of spec.md §4.3 send_step.
type StepInput struct {
	Action    store.StepAction
	X, Y      int
	ElapsedMs *int64
}

// SendStep implements spec.md §4.3 send_step / §4.3.1.
func (e *Engine) SendStep(matchID int64, rawToken string, in StepInput) (int, error) {
	var seq int
	err := e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}

		p, err := e.store.GetPlayerByToken(tx, matchID, auth.HashToken(rawToken))
		if err != nil {
			return translateUnauthorized(err)
		}

		if match.Status != store.StatusActive {
			return ErrInvalidState("match %d is not active", matchID)
		}
		if match.StartedAt == nil || e.now().Before(*match.StartedAt) {
			return ErrInvalidState("match %d countdown hasn't started", matchID)
		}
		if p.FinishedAt != nil {
			return ErrInvalidState("player %d has already finished", p.ID)
		}
		if !boardspec.InBounds(match.Width, match.Height, in.X, in.Y) {
			return ErrBadRequest("cell (%d,%d) is out of bounds", in.X, in.Y)
		}

		next, err := e.store.NextSeq(tx, matchID)
		if err != nil {
			return err
		}
		now := e.now()
		step := &store.MatchStep{
			MatchID:   matchID,
			PlayerID:  p.ID,
			Seq:       next,
			Action:    in.Action,
			X:         in.X,
			Y:         in.Y,
			ElapsedMs: in.ElapsedMs,
			CreatedAt: now,
		}
		if err := e.store.InsertStep(tx, step); err != nil {
			return err
		}

		p.StepsCount++
		if err := e.store.SavePlayer(tx, p); err != nil {
			return err
		}

		match.LastActivityAt = now
		if err := e.store.SaveMatch(tx, match); err != nil {
			return err
		}

		seq = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// FinishInput carries the parameters of spec.md §4.3 finish.
type FinishInput struct {
	Outcome    store.PlayerResult
	DurationMs *int64
	StepsCount *int
	Progress   string
}

// Finish implements spec.md §4.3 finish, including the win-coercion
// heuristic and end-of-match ranking.
func (e *Engine) Finish(matchID int64, rawToken string, in FinishInput) (*store.Match, *int, error) {
	var (
		resultMatch *store.Match
		resultRank  *int
	)
	err := e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}

		p, err := e.store.GetPlayerByToken(tx, matchID, auth.HashToken(rawToken))
		if err != nil {
			return translateUnauthorized(err)
		}

		if p.FinishedAt != nil {
			// Idempotent no-op (spec.md §8: "finish(same outcome) after
			// first commit is a no-op for the caller; doesn't alter rank").
			resultMatch = match
			resultRank = p.Rank
			return nil
		}
		if match.Status != store.StatusActive {
			return ErrInvalidState("match %d is not active", matchID)
		}

		outcome := in.Outcome
		if outcome == store.ResultWin {
			if revealed, ok := revealedNonMineCount(in.Progress); ok {
				if revealed < totalNonMineCells(match.Width, match.Height, match.Mines) {
					outcome = store.ResultForfeit
				}
			}
		}

		now := e.now()
		p.Result = outcome
		p.FinishedAt = &now
		p.DurationMs = in.DurationMs
		if in.StepsCount != nil {
			p.StepsCount = *in.StepsCount
		}
		if in.Progress != "" {
			p.Progress = in.Progress
		}
		if err := e.store.SavePlayer(tx, p); err != nil {
			return err
		}

		match.LastActivityAt = now
		if err := e.store.SaveMatch(tx, match); err != nil {
			return err
		}

		players, err := e.store.ListPlayers(tx, matchID)
		if err != nil {
			return err
		}
		allFinished := true
		for _, pl := range players {
			if pl.FinishedAt == nil {
				allFinished = false
				break
			}
		}
		if allFinished {
			if err := e.finishMatch(tx, match, players); err != nil {
				return err
			}
		}

		resultMatch = match
		for _, pl := range players {
			if pl.ID == p.ID {
				resultRank = pl.Rank
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resultMatch, resultRank, nil
}

// finishMatch computes ranks for every (now-finished) player and closes
// out the match. Caller already holds the match's row lock.
func (e *Engine) finishMatch(tx *gorm.DB, match *store.Match, players []store.MatchPlayer) error {
	steps, err := e.store.ListSteps(tx, match.ID)
	if err != nil {
		return err
	}
	byPlayer := make(map[int64][]stepView, len(players))
	for _, s := range steps {
		byPlayer[s.PlayerID] = append(byPlayer[s.PlayerID], stepView{Action: string(s.Action), X: s.X, Y: s.Y})
	}

	ranked := computeRanks(players, byPlayer)
	for i := range ranked {
		if err := e.store.SavePlayer(tx, &ranked[i]); err != nil {
			return err
		}
	}

	now := e.now()
	match.Status = store.StatusFinished
	match.EndedAt = &now
	return e.store.SaveMatch(tx, match)
}

// Leave implements spec.md §4.3 leave / delete_match, and the
// forfeit-on-leave-after-start supplement (SPEC_FULL.md §4.3.5).
func (e *Engine) Leave(matchID int64, rawToken string) error {
	return e.withMatchLock(matchID, func(tx *gorm.DB) error {
		match, err := e.lockAndSync(tx, matchID)
		if err != nil {
			return err
		}

		p, err := e.store.GetPlayerByToken(tx, matchID, auth.HashToken(rawToken))
		if err != nil {
			return translateUnauthorized(err)
		}

		if match.Status == store.StatusFinished {
			return nil // idempotent no-op (covers timeout-forced finish too)
		}

		preStart := match.Status == store.StatusPending ||
			(match.Status == store.StatusActive && (match.StartedAt == nil || e.now().Before(*match.StartedAt)))

		if !preStart {
			// Active, countdown running: implicit forfeit (SPEC_FULL.md §4.3.5).
			if p.FinishedAt != nil {
				return nil
			}
			return e.finishOneLocked(tx, match, p)
		}

		players, err := e.store.ListPlayers(tx, matchID)
		if err != nil {
			return err
		}
		if len(players) <= 1 {
			return e.store.DeleteMatch(tx, matchID)
		}

		wasHost := p.UserID == match.HostID
		if err := e.store.DeletePlayer(tx, p.ID); err != nil {
			return err
		}

		if wasHost {
			var newHost *store.MatchPlayer
			for i := range players {
				if players[i].ID != p.ID {
					newHost = &players[i]
					break
				}
			}
			if newHost != nil {
				match.HostID = newHost.UserID
				return e.store.SaveMatch(tx, match)
			}
		}
		return nil
	})
}

// finishOneLocked applies an implicit forfeit finish to a single seat
// that left mid-match, reusing the same all-finished check as Finish.
func (e *Engine) finishOneLocked(tx *gorm.DB, match *store.Match, p *store.MatchPlayer) error {
	now := e.now()
	p.Result = store.ResultForfeit
	p.FinishedAt = &now
	if err := e.store.SavePlayer(tx, p); err != nil {
		return err
	}

	players, err := e.store.ListPlayers(tx, match.ID)
	if err != nil {
		return err
	}
	allFinished := true
	for _, pl := range players {
		if pl.FinishedAt == nil {
			allFinished = false
			break
		}
	}
	if allFinished {
		return e.finishMatch(tx, match, players)
	}
	match.LastActivityAt = now
	return e.store.SaveMatch(tx, match)
}

func translateNotFound(err error) error {
	if err == store.ErrNotFound {
		return ErrNotFound("match not found")
	}
	return err
}

func translateUnauthorized(err error) error {
	if err == store.ErrNotFound {
		return ErrUnauthorized("token does not match a seat in this match")
	}
	return err
}
