// Package leaderboard implements the Leaderboard component (spec.md
// §4.5): best-time-per-user-per-difficulty with top-N replay retention,
// pruned synchronously inside submit (SPEC_FULL.md §9 decision 2).
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/redis"
	"github.com/blameazu/minesweeper/internal/store"
)

// ErrNotFound is returned by Replay for an entry with no stored payload.
var ErrNotFound = store.ErrNotFound

// cacheTTL bounds how stale a cached top-N listing may be; Submit
// invalidates the affected difficulty's key directly, so this is only a
// backstop against an invalidation that never landed.
const cacheTTL = 30 * time.Second

// Replay is a user-submitted board descriptor plus its ordered step log
// (spec.md §4.5: "a JSON board descriptor plus an ordered list of steps").
// Both halves are stored and replayed verbatim; this service never
// interprets them.
type Replay struct {
	Board json.RawMessage `json:"board"`
	Steps json.RawMessage `json:"steps"`
}

// Entry is the query(difficulty, limit) projection.
type Entry struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Difficulty    string    `json:"difficulty"`
	TimeMs        int64     `json:"time_ms"`
	CreatedAt     time.Time `json:"created_at"`
	HasReplay     bool      `json:"has_replay"`
}

// Service is the Leaderboard component. cache is optional: a nil *redis.Client
// degrades to always-miss, matching the teacher's pattern of treating
// Redis as a best-effort accelerator, never a source of truth.
type Service struct {
	store *store.Store
	cache *redis.Client
	topN  int
	now   func() time.Time
}

func New(st *store.Store, cache *redis.Client, topN int) *Service {
	if topN <= 0 {
		topN = 10
	}
	return &Service{store: st, cache: cache, topN: topN, now: time.Now}
}

// WithClock overrides the service's notion of "now" (tests only).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func cacheKey(difficulty string) string {
	return fmt.Sprintf("leaderboard:top:%s", difficulty)
}

// Submit implements spec.md §4.5 submit: upserts the user's best time
// for difficulty if they have none yet or timeMs strictly improves on
// it, then synchronously retains or drops the replay payload depending
// on whether the resulting entry lands in the top N.
func (s *Service) Submit(userID int64, difficulty string, timeMs int64, replay *Replay) (*Entry, error) {
	var result *Entry
	err := s.store.Tx(func(tx *gorm.DB) error {
		existing, err := s.store.GetLeaderboardEntry(tx, userID, difficulty)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := s.now()
		entry := existing
		improved := entry == nil
		if entry == nil {
			entry = &store.LeaderboardEntry{
				UserID:     userID,
				Difficulty: difficulty,
				TimeMs:     timeMs,
				CreatedAt:  now,
			}
		} else if timeMs < entry.TimeMs {
			entry.TimeMs = timeMs
			entry.CreatedAt = now // tie-break reflects when this best was set
			improved = true
		}

		if improved {
			if err := s.store.SaveLeaderboardEntry(tx, entry); err != nil {
				return err
			}
			log.Printf("[LEADERBOARD] user=%d difficulty=%s time_ms=%d new personal best", userID, difficulty, timeMs)
		}

		betterCount, err := s.store.RankOfTime(tx, difficulty, entry.TimeMs)
		if err != nil {
			return err
		}
		inTopN := betterCount < s.topN

		hasReplay := false
		if improved {
			switch {
			case inTopN && replay != nil:
				boardJSON, stepsJSON := "null", "null"
				if replay.Board != nil {
					boardJSON = string(replay.Board)
				}
				if replay.Steps != nil {
					stepsJSON = string(replay.Steps)
				}
				if err := s.store.SaveReplay(tx, &store.LeaderboardReplay{
					EntryID:   entry.ID,
					BoardJSON: boardJSON,
					StepsJSON: stepsJSON,
				}); err != nil {
					return err
				}
				hasReplay = true
			default:
				if err := s.store.DeleteReplay(tx, entry.ID); err != nil {
					return err
				}
			}
		} else if _, err := s.store.GetReplay(tx, entry.ID); err == nil {
			hasReplay = true
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		result = &Entry{
			ID:         entry.ID,
			UserID:     entry.UserID,
			Difficulty: entry.Difficulty,
			TimeMs:     entry.TimeMs,
			CreatedAt:  entry.CreatedAt,
			HasReplay:  hasReplay,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(difficulty)
	return result, nil
}

// Query implements spec.md §4.5 query(difficulty, limit=10): entries
// ascending by time_ms, ties broken by earlier created_at.
func (s *Service) Query(difficulty string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	if cached, ok := s.readCache(difficulty, limit); ok {
		return cached, nil
	}

	var rows []store.LeaderboardEntry
	err := s.store.Tx(func(tx *gorm.DB) error {
		var err error
		rows, err = s.store.ListLeaderboard(tx, difficulty, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(rows))
	err = s.store.Tx(func(tx *gorm.DB) error {
		for i, r := range rows {
			hasReplay := false
			if _, rerr := s.store.GetReplay(tx, r.ID); rerr == nil {
				hasReplay = true
			} else if !errors.Is(rerr, store.ErrNotFound) {
				return rerr
			}
			out[i] = Entry{
				ID:         r.ID,
				UserID:     r.UserID,
				Difficulty: r.Difficulty,
				TimeMs:     r.TimeMs,
				CreatedAt:  r.CreatedAt,
				HasReplay:  hasReplay,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.writeCache(difficulty, out)
	return out, nil
}

// Replay implements spec.md §4.5 replay(entry_id).
func (s *Service) Replay(entryID int64) (*Replay, error) {
	var r *store.LeaderboardReplay
	err := s.store.Tx(func(tx *gorm.DB) error {
		var err error
		r, err = s.store.GetReplay(tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Replay{Board: json.RawMessage(r.BoardJSON), Steps: json.RawMessage(r.StepsJSON)}, nil
}

func (s *Service) readCache(difficulty string, limit int) ([]Entry, bool) {
	if s.cache == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	raw, err := s.cache.Get(ctx, cacheKey(difficulty)).Result()
	if err != nil {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, true
}

func (s *Service) writeCache(difficulty string, entries []Entry) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := s.cache.Set(ctx, cacheKey(difficulty), data, cacheTTL).Err(); err != nil {
		log.Printf("[LEADERBOARD] cache write failed for %s: %v", difficulty, err)
	}
}

func (s *Service) invalidate(difficulty string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := s.cache.Del(ctx, cacheKey(difficulty)).Err(); err != nil {
		log.Printf("[LEADERBOARD] cache invalidate failed for %s: %v", difficulty, err)
	}
}
