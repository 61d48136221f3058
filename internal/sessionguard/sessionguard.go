// Package sessionguard enforces the "one active session per user"
// invariant (spec.md §4.2): a user may hold at most one non-finished
// MatchPlayer seat across the whole system.
package sessionguard

import (
	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/store"
)

// Guard exposes the single predicate active_session_for described in
// spec.md §4.2.
type Guard struct {
	store *store.Store
}

func New(st *store.Store) *Guard {
	return &Guard{store: st}
}

// ActiveSession returns the caller's current MatchPlayer and owning Match,
// or (nil, nil) if the user holds no unfinished seat anywhere.
func (g *Guard) ActiveSession(tx *gorm.DB, userID int64) (*store.MatchPlayer, *store.Match, error) {
	return g.store.ActiveSessionForUser(tx, userID)
}

// Busy reports whether the user already has a non-finished seat; it is
// the direct predicate create_match/join_match consult before admitting
// a new seat (spec.md §4.2: "create_match and join_match fail with
// AlreadyInMatch if the predicate returns a row").
func (g *Guard) Busy(tx *gorm.DB, userID int64) (bool, error) {
	p, _, err := g.ActiveSession(tx, userID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}
