package match

import (
	"time"

	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/store"
)

// evaluateTimeout implements spec.md §4.3.3: on every read/write that
// touches a match, check idle and countdown deadlines and force-finish
// if either has passed. Caller already holds the match row lock. Returns
// whether the match transitioned to finished as a result.
func (e *Engine) evaluateTimeout(tx *gorm.DB, match *store.Match) (bool, error) {
	if match.Status != store.StatusActive {
		return false, nil
	}

	now := e.now()
	idleDeadline := match.LastActivityAt.Add(time.Duration(e.cfg.IdleMinutes) * time.Minute)
	idleExpired := now.After(idleDeadline)

	countdownExpired := false
	if match.StartedAt != nil {
		countdownDeadline := match.StartedAt.Add(time.Duration(match.CountdownSecs) * time.Second)
		countdownExpired = now.After(countdownDeadline)
	}

	if !idleExpired && !countdownExpired {
		return false, nil
	}

	players, err := e.store.ListPlayers(tx, match.ID)
	if err != nil {
		return false, err
	}

	for i := range players {
		if players[i].FinishedAt == nil {
			players[i].Result = store.ResultForfeit
			players[i].FinishedAt = &now
		}
	}

	if err := e.finishMatch(tx, match, players); err != nil {
		return false, err
	}
	return true, nil
}
