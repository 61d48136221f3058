package match

import (
	"sort"
	"time"

	"github.com/blameazu/minesweeper/internal/store"
)

// rankable is the subset of MatchPlayer + derived fields the ranking
// comparator needs (spec.md §4.3.2).
type rankable struct {
	player   *store.MatchPlayer
	revealed int
}

// computeRanks assigns Rank 1..N to every player per spec.md §4.3.2 and
// returns the players in rank order. Revealed counts are compared between
// players only, never against the match's total non-mine cell count.
func computeRanks(players []store.MatchPlayer, stepsByPlayer map[int64][]stepView) []store.MatchPlayer {
	useProgress := true
	revealedOf := make(map[int64]int, len(players))

	for i := range players {
		p := &players[i]
		n, ok := revealedNonMineCount(p.Progress)
		if !ok {
			useProgress = false
			break
		}
		revealedOf[p.ID] = n
	}
	if !useProgress {
		for i := range players {
			p := &players[i]
			revealedOf[p.ID] = revealedFromSteps(stepsByPlayer[p.ID])
		}
	}

	ranked := make([]rankable, len(players))
	for i := range players {
		ranked[i] = rankable{player: &players[i], revealed: revealedOf[players[i].ID]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(ranked[j], ranked[i]) // descending: better first
	})

	for i := range ranked {
		rank := i + 1
		ranked[i].player.Rank = &rank
	}

	out := make([]store.MatchPlayer, len(ranked))
	for i, r := range ranked {
		out[i] = *r.player
	}
	return out
}

// rankLess reports whether a ranks strictly below b ("worse"), i.e.
// whether b should sort before a in descending (better-first) order.
// Implements the ordering key from spec.md §4.3.2:
//  1. result == win beats anything else
//  2. among non-wins, greater revealed-non-mine count wins
//  3. smaller duration_ms wins
//  4. smaller steps_count wins
//  5. earlier finished_at wins
//
// A forfeit result is always last regardless of revealed count.
func rankLess(a, b rankable) bool {
	aForfeit := a.player.Result == store.ResultForfeit
	bForfeit := b.player.Result == store.ResultForfeit
	if aForfeit != bForfeit {
		return aForfeit // a is worse iff a is the forfeiting one
	}

	aWin := a.player.Result == store.ResultWin
	bWin := b.player.Result == store.ResultWin
	if aWin != bWin {
		return bWin // b wins iff b is the winner and a isn't
	}

	if !aWin && !bWin && a.revealed != b.revealed {
		return a.revealed < b.revealed
	}

	aDur, bDur := durationOf(a.player), durationOf(b.player)
	if aDur != bDur {
		return aDur > bDur
	}

	if a.player.StepsCount != b.player.StepsCount {
		return a.player.StepsCount > b.player.StepsCount
	}

	return finishedAtOf(a.player).After(finishedAtOf(b.player))
}

func durationOf(p *store.MatchPlayer) int64 {
	if p.DurationMs == nil {
		return int64(^uint64(0) >> 1) // treat missing duration as worst-case
	}
	return *p.DurationMs
}

func finishedAtOf(p *store.MatchPlayer) time.Time {
	if p.FinishedAt == nil {
		return time.Unix(1<<62, 0)
	}
	return *p.FinishedAt
}
