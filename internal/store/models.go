// Package store defines the persisted schema and the transactional
// operations every other component builds on.
package store

import (
	"time"
)

// MatchStatus enumerates a Match's lifecycle state (spec.md §3, §4.3).
type MatchStatus string

const (
	StatusPending  MatchStatus = "pending"
	StatusActive   MatchStatus = "active"
	StatusFinished MatchStatus = "finished"
)

// PlayerResult enumerates a MatchPlayer's outcome once finished.
type PlayerResult string

const (
	ResultNone    PlayerResult = "none"
	ResultWin     PlayerResult = "win"
	ResultLose    PlayerResult = "lose"
	ResultDraw    PlayerResult = "draw"
	ResultForfeit PlayerResult = "forfeit"
)

// StepAction enumerates the kinds of client action a MatchStep records.
type StepAction string

const (
	ActionReveal StepAction = "reveal"
	ActionFlag   StepAction = "flag"
	ActionChord  StepAction = "chord"
)

// User is owned and populated by the out-of-scope registration/auth
// surface; the match service only ever reads it.
type User struct {
	ID        int64     `gorm:"primaryKey"`
	Handle    string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
}

// Match is a shared game session with a fixed board descriptor.
type Match struct {
	ID             int64 `gorm:"primaryKey"`
	Status         MatchStatus `gorm:"size:16;not null;index"`
	Width          int
	Height         int
	Mines          int
	Seed           string `gorm:"size:64;not null"`
	Difficulty     string `gorm:"size:32;not null"`
	SafeStartX     int
	SafeStartY     int
	HostID         int64 `gorm:"index"`
	MaxPlayers     int
	CountdownSecs  int
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
	LastActivityAt time.Time

	Players []MatchPlayer `gorm:"constraint:OnDelete:CASCADE"`
	Steps   []MatchStep   `gorm:"constraint:OnDelete:CASCADE"`
}

// MatchPlayer is one seat's participation in a specific Match.
type MatchPlayer struct {
	ID          int64  `gorm:"primaryKey"`
	MatchID     int64  `gorm:"uniqueIndex:idx_match_user;index"`
	UserID      int64  `gorm:"uniqueIndex:idx_match_user;index"`
	TokenHash   string `gorm:"size:64;not null;index"`
	SeatOrder   int
	Ready       bool
	Result      PlayerResult `gorm:"size:16;not null;default:none"`
	DurationMs  *int64
	StepsCount  int
	FinishedAt  *time.Time
	Rank        *int
	Progress    string `gorm:"type:text"` // opaque JSON blob, see spec.md §9
	JoinedAt    time.Time
}

// MatchStep is one append-only action in a match's total order.
type MatchStep struct {
	ID        int64      `gorm:"primaryKey"`
	MatchID   int64      `gorm:"index:idx_match_seq,unique"`
	PlayerID  int64      `gorm:"index"`
	Seq       int        `gorm:"index:idx_match_seq,unique"`
	Action    StepAction `gorm:"size:16;not null"`
	X         int
	Y         int
	ElapsedMs *int64
	CreatedAt time.Time
}

// LeaderboardEntry is the best recorded time for a user at a difficulty.
type LeaderboardEntry struct {
	ID         int64  `gorm:"primaryKey"`
	UserID     int64  `gorm:"uniqueIndex:idx_user_difficulty"`
	Difficulty string `gorm:"size:32;uniqueIndex:idx_user_difficulty"`
	TimeMs     int64
	CreatedAt  time.Time
}

// LeaderboardReplay stores the replay payload for a top-N entry.
type LeaderboardReplay struct {
	EntryID    int64  `gorm:"primaryKey"`
	BoardJSON  string `gorm:"type:text"`
	StepsJSON  string `gorm:"type:text"`
}

// AllModels lists every model for AutoMigrate / migration generation.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Match{},
		&MatchPlayer{},
		&MatchStep{},
		&LeaderboardEntry{},
		&LeaderboardReplay{},
	}
}
