package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blameazu/minesweeper/internal/db"
)

// ErrNotFound is returned by lookups that find no row.
var ErrNotFound = errors.New("store: not found")

// Store is the durable persistence component (spec.md §2 "Store"). It owns
// the transactional boundary: every multi-step mutation in the service
// runs inside a single *gorm.DB transaction obtained from Tx.
type Store struct {
	db *db.DB
}

// New wraps an opened DB as a Store.
func New(database *db.DB) *Store {
	return &Store{db: database}
}

// Migrate creates/updates tables for every owned model. It is the schema
// path config.InitializeServices runs at every boot, and the one the
// in-memory SQLite test harness uses.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(AllModels()...)
}

// Tx runs fn inside a single database transaction, committing on success
// and rolling back if fn returns an error — spec.md §7: "partially
// applied transactions must roll back".
func (s *Store) Tx(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

// LockMatch loads a Match row under SELECT ... FOR UPDATE so every
// transition and step insertion for this match is serialized (spec.md §5).
func (s *Store) LockMatch(tx *gorm.DB, id int64) (*Match, error) {
	var m Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatch loads a Match without locking (read paths).
func (s *Store) GetMatch(tx *gorm.DB, id int64) (*Match, error) {
	var m Match
	err := tx.First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) CreateMatch(tx *gorm.DB, m *Match) error {
	return tx.Create(m).Error
}

func (s *Store) SaveMatch(tx *gorm.DB, m *Match) error {
	return tx.Save(m).Error
}

func (s *Store) DeleteMatch(tx *gorm.DB, id int64) error {
	return tx.Select("Players", "Steps").Delete(&Match{ID: id}).Error
}

func (s *Store) CreatePlayer(tx *gorm.DB, p *MatchPlayer) error {
	return tx.Create(p).Error
}

func (s *Store) SavePlayer(tx *gorm.DB, p *MatchPlayer) error {
	return tx.Save(p).Error
}

func (s *Store) DeletePlayer(tx *gorm.DB, id int64) error {
	return tx.Delete(&MatchPlayer{ID: id}).Error
}

func (s *Store) GetPlayer(tx *gorm.DB, id int64) (*MatchPlayer, error) {
	var p MatchPlayer
	err := tx.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayerByToken finds the seat in matchID whose token hash matches.
func (s *Store) GetPlayerByToken(tx *gorm.DB, matchID int64, tokenHash string) (*MatchPlayer, error) {
	var p MatchPlayer
	err := tx.Where("match_id = ? AND token_hash = ?", matchID, tokenHash).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlayers returns every seat in a match ordered by join order (the
// order host re-election relies on).
func (s *Store) ListPlayers(tx *gorm.DB, matchID int64) ([]MatchPlayer, error) {
	var players []MatchPlayer
	err := tx.Where("match_id = ?", matchID).Order("joined_at ASC, id ASC").Find(&players).Error
	return players, err
}

// ActiveSessionForUser implements Session Guard's sole predicate:
// any MatchPlayer belonging to a Match whose status != finished.
func (s *Store) ActiveSessionForUser(tx *gorm.DB, userID int64) (*MatchPlayer, *Match, error) {
	var p MatchPlayer
	err := tx.
		Joins("JOIN matches ON matches.id = match_players.match_id").
		Where("match_players.user_id = ? AND matches.status <> ?", userID, StatusFinished).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	m, err := s.GetMatch(tx, p.MatchID)
	if err != nil {
		return nil, nil, err
	}
	return &p, m, nil
}

// NextSeq allocates the next step sequence number for a match. The caller
// MUST already hold the match's row lock (via LockMatch) in the same
// transaction — this is what makes max(seq)+1 safe under contention
// (spec.md §4.3.1, §9).
func (s *Store) NextSeq(tx *gorm.DB, matchID int64) (int, error) {
	var max int
	err := tx.Model(&MatchStep{}).Where("match_id = ?", matchID).
		Select("COALESCE(MAX(seq), 0)").Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("store: next seq: %w", err)
	}
	return max + 1, nil
}

func (s *Store) InsertStep(tx *gorm.DB, step *MatchStep) error {
	return tx.Create(step).Error
}

// ListSteps returns the full log of a match ordered by seq (spec.md §4.4).
func (s *Store) ListSteps(tx *gorm.DB, matchID int64) ([]MatchStep, error) {
	var steps []MatchStep
	err := tx.Where("match_id = ?", matchID).Order("seq ASC").Find(&steps).Error
	return steps, err
}

// ListRecentMatches returns the last `limit` matches by creation time.
func (s *Store) ListRecentMatches(tx *gorm.DB, limit int) ([]Match, error) {
	var matches []Match
	err := tx.Order("created_at DESC").Limit(limit).Find(&matches).Error
	return matches, err
}

func (s *Store) GetUser(tx *gorm.DB, id int64) (*User, error) {
	var u User
	err := tx.First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetLeaderboardEntry returns the existing best entry for a user+difficulty,
// if any.
func (s *Store) GetLeaderboardEntry(tx *gorm.DB, userID int64, difficulty string) (*LeaderboardEntry, error) {
	var e LeaderboardEntry
	err := tx.Where("user_id = ? AND difficulty = ?", userID, difficulty).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) SaveLeaderboardEntry(tx *gorm.DB, e *LeaderboardEntry) error {
	return tx.Save(e).Error
}

// ListLeaderboard returns the top `limit` entries for a difficulty,
// ascending by time_ms then by created_at (spec.md §4.5).
func (s *Store) ListLeaderboard(tx *gorm.DB, difficulty string, limit int) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := tx.Where("difficulty = ?", difficulty).
		Order("time_ms ASC, created_at ASC").
		Limit(limit).Find(&entries).Error
	return entries, err
}

// RankOfTime returns how many existing entries for this difficulty are
// strictly better than timeMs (0-indexed rank position once inserted).
func (s *Store) RankOfTime(tx *gorm.DB, difficulty string, timeMs int64) (int, error) {
	var count int64
	err := tx.Model(&LeaderboardEntry{}).
		Where("difficulty = ? AND time_ms < ?", difficulty, timeMs).
		Count(&count).Error
	return int(count), err
}

func (s *Store) SaveReplay(tx *gorm.DB, r *LeaderboardReplay) error {
	return tx.Save(r).Error
}

func (s *Store) GetReplay(tx *gorm.DB, entryID int64) (*LeaderboardReplay, error) {
	var r LeaderboardReplay
	err := tx.First(&r, "entry_id = ?", entryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) DeleteReplay(tx *gorm.DB, entryID int64) error {
	return tx.Delete(&LeaderboardReplay{EntryID: entryID}).Error
}
