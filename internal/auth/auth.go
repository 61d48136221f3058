// Package auth is the Identity component (spec.md §2, §4 "Identity"). It
// maps an opaque bearer token to a stable user identity. Token *issuance*
// (register/login) is explicitly out of scope (spec.md §1) — callers
// arrive already holding a token minted by that external surface. The
// service only calls the verifying side; GenerateToken signs with the same
// key but nothing in the service calls it.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/blameazu/minesweeper/internal/store"
)

// ErrInvalidToken is returned for any bearer token that doesn't verify.
var ErrInvalidToken = errors.New("auth: invalid token")

// Service verifies bearer tokens against a shared signing secret. It also
// retains password hashing so the Identity surface is complete even
// though the in-scope match core never calls HashPassword/CheckPassword —
// those exist only for the (out-of-scope) issuer to share this package.
type Service struct {
	jwtSecret []byte
}

func NewService(secret string) *Service {
	return &Service{jwtSecret: []byte(secret)}
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken mints a bearer token for userID. Exposed for tests and for
// the out-of-scope issuer to reuse this package's signing key; the match
// core never calls it.
func (s *Service) GenerateToken(userID int64, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(expiresIn).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// ValidateToken verifies a bearer token and returns the user id it names.
func (s *Service) ValidateToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	uidFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int64(uidFloat), nil
}

// Identity resolves a verified bearer token into the caller's stable
// identity, consulting the Store for the handle.
type Identity struct {
	svc   *Service
	store *store.Store
}

func NewIdentity(svc *Service, st *store.Store) *Identity {
	return &Identity{svc: svc, store: st}
}

// User is the resolved identity of an authenticated caller.
type User struct {
	ID     int64
	Handle string
}

// Resolve verifies tokenString and loads the matching User row.
func (id *Identity) Resolve(tokenString string) (*User, error) {
	userID, err := id.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var u *store.User
	err = id.store.Tx(func(tx *gorm.DB) error {
		var txErr error
		u, txErr = id.store.GetUser(tx, userID)
		return txErr
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	return &User{ID: u.ID, Handle: u.Handle}, nil
}

// NewSeatToken generates a per-seat player token (spec.md §9) and returns
// both the raw token (handed to the caller once) and its stored hash
// (spec.md: "Keep tokens in the MatchPlayer row (hashed is acceptable)").
// The raw value is a UUIDv4, opaque to clients either way.
func NewSeatToken() (raw string, hash string) {
	raw = uuid.NewString()
	return raw, HashToken(raw)
}

// HashToken hashes a raw seat token for comparison/storage.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
