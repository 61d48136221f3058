// Package config aggregates the service's dependencies and env-var
// driven tunables, mirroring the teacher's
// internal/server/config.AppConfig/InitializeServices/Cleanup shape.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/blameazu/minesweeper/internal/auth"
	"github.com/blameazu/minesweeper/internal/db"
	"github.com/blameazu/minesweeper/internal/leaderboard"
	"github.com/blameazu/minesweeper/internal/locks"
	"github.com/blameazu/minesweeper/internal/match"
	"github.com/blameazu/minesweeper/internal/query"
	redisClient "github.com/blameazu/minesweeper/internal/redis"
	"github.com/blameazu/minesweeper/internal/sessionguard"
	"github.com/blameazu/minesweeper/internal/store"
)

// GetEnv returns an environment variable value or a fallback (spec.md §6
// config list, SPEC_FULL.md §6).
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[CONFIG] invalid int for %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return n
}

// AppConfig holds every wired service dependency.
type AppConfig struct {
	Database *db.DB
	Redis    *redisClient.Client // nil when REDIS_ADDR is unset

	AuthService      *auth.Service
	Identity         *auth.Identity
	SessionGuard     *sessionguard.Guard
	Engine           *match.Engine
	Views            *query.Views
	LeaderboardSvc   *leaderboard.Service

	CORSOrigins        string
	JWTExpiresMinutes  int
	Port               string
}

// Tunables is the set of engine/leaderboard knobs enumerated in
// SPEC_FULL.md §6.
type Tunables struct {
	IdleMinutes        int
	PreStartDelaySecs  int
	CountdownSecs      int
	LeaderboardTopN    int
	MaxPlayersPerMatch int
}

// TunablesFromEnv reads every SPEC_FULL.md §6 tunable, applying the
// documented defaults.
func TunablesFromEnv() Tunables {
	return Tunables{
		IdleMinutes:        getEnvInt("IDLE_MINUTES", 10),
		PreStartDelaySecs:  getEnvInt("PRE_START_DELAY_SECS", 3),
		CountdownSecs:      getEnvInt("COUNTDOWN_SECS", 300),
		LeaderboardTopN:    getEnvInt("LEADERBOARD_TOP_N", 10),
		MaxPlayersPerMatch: getEnvInt("MAX_PLAYERS_PER_MATCH", 2),
	}
}

// InitializeServices wires every component together: Store -> Identity,
// Session Guard, Match Engine, Query Views, Leaderboard, with the
// optional Redis-backed Locker and leaderboard cache dialed in only when
// REDIS_ADDR is configured (SPEC_FULL.md §5, §10).
func InitializeServices(dbConfig db.Config, redisConfig redisClient.Config, jwtSecret string, tunables Tunables) (*AppConfig, error) {
	database, err := db.New(dbConfig)
	if err != nil {
		return nil, err
	}

	st := store.New(database)
	if err := st.Migrate(); err != nil {
		return nil, err
	}

	var (
		redisCli *redisClient.Client
		locker   locks.Locker = locks.NoopLocker{}
	)
	if redisConfig.Addr != "" {
		redisCli, err = redisClient.New(redisConfig)
		if err != nil {
			return nil, err
		}
		locker = locks.NewManager(redisCli.Client)
	} else {
		log.Println("[CONFIG] REDIS_ADDR unset: running single-process, row-lock-only")
	}

	authSvc := auth.NewService(jwtSecret)
	identity := auth.NewIdentity(authSvc, st)
	guard := sessionguard.New(st)
	engine := match.New(st, guard, locker, match.Config{
		IdleMinutes:          tunables.IdleMinutes,
		PreStartDelaySecs:    tunables.PreStartDelaySecs,
		DefaultCountdownSecs: tunables.CountdownSecs,
		MaxPlayersPerMatch:   tunables.MaxPlayersPerMatch,
	})
	views := query.New(st, engine)
	lb := leaderboard.New(st, redisCli, tunables.LeaderboardTopN)

	return &AppConfig{
		Database:          database,
		Redis:             redisCli,
		AuthService:        authSvc,
		Identity:           identity,
		SessionGuard:       guard,
		Engine:             engine,
		Views:              views,
		LeaderboardSvc:     lb,
		CORSOrigins:        GetEnv("CORS_ORIGINS", "*"),
		JWTExpiresMinutes:  getEnvInt("JWT_EXPIRES_MINUTES", 60),
		Port:               GetEnv("PORT", "8080"),
	}, nil
}

// Cleanup releases resources on shutdown.
func (cfg *AppConfig) Cleanup() {
	log.Println("[CONFIG] cleaning up resources")
	if cfg.Redis != nil {
		if err := cfg.Redis.Close(); err != nil {
			log.Printf("[CONFIG] error closing redis: %v", err)
		}
	}
}
