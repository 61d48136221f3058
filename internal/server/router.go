// Package server assembles the gin router from internal/server/handlers
// and internal/server/middleware, mirroring the teacher's
// cmd/server/server.go Server/setupRoutes shape.
package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/blameazu/minesweeper/internal/config"
	"github.com/blameazu/minesweeper/internal/server/handlers"
	"github.com/blameazu/minesweeper/internal/server/middleware"
)

// NewRouter builds the gin.Engine for the Match Service: public read
// routes, bearer-auth-gated user-scoped routes, and seat-token-gated
// match-mutation routes (SPEC_FULL.md §6 route table).
func NewRouter(cfg *config.AppConfig) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if cfg.CORSOrigins == "*" {
				return true
			}
			for _, o := range strings.Split(cfg.CORSOrigins, ",") {
				if strings.TrimSpace(o) == origin {
					return true
				}
			}
			return false
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig)
	r.Use(limiter.Gin())

	matchHandlers := &handlers.Matches{Engine: cfg.Engine, Views: cfg.Views}
	lbHandlers := &handlers.Leaderboard{Service: cfg.LeaderboardSvc}
	requireAuth := middleware.RequireAuth(cfg.Identity)

	api := r.Group("/api")
	{
		api.POST("/matches", requireAuth, matchHandlers.Create)
		api.POST("/matches/:id/join", requireAuth, matchHandlers.Join)
		api.POST("/matches/:id/ready", matchHandlers.SetReady)
		api.POST("/matches/:id/start", matchHandlers.Start)
		api.POST("/matches/:id/steps", matchHandlers.SendStep)
		api.POST("/matches/:id/finish", matchHandlers.Finish)
		api.POST("/matches/:id/leave", matchHandlers.Leave)
		api.DELETE("/matches/:id", matchHandlers.Leave)
		api.GET("/matches/:id", matchHandlers.State)
		api.GET("/matches/:id/steps", matchHandlers.Steps)
		api.GET("/matches", matchHandlers.Recent)
		api.GET("/matches/active", requireAuth, matchHandlers.Active)

		api.POST("/leaderboard", requireAuth, lbHandlers.Submit)
		api.GET("/leaderboard", lbHandlers.Query)
		api.GET("/leaderboard/:entry_id/replay", lbHandlers.Replay)
	}

	return r
}
