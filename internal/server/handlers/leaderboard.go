package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blameazu/minesweeper/internal/leaderboard"
	"github.com/blameazu/minesweeper/internal/server/middleware"
	"github.com/blameazu/minesweeper/internal/validation"
)

// Leaderboard groups the leaderboard handlers over a shared Service.
type Leaderboard struct {
	Service *leaderboard.Service
}

type submitRequest struct {
	Difficulty string          `json:"difficulty"`
	TimeMs     int64           `json:"time_ms"`
	Replay     *replayRequest  `json:"replay,omitempty"`
}

type replayRequest struct {
	Board json.RawMessage `json:"board"`
	Steps json.RawMessage `json:"steps"`
}

func (l *Leaderboard) Submit(c *gin.Context) {
	user := middleware.CallerUser(c)
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validation.ValidateDifficulty(req.Difficulty); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TimeMs <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time_ms must be positive"})
		return
	}

	var replay *leaderboard.Replay
	if req.Replay != nil {
		replay = &leaderboard.Replay{Board: req.Replay.Board, Steps: req.Replay.Steps}
	}

	entry, err := l.Service.Submit(user.ID, req.Difficulty, req.TimeMs, replay)
	if err != nil {
		logInternal(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (l *Leaderboard) Query(c *gin.Context) {
	difficulty := c.Query("difficulty")
	if err := validation.ValidateDifficulty(difficulty); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	limit = validation.ValidateLimit(limit, 10, 100)

	entries, err := l.Service.Query(difficulty, limit)
	if err != nil {
		logInternal(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (l *Leaderboard) Replay(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("entry_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry_id"})
		return
	}

	r, err := l.Service.Replay(entryID)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "replay not found"})
			return
		}
		logInternal(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, r)
}
