// Package handlers implements the gin HTTP handlers for the routes
// enumerated in SPEC_FULL.md §6, translating match.Error.Kind to HTTP
// status codes the way the teacher's handlers translate service errors
// to gin.H{"error": ...} responses.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blameazu/minesweeper/internal/boardspec"
	"github.com/blameazu/minesweeper/internal/match"
	"github.com/blameazu/minesweeper/internal/query"
	"github.com/blameazu/minesweeper/internal/server/middleware"
	"github.com/blameazu/minesweeper/internal/store"
	"github.com/blameazu/minesweeper/internal/validation"
)

// joinEnvelope is the response shape of both create and join:
// {match_id, player_id, player_token, board, status,
// countdown_secs}. board is the same boardspec.Envelope the state view
// emits, so "create -> state returns a match whose board matches the
// create response byte-for-byte" (spec.md §8) holds by construction.
type joinEnvelope struct {
	MatchID       int64               `json:"match_id"`
	PlayerID      int64               `json:"player_id"`
	PlayerToken   string              `json:"player_token"`
	Board         boardspec.Envelope  `json:"board"`
	Status        store.MatchStatus  `json:"status"`
	CountdownSecs int                 `json:"countdown_secs"`
}

func newJoinEnvelope(mt *store.Match, p *store.MatchPlayer, token string) joinEnvelope {
	return joinEnvelope{
		MatchID:     mt.ID,
		PlayerID:    p.ID,
		PlayerToken: token,
		Board: boardspec.Envelope{
			Width:      mt.Width,
			Height:     mt.Height,
			Mines:      mt.Mines,
			Seed:       mt.Seed,
			Difficulty: mt.Difficulty,
			SafeStart:  boardspec.Cell{X: mt.SafeStartX, Y: mt.SafeStartY},
		},
		Status:        mt.Status,
		CountdownSecs: mt.CountdownSecs,
	}
}

// Matches groups the match-lifecycle handlers over a shared Engine/Views pair.
type Matches struct {
	Engine *match.Engine
	Views  *query.Views
}

// statusFor maps match.Error.Kind to an HTTP status code (SPEC_FULL.md §7).
func statusFor(kind match.Kind) int {
	switch kind {
	case match.KindUnauthorized:
		return http.StatusUnauthorized
	case match.KindNotFound:
		return http.StatusNotFound
	case match.KindBadRequest:
		return http.StatusBadRequest
	case match.KindInvalidState, match.KindAlreadyInMatch, match.KindConflict:
		return http.StatusConflict
	case match.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the HTTP layer's uniform error envelope,
// logging and masking anything that isn't a tagged match.Error (SPEC_FULL.md §7).
func writeError(c *gin.Context, err error) {
	if me, ok := match.AsMatchError(err); ok {
		c.JSON(statusFor(me.Kind), gin.H{"error": me.Msg})
		return
	}
	logInternal(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// createMatchRequest is the body of POST /api/matches.
type createMatchRequest struct {
	Difficulty string `json:"difficulty"`
}

func (m *Matches) Create(c *gin.Context) {
	user := middleware.CallerUser(c)
	var req createMatchRequest
	_ = c.ShouldBindJSON(&req)
	if req.Difficulty == "" {
		req.Difficulty = "beginner"
	}
	if err := validation.ValidateDifficulty(req.Difficulty); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mt, p, token, err := m.Engine.CreateMatch(user.ID, req.Difficulty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJoinEnvelope(mt, p, token))
}

func (m *Matches) Join(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user := middleware.CallerUser(c)

	mt, p, token, err := m.Engine.JoinMatch(id, user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJoinEnvelope(mt, p, token))
}

// seatRequest is shared by every body-carries-player_token operation.
type seatRequest struct {
	PlayerToken string `json:"player_token"`
}

func seatTokenFromBody(c *gin.Context) (string, bool) {
	var req seatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_token is required"})
		return "", false
	}
	return req.PlayerToken, true
}

type readyRequest struct {
	PlayerToken string `json:"player_token"`
	Ready       bool   `json:"ready"`
}

func (m *Matches) SetReady(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req readyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_token is required"})
		return
	}

	if err := m.Engine.SetReady(id, req.PlayerToken, req.Ready); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (m *Matches) Start(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	token, ok := seatTokenFromBody(c)
	if !ok {
		return
	}

	mt, err := m.Engine.StartMatch(id, token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         mt.Status,
		"started_at":     mt.StartedAt,
		"countdown_secs": mt.CountdownSecs,
	})
}

type stepRequest struct {
	PlayerToken string `json:"player_token"`
	Action      string `json:"action"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	ElapsedMs   *int64 `json:"elapsed_ms,omitempty"`
}

func (m *Matches) SendStep(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_token is required"})
		return
	}
	if err := validation.ValidateStepAction(req.Action); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seq, err := m.Engine.SendStep(id, req.PlayerToken, match.StepInput{
		Action:    store.StepAction(req.Action),
		X:         req.X,
		Y:         req.Y,
		ElapsedMs: req.ElapsedMs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seq": seq})
}

type finishRequest struct {
	PlayerToken string `json:"player_token"`
	Outcome     string `json:"outcome"`
	DurationMs  *int64 `json:"duration_ms,omitempty"`
	StepsCount  *int   `json:"steps_count,omitempty"`
	Progress    string `json:"progress,omitempty"`
}

func (m *Matches) Finish(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req finishRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_token is required"})
		return
	}
	if err := validation.ValidateFinishOutcome(req.Outcome); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mt, rank, err := m.Engine.Finish(id, req.PlayerToken, match.FinishInput{
		Outcome:    store.PlayerResult(req.Outcome),
		DurationMs: req.DurationMs,
		StepsCount: req.StepsCount,
		Progress:   req.Progress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": mt.Status, "rank": rank})
}

func (m *Matches) Leave(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	token, ok := seatTokenFromBody(c)
	if !ok {
		return
	}

	if err := m.Engine.Leave(id, token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (m *Matches) State(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var callerUserID int64 = -1
	if token := c.Query("player_token"); token != "" {
		if p, err := m.Engine.SeatOwner(id, token); err == nil {
			callerUserID = p.UserID
		}
	}

	state, err := m.Views.MatchState(id, callerUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (m *Matches) Steps(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	steps, err := m.Views.MatchSteps(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

func (m *Matches) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	limit = validation.ValidateLimit(limit, 10, 100)

	matches, err := m.Views.RecentMatches(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (m *Matches) Active(c *gin.Context) {
	user := middleware.CallerUser(c)
	session, err := m.Views.ActiveSession(user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
