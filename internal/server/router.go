// Package server exposes the debate engine over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openagora/agora/backend/internal/auth"
	"github.com/openagora/agora/backend/internal/debates"
	"github.com/openagora/agora/backend/internal/scoreboard"
	"go.uber.org/zap"
)

const (
	userHandleContextKey = "agora_user_handle"
	userNameContextKey   = "agora_user_name"
)

var (
	errMissingDebatesService    = errors.New("debates service dependency required")
	errMissingScoreboardService = errors.New("scoreboard service dependency required")
	errMissingTokenManager      = errors.New("token manager dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates the bearer tokens carrying the
// caller's handle and display name.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, identity auth.Identity) (string, int64, error)
	ValidateToken(token string) (auth.Identity, error)
}

// Dependencies wires the HTTP layer to the engine.
type Dependencies struct {
	Debates    *debates.Service
	Scoreboard *scoreboard.Service
	Tokens     SessionTokenManager
	Logger     *zap.Logger
}

// NewHTTPHandler builds the gin router for the full API surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Debates == nil {
		return nil, errMissingDebatesService
	}
	if deps.Scoreboard == nil {
		return nil, errMissingScoreboardService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		debates:    deps.Debates,
		scoreboard: deps.Scoreboard,
		tokens:     deps.Tokens,
		logger:     logger,
	}

	router.POST("/auth/session", handler.handleMintSession)
	router.GET("/debates", handler.handleListDebates)
	router.GET("/debates/:id", handler.handleGetDebate)
	router.GET("/winners", handler.handleWinners)
	router.GET("/leaderboard", handler.handleLeaderboard)
	router.GET("/profile", handler.handleProfile)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/debates", handler.handleCreateDebate)
	protected.POST("/debates/:id/join", handler.handleJoinDebate)
	protected.POST("/debates/:id/close", handler.handleCloseDebate)
	protected.POST("/debates/:id/arguments", handler.handlePostArgument)
	protected.PUT("/debates/:id/arguments/:argumentId", handler.handleEditArgument)
	protected.DELETE("/debates/:id/arguments/:argumentId", handler.handleDeleteArgument)
	protected.POST("/debates/:id/arguments/:argumentId/vote", handler.handleVoteArgument)

	return router, nil
}

type httpHandler struct {
	debates    *debates.Service
	scoreboard *scoreboard.Service
	tokens     SessionTokenManager
	logger     *zap.Logger
}

type sessionRequestPayload struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleMintSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Handle) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), auth.Identity{
		Handle:      request.Handle,
		DisplayName: request.DisplayName,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type createDebatePayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Banner      string   `json:"banner"`
	Duration    int      `json:"duration"`
}

func (h *httpHandler) handleCreateDebate(c *gin.Context) {
	var request createDebatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	debate, err := h.debates.Create(c.Request.Context(), debates.CreateRequest{
		Title:         request.Title,
		Description:   request.Description,
		Tags:          request.Tags,
		Category:      request.Category,
		Banner:        request.Banner,
		DurationHours: request.Duration,
		CreatedBy:     c.GetString(userHandleContextKey),
	})
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusCreated, debate)
}

func (h *httpHandler) handleListDebates(c *gin.Context) {
	filter := debates.QueryFilter{}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}
	if timeRange, err := scoreboard.ParseTimeRange(c.Query("time")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_time_filter"})
		return
	} else if cutoff := timeRange.Cutoff(time.Now().UTC()); !cutoff.IsZero() {
		filter.CreatedAfter = cutoff
	}

	results, err := h.debates.List(c.Request.Context(), filter)
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *httpHandler) handleGetDebate(c *gin.Context) {
	debate, err := h.debates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

type joinDebatePayload struct {
	Side string `json:"side"`
}

func (h *httpHandler) handleJoinDebate(c *gin.Context) {
	var request joinDebatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	side, err := debates.ParseSide(request.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_side"})
		return
	}

	debate, err := h.debates.Join(c.Request.Context(), c.Param("id"), c.GetString(userHandleContextKey), side)
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

type argumentPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handlePostArgument(c *gin.Context) {
	var request argumentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	debate, err := h.debates.PostArgument(
		c.Request.Context(),
		c.Param("id"),
		c.GetString(userHandleContextKey),
		c.GetString(userNameContextKey),
		request.Content,
	)
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

func (h *httpHandler) handleEditArgument(c *gin.Context) {
	var request argumentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	debate, err := h.debates.EditArgument(
		c.Request.Context(),
		c.Param("id"),
		c.Param("argumentId"),
		c.GetString(userHandleContextKey),
		request.Content,
	)
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

func (h *httpHandler) handleDeleteArgument(c *gin.Context) {
	debate, err := h.debates.DeleteArgument(
		c.Request.Context(),
		c.Param("id"),
		c.Param("argumentId"),
		c.GetString(userHandleContextKey),
	)
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

func (h *httpHandler) handleVoteArgument(c *gin.Context) {
	debate, err := h.debates.Vote(
		c.Request.Context(),
		c.Param("id"),
		c.Param("argumentId"),
		c.GetString(userHandleContextKey),
	)
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

func (h *httpHandler) handleCloseDebate(c *gin.Context) {
	debate, err := h.debates.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}

func (h *httpHandler) handleWinners(c *gin.Context) {
	timeRange, err := scoreboard.ParseTimeRange(c.Query("time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_time_filter"})
		return
	}

	winners, err := h.scoreboard.Winners(c.Request.Context(), timeRange)
	if err != nil {
		h.logger.Error("failed to list winners", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "winners_failed"})
		return
	}
	c.JSON(http.StatusOK, winners)
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	timeRange, err := scoreboard.ParseTimeRange(c.Query("time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_time_filter"})
		return
	}

	entries, err := h.scoreboard.Leaderboard(c.Request.Context(), timeRange)
	if err != nil {
		h.logger.Error("failed to build leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard_failed"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	userHandle := strings.TrimSpace(c.Query("user"))
	if userHandle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User ID is required"})
		return
	}

	profile, err := h.scoreboard.UserProfile(c.Request.Context(), userHandle)
	if err != nil {
		h.logger.Error("failed to build profile", zap.Error(err), zap.String("user", userHandle))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_failed"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userHandleContextKey, identity.Handle)
	c.Set(userNameContextKey, identity.DisplayName)
	c.Next()
}

// respondRejection maps a debates rejection onto an HTTP status class while
// preserving the user-visible message and machine-readable code.
func (h *httpHandler) respondRejection(c *gin.Context, err error) {
	rejection := &debates.Rejection{}
	if !errors.As(err, &rejection) {
		h.logger.Error("unexpected service failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	status := http.StatusBadRequest
	switch rejection.Kind() {
	case debates.KindNotFound:
		status = http.StatusNotFound
	case debates.KindForbidden:
		status = http.StatusForbidden
	case debates.KindStorage:
		status = http.StatusInternalServerError
		h.logger.Error("storage failure", zap.Error(rejection))
	}

	c.JSON(status, gin.H{"message": rejection.Message(), "code": rejection.Code()})
}
