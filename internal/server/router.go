package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/reports"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "trustrace_user_id"
	authTokenHeader  = "x-auth-token"
	bearerPrefix     = "Bearer "
	healthMessage    = "TrustTrace API is running"
)

var (
	errMissingTokenResolver = errors.New("token resolver dependency required")
	errMissingUserResolver  = errors.New("user resolver dependency required")
	errMissingReports       = errors.New("reports service dependency required")
)

// TokenResolver turns a bearer token into the identity it was issued for.
type TokenResolver interface {
	ResolveToken(token string) (auth.Identity, error)
}

// UserResolver maps a resolved identity to a stored user id.
type UserResolver interface {
	EnsureUser(ctx context.Context, identity auth.Identity) (string, error)
}

// Dependencies wires the HTTP layer.
type Dependencies struct {
	Tokens         TokenResolver
	Users          UserResolver
	Reports        *reports.Service
	Metrics        *metrics.Manager
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the TrustTrace API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenResolver
	}
	if deps.Users == nil {
		return nil, errMissingUserResolver
	}
	if deps.Reports == nil {
		return nil, errMissingReports
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	// entity urls travel percent-encoded inside a single path segment
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		tokens:  deps.Tokens,
		users:   deps.Users,
		reports: deps.Reports,
		logger:  logger,
	}

	router.GET("/", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	reportRoutes := router.Group("/api/reports")
	reportRoutes.GET("/recent/feed", handler.handleRecentFeed)
	reportRoutes.GET("/snapshot/:url", handler.handleSnapshot)
	reportRoutes.GET("/advice", handler.handleAdvice)
	reportRoutes.GET("/dashboard", handler.handleDashboard)
	reportRoutes.GET("/trace/:id/share", handler.handleShare)

	protectedReports := reportRoutes.Group("")
	protectedReports.Use(handler.authorizeRequest)
	protectedReports.POST("/submit", handler.handleSubmit)
	protectedReports.GET("/my-traces", handler.handleMyTraces)

	authRoutes := router.Group("/api/auth")
	authRoutes.GET("/leaderboard", handler.handleLeaderboard)
	authRoutes.GET("/me", handler.authorizeRequest, handler.handleProfile)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", authTokenHeader},
		ExposeHeaders: []string{authTokenHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

type httpHandler struct {
	tokens  TokenResolver
	users   UserResolver
	reports *reports.Service
	logger  *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, healthMessage)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	identity, err := h.tokens.ResolveToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := h.users.EnsureUser(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("failed to resolve user", zap.String("user_id", identity.UserID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_resolution_failed"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

// extractToken reads the bearer token from Authorization, falling back to x-auth-token.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); token != "" {
			return token
		}
	}
	return strings.TrimSpace(c.GetHeader(authTokenHeader))
}
