// Package mockapi is a development stand-in for the ticketing backend. It
// speaks the same auth contract the dashboard consumes: login, logout,
// rotating refresh tokens and the current-user profile, plus generic CRUD
// for every dashboard resource.
package mockapi

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/domain/resource"
	"helpdesk-dashboard/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	Key        *rsa.PrivateKey
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Accounts replaces the default development logins when set.
	Accounts []Account
}

type Server struct {
	store     *store
	generator *jwt.Generator
	verifier  *jwt.Verifier
	engine    *gin.Engine
	logger    *zap.Logger

	refreshes atomic.Int64
}

const (
	claimsKey = "mock_claims"
	userKey   = "mock_user"
)

func New(cfg Config, logger *zap.Logger) (*Server, error) {
	if cfg.Key == nil {
		return nil, fmt.Errorf("mock api needs a signing key")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "helpdesk-api"
	}
	accounts := cfg.Accounts
	if accounts == nil {
		accounts = DefaultAccounts()
	}

	s := &Server{
		store:     newStore(),
		generator: jwt.NewGenerator(cfg.Key, cfg.Issuer, "mock-key", cfg.AccessTTL, cfg.RefreshTTL),
		verifier:  jwt.NewVerifier(&cfg.Key.PublicKey, cfg.Issuer),
		logger:    logger,
	}
	for _, a := range accounts {
		if err := s.store.addAccount(a); err != nil {
			return nil, err
		}
	}
	seedCollections(s.store)

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.routes()
	return s, nil
}

// Handler exposes the backend as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Refreshes counts successful refresh-token exchanges.
func (s *Server) Refreshes() int64 {
	return s.refreshes.Load()
}

// ExpireAccessTokens rejects every access token issued so far; refresh tokens
// keep working.
func (s *Server) ExpireAccessTokens() {
	s.store.revokeAllAccess()
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.POST("/auth/login", s.login)
	s.engine.GET("/auth/access_token", s.refresh)

	authed := s.engine.Group("")
	authed.Use(s.requireAccess())
	authed.POST("/auth/logout", s.logout)
	authed.GET("/user/current", s.currentUser)

	for _, res := range resource.Catalog {
		g := authed.Group(res.APIPath)
		g.GET("", s.require(res.View), s.listItems(res))
		g.GET("/:id", s.require(res.View), s.getItem(res))
		g.POST("", s.require(res.Create), s.createItem(res))
		g.PUT("/:id", s.require(res.Edit), s.updateItem(res))
		g.DELETE("/:id", s.require(res.Delete), s.deleteItem(res))
	}
}

func abortMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, auth.MessageResponse{Message: message, StatusCode: status})
}

func bearer(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// ========== Auth ==========

func (s *Server) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortMessage(c, http.StatusBadRequest, "tenant, username and password are required")
		return
	}

	u, err := s.store.authenticate(req.Tenant, req.Username, req.Password)
	if err != nil {
		// The backend reports credential failures in the body.
		c.JSON(http.StatusOK, auth.LoginResponse{StatusCode: http.StatusUnauthorized, Message: err.Error()})
		return
	}

	pair, err := s.issue(u, "")
	if err != nil {
		s.logger.Error("mock login: issue tokens", zap.Error(err))
		abortMessage(c, http.StatusInternalServerError, "failed to issue tokens")
		return
	}
	s.logger.Debug("mock login", zap.String("user_id", u.id), zap.String("tenant", u.tenant))
	c.JSON(http.StatusOK, auth.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		StatusCode:   http.StatusOK,
	})
}

func (s *Server) refresh(c *gin.Context) {
	claims, err := s.verifier.VerifyRefreshToken(bearer(c))
	if err != nil {
		abortMessage(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	rec, err := s.store.consumeRefresh(claims.ID)
	if err != nil {
		if errors.Is(err, errRefreshReused) {
			s.logger.Warn("mock refresh: reuse detected, session revoked", zap.String("user_id", claims.Subject))
		}
		abortMessage(c, http.StatusUnauthorized, err.Error())
		return
	}

	u, ok := s.store.user(rec.userID)
	if !ok {
		abortMessage(c, http.StatusUnauthorized, "user no longer exists")
		return
	}
	pair, err := s.issue(u, rec.family)
	if err != nil {
		abortMessage(c, http.StatusInternalServerError, "failed to issue tokens")
		return
	}

	s.refreshes.Add(1)
	c.JSON(http.StatusOK, auth.RefreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) logout(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*jwt.Claims)
	s.store.logout(claims.ID, claims.ExpiresAt.Time)
	c.JSON(http.StatusOK, auth.MessageResponse{Message: "logged out", StatusCode: http.StatusOK})
}

func (s *Server) currentUser(c *gin.Context) {
	u := c.MustGet(userKey).(*user)
	c.JSON(http.StatusOK, u.profile)
}

func (s *Server) issue(u *user, family string) (auth.TokenPair, error) {
	access, refresh, err := s.generator.GeneratePair(jwt.Subject{
		ID:     u.id,
		Name:   u.profile.FullName,
		Email:  u.profile.Email,
		Role:   u.profile.Role,
		Tenant: u.tenant,
	})
	if err != nil {
		return auth.TokenPair{}, err
	}
	s.store.trackPair(u.id, family, access.JTI, refresh.JTI)
	return auth.TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}, nil
}

// ========== Middleware ==========

func (s *Server) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := s.verifier.VerifyAccessToken(bearer(c))
		if err != nil || s.store.accessRevoked(claims.ID) {
			abortMessage(c, http.StatusUnauthorized, "access token is invalid or expired")
			return
		}
		u, ok := s.store.user(claims.Subject)
		if !ok {
			abortMessage(c, http.StatusUnauthorized, "user no longer exists")
			return
		}
		c.Set(claimsKey, claims)
		c.Set(userKey, u)
		c.Next()
	}
}

func (s *Server) require(key permission.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := c.MustGet(userKey).(*user)
		for _, p := range u.profile.Permissions {
			if p == string(key) {
				c.Next()
				return
			}
		}
		abortMessage(c, http.StatusForbidden, fmt.Sprintf("missing permission %s", key))
	}
}

// ========== Resources ==========

func (s *Server) listItems(res resource.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		items := s.store.list(res.APIPath, c.Query("q"))
		c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
	}
}

func (s *Server) getItem(res resource.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.store.get(res.APIPath, c.Param("id"))
		if err != nil {
			abortMessage(c, http.StatusNotFound, err.Error())
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func (s *Server) createItem(res resource.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			abortMessage(c, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		item := s.store.create(res.APIPath, fields)
		c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("%s created", res.Name), "data": item})
	}
}

func (s *Server) updateItem(res resource.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			abortMessage(c, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		item, err := s.store.update(res.APIPath, c.Param("id"), fields)
		if err != nil {
			abortMessage(c, http.StatusNotFound, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s updated", res.Name), "data": item})
	}
}

func (s *Server) deleteItem(res resource.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.delete(res.APIPath, c.Param("id")); err != nil {
			abortMessage(c, http.StatusNotFound, err.Error())
			return
		}
		// Deletes answer without a message so callers fall back to their own.
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": c.Param("id")}})
	}
}
