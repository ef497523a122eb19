// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/middleware"
	xerrors "helpdesk-dashboard/internal/pkg/errors"
	"helpdesk-dashboard/internal/pkg/ratelimit"
	"helpdesk-dashboard/internal/pkg/response"
	"helpdesk-dashboard/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	SignInPath  string
	LandingPath string
}

type AuthHandler struct {
	cfg     Config
	limiter ratelimit.LoginLimiter
	logger  *zap.Logger
}

func NewAuthHandler(cfg Config, limiter ratelimit.LoginLimiter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}
}

// ========== Login ==========

// Login signs the browser in and sets the token cookies.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ValidationError(c, "tenant, username and password are required", err)
		return
	}

	ctx := c.Request.Context()
	account := req.Tenant + "/" + req.Username
	if h.limiter != nil {
		allowed, remaining, err := h.limiter.CheckLoginAttempt(ctx, c.ClientIP(), account)
		if err != nil {
			h.logger.Warn("login rate limit check failed", zap.Error(err))
		} else if !allowed {
			response.Error(c, http.StatusTooManyRequests, "too many login attempts, try again later", nil, gin.H{"remaining_attempts": remaining})
			return
		}
	}

	sess := middleware.MustGetSession(c)
	if err := sess.Login(ctx, req.Tenant, req.Username, req.Password); err != nil {
		h.logger.Info("login failed",
			zap.String("tenant", req.Tenant),
			zap.String("username", req.Username),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		switch {
		case xerrors.Is(err, xerrors.ErrMalformedToken):
			response.Error(c, http.StatusBadGateway, "login failed", nil)
		case xerrors.StatusOf(err) >= 400 && xerrors.StatusOf(err) < 500:
			response.Error(c, http.StatusUnauthorized, xerrors.MessageOrDefault(err, "invalid credentials"), nil)
		default:
			response.Upstream(c, err, "login failed, please try again")
		}
		return
	}

	if h.limiter != nil {
		_ = h.limiter.ResetLoginAttempts(ctx, c.ClientIP(), account)
	}
	if bus, ok := middleware.GetBus(c); ok {
		bus.Reset()
	}

	// A failed confirmation leaves the session validating; the next page
	// load retries it.
	if err := sess.Validate(ctx); err != nil && !xerrors.IsAuthRejection(err) {
		h.logger.Warn("profile fetch after login failed", zap.Error(err))
	}

	st := sess.State()
	if !st.IsAuthenticated() && !st.IsLoading() {
		response.Error(c, http.StatusUnauthorized, "your account could not be verified", nil)
		return
	}
	response.Success(c, http.StatusOK, "login successful", gin.H{
		"session":  st.View(),
		"redirect": h.cfg.LandingPath,
	})
}

// ========== Logout ==========

// Logout ends the session. The local teardown never depends on the backend.
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	sess.Logout(c.Request.Context())

	if middleware.WantsJSON(c) {
		response.Success(c, http.StatusOK, "logged out", gin.H{"redirect": h.cfg.SignInPath})
	}
	// Page clients are redirected by the session middleware.
}

// ========== Pages ==========

// SignIn is the sign-in entry point. A session_expired reason carries the
// notice shown to users whose session ended underneath them.
func (h *AuthHandler) SignIn(c *gin.Context) {
	data := gin.H{"reason": c.Query("reason")}
	if c.Query("reason") == session.ReasonSessionExpired {
		data["notice"] = "Your session has expired. Please sign in again."
	}
	response.Success(c, http.StatusOK, "sign in", data)
}

func (h *AuthHandler) Forbidden(c *gin.Context) {
	response.Error(c, http.StatusForbidden, "you do not have permission to view this page", nil, gin.H{
		"back": h.cfg.LandingPath,
	})
}

// ========== Session ==========

// Session returns the current session snapshot.
func (h *AuthHandler) Session(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	response.Success(c, http.StatusOK, "session", sess.State().View())
}
