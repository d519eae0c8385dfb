package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/TeamMatch/config"
	"github.com/Gopher0727/TeamMatch/middleware/jwt"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/middleware/ratelimit"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

type MiddlewareManager struct {
	tokenManager *jwt.TokenManager
	denylist     jwt.Denylist
	rateLimiter  ratelimit.Limiter
	rateLimitCfg *config.RateLimitConfig
	logger       *logger.Logger
}

// NewMiddlewareManager wires the auth and rate limit middlewares. A nil
// limiter disables rate limiting.
func NewMiddlewareManager(
	tokenManager *jwt.TokenManager,
	denylist jwt.Denylist,
	rateLimiter ratelimit.Limiter,
	rateLimitCfg *config.RateLimitConfig,
	log *logger.Logger,
) *MiddlewareManager {
	if denylist == nil {
		denylist = jwt.NopDenylist{}
	}
	return &MiddlewareManager{
		tokenManager: tokenManager,
		denylist:     denylist,
		rateLimiter:  rateLimiter,
		rateLimitCfg: rateLimitCfg,
		logger:       log,
	}
}

// JWTAuth verifies the bearer token and stores the caller's Identity. The
// user id is also put on the request context for logging.
func (m *MiddlewareManager) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			fail(c, m.logger, errcode.ErrNotLogin)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			fail(c, m.logger, errcode.ErrNotLogin.WithMessage("invalid authorization header format"))
			return
		}

		claims, err := m.tokenManager.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			m.logger.WarnContext(c.Request.Context(), "token validation failed",
				zap.Error(err),
				zap.String("ip", c.ClientIP()),
			)
			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				fail(c, m.logger, errcode.ErrNotLogin.WithMessage("token has expired"))
			case errors.Is(err, jwt.ErrTokenNotYetValid):
				fail(c, m.logger, errcode.ErrNotLogin.WithMessage("token not yet valid"))
			default:
				fail(c, m.logger, errcode.ErrNotLogin.WithMessage("invalid token"))
			}
			return
		}

		revoked, err := m.denylist.Revoked(c.Request.Context(), claims.ID)
		if err != nil {
			// redis trouble should not log everyone out
			m.logger.WarnContext(c.Request.Context(), "token denylist unavailable", zap.Error(err))
		}
		if revoked {
			fail(c, m.logger, errcode.ErrNotLogin.WithMessage("token has been revoked"))
			return
		}

		setIdentity(c, Identity{
			UserID:   claims.UserID,
			Username: claims.UserName,
			TokenID:  claims.ID,
			TTL:      claims.TTL(time.Now()),
		})
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// RateLimit applies the endpoint's rule. Authenticated callers are keyed by
// user id, anonymous ones by client ip. A successful login clears the login
// window, so only failed attempts count against it.
func (m *MiddlewareManager) RateLimit(endpoint ratelimit.Endpoint) gin.HandlerFunc {
	if m.rateLimiter == nil || m.rateLimitCfg == nil || !m.rateLimitCfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	rule := ratelimit.RuleFor(endpoint, m.rateLimitCfg)

	return func(c *gin.Context) {
		var key string
		if id, ok := CurrentIdentity(c); ok {
			key = fmt.Sprintf("user:%d:%s", id.UserID, endpoint)
		} else {
			key = fmt.Sprintf("ip:%s:%s", c.ClientIP(), endpoint)
		}

		allowed, err := m.rateLimiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			m.logger.ErrorContext(c.Request.Context(), "rate limit check failed",
				zap.Error(err),
				zap.String("key", key),
			)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", fmt.Sprintf("%d", int(rule.Window.Seconds())))
			fail(c, m.logger, errcode.ErrTooManyRequests)
			return
		}
		if remaining, err := m.rateLimiter.Remaining(c.Request.Context(), key, rule); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		c.Next()

		if endpoint == ratelimit.EndpointLogin && c.Writer.Status() == http.StatusOK {
			if err := m.rateLimiter.Reset(c.Request.Context(), key, rule); err != nil {
				m.logger.WarnContext(c.Request.Context(), "failed to reset login window",
					zap.Error(err),
					zap.String("key", key),
				)
			}
		}
	}
}

type adminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// RequireAdmin rejects callers without the admin role.
func (m *MiddlewareManager) RequireAdmin(users adminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := mustIdentity(c)
		if err != nil {
			fail(c, m.logger, err)
			return
		}
		ok, err := users.IsAdmin(c.Request.Context(), id.UserID)
		if err != nil {
			fail(c, m.logger, err)
			return
		}
		if !ok {
			fail(c, m.logger, errcode.ErrNoAuth.WithMessage("administrator role required"))
			return
		}
		c.Next()
	}
}
