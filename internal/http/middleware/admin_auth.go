package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/charity-iap-backend/internal/http/response"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

var (
	errMissingToken = errors.New("missing or invalid token")
	errBadToken     = errors.New("forbidden")
)

type AdminAuthMiddleware struct {
	log   *logger.Logger
	token []byte
}

func NewAdminAuthMiddleware(log *logger.Logger, token string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		log:   log.With("Middleware", "AdminAuthMiddleware"),
		token: []byte(strings.TrimSpace(token)),
	}
}

// RequireAdmin rejects requests whose bearer token does not match the
// configured admin token. With no token configured every request is refused.
func (am *AdminAuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := bearerToken(c)
		if len(am.token) == 0 || got == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), am.token) != 1 {
			am.log.Warn("admin token rejected", "path", c.FullPath())
			response.RespondError(c, http.StatusForbidden, "forbidden", errBadToken)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
