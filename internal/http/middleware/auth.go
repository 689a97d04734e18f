package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/duckbot/internal/auth"
)

const adminSubjectKey = "adminSubject"

// AdminAuth validates a bearer admin token signed with secret whose subject
// is one of admins. On success the subject is stored for AdminSubject and
// KeyBySubjectOrIP; otherwise the request is aborted with 401 or 403.
func AdminAuth(secret string, admins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "expected Authorization: Bearer <token>")
			return
		}

		claims, err := auth.ParseAdminToken(strings.TrimSpace(token), secret)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("failure", "authentication").Msg("admin token rejected")
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		if !slices.Contains(admins, claims.Subject) {
			abortAuth(c, http.StatusForbidden, "forbidden", "subject is not an administrator")
			return
		}

		c.Set(adminSubjectKey, claims.Subject)
		c.Next()
	}
}

// AdminSubject returns the authenticated admin user id, or "".
func AdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
