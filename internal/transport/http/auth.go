package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dronewatch-server-go/internal/domain/auth"
	"dronewatch-server-go/internal/platform/logging"
)

// ContextSubjectKey holds the verified token subject on the gin context.
const ContextSubjectKey = "auth.subject"

// BearerAuth rejects requests without a valid "Authorization: Bearer" token.
func BearerAuth(tokens *auth.AuthToken, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			logger.WarnTag("HTTP", "missing bearer token: path=%s", c.Request.URL.Path)
			RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}

		subject, err := tokens.VerifyToken(token)
		if err != nil {
			logger.WarnTag("HTTP", "token rejected: path=%s err=%v", c.Request.URL.Path, err)
			RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}

		c.Set(ContextSubjectKey, subject)
		c.Next()
	}
}
