package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/curbwise/alerts-api/internal/handler"
)

const HeaderCronSecret = "X-Cron-Secret"

type TriggerAuthMiddleware struct {
	secret string
}

func NewTriggerAuthMiddleware(secret string) *TriggerAuthMiddleware {
	return &TriggerAuthMiddleware{secret: secret}
}

// Authenticate admits cron-provider calls carrying the shared secret in
// either the X-Cron-Secret header or a bearer token.
func (m *TriggerAuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.GetHeader(HeaderCronSecret)
		if credential == "" {
			parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				credential = parts[1]
			}
		}

		if credential == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing trigger credential"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(credential), []byte(m.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid trigger credential"))
			c.Abort()
			return
		}

		c.Next()
	}
}
