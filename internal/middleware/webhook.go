package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/homebase/referral-api/internal/handler"
)

const HeaderWebhookToken = "X-Webhook-Token"

// WebhookAuth authenticates the billing provider. The shared token arrives in
// a header and is checked against the bcrypt hash from config, so config
// files never hold the plaintext.
type WebhookAuth struct {
	tokenHash []byte
}

func NewWebhookAuth(tokenHash string) *WebhookAuth {
	return &WebhookAuth{tokenHash: []byte(tokenHash)}
}

func (w *WebhookAuth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderWebhookToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing webhook token"))
			return
		}
		if err := bcrypt.CompareHashAndPassword(w.tokenHash, []byte(token)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid webhook token"))
			return
		}
		c.Next()
	}
}
