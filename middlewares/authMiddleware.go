package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/compensacao_backend/utils"
)

type authString string

// AuthMiddleware reads the operator's bearer token. The token itself is kept
// in the context so it can be forwarded to the diagnostics API. Without
// API_SECRET the claims cannot be checked and the request goes through
// anonymous.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
		if auth == "" {
			c.Next()
			return
		}

		bearer := "bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = strings.TrimSpace(auth[len(bearer):])

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)

		validate, err := utils.JwtValidate(auth)
		if errors.Is(err, utils.ErrJwtSecretMissing) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, _ := validate.Claims.(*utils.OperatorClaim)
		if claim != nil {
			ctx = utils.SetOperatorIdInContext(ctx, claim.OperatorId())
			ctx = utils.SetOperatorNameInContext(ctx, claim.Name)
		}
		ctx = context.WithValue(ctx, authString("auth"), claim)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.OperatorClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.OperatorClaim)
	return raw
}
