package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/mmdatafocus/compensacao_backend/utils"
)

// SessionMiddleware accepts the back-office session token in the "token"
// header. Sessions live in Redis as Token:<token> -> operator name.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		operatorName, exists, err := config.GetRedisValue(c.Request.Context(), "Token:"+token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetOperatorNameInContext(ctx, operatorName)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
