package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/compensacao_backend/utils"
)

// RequireOperator rejects requests that reached it without an operator
// identity. It runs after AuthMiddleware and SessionMiddleware, which leave
// anonymous requests untouched.
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, _ := utils.GetTokenFromContext(ctx)
		operatorId, _ := utils.GetOperatorIdFromContext(ctx)
		if token == "" && operatorId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
