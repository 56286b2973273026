package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nvellore/fraudwatch/internal/accounts"
)

// ContextKeyAccount is the gin context key holding the admitted account.
const ContextKeyAccount = "sessionAccount"

// Require returns a middleware enforcing the admission rule for a route
// group. The check runs against storage on every request — never cached.
func Require(guard *Guard, requiredType accounts.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, account := guard.Authorize(c.Request.Context(), requiredType)
		if !decision.Allowed {
			status := http.StatusUnauthorized
			code := "unauthorized"
			message := "Log in to access this page"
			if decision.Redirect == "/" {
				// Session exists but the declared type doesn't match
				status = http.StatusForbidden
				code = "forbidden"
				message = "Your account type cannot access this page"
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":    code,
				"message":  message,
				"redirect": decision.Redirect,
			})
			return
		}

		c.Set(ContextKeyAccount, account)
		c.Next()
	}
}

// AccountFrom returns the admitted account stored by Require.
func AccountFrom(c *gin.Context) (*accounts.Account, bool) {
	v, exists := c.Get(ContextKeyAccount)
	if !exists {
		return nil, false
	}
	account, ok := v.(*accounts.Account)
	return account, ok
}
