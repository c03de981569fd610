package authn

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAuthentication runs the mechanism on every request that has no
// established caller. A request carrying its own credential always runs the
// mechanism and replaces the session caller, so a failed login also ends the
// previous one. With protected set, a request that ends unauthenticated is
// rejected; otherwise it proceeds anonymously.
func RequireAuthentication(sc *SecurityContext, protected bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !carriesCredential(sc.mechanism, c) {
			if sc.restore(c) {
				c.Next()
				return
			}
		} else if err := sc.forgetCaller(c); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Authentication could not be completed",
			})
			return
		}

		msg := NewMessage(c, sc.handler, Parameters{})
		msg.Protected = protected

		status, err := sc.run(c, msg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Authentication could not be completed",
			})
			return
		}

		switch status {
		case Success:
			if !c.IsAborted() {
				c.Next()
			}
		case SendContinue, SendFailure:
			if !c.IsAborted() {
				c.AbortWithStatus(http.StatusUnauthorized)
			}
		default:
			if protected {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":             "unauthorized",
					"error_description": "Authentication required",
				})
				return
			}
			c.Next()
		}
	}
}
