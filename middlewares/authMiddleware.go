package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/docs_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the session JWT and threads the caller's
// identity and delegated storage token into the request context. Routes
// behind it always see a valid session.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			// Some clients send the raw token in a "token" header instead.
			auth = c.Request.Header.Get("token")
		}
		auth = strings.TrimPrefix(auth, "Bearer ")

		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			c.Abort()
			return
		}

		claims, err := utils.JwtValidate(auth)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserEmailInContext(c.Request.Context(), claims.Email)
		ctx = utils.SetUserNameInContext(ctx, claims.Name)
		ctx = utils.SetDriveTokenInContext(ctx, claims.DriveToken)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
