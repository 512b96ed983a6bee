// README: Request identity extraction. Authentication itself happens upstream.
package middleware

import "github.com/gin-gonic/gin"

const UserIDKey = "userID"

// Identity copies the caller's id from the X-User-ID header into the request
// context. The gateway in front of this service has already authenticated
// the caller; handlers that need an actor reject requests without one.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(UserIDKey, id)
		}
		c.Next()
	}
}
