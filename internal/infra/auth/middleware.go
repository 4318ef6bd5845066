package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware.
const (
	ContextKeyAuth   = "auth"
	ContextKeyUserID = "userId"
	ContextKeyToken  = "bearerToken"
)

// UserOrSecret aborts unless RequireUserOrSecret authorizes the request.
func (g *Gate) UserOrSecret() gin.HandlerFunc {
	return g.middleware(g.RequireUserOrSecret)
}

// User aborts unless RequireUser authorizes the request.
func (g *Gate) User() gin.HandlerFunc {
	return g.middleware(g.RequireUser)
}

func (g *Gate) middleware(check func(*http.Request) Result) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch res := check(c.Request).(type) {
		case Authorized:
			c.Set(ContextKeyAuth, res)
			if res.UserID != "" {
				c.Set(ContextKeyUserID, res.UserID)
				c.Set(ContextKeyToken, BearerToken(c.Request))
			}
			c.Next()
		case Denied:
			c.AbortWithStatusJSON(res.Status, gin.H{"error": res.Reason})
		}
	}
}

// FromContext returns the result stored by the middleware.
func FromContext(c *gin.Context) (Authorized, bool) {
	v, ok := c.Get(ContextKeyAuth)
	if !ok {
		return Authorized{}, false
	}
	a, ok := v.(Authorized)
	return a, ok
}
