package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/trackimpact/support-api/internal/interfaces/httpserver/handlers"
)

// Limits holds the rate-limit middlewares of the v1 routes.
type Limits struct {
	Chat       gin.HandlerFunc
	Escalation gin.HandlerFunc
}

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
	limits   Limits
}

// NewRoutes creates a new v1 routes instance.
func NewRoutes(handlerProvider *handlers.Provider, limits Limits) *Routes {
	return &Routes{handlers: handlerProvider, limits: limits}
}

// Register registers all v1 routes behind authMiddleware.
func (r *Routes) Register(engine *gin.Engine, authMiddleware gin.HandlerFunc) {
	v1 := engine.Group("/v1")
	v1.Use(authMiddleware)
	RegisterConversationRoutes(v1, r.handlers.Conversation, passThrough(r.limits.Chat), passThrough(r.limits.Escalation))
}

func passThrough(h gin.HandlerFunc) gin.HandlerFunc {
	if h != nil {
		return h
	}
	return func(c *gin.Context) { c.Next() }
}
