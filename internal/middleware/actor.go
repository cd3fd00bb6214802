package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	actorKey = "actor"

	// ActorAPI is recorded for requests that do not name an actor.
	ActorAPI = "api"
	// ActorPipeline is recorded for requests authenticated with the pipeline key.
	ActorPipeline = "pipeline"
)

// ActorMiddleware records who is making the request for the audit log.
// Tally has no user accounts; clients may label themselves with X-Actor.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader("X-Actor"))
		if actor == "" || len(actor) > 64 {
			actor = ActorAPI
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// Actor returns the actor recorded on the context, defaulting to ActorAPI.
func Actor(c *gin.Context) string {
	if v, ok := c.Get(actorKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ActorAPI
}
