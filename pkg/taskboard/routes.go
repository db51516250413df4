package taskboard

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/delivery/auth"
	"taskboard/delivery/rest"
	"taskboard/delivery/rest/middleware"
)

// RegisterRoutes mounts the task board endpoints on the host router under
// the configured prefix. Every route except health requires an owner.
func (b *Board) RegisterRoutes(router gin.IRouter) error {
	if router == nil {
		return fmt.Errorf("router cannot be nil")
	}

	prefix := normalizePrefix(b.config.RoutePrefix)
	group := router.Group(prefix,
		middleware.Logger(b.logger.Named("http")),
		middleware.Recovery(b.logger.Named("http")),
	)

	group.GET("/health", b.handler.Health)

	owned := group.Group("", auth.RequireOwner(b.config.Authenticator))
	rest.RegisterTaskRoutes(owned, b.handler)
	owned.GET("/tasks/stream", b.hub.HandleWebSocket)

	b.logger.Info("Routes registered", zap.String("prefix", prefix))
	return nil
}
