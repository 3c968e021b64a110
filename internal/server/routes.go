package server

import (
	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Conversation routes
	apiRoutes.POST("/conversations/:conversation_id/query", routes.QueryConversationHandler)
	apiRoutes.GET("/conversations/:conversation_id", routes.GetConversationHandler)
	apiRoutes.DELETE("/conversations/:conversation_id", routes.DeleteConversationHandler)

	// Graph routes, keyed by the owning conversation
	apiRoutes.GET("/graphs/:conversation_id", routes.GetGraphHandler)
	apiRoutes.GET("/graphs/:conversation_id/history", routes.GetGraphHistoryHandler)
	apiRoutes.POST("/graphs/:conversation_id/undo", routes.UndoGraphHandler)
	apiRoutes.POST("/graphs/:conversation_id/redo", routes.RedoGraphHandler)
	apiRoutes.DELETE("/graphs/:conversation_id/nodes/:node_id", routes.DeleteGraphNodeHandler)
	apiRoutes.DELETE("/graphs/:conversation_id/edges/:edge_id", routes.DeleteGraphEdgeHandler)
}
