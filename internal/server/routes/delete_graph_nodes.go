package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
)

// DeleteGraphNodeHandler removes a node and its connected edges. Deleting
// an unknown node is a no-op.
func DeleteGraphNodeHandler(c echo.Context) error {
	graphKey := c.Param("conversation_id")
	nodeID := c.Param("node_id")
	if graphKey == "" || nodeID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing conversation or node id"})
	}

	app := c.(*middleware.AppContext).App
	if err := app.GraphStore.DeleteNode(c.Request().Context(), graphKey, nodeID); err != nil {
		logger.Error("Failed to delete node", "graph", graphKey, "node", nodeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Node deleted"})
}
