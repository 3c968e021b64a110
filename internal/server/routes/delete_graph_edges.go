package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
)

// DeleteGraphEdgeHandler removes a single edge. Deleting an unknown edge
// is a no-op.
func DeleteGraphEdgeHandler(c echo.Context) error {
	graphKey := c.Param("conversation_id")
	edgeID := c.Param("edge_id")
	if graphKey == "" || edgeID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing conversation or edge id"})
	}

	app := c.(*middleware.AppContext).App
	if err := app.GraphStore.DeleteEdge(c.Request().Context(), graphKey, edgeID); err != nil {
		logger.Error("Failed to delete edge", "graph", graphKey, "edge", edgeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Edge deleted"})
}
