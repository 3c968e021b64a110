package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/store"
)

// GetGraphHandler returns the live node and edge set of a conversation's
// graph. Unknown graph keys yield an empty graph, not an error.
func GetGraphHandler(c echo.Context) error {
	type graphResponse struct {
		Message string       `json:"message,omitempty"`
		Graph   *store.State `json:"graph,omitempty"`
	}

	graphKey := c.Param("conversation_id")
	if graphKey == "" {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Missing conversation id"})
	}

	app := c.(*middleware.AppContext).App
	state, err := app.GraphStore.CurrentState(c.Request().Context(), graphKey)
	if err != nil {
		logger.Error("Failed to load graph", "graph", graphKey, "err", err)
		return c.JSON(http.StatusInternalServerError, graphResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, graphResponse{Graph: &state})
}
