package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/store"
)

// UndoGraphHandler steps the snapshot cursor back and returns the
// resulting state. Undo at the oldest snapshot returns the state
// unchanged.
func UndoGraphHandler(c echo.Context) error {
	type undoResponse struct {
		Message string       `json:"message,omitempty"`
		Graph   *store.State `json:"graph,omitempty"`
	}

	graphKey := c.Param("conversation_id")
	if graphKey == "" {
		return c.JSON(http.StatusBadRequest, undoResponse{Message: "Missing conversation id"})
	}

	app := c.(*middleware.AppContext).App
	state, err := app.GraphStore.Undo(c.Request().Context(), graphKey)
	if err != nil {
		logger.Error("Failed to undo graph mutation", "graph", graphKey, "err", err)
		return c.JSON(http.StatusInternalServerError, undoResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, undoResponse{Graph: &state})
}
