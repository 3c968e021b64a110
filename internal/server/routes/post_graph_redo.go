package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/store"
)

// RedoGraphHandler steps the snapshot cursor forward and returns the
// resulting state. Redo at the newest snapshot returns the state
// unchanged.
func RedoGraphHandler(c echo.Context) error {
	type redoResponse struct {
		Message string       `json:"message,omitempty"`
		Graph   *store.State `json:"graph,omitempty"`
	}

	graphKey := c.Param("conversation_id")
	if graphKey == "" {
		return c.JSON(http.StatusBadRequest, redoResponse{Message: "Missing conversation id"})
	}

	app := c.(*middleware.AppContext).App
	state, err := app.GraphStore.Redo(c.Request().Context(), graphKey)
	if err != nil {
		logger.Error("Failed to redo graph mutation", "graph", graphKey, "err", err)
		return c.JSON(http.StatusInternalServerError, redoResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, redoResponse{Graph: &state})
}
