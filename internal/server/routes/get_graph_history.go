package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/store"
)

// GetGraphHistoryHandler lists a graph's snapshots, most recent first.
func GetGraphHistoryHandler(c echo.Context) error {
	type historyResponse struct {
		Message   string           `json:"message,omitempty"`
		Snapshots []store.Snapshot `json:"snapshots,omitempty"`
	}

	graphKey := c.Param("conversation_id")
	if graphKey == "" {
		return c.JSON(http.StatusBadRequest, historyResponse{Message: "Missing conversation id"})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, historyResponse{Message: "Invalid limit"})
		}
		limit = parsed
	}

	app := c.(*middleware.AppContext).App
	snapshots, err := app.GraphStore.History(c.Request().Context(), graphKey, limit)
	if err != nil {
		logger.Error("Failed to load graph history", "graph", graphKey, "err", err)
		return c.JSON(http.StatusInternalServerError, historyResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, historyResponse{Snapshots: snapshots})
}
