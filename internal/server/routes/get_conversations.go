package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/model"
)

// GetConversationHandler returns the persisted turn history of a
// conversation.
func GetConversationHandler(c echo.Context) error {
	type conversationResponse struct {
		Message string       `json:"message,omitempty"`
		Turns   []model.Turn `json:"turns,omitempty"`
	}

	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, conversationResponse{Message: "Missing conversation id"})
	}

	app := c.(*middleware.AppContext).App
	turns, err := app.Memory.History(c.Request().Context(), conversationID)
	if err != nil {
		logger.Error("Failed to load conversation", "conversation", conversationID, "err", err)
		return c.JSON(http.StatusInternalServerError, conversationResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, conversationResponse{Turns: turns})
}
