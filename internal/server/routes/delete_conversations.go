package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/pkg/logger"
)

// DeleteConversationHandler drops a conversation's turn history.
func DeleteConversationHandler(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing conversation id"})
	}

	app := c.(*middleware.AppContext).App
	if err := app.Memory.Clear(c.Request().Context(), conversationID); err != nil {
		logger.Error("Failed to clear conversation", "conversation", conversationID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Conversation cleared"})
}
