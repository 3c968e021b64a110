package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loomkg/loom/internal/notify"
	"github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/internal/storage"
	"github.com/loomkg/loom/pkg/graph"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/model"
	"github.com/loomkg/loom/pkg/orchestrator"
	"github.com/loomkg/loom/pkg/tool"
)

// QueryConversationHandler runs one orchestration pass for a conversation
// and streams the notification records as server-sent events. The
// terminal record carries the formatted result.
func QueryConversationHandler(c echo.Context) error {
	type queryBody struct {
		Message         string          `json:"message" validate:"required"`
		PinnedGraph     *graph.Fragment `json:"pinned_graph,omitempty"`
		PinnedArtifacts []tool.Artifact `json:"pinned_artifacts,omitempty"`
	}

	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing conversation id"})
	}

	data := new(queryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	cc := c.(*middleware.AppContext)
	app := cc.App
	user := cc.User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	ctx := c.Request().Context()

	history, err := app.Memory.History(ctx, conversationID)
	if err != nil {
		logger.Error("Failed to load conversation history", "conversation", conversationID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	stream := notify.NewChannelNotifier(128)
	o, err := orchestrator.New(orchestrator.Config{
		Client:       app.Model,
		Registry:     app.Registry,
		Dispatcher:   app.Dispatcher,
		Notifier:     notify.NewMulti(stream, app.Notifier),
		MaxRounds:    app.MaxRounds,
		PlanningTool: app.PlanningTool,
		APIBaseURL:   app.APIBaseURL,
		FinishArtifacts: func(ctx context.Context, conversationID string, artifacts []tool.Artifact) []tool.Artifact {
			return storage.OffloadBinaries(ctx, app.S3, conversationID, artifacts)
		},
	})
	if err != nil {
		logger.Error("Failed to build orchestrator", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	// the run outlives a client disconnect; only the SSE stream is tied
	// to the request
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer stream.Close()

		result, err := o.Run(runCtx, orchestrator.Request{
			ConversationID:  conversationID,
			Message:         data.Message,
			History:         history,
			PinnedGraph:     data.PinnedGraph,
			PinnedArtifacts: data.PinnedArtifacts,
			AccessToken:     user.Token,
		})
		if err != nil {
			// the notifier already carried the terminal error record
			return
		}

		turns := []model.Turn{{Role: model.RoleUser, Content: data.Message}}
		for _, seg := range result.Segments {
			if seg.Type == "text" {
				turns = append(turns, model.Turn{Role: model.RoleAssistant, Content: seg.Content})
			}
		}
		if err := app.Memory.Append(runCtx, conversationID, turns...); err != nil {
			logger.Error("Failed to persist conversation turns", "conversation", conversationID, "err", err)
		}
	}()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	for record := range stream.Records() {
		payload, err := json.Marshal(record)
		if err != nil {
			logger.Error("Failed to encode notification record", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", record.Type, payload); err != nil {
			// client went away, drain the channel so the run can finish
			for range stream.Records() {
			}
			break
		}
		res.Flush()
	}

	return nil
}
