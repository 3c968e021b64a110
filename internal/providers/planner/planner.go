// Package planner exposes the continuation-flag tool the loop uses to
// decide whether another tool round should follow.
package planner

import (
	"context"
	"fmt"

	"github.com/loomkg/loom/pkg/tool"
)

// ToolName is the composed model-facing name of the planning operation.
var ToolName = tool.ComposeName("planner", "plan")

// Provider returns the planner tool provider. The orchestrator reads the
// continue flag from the invocation arguments; the handler only echoes
// the plan back into the conversation.
func Provider() tool.Provider {
	return tool.Provider{
		Name: "planner",
		Operations: []tool.Operation{
			{
				Name: "plan",
				Description: "Record your plan for the next step and state whether more tool " +
					"calls are needed. Set continue to false when you have everything " +
					"required to answer.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"thought": map[string]any{
							"type":        "string",
							"description": "Short reasoning about what to do next",
						},
						"continue": map[string]any{
							"type":        "boolean",
							"description": "Whether another round of tool calls should follow",
						},
					},
					"required": []string{"thought", "continue"},
				},
				Handler: plan,
			},
		},
	}
}

func plan(ctx context.Context, args map[string]any) (*tool.Result, error) {
	thought, _ := args["thought"].(string)
	cont, _ := args["continue"].(bool)
	if cont {
		return tool.TextResult(fmt.Sprintf("Plan noted: %s. Continuing.", thought)), nil
	}
	return tool.TextResult(fmt.Sprintf("Plan noted: %s. Wrapping up.", thought)), nil
}
