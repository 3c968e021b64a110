package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"

	"github.com/loomkg/loom/pkg/model"
)

func buildMessages(turns []model.Turn, options model.GenerateOptions) []api.Message {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+len(turns))
	for _, sys := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sys})
	}
	for _, turn := range turns {
		role := turn.Role
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, api.Message{Role: role, Content: turn.Content})
	}
	return msgs
}

func buildTools(tools []model.ToolSpec) api.Tools {
	ollamaTools := make(api.Tools, len(tools))
	for i, tool := range tools {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Required:   []string{},
			Properties: api.NewToolPropertiesMap(),
		}

		if tool.Parameters != nil {
			if props, ok := tool.Parameters["properties"].(map[string]any); ok {
				for name, prop := range props {
					if propMap, ok := prop.(map[string]any); ok {
						tp := api.ToolProperty{}
						if t, ok := propMap["type"].(string); ok {
							tp.Type = api.PropertyType([]string{t})
						}
						if desc, ok := propMap["description"].(string); ok {
							tp.Description = desc
						}
						if enum, ok := propMap["enum"].([]any); ok {
							tp.Enum = enum
						}
						params.Properties.Set(name, tp)
					}
				}
			}
			if reqInterface, ok := tool.Parameters["required"].([]any); ok {
				params.Required = make([]string, len(reqInterface))
				for j, v := range reqInterface {
					if s, ok := v.(string); ok {
						params.Required[j] = s
					}
				}
			} else if req, ok := tool.Parameters["required"].([]string); ok {
				params.Required = req
			}
		}

		ollamaTools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		}
	}
	return ollamaTools
}

// sizeContext grows num_ctx beyond the Ollama default when the prompt
// alone would not fit.
func sizeContext(req *api.ChatRequest, turns []model.Turn) error {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(t.Content)
	}
	tokens := 200 + len(enc.Encode(sb.String(), nil, nil))
	if tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}
	return nil
}

// Complete sends the turn history plus the available tool set to the model
// and returns the normalized reply. It performs exactly one model call;
// tool execution and looping belong to the caller.
func (c *ChatModelClient) Complete(
	ctx context.Context,
	turns []model.Turn,
	tools []model.ToolSpec,
	opts ...model.GenerateOption,
) (*model.Reply, error) {
	options := model.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
		Thinking:    "",
	}
	for _, o := range opts {
		o(&options)
	}

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: buildMessages(turns, options),
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if len(tools) > 0 {
		req.Tools = buildTools(tools)
	}
	if options.Thinking != "" {
		req.Think = &api.ThinkValue{Value: options.Thinking}
	}
	if err := sizeContext(req, turns); err != nil {
		return nil, err
	}

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		final.Message.ToolCalls = append(final.Message.ToolCalls, cr.Message.ToolCalls...)
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
			final.TotalDuration = cr.TotalDuration
		}
		return nil
	}); err != nil {
		return nil, err
	}

	usage := model.Metrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.TotalDuration.Milliseconds(),
	}
	c.modifyMetrics(usage)
	if options.MetricsSink != nil {
		options.MetricsSink(usage)
	}

	reply := &model.Reply{Text: final.Message.Content}
	for _, tc := range final.Message.ToolCalls {
		argsBytes, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
		}
		reply.ToolRequests = append(reply.ToolRequests, model.ToolRequest{
			ID:        tc.Function.Name,
			Name:      tc.Function.Name,
			Arguments: string(argsBytes),
		})
	}

	return reply, nil
}

// CompleteStructured enforces a JSON schema on the reply and unmarshals it
// into out.
func (c *ChatModelClient) CompleteStructured(
	ctx context.Context,
	turns []model.Turn,
	name string,
	description string,
	out any,
	opts ...model.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	schemaObj := model.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return err
	}
	var format json.RawMessage = formatBytes

	options := model.GenerateOptions{
		Model:       c.formatModel,
		Temperature: 0.1,
		Thinking:    "",
	}
	for _, o := range opts {
		o(&options)
	}

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: buildMessages(turns, options),
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.Thinking != "" {
		req.Think = &api.ThinkValue{Value: options.Thinking}
	}
	if err := sizeContext(req, turns); err != nil {
		return err
	}

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
			final.TotalDuration = cr.TotalDuration
		}
		return nil
	}); err != nil {
		return err
	}

	usage := model.Metrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.TotalDuration.Milliseconds(),
	}
	c.modifyMetrics(usage)
	if options.MetricsSink != nil {
		options.MetricsSink(usage)
	}

	if strings.TrimSpace(final.Message.Content) == "" {
		return fmt.Errorf("empty response from model")
	}
	return model.UnmarshalFlexible(final.Message.Content, out)
}
