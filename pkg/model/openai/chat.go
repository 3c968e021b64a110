package openai

import (
	"fmt"
	"time"

	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/loomkg/loom/pkg/model"
)

func (c *ChatModelClient) buildMessages(
	turns []model.Turn,
	options model.GenerateOptions,
) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+len(options.SystemPrompts))
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	for _, turn := range turns {
		switch turn.Role {
		case model.RoleUser:
			msgs = append(msgs, openai.UserMessage(turn.Content))
		case model.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		}
	}
	return msgs
}

func (c *ChatModelClient) applyThinking(body *openai.ChatCompletionNewParams, options model.GenerateOptions) {
	if options.Thinking != "" {
		// gpt-5 models only accept temperature 1.0 when reasoning is enabled
		if c.chatURL == "" {
			body.Temperature = openai.Float(1.0)
		}
		body.ReasoningEffort = shared.ReasoningEffort(options.Thinking)
	}
}

// Complete sends the turn history plus the available tool set to the chat
// model and returns the normalized reply. It performs exactly one model
// call; tool execution and looping belong to the caller.
func (c *ChatModelClient) Complete(
	ctx context.Context,
	turns []model.Turn,
	tools []model.ToolSpec,
	opts ...model.GenerateOption,
) (*model.Reply, error) {
	client := c.ChatClient

	options := model.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
		Thinking:    "",
	}
	for _, o := range opts {
		o(&options)
	}

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    c.buildMessages(turns, options),
		Temperature: openai.Float(options.Temperature),
	}

	if len(tools) > 0 {
		openaiTools := make([]openai.ChatCompletionToolUnionParam, len(tools))
		for i, tool := range tools {
			openaiTools[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  tool.Parameters,
			})
		}
		body.Tools = openaiTools
	}

	c.applyThinking(&body, options)

	start := time.Now()
	response, err := client.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start).Milliseconds()

	usage := model.Metrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	}
	c.modifyMetrics(usage)
	if options.MetricsSink != nil {
		options.MetricsSink(usage)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response from model")
	}

	message := response.Choices[0].Message
	reply := &model.Reply{Text: message.Content}

	for _, tc := range message.ToolCalls {
		ftc := tc.AsFunction()
		reply.ToolRequests = append(reply.ToolRequests, model.ToolRequest{
			ID:        ftc.ID,
			Name:      ftc.Function.Name,
			Arguments: ftc.Function.Arguments,
		})
	}

	return reply, nil
}

// CompleteStructured sends the turn history to the chat model and
// unmarshals the reply into out, using a JSON schema to enforce structure.
func (c *ChatModelClient) CompleteStructured(
	ctx context.Context,
	turns []model.Turn,
	name string,
	description string,
	out any,
	opts ...model.GenerateOption,
) error {
	schema := model.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	options := model.GenerateOptions{
		Model:       c.formatModel,
		Temperature: 0.1,
		Thinking:    "",
	}
	for _, o := range opts {
		o(&options)
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    c.buildMessages(turns, options),
		Temperature: openai.Float(options.Temperature),
	}

	c.applyThinking(&body, options)

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return err
	}
	duration := time.Since(start).Milliseconds()

	usage := model.Metrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	}
	c.modifyMetrics(usage)
	if options.MetricsSink != nil {
		options.MetricsSink(usage)
	}

	if len(response.Choices) == 0 {
		return fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return model.UnmarshalFlexible(message, out)
}
