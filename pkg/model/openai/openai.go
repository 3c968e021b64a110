package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/loomkg/loom/pkg/model"
)

// ChatModelClient implements model.Client against an OpenAI-compatible
// chat completions endpoint.
//
// A ChatModelClient should be created using NewChatModelClient.
type ChatModelClient struct {
	chatModel   string
	formatModel string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     model.Metrics

	ChatClient *openai.Client
}

// NewChatModelClientParams defines the configuration parameters for
// creating a new ChatModelClient.
//
// ChatModel is used for tool-calling rounds; FormatModel (optional,
// defaults to ChatModel) is used for schema-constrained formatting calls.
type NewChatModelClientParams struct {
	ChatModel   string
	FormatModel string

	ChatURL string
	ChatKey string
}

// NewChatModelClient creates and returns a new ChatModelClient configured
// with the provided parameters.
func NewChatModelClient(params NewChatModelClientParams) *ChatModelClient {
	formatModel := params.FormatModel
	if formatModel == "" {
		formatModel = params.ChatModel
	}

	return &ChatModelClient{
		chatModel:   params.ChatModel,
		formatModel: formatModel,

		chatURL: params.ChatURL,
		chatKey: params.ChatKey,

		metricsLock: sync.Mutex{},
		metrics:     model.Metrics{},

		ChatClient: newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *ChatModelClient) modifyMetrics(m model.Metrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

// ResetMetrics zeroes the accumulated metrics counters.
func (c *ChatModelClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = model.Metrics{}
}

// GetMetrics returns the metrics accumulated since the last reset.
func (c *ChatModelClient) GetMetrics() model.Metrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
