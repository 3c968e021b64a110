package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"

	"github.com/loomkg/loom/pkg/model"
)

// ChatModelClient implements model.Client using Ollama as the backend,
// for locally-hosted models.
type ChatModelClient struct {
	chatModel   string
	formatModel string

	metricsLock sync.Mutex
	metrics     model.Metrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewChatModelClientParams contains configuration options for creating a
// new ChatModelClient.
type NewChatModelClientParams struct {
	ChatModel   string
	FormatModel string

	BaseURL string
	ApiKey  string
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewChatModelClient creates a new Ollama-based model client. It connects
// to the Ollama server at the given BaseURL (or the default if empty).
func NewChatModelClient(params NewChatModelClientParams) (*ChatModelClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	formatModel := params.FormatModel
	if formatModel == "" {
		formatModel = params.ChatModel
	}

	return &ChatModelClient{
		chatModel:   params.ChatModel,
		formatModel: formatModel,

		metricsLock: sync.Mutex{},
		metrics:     model.Metrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
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
