package model

import (
	"context"
)

// Turn represents a single message in a chat conversation.
//
// Role must be one of:
//   - "user"      → a user-provided message
//   - "assistant" → a message from the AI assistant
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a callable tool as advertised to the model.
type ToolSpec struct {
	Name        string         // Model-facing tool name
	Description string         // Human-readable description of what the tool does
	Parameters  map[string]any // JSON Schema defining the tool's input parameters
}

// ToolRequest is a request from the model to invoke a specific tool.
type ToolRequest struct {
	ID        string // Provider-assigned identifier for this call
	Name      string // Model-facing name of the tool to invoke
	Arguments string // JSON-encoded arguments for the tool
}

// Reply is the normalized outcome of one Complete call: either plain
// assistant text, or one or more tool requests for the caller to execute.
type Reply struct {
	Text         string
	ToolRequests []ToolRequest
}

// Metrics contains performance counters accumulated across model calls.
type Metrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// Add folds another set of counters into m.
func (m *Metrics) Add(u Metrics) {
	m.InputTokens += u.InputTokens
	m.OutputTokens += u.OutputTokens
	m.TotalTokens += u.TotalTokens
	m.DurationMs += u.DurationMs
}

// GenerateOptions holds configuration for model calls.
type GenerateOptions struct {
	Model         string        // Model identifier to use
	SystemPrompts []string      // System prompts prepended to the request
	Temperature   float64       // Sampling temperature (0.0-2.0)
	Thinking      string        // Extended thinking mode configuration
	MetricsSink   func(Metrics) // Receives the usage counters of this call
}

// GenerateOption is a functional option for configuring model calls.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithThinking returns a GenerateOption that enables extended thinking mode.
func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

// WithMetricsSink returns a GenerateOption that reports the call's usage
// counters to sink. The client's accumulated totals are updated either
// way; the sink lets a caller scope usage to a single run.
func WithMetricsSink(sink func(Metrics)) GenerateOption {
	return func(o *GenerateOptions) {
		o.MetricsSink = sink
	}
}

// Client is the canonical model-provider contract. Each adapter maps its
// native wire shapes into this interface; provider-specific recovery
// heuristics stay inside the adapter.
type Client interface {
	// Complete asks the model for its next action given the turn history
	// and the available tools. The reply carries either assistant text or
	// tool requests, never raw provider shapes.
	Complete(
		ctx context.Context,
		turns []Turn,
		tools []ToolSpec,
		opts ...GenerateOption,
	) (*Reply, error)

	// CompleteStructured forces a single schema-constrained reply and
	// unmarshals it into out. Used for the final formatting pass of a run.
	CompleteStructured(
		ctx context.Context,
		turns []Turn,
		name string,
		description string,
		out any,
		opts ...GenerateOption,
	) error

	// ResetMetrics and GetMetrics manage the client's process-lifetime
	// usage counters. Per-run usage goes through WithMetricsSink instead.
	ResetMetrics()
	GetMetrics() Metrics
}
