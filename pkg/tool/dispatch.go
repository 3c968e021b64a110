package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/model"
)

// Ambient is the per-conversation context injected into providers that
// declared NeedsConversationContext.
type Ambient struct {
	ConversationID string
	APIBaseURL     string
	AccessToken    string
}

// DefaultInvocationTimeout bounds a single tool invocation.
const DefaultInvocationTimeout = 120 * time.Second

// Dispatcher resolves model tool requests against a Registry and executes
// them. Failures of any kind (unknown tool, bad arguments, handler error
// or panic) are absorbed into textual Results so the model can read them;
// Dispatch never returns an error to the caller.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher over the given registry. A
// non-positive timeout falls back to DefaultInvocationTimeout.
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultInvocationTimeout
	}
	return &Dispatcher{registry: registry, timeout: timeout}
}

// Dispatch executes a single tool request and always returns a usable
// Result.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.ToolRequest, ambient Ambient) *Result {
	provider, op, ok := d.registry.Resolve(req.Name)
	if !ok {
		logger.Warn("unknown tool requested", "tool", req.Name)
		return TextResult(fmt.Sprintf("Error: unknown tool %q", req.Name))
	}

	args := map[string]any{}
	if req.Arguments != "" {
		if err := json.Unmarshal([]byte(req.Arguments), &args); err != nil {
			logger.Warn("invalid tool arguments", "tool", req.Name, "error", err)
			return TextResult(fmt.Sprintf("Error: invalid arguments for %q: %v", req.Name, err))
		}
	}

	if provider.NeedsConversationContext {
		args["conversation_id"] = ambient.ConversationID
		args["api_base_url"] = ambient.APIBaseURL
		args["access_token"] = ambient.AccessToken
	}

	invokeCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := invoke(invokeCtx, op, args)
	if err != nil {
		logger.Warn("tool invocation failed", "tool", req.Name, "error", err)
		return TextResult(fmt.Sprintf("Error executing %q: %v", req.Name, err))
	}
	if result == nil {
		return TextResult(fmt.Sprintf("Tool %q returned no output", req.Name))
	}
	return result
}

// DispatchAll executes a batch of tool requests concurrently and returns
// the Results in request order.
func (d *Dispatcher) DispatchAll(ctx context.Context, reqs []model.ToolRequest, ambient Ambient) []*Result {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = d.Dispatch(gctx, req, ambient)
			return nil
		})
	}
	// goroutines never return errors, Dispatch absorbs them
	_ = g.Wait()

	return results
}

func invoke(ctx context.Context, op Operation, args map[string]any) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return op.Handler(ctx, args)
}
