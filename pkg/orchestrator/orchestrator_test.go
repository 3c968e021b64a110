package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/loomkg/loom/pkg/model"
	"github.com/loomkg/loom/pkg/tool"
)

type stubClient struct {
	mu          sync.Mutex
	replies     []*model.Reply
	completeErr error
	structured  formattedResponse
	structErr   error
	usage       model.Metrics

	completeCalls   int
	structuredCalls int
	lastTurns       []model.Turn
}

func (c *stubClient) reportUsage(opts []model.GenerateOption) {
	options := model.GenerateOptions{}
	for _, o := range opts {
		o(&options)
	}
	if options.MetricsSink != nil {
		options.MetricsSink(c.usage)
	}
}

func (c *stubClient) Complete(
	ctx context.Context,
	turns []model.Turn,
	tools []model.ToolSpec,
	opts ...model.GenerateOption,
) (*model.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeCalls++
	c.lastTurns = turns
	if c.completeErr != nil {
		return nil, c.completeErr
	}
	c.reportUsage(opts)
	if len(c.replies) == 0 {
		return &model.Reply{Text: "nothing left to do"}, nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *stubClient) CompleteStructured(
	ctx context.Context,
	turns []model.Turn,
	name string,
	description string,
	out any,
	opts ...model.GenerateOption,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structuredCalls++
	if c.structErr != nil {
		return c.structErr
	}
	c.reportUsage(opts)
	b, err := json.Marshal(c.structured)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (c *stubClient) ResetMetrics() {}

func (c *stubClient) GetMetrics() model.Metrics { return model.Metrics{} }

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []string
	errors   []string
	results  []*RunResult
}

func (n *recordingNotifier) Status(conversationID, runID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, message)
}

func (n *recordingNotifier) Error(conversationID, runID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) Result(conversationID, runID string, r *RunResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
}

func textOnlyResponse(text string) formattedResponse {
	return formattedResponse{Segments: []formattedSegment{{Type: "text", Content: text}}}
}

func newTestConfig(client *stubClient, notifier Notifier, registry *tool.Registry) Config {
	return Config{
		Client:     client,
		Registry:   registry,
		Dispatcher: tool.NewDispatcher(registry, 0),
		Notifier:   notifier,
	}
}

func TestRunWithoutToolRequests(t *testing.T) {
	client := &stubClient{
		replies:    []*model.Reply{{Text: "direct answer"}},
		structured: textOnlyResponse("direct answer"),
	}
	notifier := &recordingNotifier{}
	o, err := New(newTestConfig(client, notifier, tool.NewRegistry()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background(), Request{ConversationID: "c1", Message: "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Rounds != 0 {
		t.Fatalf("expected 0 tool rounds, got %d", result.Rounds)
	}
	if client.completeCalls != 1 || client.structuredCalls != 1 {
		t.Fatalf("expected 1 complete + 1 structured call, got %d/%d",
			client.completeCalls, client.structuredCalls)
	}
	if len(result.Segments) != 1 || result.Segments[0].Content != "direct answer" {
		t.Fatalf("unexpected segments: %+v", result.Segments)
	}
	if len(notifier.results) != 1 {
		t.Fatalf("expected exactly one terminal result, got %d", len(notifier.results))
	}
	if len(notifier.errors) != 0 {
		t.Fatalf("unexpected error notifications: %v", notifier.errors)
	}
}

func TestRunDispatchesToolsAndStopsOnPlanner(t *testing.T) {
	registry := tool.NewRegistry()
	var invocations int
	_ = registry.Register(tool.Provider{
		Name: "lookup",
		Operations: []tool.Operation{{
			Name: "find",
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				invocations++
				return tool.TextResult("found it"), nil
			},
		}},
	})
	_ = registry.Register(tool.Provider{
		Name: "planner",
		Operations: []tool.Operation{{
			Name: "plan",
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				return tool.TextResult("noted"), nil
			},
		}},
	})

	client := &stubClient{
		replies: []*model.Reply{
			{ToolRequests: []model.ToolRequest{
				{ID: "1", Name: "lookup__find", Arguments: `{"q":"x"}`},
				{ID: "2", Name: "planner__plan", Arguments: `{"continue": false}`},
			}},
		},
		structured: textOnlyResponse("done"),
	}
	notifier := &recordingNotifier{}
	cfg := newTestConfig(client, notifier, registry)
	cfg.PlanningTool = "planner__plan"
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background(), Request{ConversationID: "c1", Message: "go"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if invocations != 1 {
		t.Fatalf("expected 1 tool invocation, got %d", invocations)
	}
	if result.Rounds != 1 {
		t.Fatalf("expected 1 round, got %d", result.Rounds)
	}
	if client.completeCalls != 1 {
		t.Fatalf("planner continue=false must stop the loop, got %d complete calls", client.completeCalls)
	}

	var sawTrace bool
	for _, turn := range result.Turns {
		if strings.Contains(turn.Content, "Result of lookup__find: found it") {
			sawTrace = true
		}
	}
	if !sawTrace {
		t.Fatalf("tool result trace missing from turns: %+v", result.Turns)
	}
}

func TestRunAbsorbsToolErrors(t *testing.T) {
	registry := tool.NewRegistry()
	_ = registry.Register(tool.Provider{
		Name: "flaky",
		Operations: []tool.Operation{{
			Name: "op",
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				return nil, errors.New("upstream exploded")
			},
		}},
	})

	client := &stubClient{
		replies: []*model.Reply{
			{ToolRequests: []model.ToolRequest{{ID: "1", Name: "flaky__op"}}},
			{Text: "recovered anyway"},
		},
		structured: textOnlyResponse("recovered anyway"),
	}
	notifier := &recordingNotifier{}
	o, err := New(newTestConfig(client, notifier, registry))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background(), Request{ConversationID: "c1", Message: "go"})
	if err != nil {
		t.Fatalf("tool errors must not abort the run: %v", err)
	}
	if len(notifier.errors) != 0 {
		t.Fatalf("tool errors must not emit error records: %v", notifier.errors)
	}

	var sawError bool
	for _, turn := range result.Turns {
		if strings.Contains(turn.Content, "upstream exploded") {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("absorbed tool error missing from turns: %+v", result.Turns)
	}
}

func TestRunStopsAtRoundCap(t *testing.T) {
	registry := tool.NewRegistry()
	_ = registry.Register(tool.Provider{
		Name: "planner",
		Operations: []tool.Operation{{
			Name: "plan",
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				return tool.TextResult("continuing"), nil
			},
		}},
	})

	eagerReply := func() *model.Reply {
		return &model.Reply{ToolRequests: []model.ToolRequest{
			{ID: "1", Name: "planner__plan", Arguments: `{"continue": true}`},
		}}
	}
	client := &stubClient{
		replies: []*model.Reply{
			eagerReply(), eagerReply(), eagerReply(), eagerReply(), eagerReply(),
		},
		structured: textOnlyResponse("partial progress"),
	}
	notifier := &recordingNotifier{}
	cfg := newTestConfig(client, notifier, registry)
	cfg.PlanningTool = "planner__plan"
	cfg.MaxRounds = 3
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background(), Request{ConversationID: "c1", Message: "loop"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Rounds != 3 {
		t.Fatalf("expected the cap to stop at 3 rounds, got %d", result.Rounds)
	}
	if client.structuredCalls != 1 {
		t.Fatalf("cap must still format a response, got %d structured calls", client.structuredCalls)
	}
	if len(notifier.results) != 1 {
		t.Fatalf("expected one terminal result, got %d", len(notifier.results))
	}
}

func TestRunModelErrorIsTerminal(t *testing.T) {
	client := &stubClient{completeErr: fmt.Errorf("model unavailable")}
	notifier := &recordingNotifier{}
	o, err := New(newTestConfig(client, notifier, tool.NewRegistry()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = o.Run(context.Background(), Request{ConversationID: "c1", Message: "hi"})
	if err == nil {
		t.Fatalf("expected the model error to propagate")
	}
	if len(notifier.errors) != 1 {
		t.Fatalf("expected exactly one terminal error record, got %d", len(notifier.errors))
	}
	if len(notifier.results) != 0 {
		t.Fatalf("no result record may follow a model error")
	}
}

func TestRunSeedsPinnedContext(t *testing.T) {
	client := &stubClient{
		replies:    []*model.Reply{{Text: "ok"}},
		structured: textOnlyResponse("ok"),
	}
	notifier := &recordingNotifier{}
	o, err := New(newTestConfig(client, notifier, tool.NewRegistry()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background(), Request{
		ConversationID: "c1",
		Message:        "explain",
		History: []model.Turn{
			{Role: model.RoleUser, Content: "earlier question"},
			{Role: model.RoleAssistant, Content: "earlier answer"},
		},
		PinnedArtifacts: []tool.Artifact{{ID: "a1", Type: "report", Title: "Pinned Report"}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Turns[0].Content != "earlier question" {
		t.Fatalf("history not seeded first: %+v", result.Turns[0])
	}
	var sawPin bool
	for _, turn := range result.Turns {
		if strings.Contains(turn.Content, "Pinned Report") {
			sawPin = true
		}
	}
	if !sawPin {
		t.Fatalf("pinned artifacts not announced in turns")
	}

	// pinned artifacts resurface in the finalized artifact list
	if len(result.Artifacts) != 1 || result.Artifacts[0].ID != "a1" {
		t.Fatalf("pinned artifact missing from result: %+v", result.Artifacts)
	}
}

// publishSnapshot records the artifact URLs visible at the moment the
// terminal result is published.
type publishSnapshot struct {
	recordingNotifier
	urls []string
}

func (n *publishSnapshot) Result(conversationID, runID string, r *RunResult) {
	for _, a := range r.Artifacts {
		n.urls = append(n.urls, a.URL)
	}
	n.recordingNotifier.Result(conversationID, runID, r)
}

func TestFinishArtifactsRunsBeforePublication(t *testing.T) {
	client := &stubClient{
		replies:    []*model.Reply{{Text: "done"}},
		structured: textOnlyResponse("done"),
	}
	notifier := &publishSnapshot{}
	cfg := newTestConfig(client, notifier, tool.NewRegistry())
	cfg.FinishArtifacts = func(ctx context.Context, conversationID string, artifacts []tool.Artifact) []tool.Artifact {
		for i := range artifacts {
			artifacts[i].URL = "https://files.example/" + artifacts[i].ID
			artifacts[i].Data = nil
		}
		return artifacts
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background(), Request{
		ConversationID:  "c1",
		Message:         "render",
		PinnedArtifacts: []tool.Artifact{{ID: "a1", Type: "binary", Title: "Plot", Data: []byte{1, 2, 3}}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(notifier.urls) != 1 || notifier.urls[0] != "https://files.example/a1" {
		t.Fatalf("published result must already carry finished artifacts, saw urls %v", notifier.urls)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].Data != nil {
		t.Fatalf("finished artifact must have its payload swapped for the url: %+v", result.Artifacts)
	}
}

func TestRunMetricsAreScopedToTheRun(t *testing.T) {
	client := &stubClient{
		replies:    []*model.Reply{{Text: "first"}},
		structured: textOnlyResponse("first"),
		usage:      model.Metrics{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMs: 7},
	}
	o, err := New(newTestConfig(client, &recordingNotifier{}, tool.NewRegistry()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// one Complete plus one structured formatting call
	first, err := o.Run(context.Background(), Request{ConversationID: "c1", Message: "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := model.Metrics{InputTokens: 20, OutputTokens: 10, TotalTokens: 30, DurationMs: 14}
	if first.Metrics != want {
		t.Fatalf("expected run metrics %+v, got %+v", want, first.Metrics)
	}

	// a later run on the same client starts from zero again
	client.replies = []*model.Reply{{Text: "second"}}
	second, err := o.Run(context.Background(), Request{ConversationID: "c2", Message: "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if second.Metrics != want {
		t.Fatalf("run metrics must not carry over between runs: %+v", second.Metrics)
	}
}
