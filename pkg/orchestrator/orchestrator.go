// Package orchestrator runs the bounded tool-calling conversation loop:
// it queries the model, dispatches requested tools, folds their results
// into an artifact set and formats the final response.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/artifact"
	"github.com/loomkg/loom/pkg/graph"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/model"
	"github.com/loomkg/loom/pkg/tool"
)

// DefaultMaxRounds caps the number of tool rounds in one run.
const DefaultMaxRounds = 16

// Notifier receives progress records during a run. Calls are
// fire-and-forget; a slow or failing notifier must not stall the loop.
type Notifier interface {
	Status(conversationID, runID, message string)
	Error(conversationID, runID, message string)
	Result(conversationID, runID string, result *RunResult)
}

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

func (NoopNotifier) Status(conversationID, runID, message string) {}

func (NoopNotifier) Error(conversationID, runID, message string) {}

func (NoopNotifier) Result(conversationID, runID string, r *RunResult) {}

// Config wires an Orchestrator.
type Config struct {
	Client     model.Client
	Registry   *tool.Registry
	Dispatcher *tool.Dispatcher
	Notifier   Notifier

	// MaxRounds caps tool rounds per run; zero means DefaultMaxRounds.
	MaxRounds int

	// PlanningTool is the composed name of the continuation-flag tool.
	// After a round that invoked it, the run continues only when its
	// arguments carried continue=true.
	PlanningTool string

	// APIBaseURL is handed to graph-aware tools as ambient context.
	APIBaseURL string

	// FinishArtifacts post-processes the finalized artifacts, e.g.
	// offloading binary payloads to object storage. It runs before the
	// terminal result is published; a published RunResult is never
	// mutated afterwards.
	FinishArtifacts func(ctx context.Context, conversationID string, artifacts []tool.Artifact) []tool.Artifact

	// TurnBudget bounds history tokens per model call; zero means the
	// default budget.
	TurnBudget int

	SystemPrompts []string
}

// Request starts one run of the loop for a conversation.
type Request struct {
	ConversationID  string
	Message         string
	History         []model.Turn
	PinnedGraph     *graph.Fragment
	PinnedArtifacts []tool.Artifact
	AccessToken     string
}

// Segment is one ordered piece of the formatted response. Type is "text"
// or "artifact"; artifact segments reference an artifact by id.
type Segment struct {
	Type       string `json:"type"`
	Content    string `json:"content,omitempty"`
	ArtifactID string `json:"artifact_id,omitempty"`
}

// RunResult is the terminal outcome of a run. Turns holds the full turn
// history accumulated during the run so the caller can persist it.
type RunResult struct {
	RunID     string          `json:"run_id"`
	Segments  []Segment       `json:"segments"`
	Artifacts []tool.Artifact `json:"artifacts"`
	Rounds    int             `json:"rounds"`
	Turns     []model.Turn    `json:"-"`
	Metrics   model.Metrics   `json:"metrics"`
}

type formattedSegment struct {
	Type       string `json:"type" jsonschema:"enum=text,enum=artifact"`
	Content    string `json:"content"`
	ArtifactID string `json:"artifact_id"`
}

type formattedResponse struct {
	Segments []formattedSegment `json:"segments"`
}

type plannerArgs struct {
	Continue bool `json:"continue"`
}

// Orchestrator drives runs. It is stateless across runs and safe for
// concurrent use as long as its collaborators are.
type Orchestrator struct {
	cfg Config
}

// New validates the configuration and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if cfg.Registry == nil || cfg.Dispatcher == nil {
		return nil, fmt.Errorf("tool registry and dispatcher are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NoopNotifier{}
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.TurnBudget <= 0 {
		cfg.TurnBudget = defaultTurnBudget
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Run executes one full pass of the loop and returns the terminal result.
// Tool failures are absorbed into the conversation; a model failure aborts
// the run after exactly one terminal error notification.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	runID := util.NewID()
	notifier := o.cfg.Notifier

	var metrics model.Metrics

	set := artifact.NewSet()
	set.SeedGraph(req.PinnedGraph)
	if len(req.PinnedArtifacts) > 0 {
		set.Accumulate(&tool.Result{Artifacts: req.PinnedArtifacts})
	}

	turns := o.seedTurns(req)
	ambient := tool.Ambient{
		ConversationID: req.ConversationID,
		APIBaseURL:     o.cfg.APIBaseURL,
		AccessToken:    req.AccessToken,
	}
	specs := o.cfg.Registry.Specs()

	rounds := 0
	for {
		if rounds >= o.cfg.MaxRounds {
			logger.Warn("round cap reached, terminating with partial progress",
				"conversation", req.ConversationID, "rounds", rounds)
			notifier.Status(req.ConversationID, runID, "Maximum tool rounds reached, wrapping up")
			break
		}

		notifier.Status(req.ConversationID, runID, "Thinking")
		reply, err := o.cfg.Client.Complete(
			ctx, trimTurns(turns, o.cfg.TurnBudget), specs,
			model.WithSystemPrompts(o.cfg.SystemPrompts...),
			model.WithMetricsSink(metrics.Add),
		)
		if err != nil {
			logger.Error("model call failed", "conversation", req.ConversationID, "error", err)
			notifier.Error(req.ConversationID, runID, fmt.Sprintf("model call failed: %v", err))
			return nil, err
		}

		if reply.Text != "" {
			turns = append(turns, model.Turn{Role: model.RoleAssistant, Content: reply.Text})
		}
		if len(reply.ToolRequests) == 0 {
			break
		}

		rounds++
		notifier.Status(req.ConversationID, runID, describeRound(reply.ToolRequests))

		results := o.cfg.Dispatcher.DispatchAll(ctx, reply.ToolRequests, ambient)
		for i, toolReq := range reply.ToolRequests {
			res := results[i]
			set.Accumulate(res)
			turns = append(turns,
				model.Turn{
					Role:    model.RoleAssistant,
					Content: fmt.Sprintf("Invoked tool %s with arguments %s", toolReq.Name, toolReq.Arguments),
				},
				model.Turn{
					Role:    model.RoleUser,
					Content: fmt.Sprintf("Result of %s: %s", toolReq.Name, res.Text),
				},
			)
		}

		if !o.shouldContinue(reply.ToolRequests) {
			break
		}
	}

	notifier.Status(req.ConversationID, runID, "Formatting response")

	artifacts := set.Finalize()
	if o.cfg.FinishArtifacts != nil {
		artifacts = o.cfg.FinishArtifacts(ctx, req.ConversationID, artifacts)
	}
	segments, err := o.format(ctx, turns, artifacts, metrics.Add)
	if err != nil {
		logger.Error("formatting failed", "conversation", req.ConversationID, "error", err)
		notifier.Error(req.ConversationID, runID, fmt.Sprintf("formatting failed: %v", err))
		return nil, err
	}

	result := &RunResult{
		RunID:     runID,
		Segments:  segments,
		Artifacts: artifacts,
		Rounds:    rounds,
		Turns:     turns,
		Metrics:   metrics,
	}
	notifier.Result(req.ConversationID, runID, result)
	return result, nil
}

func (o *Orchestrator) seedTurns(req Request) []model.Turn {
	turns := make([]model.Turn, 0, len(req.History)+3)
	turns = append(turns, req.History...)

	if req.PinnedGraph != nil && (len(req.PinnedGraph.Nodes) > 0 || len(req.PinnedGraph.Links) > 0) {
		if encoded, err := json.Marshal(req.PinnedGraph); err == nil {
			turns = append(turns, model.Turn{
				Role:    model.RoleAssistant,
				Content: "The conversation was opened on this knowledge graph: " + string(encoded),
			})
		}
	}
	if len(req.PinnedArtifacts) > 0 {
		var names []string
		for _, a := range req.PinnedArtifacts {
			names = append(names, fmt.Sprintf("%s (%s)", a.Title, a.Type))
		}
		turns = append(turns, model.Turn{
			Role:    model.RoleAssistant,
			Content: "Artifacts pinned to this conversation: " + strings.Join(names, ", "),
		})
	}

	return append(turns, model.Turn{Role: model.RoleUser, Content: req.Message})
}

// shouldContinue reads the continuation flag from the round's planning
// tool invocation. No planning tool in the round, or continue=false, ends
// the loop.
func (o *Orchestrator) shouldContinue(requests []model.ToolRequest) bool {
	if o.cfg.PlanningTool == "" {
		return true
	}
	for _, req := range requests {
		if req.Name != o.cfg.PlanningTool {
			continue
		}
		var args plannerArgs
		if err := model.UnmarshalFlexible(req.Arguments, &args); err != nil {
			logger.Warn("unreadable planning arguments, terminating", "error", err)
			return false
		}
		return args.Continue
	}
	return false
}

func (o *Orchestrator) format(ctx context.Context, turns []model.Turn, artifacts []tool.Artifact, sink func(model.Metrics)) ([]Segment, error) {
	instructions := buildFormatInstructions(artifacts)
	formatTurns := append(trimTurns(turns, o.cfg.TurnBudget), model.Turn{
		Role:    model.RoleUser,
		Content: instructions,
	})

	var response formattedResponse
	err := o.cfg.Client.CompleteStructured(
		ctx, formatTurns,
		"formatted_response",
		"The final response, split into ordered text and artifact segments.",
		&response,
		model.WithMetricsSink(sink),
	)
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(response.Segments))
	for _, seg := range response.Segments {
		switch seg.Type {
		case "artifact":
			if seg.ArtifactID == "" {
				continue
			}
			segments = append(segments, Segment{Type: "artifact", ArtifactID: seg.ArtifactID})
		default:
			if seg.Content == "" {
				continue
			}
			segments = append(segments, Segment{Type: "text", Content: seg.Content})
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("formatting produced no segments")
	}
	return segments, nil
}

func buildFormatInstructions(artifacts []tool.Artifact) string {
	var sb strings.Builder
	sb.WriteString("Compose the final answer for the user as ordered segments. ")
	sb.WriteString("Use type \"text\" for prose and type \"artifact\" to embed one of the available artifacts by its id.")
	if len(artifacts) > 0 {
		sb.WriteString(" Available artifacts:")
		for _, a := range artifacts {
			fmt.Fprintf(&sb, " [id=%s type=%s title=%q]", a.ID, a.Type, a.Title)
		}
	}
	return sb.String()
}

func describeRound(requests []model.ToolRequest) string {
	names := make([]string, 0, len(requests))
	for _, req := range requests {
		names = append(names, req.Name)
	}
	return "Running tools: " + strings.Join(names, ", ")
}
