package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomkg/loom/pkg/model"
)

// Handler executes one tool operation. The args map contains the decoded
// model-supplied arguments; for providers registered with
// NeedsConversationContext it additionally contains the ambient context
// injected by the dispatcher.
type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// Operation is a single named function a provider exposes.
type Operation struct {
	Name        string         // Operation name, unique within the provider
	Description string         // Human-readable description of what the operation does
	Parameters  map[string]any // JSON Schema defining the operation's input parameters
	Handler     Handler        // Function to execute when the operation is called
}

// Provider is an external capability exposing named operations the model
// can request. NeedsConversationContext is a capability flag resolved at
// registration time; providers with it set receive the ambient
// conversation context in their argument bag.
type Provider struct {
	Name                     string
	NeedsConversationContext bool
	Operations               []Operation
}

// nameSeparator joins provider and operation into the model-facing tool
// name. Provider names may themselves contain the separator; resolution
// goes through an exact reverse-lookup map, never through splitting.
const nameSeparator = "__"

// SanitizeName lowercases s and replaces every character outside
// [a-z0-9_-] with an underscore, producing a name models accept.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ComposeName builds the model-facing tool name for a provider operation.
func ComposeName(provider, operation string) string {
	return SanitizeName(provider) + nameSeparator + SanitizeName(operation)
}

type binding struct {
	provider  *Provider
	operation Operation
	toolName  string
}

// Registry holds the registered providers and the reverse lookup from
// model-facing tool names to provider operations.
type Registry struct {
	providers  map[string]*Provider
	byToolName map[string]binding
	order      []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:  map[string]*Provider{},
		byToolName: map[string]binding{},
	}
}

// Register adds a provider and indexes all of its operations under their
// composed tool names. Registration fails on duplicate provider names and
// on composed-name collisions.
func (r *Registry) Register(p Provider) error {
	if p.Name == "" {
		return fmt.Errorf("provider name is empty")
	}
	if _, ok := r.providers[p.Name]; ok {
		return fmt.Errorf("provider already registered: %s", p.Name)
	}

	prov := &p
	for _, op := range p.Operations {
		toolName := ComposeName(p.Name, op.Name)
		if existing, ok := r.byToolName[toolName]; ok {
			return fmt.Errorf(
				"tool name collision: %s maps to both %s.%s and %s.%s",
				toolName, existing.provider.Name, existing.operation.Name, p.Name, op.Name,
			)
		}
		r.byToolName[toolName] = binding{
			provider:  prov,
			operation: op,
			toolName:  toolName,
		}
		r.order = append(r.order, toolName)
	}
	r.providers[p.Name] = prov

	return nil
}

// Resolve inverts a composed tool name back to its provider and operation.
// The second return value is false for unknown names.
func (r *Registry) Resolve(toolName string) (*Provider, Operation, bool) {
	b, ok := r.byToolName[toolName]
	if !ok {
		return nil, Operation{}, false
	}
	return b.provider, b.operation, true
}

// Specs returns the model-facing tool specifications for every registered
// operation, in registration order.
func (r *Registry) Specs() []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(r.order))
	for _, toolName := range r.order {
		b := r.byToolName[toolName]
		specs = append(specs, model.ToolSpec{
			Name:        b.toolName,
			Description: b.operation.Description,
			Parameters:  b.operation.Parameters,
		})
	}
	return specs
}
