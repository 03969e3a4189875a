package agent

import (
	"context"

	"github.com/leaseline/lead-gateway/internal/llm"
)

// Tool is a callable declared to the agent. Execute receives the raw
// JSON-encoded arguments from the model's tool call and returns a short
// status string; that string is the only feedback the model sees.
type Tool interface {
	Name() string
	Description() string
	Schema() llm.ToolSchema
	Execute(ctx context.Context, arguments string) (ToolResult, error)
}

// ToolResult carries a tool execution's outcome back to the calling code.
// Data holds tool-specific values (e.g. a created record id) so nothing has
// to be smuggled through shared state.
type ToolResult struct {
	Status string
	Data   map[string]any
}

// OK reports whether the status string signals acceptance.
func (r ToolResult) OK() bool {
	return len(r.Status) >= 8 && r.Status[:8] == "Success:"
}

func toolSpecs(tools []Tool) []llm.Tool {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return specs
}
