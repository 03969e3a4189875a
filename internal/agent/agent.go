package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/pkg/logger"
)

var (
	// ErrEmptyCompletion is returned when the model produced neither
	// content nor a tool call.
	ErrEmptyCompletion = errors.New("agent returned an empty completion")
)

// Exchange is the outcome of one ChatOnce round trip: the assistant's text
// plus the results of any tool calls the agent made.
type Exchange struct {
	Content     string
	ToolResults []ToolResult
}

// Agent wraps one persona-configured model. It keeps a bounded conversation
// history and exposes declared tools to the model. ChatOnce is a single
// request/response exchange, never a loop.
type Agent struct {
	client       llm.Client
	persona      string
	model        string
	historyLimit int
	tools        []Tool
	toolsByName  map[string]Tool
	history      []llm.Message
}

func New(client llm.Client, persona, model string, historyLimit int, tools ...Tool) *Agent {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Agent{
		client:       client,
		persona:      persona,
		model:        model,
		historyLimit: historyLimit,
		tools:        tools,
		toolsByName:  byName,
	}
}

// ChatOnce sends the persona, the trimmed history and one user message, then
// executes whatever tool calls the model emitted. The model may choose not
// to call any tool; callers must treat that as a valid outcome.
func (a *Agent) ChatOnce(ctx context.Context, userMessage string) (*Exchange, error) {
	a.pushHistory(llm.Message{Role: llm.RoleUser, Content: userMessage})

	messages := make([]llm.Message, 0, len(a.history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.persona})
	messages = append(messages, a.history...)

	resp, err := a.client.Chat(ctx, &llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
		Tools:    toolSpecs(a.tools),
	})
	if err != nil {
		return nil, fmt.Errorf("agent chat: %w", err)
	}

	reply := resp.First()
	if reply.Content == "" && len(reply.ToolCalls) == 0 {
		return nil, ErrEmptyCompletion
	}
	a.pushHistory(reply)

	exchange := &Exchange{Content: reply.Content}
	for _, call := range reply.ToolCalls {
		result := a.dispatch(ctx, call)
		exchange.ToolResults = append(exchange.ToolResults, result)
		a.pushHistory(llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Name:       call.Function.Name,
			Content:    result.Status,
		})
	}

	return exchange, nil
}

func (a *Agent) dispatch(ctx context.Context, call llm.ToolCall) ToolResult {
	tool, ok := a.toolsByName[call.Function.Name]
	if !ok {
		logger.Warn("agent called undeclared tool", "tool", call.Function.Name)
		return ToolResult{Status: "Failure: unknown tool " + call.Function.Name}
	}

	result, err := tool.Execute(ctx, call.Function.Arguments)
	if err != nil {
		logger.Error("tool execution failed", "tool", call.Function.Name, "error", err)
		return ToolResult{Status: "Failure: " + err.Error()}
	}
	return result
}

func (a *Agent) pushHistory(msg llm.Message) {
	a.history = append(a.history, msg)
	// historyLimit counts user/assistant exchanges, mirroring the personas'
	// expectation of shallow context.
	max := a.historyLimit * 2
	if max > 0 && len(a.history) > max {
		a.history = a.history[len(a.history)-max:]
	}
}
