package agent

import (
	"context"
	"strings"
)

// Role of a conversation turn.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Turn is one message of the conversation.
//
// Turns coming from the caller only carry text. The orchestrator adds turns carrying the tool
// calls it executed (assistant) and their results (user) while it works on a command.
type Turn struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	ToolUses    []ToolUse    `json:"toolUses,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// ToolUse is a tool invocation requested by the reasoning service.
type ToolUse struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult is the output of a tool, fed back to the reasoning service.
type ToolResult struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content any    `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// Request is a call to the reasoning service.
type Request struct {
	SystemPrompt string
	Tools        []Tool
	Messages     []Turn
}

// Block is a piece of a response: either text or a tool invocation.
type Block struct {
	Text    string   `json:"text,omitempty"`
	ToolUse *ToolUse `json:"toolUse,omitempty"`
}

// Response of the reasoning service.
type Response struct {
	Content []Block `json:"content"`
}

// Text returns the concatenated text blocks.
func (r *Response) Text() string {
	var parts []string
	for _, b := range r.Content {
		if b.ToolUse == nil && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// ToolUses returns the tool invocations, in order.
func (r *Response) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, b := range r.Content {
		if b.ToolUse != nil {
			uses = append(uses, *b.ToolUse)
		}
	}
	return uses
}

// Reasoner is the reasoning service: given a system prompt, tool schemas and messages it
// answers with text, tool invocations, or both.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (*Response, error)
}

// ReasonerFunc adapts a function to a Reasoner.
type ReasonerFunc func(ctx context.Context, req Request) (*Response, error)

func (f ReasonerFunc) Reason(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }
