package agent

import (
	"context"
	"fmt"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
)

// Schema is a JSON schema subset describing tool parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Tool declares a tool to the reasoning service.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters"`
}

// Env is what a read tool may look at.
type Env struct {
	Snapshot *folio.Snapshot
	Today    date.Date
}

type Function interface {
	// Declare this function
	Declaration() Tool
	// Call this function
	Call(ctx context.Context, env Env, args map[string]any) (any, error)
}

// Func implements a simple Function
type Func struct {
	Decl Tool
	Func func(ctx context.Context, env Env, args map[string]any) (any, error)
}

func (f *Func) Declaration() Tool { return f.Decl }
func (f *Func) Call(ctx context.Context, env Env, args map[string]any) (any, error) {
	return f.Func(ctx, env, args)
}

// Library dispatches a tool use to the function declaring it. Failures are reported in the
// result, never returned.
type Library func(context.Context, Env, ToolUse) ToolResult

// NewLibrary returns the Library of functions.
func NewLibrary[T Function](functions []T) Library {
	return func(ctx context.Context, env Env, call ToolUse) (res ToolResult) {
		res = ToolResult{ID: call.ID, Name: call.Name}
		defer func() {
			if p := recover(); p != nil {
				res.Content, res.IsError = map[string]any{"error": fmt.Sprintf("%s failed: %v", call.Name, p)}, true
			}
		}()
		for _, e := range functions {
			if e.Declaration().Name != call.Name {
				continue
			}
			out, err := e.Call(ctx, env, call.Input)
			if err != nil {
				res.Content, res.IsError = map[string]any{"error": err.Error()}, true
				return res
			}
			res.Content = out
			return res
		}
		res.Content, res.IsError = map[string]any{"error": fmt.Sprintf("unknown function %s", call.Name)}, true
		return res
	}
}

// NewDeclaration returns the declarations of functions.
func NewDeclaration[T Function](functions []T) []Tool {
	result := make([]Tool, 0, len(functions))
	for _, e := range functions {
		result = append(result, e.Declaration())
	}
	return result
}
