package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/folio"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-pro"

// Gemini is a Reasoner backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini reasoner. An empty apiKey lets the client read GEMINI_API_KEY
// from the environment.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	var cfg *genai.ClientConfig
	if apiKey != "" {
		cfg = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Reason sends the whole conversation in a single stateless call.
func (g *Gemini) Reason(ctx context.Context, req Request) (*Response, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: toGenaiParameters(t.Parameters)}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(req.Messages), config)
	if err != nil {
		return nil, folio.ServiceError{Service: "reasoning", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, folio.ServiceError{Service: "reasoning", Err: fmt.Errorf("no response from model %s", g.model)}
	}
	out := &Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			out.Content = append(out.Content, Block{ToolUse: &ToolUse{
				ID:    part.FunctionCall.ID,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			}})
		case part.Text != "" && !part.Thought:
			out.Content = append(out.Content, Block{Text: part.Text})
		}
	}
	return out, nil
}

var genaiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// toGenaiParameters maps tool parameters. Tools without arguments declare none: Gemini rejects
// object schemas without properties.
func toGenaiParameters(s *Schema) *genai.Schema {
	if s == nil || (s.Type == "object" && len(s.Properties) == 0) {
		return nil
	}
	return toGenaiSchema(s)
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
	}
	return out
}

// toContents maps turns to Gemini contents: the assistant is the "model" role, tool calls
// and results become function call and response parts.
func toContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := string(genai.RoleUser)
		if t.Role == Assistant {
			role = string(genai.RoleModel)
		}
		c := &genai.Content{Role: role}
		if t.Content != "" {
			c.Parts = append(c.Parts, &genai.Part{Text: t.Content})
		}
		for _, u := range t.ToolUses {
			c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: u.ID, Name: u.Name, Args: u.Input}})
		}
		for _, r := range t.ToolResults {
			c.Parts = append(c.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: r.ID, Name: r.Name, Response: responseMap(r)}})
		}
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	return contents
}

// responseMap turns a tool result into the JSON object Gemini expects: errors under "error",
// everything else under "output".
func responseMap(r ToolResult) map[string]any {
	if m, ok := r.Content.(map[string]any); ok && r.IsError {
		return m
	}
	// Round-trip through JSON so typed results reach the API as plain maps.
	b, err := json.Marshal(r.Content)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"output": v}
}
