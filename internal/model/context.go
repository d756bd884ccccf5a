package model

import (
	"encoding/json"
	"strings"
)

// ContextType tags the shape of a contextual answer
type ContextType string

const (
	ContextTypeText     ContextType = "text"
	ContextTypeMarkdown ContextType = "markdown"
	ContextTypeTable    ContextType = "table"
	ContextTypeGraph    ContextType = "graph"
)

// Graph types
const (
	GraphTypeBar  = "bar"
	GraphTypeLine = "line"
	GraphTypePie  = "pie"
)

// AskContextRequest is the body of POST /ask_context
type AskContextRequest struct {
	OriginalQuery string `json:"originalQuery" validate:"required,max=500"`
	UserQuestion  string `json:"userQuestion" validate:"required,max=2000"`
}

// ContextResponse is a tagged union over text, markdown, table and graph answers.
// Only the fields belonging to Type are populated.
type ContextResponse struct {
	Type      ContextType    `json:"type"`
	Content   string         `json:"content,omitempty"`
	Headers   []string       `json:"headers,omitempty"`
	Rows      [][]string     `json:"rows,omitempty"`
	Data      *GraphData     `json:"data,omitempty"`
	GraphType string         `json:"graphType,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// GraphData follows the labels/datasets layout chart libraries expect
type GraphData struct {
	Labels   []string       `json:"labels"`
	Datasets []GraphDataset `json:"datasets"`
}

// GraphDataset is one named series
type GraphDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// TextResponse builds a plain text answer.
func TextResponse(content string) *ContextResponse {
	return &ContextResponse{Type: ContextTypeText, Content: content}
}

// ParseContextAnswer decodes a model answer into a ContextResponse.
// Answers that are not JSON objects are returned as text.
func ParseContextAnswer(raw string) *ContextResponse {
	body := stripCodeFence(raw)

	// Rows are decoded loosely since models mix numbers into table cells.
	var wire struct {
		ContextResponse
		Rows [][]any `json:"rows,omitempty"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil || wire.Type == "" {
		return TextResponse(strings.TrimSpace(raw))
	}

	resp := wire.ContextResponse
	resp.Rows = stringifyRows(wire.Rows)
	return resp.Normalize()
}

// Normalize coerces the response into a renderable shape. Unknown tags and
// payloads that do not match their tag degrade to text.
func (r *ContextResponse) Normalize() *ContextResponse {
	switch r.Type {
	case ContextTypeText, ContextTypeMarkdown:
		return &ContextResponse{Type: r.Type, Content: r.Content}

	case ContextTypeTable:
		if len(r.Headers) == 0 {
			return TextResponse(r.Content)
		}
		rows := make([][]string, 0, len(r.Rows))
		for _, row := range r.Rows {
			fitted := make([]string, len(r.Headers))
			copy(fitted, row)
			rows = append(rows, fitted)
		}
		return &ContextResponse{Type: ContextTypeTable, Headers: r.Headers, Rows: rows, Content: r.Content}

	case ContextTypeGraph:
		if r.Data == nil || len(r.Data.Labels) == 0 || len(r.Data.Datasets) == 0 {
			return TextResponse(r.Content)
		}
		graphType := strings.ToLower(r.GraphType)
		switch graphType {
		case GraphTypeBar, GraphTypeLine, GraphTypePie:
		default:
			graphType = GraphTypeBar
		}
		return &ContextResponse{
			Type:      ContextTypeGraph,
			Data:      r.Data,
			GraphType: graphType,
			Options:   r.Options,
			Content:   r.Content,
		}
	}

	return TextResponse(r.Content)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func stringifyRows(rows [][]any) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			switch v := cell.(type) {
			case string:
				cells[i] = v
			case nil:
				cells[i] = ""
			default:
				b, _ := json.Marshal(v)
				cells[i] = string(b)
			}
		}
		out = append(out, cells)
	}
	return out
}
