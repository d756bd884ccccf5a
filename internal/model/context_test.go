package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContextAnswer_Table(t *testing.T) {
	raw := "```json\n{\"type\":\"table\",\"headers\":[\"Store\",\"Price\"],\"rows\":[[\"A\",12.5],[\"B\"]]}\n```"

	resp := ParseContextAnswer(raw)

	require.Equal(t, ContextTypeTable, resp.Type)
	assert.Equal(t, []string{"Store", "Price"}, resp.Headers)
	assert.Equal(t, [][]string{{"A", "12.5"}, {"B", ""}}, resp.Rows)
}

func TestParseContextAnswer_Graph(t *testing.T) {
	raw := `{"type":"graph","graphType":"Donut","data":{"labels":["a","b"],"datasets":[{"label":"x","data":[1,2]}]}}`

	resp := ParseContextAnswer(raw)

	require.Equal(t, ContextTypeGraph, resp.Type)
	assert.Equal(t, GraphTypeBar, resp.GraphType)
	assert.Equal(t, []float64{1, 2}, resp.Data.Datasets[0].Data)
}

func TestParseContextAnswer_FallsBackToText(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		content string
	}{
		{"plain prose", "Prices range from $10 to $20.", "Prices range from $10 to $20."},
		{"unknown tag", `{"type":"poem","content":"roses"}`, "roses"},
		{"table without headers", `{"type":"table","content":"none","rows":[["a"]]}`, "none"},
		{"graph without data", `{"type":"graph","content":"empty"}`, "empty"},
		{"missing tag", `{"content":"x"}`, `{"content":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseContextAnswer(tt.raw)
			assert.Equal(t, ContextTypeText, resp.Type)
			assert.Equal(t, tt.content, resp.Content)
		})
	}
}

func TestParseContextAnswer_Markdown(t *testing.T) {
	resp := ParseContextAnswer(`{"type":"markdown","content":"# Title\n- one"}`)

	assert.Equal(t, ContextTypeMarkdown, resp.Type)
	assert.Equal(t, "# Title\n- one", resp.Content)
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, JobStatusProcessing.CanTransition(JobStatusCancelling))
	assert.True(t, JobStatusCancelling.CanTransition(JobStatusCancelled))
	assert.True(t, JobStatusCancelling.CanTransition(JobStatusCompleted))
	assert.False(t, JobStatusCancelling.CanTransition(JobStatusProcessing))
	assert.False(t, JobStatusCompleted.CanTransition(JobStatusCancelled))
	assert.False(t, JobStatusCancelled.CanTransition(JobStatusFailed))

	assert.True(t, JobStatusCancelled.IsTerminal())
	assert.False(t, JobStatusCancelling.IsTerminal())
}
