package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/searchai/api/internal/metrics"
	"github.com/searchai/api/internal/model"
)

const maxContextSourceChars = 1500

const contextSystemPrompt = `You answer follow-up questions about a web search using only the provided context.
Reply with a single JSON object in one of these shapes:
{"type":"text","content":"..."}
{"type":"markdown","content":"..."}
{"type":"table","headers":["..."],"rows":[["..."]]}
{"type":"graph","graphType":"bar|line|pie","data":{"labels":["..."],"datasets":[{"label":"...","data":[1,2]}]}}
Use a table for comparisons across several items, a graph when the answer is a set of numbers,
markdown for structured explanations, and text otherwise.`

// ContextService answers follow-up questions about a stored search
type ContextService struct {
	results *ResultService
	llm     ChatCompleter
}

func NewContextService(results *ResultService, llm ChatCompleter) *ContextService {
	return &ContextService{results: results, llm: llm}
}

// Ask answers req.UserQuestion against the newest result for req.OriginalQuery
func (s *ContextService) Ask(ctx context.Context, req *model.AskContextRequest) (*model.ContextResponse, error) {
	result, err := s.results.LatestByQuery(ctx, req.OriginalQuery)
	if err != nil {
		return nil, err
	}

	var resp *model.ContextResponse
	if s.llm == nil || !s.llm.IsConfigured() {
		resp = mockContextAnswer(result, req.UserQuestion)
	} else {
		raw, err := s.llm.ChatCompletionJSON(ctx, contextSystemPrompt, buildContextPrompt(result, req.UserQuestion))
		if err != nil {
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}
		resp = model.ParseContextAnswer(raw)
	}

	metrics.ContextAnswers.WithLabelValues(string(resp.Type)).Inc()
	slog.InfoContext(ctx, "answered context question", "query", req.OriginalQuery, "type", resp.Type)
	return resp, nil
}

func buildContextPrompt(result *model.SearchResult, question string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original search query: %q\n\n", result.Query)
	fmt.Fprintf(&sb, "Summary:\n%s\n", result.Summary)
	for i, src := range result.Sources {
		fmt.Fprintf(&sb, "\nSource %d (%s):\n%s\n", i+1, src.URL, truncateRunes(src.Content, maxContextSourceChars))
	}
	fmt.Fprintf(&sb, "\nQuestion: %s", question)
	return sb.String()
}

func mockContextAnswer(result *model.SearchResult, question string) *model.ContextResponse {
	return model.TextResponse(fmt.Sprintf("Regarding %q for the search %q: %s", question, result.Query, result.Summary))
}
