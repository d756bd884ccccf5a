package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/searchai/api/internal/model"
)

const maxSourceChars = 2000

// ChatCompleter is the LLM surface used by the analyzer and context service
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	ChatCompletionJSON(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

const summarySystemPrompt = `You are a research assistant. You read web pages collected for a search query
and write a short, factual report. Write plain prose without markdown.`

// Analyzer turns scraped sources into a summary
type Analyzer struct {
	llm ChatCompleter
}

func NewAnalyzer(llm ChatCompleter) *Analyzer {
	return &Analyzer{llm: llm}
}

// Analyze summarizes sources for query. LLM failures are reported inside the
// summary text instead of failing the search.
func (a *Analyzer) Analyze(ctx context.Context, query string, sources []model.Source) string {
	if a.llm == nil || !a.llm.IsConfigured() {
		return mockSummary(query, sources)
	}

	prompt := fmt.Sprintf(`Based on the search query: "%s"

Analyze the following content from %d different sources and provide:
1. A comprehensive summary (3-4 sentences)
2. Key points or findings
3. Any relevant data, prices, or statistics found

Content to analyze:
%s

Format the response clearly with main points and findings.`, query, len(sources), combineSources(sources))

	text, err := a.llm.ChatCompletion(ctx, summarySystemPrompt, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("no summary generated")
	}
	if err != nil {
		slog.ErrorContext(ctx, "AI analysis failed", "query", query, "error", err)
		return fmt.Sprintf("Error generating summary: %v", err)
	}

	return CleanSummary(text)
}

// CleanSummary strips markdown emphasis and heading markers
func CleanSummary(text string) string {
	return strings.TrimSpace(strings.NewReplacer("*", "", "#", "").Replace(text))
}

func combineSources(sources []model.Source) string {
	var sb strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&sb, "\nSource %d (%s):\n%s\n", i+1, src.URL, truncateRunes(src.Content, maxSourceChars))
	}
	return sb.String()
}

func mockSummary(query string, sources []model.Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary for %q based on %d source(s).", query, len(sources))
	for _, src := range sources {
		fmt.Fprintf(&sb, " %s", truncateRunes(src.Content, 160))
	}
	return CleanSummary(sb.String())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
