// Package ai provides the optional source-enhancement collaborator.
// Enhancement is always best-effort: any error or timeout leaves the
// original text in place, and a failure for one artifact never affects
// its siblings.
package ai

import (
	"context"
	"strings"
)

// Hints carries node context the enhancement prompt is built from.
type Hints struct {
	NodeName    string
	Kind        string
	Runtime     string
	Description string
	// Prompt is the author-supplied ai_prompt config value, if any.
	Prompt string
}

// Enhancer rewrites generated source text. Implementations fail
// closed: callers keep the original text on any error.
type Enhancer interface {
	// Enhance returns an improved version of the source text.
	Enhance(ctx context.Context, source string, hints Hints) (string, error)
	// Suggest returns improvement suggestions for a workflow described
	// by the given summary.
	Suggest(ctx context.Context, summary string) ([]string, error)
}

// ExtractCode pulls the code out of a fenced markdown response. When
// no fence is present the whole response is returned trimmed.
func ExtractCode(response, language string) string {
	fence := "```" + language
	start := strings.Index(response, fence)
	if start < 0 {
		fence = "```"
		start = strings.Index(response, fence)
	}
	if start < 0 {
		return strings.TrimSpace(response)
	}

	rest := response[start+len(fence):]
	if idx := strings.Index(rest, "\n"); idx >= 0 && strings.TrimSpace(rest[:idx]) == "" {
		rest = rest[idx+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
