// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rewrite turns a free-form user query into search keywords.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-finder/internal/ai"
)

const systemPrompt = "You are an academic search assistant. Extract the core " +
	"keywords from user queries and express them as standard English academic " +
	"terminology. Always respond in JSON."

const promptTemplate = `Analyze the following user query and extract the most relevant keywords as English academic terms.

User query: %q

Requirements:
1. At most 3 keywords, the most central ones only.
2. Use established English academic terminology; translate non-English input.
3. Output JSON with a single "keywords" field holding a comma-separated string,
   e.g. {"keywords": "causal inference, positivity, treatment effect"}.`

// keywordsPattern salvages a keywords object embedded in surrounding text,
// such as a markdown code fence.
var keywordsPattern = regexp.MustCompile(`\{[^{}]*"keywords"[^{}]*\}`)

// Rewriter extracts search keywords from user queries.
type Rewriter struct {
	chat   ai.Chat
	logger *slog.Logger
}

// New returns a Rewriter over the given chat client.
func New(chat ai.Chat) *Rewriter {
	return &Rewriter{
		chat:   chat,
		logger: slog.Default().With("component", "rewrite"),
	}
}

// Rewrite returns a comma-separated keyword string for query. Every failure
// degrades to the original query: a rewrite never fails a run.
func (r *Rewriter) Rewrite(ctx context.Context, query string) string {
	if !r.chat.Available() {
		r.logger.Warn("chat client unavailable, using original query")
		return query
	}

	prompt := fmt.Sprintf(promptTemplate, query)
	resp, err := r.chat.Complete(ctx, ai.Request{
		System:      systemPrompt,
		User:        prompt,
		Temperature: 0.3,
		MaxTokens:   150,
		JSONMode:    true,
	})
	if err != nil {
		r.logger.Warn("rewrite failed, using original query", "err", err)
		return query
	}

	if kw := parseKeywords(resp); kw != "" {
		r.logger.Info("query rewritten", "query", query, "keywords", kw)
		return kw
	}
	r.logger.Warn("rewrite returned nothing usable, using original query")
	return query
}

// parseKeywords extracts the keyword string from a model response. It tries
// strict JSON first, then a JSON object embedded in prose, then the bare
// trimmed response text.
func parseKeywords(resp string) string {
	var parsed struct {
		Keywords string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(resp), &parsed); err == nil {
		return strings.TrimSpace(parsed.Keywords)
	}

	if m := keywordsPattern.FindString(resp); m != "" {
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			return strings.TrimSpace(parsed.Keywords)
		}
	}

	return strings.Trim(strings.TrimSpace(resp), `"'.`)
}
