// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter classifies papers for relevance against the original user
// query using bounded concurrent chat-completion calls.
package filter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/paper-finder/internal/ai"
	"github.com/pdiddy/paper-finder/pkg/types"
)

const systemPrompt = "You are an academic paper triage assistant. Judge " +
	"whether a paper is relevant to the user's query. Answer only \"yes\" or \"no\"."

const promptTemplate = `Judge whether the following paper is relevant to the user's query.

User query: %s

Paper title: %s

Paper abstract:
%s

Answer only "yes" or "no".`

// Filter keeps the subset of papers relevant to a query. Output order is
// unspecified; callers must treat the result as a set.
type Filter struct {
	chat   ai.Chat
	cfg    types.FilterConfig
	logger *slog.Logger
}

// New returns a Filter over the given chat client.
func New(chat ai.Chat, cfg types.FilterConfig) *Filter {
	return &Filter{
		chat:   chat,
		cfg:    cfg,
		logger: slog.Default().With("component", "filter"),
	}
}

// Apply classifies every paper concurrently, bounded by MaxWorkers, and
// returns the papers judged relevant. When the chat client is unavailable
// the input is returned unchanged. With FailOpen set, a paper whose
// classification call fails is kept rather than dropped.
func (f *Filter) Apply(ctx context.Context, query string, papers []*types.Paper) []*types.Paper {
	if len(papers) == 0 {
		return nil
	}
	if !f.chat.Available() {
		f.logger.Warn("chat client unavailable, keeping all papers", "count", len(papers))
		return papers
	}

	workers := f.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		f.logger.Error("creating worker pool failed, keeping all papers", "err", err)
		return papers
	}
	defer pool.Release()

	var (
		mu   sync.Mutex
		kept []*types.Paper
		wg   sync.WaitGroup
	)
	for _, p := range papers {
		wg.Add(1)
		paper := p
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if f.judge(ctx, query, paper) {
				mu.Lock()
				kept = append(kept, paper)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			// Pool rejected the task; apply the same failure policy inline.
			if f.cfg.FailOpen {
				mu.Lock()
				kept = append(kept, paper)
				mu.Unlock()
			}
			wg.Done()
		}
	}
	wg.Wait()

	f.logger.Info("filtering done", "kept", len(kept), "total", len(papers))
	return kept
}

// judge classifies one paper. Errors follow the configured failure policy:
// fail-open keeps the paper. A paper without an abstract is never relevant;
// the orchestrator excludes those before this stage, so this is a backstop.
func (f *Filter) judge(ctx context.Context, query string, p *types.Paper) bool {
	if strings.TrimSpace(p.Abstract) == "" {
		return false
	}

	resp, err := f.chat.Complete(ctx, ai.Request{
		System:      systemPrompt,
		User:        fmt.Sprintf(promptTemplate, query, p.Title, p.Abstract),
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		f.logger.Warn("classification failed", "title", p.Title, "fail_open", f.cfg.FailOpen, "err", err)
		return f.cfg.FailOpen
	}
	if resp == "" {
		return f.cfg.FailOpen
	}
	return isAffirmative(resp)
}

// isAffirmative normalizes a binary judgment. It tolerates leading
// affirmative tokens ("Yes, because...") and surrounding punctuation.
func isAffirmative(resp string) bool {
	s := strings.ToLower(strings.TrimSpace(resp))
	s = strings.Trim(s, `"'.! `)
	return strings.HasPrefix(s, "yes") || strings.HasPrefix(s, "y")
}
