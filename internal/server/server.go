// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline over HTTP: a streaming SSE endpoint
// for full runs and one-shot JSON endpoints mirroring each stage.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/pdiddy/paper-finder/internal/pipeline"
	"github.com/pdiddy/paper-finder/internal/quota"
	"github.com/pdiddy/paper-finder/internal/venue"
	"github.com/pdiddy/paper-finder/pkg/types"
)

// Deps holds the collaborators the server needs. Everything is constructed
// once at process start and injected; the server keeps no hidden globals.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Rewriter     pipeline.Rewriter
	Searcher     pipeline.Searcher
	Enricher     pipeline.Enricher
	Filter       pipeline.Filter
	Catalog      *venue.Catalog
	Quota        *quota.Store
}

// Server is the HTTP surface.
type Server struct {
	deps   Deps
	cfg    types.ServerConfig
	logger *slog.Logger
}

// New returns a Server over deps.
func New(deps Deps, cfg types.ServerConfig) *Server {
	return &Server{
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default().With("component", "server"),
	}
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /v1/quota", s.handleQuota)
	mux.HandleFunc("POST /v1/query_rewrite", s.handleQueryRewrite)
	mux.HandleFunc("POST /v1/paper_retrieval", s.handleRetrieval)
	mux.HandleFunc("POST /v1/paper_filtering", s.handleFiltering)
	mux.HandleFunc("POST /v1/paper_search", s.handlePaperSearch)

	// No configured origins means development mode: allow everything.
	if len(s.cfg.AllowedOrigins) == 0 {
		return cors.AllowAll().Handler(mux)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}).Handler(mux)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", s.cfg.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errc
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// identityFromRequest extracts a quota identity. A Bearer token marks a
// registered user; token verification belongs to the auth gateway in front
// of this service. An X-Anon-Id header holding a UUID marks a visitor.
// Neither header yields an identityless request, which passes quota with a
// warning.
func identityFromRequest(r *http.Request) quota.Identity {
	auth := r.Header.Get("Authorization")
	if token, ok := bearerToken(auth); ok {
		return quota.Identity{Kind: quota.KindUser, ID: token}
	}
	anon := r.Header.Get("X-Anon-Id")
	if looksLikeUUID(anon) {
		return quota.Identity{Kind: quota.KindAnon, ID: anon}
	}
	return quota.Identity{}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):], true
	}
	return "", false
}

// looksLikeUUID checks the canonical 36-char dashed form.
func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	dashes := 0
	for _, r := range s {
		if r == '-' {
			dashes++
		}
	}
	return dashes == 4
}
