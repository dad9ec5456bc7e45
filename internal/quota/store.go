// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quota tracks per-identity run allowances in SQLite. The store is
// consulted exactly once, before a pipeline run starts; a denial
// short-circuits the run with no stages executed.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-finder/pkg/types"
)

// Unlimited marks an identity with no effective allowance.
const Unlimited = 999999

// Kind distinguishes registered users from anonymous visitors.
type Kind string

const (
	KindUser Kind = "user"
	KindAnon Kind = "anon"

	// KindNone marks a request without any identity. Such requests pass
	// with an unlimited allowance; the caller logs a warning.
	KindNone Kind = ""
)

// Identity names the caller of one pipeline run.
type Identity struct {
	Kind Kind
	ID   string
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Kind      Kind
	Remaining int
	Limit     int
	Used      int
	Plan      string
}

// Store manages the usage counter database.
type Store struct {
	db  *sql.DB
	cfg types.QuotaConfig
}

// NewStore opens or creates the SQLite database at cfg.DBPath and creates
// the schema if it does not exist.
func NewStore(cfg types.QuotaConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening quota database: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating quota schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS usage (
			identity   TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			plan       TEXT NOT NULL DEFAULT 'free',
			used_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		)`)
	return err
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// limit returns the allowance for an identity. Subscribed users are
// effectively unlimited.
func (s *Store) limit(kind Kind, plan string) int {
	if kind == KindUser && plan != "" && plan != "free" {
		return Unlimited
	}
	if kind == KindUser {
		return s.cfg.UserLimit
	}
	return s.cfg.AnonLimit
}

// CheckAndConsume atomically checks the identity's allowance and, when
// allowed, consumes one run from it. Identityless requests pass unlimited.
func (s *Store) CheckAndConsume(ctx context.Context, id Identity) (Decision, error) {
	if id.Kind == KindNone || id.ID == "" {
		return Decision{Allowed: true, Kind: KindNone, Remaining: Unlimited, Limit: Unlimited}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("beginning quota transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO usage (identity, kind, used_count, updated_at) VALUES (?, ?, 0, ?)`,
		id.ID, string(id.Kind), time.Now().UTC()); err != nil {
		return Decision{}, fmt.Errorf("inserting usage row: %w", err)
	}

	var used int
	var plan string
	if err := tx.QueryRowContext(ctx,
		`SELECT used_count, plan FROM usage WHERE identity = ?`, id.ID).Scan(&used, &plan); err != nil {
		return Decision{}, fmt.Errorf("reading usage row: %w", err)
	}

	limit := s.limit(id.Kind, plan)
	if limit != Unlimited && used >= limit {
		return Decision{Allowed: false, Kind: id.Kind, Remaining: 0, Limit: limit, Used: used, Plan: plan}, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE usage SET used_count = used_count + 1, updated_at = ? WHERE identity = ?`,
		time.Now().UTC(), id.ID); err != nil {
		return Decision{}, fmt.Errorf("consuming quota: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("committing quota transaction: %w", err)
	}

	used++
	remaining := Unlimited
	if limit != Unlimited {
		remaining = limit - used
	}
	return Decision{Allowed: true, Kind: id.Kind, Remaining: remaining, Limit: limit, Used: used, Plan: plan}, nil
}

// Info reports the identity's allowance without consuming from it.
func (s *Store) Info(ctx context.Context, id Identity) (Decision, error) {
	if id.Kind == KindNone || id.ID == "" {
		return Decision{Allowed: true, Kind: KindNone, Remaining: Unlimited, Limit: Unlimited}, nil
	}

	var used int
	var plan string
	err := s.db.QueryRowContext(ctx,
		`SELECT used_count, plan FROM usage WHERE identity = ?`, id.ID).Scan(&used, &plan)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		used, plan = 0, "free"
	case err != nil:
		return Decision{}, fmt.Errorf("reading usage row: %w", err)
	}

	limit := s.limit(id.Kind, plan)
	remaining := Unlimited
	if limit != Unlimited {
		remaining = max(0, limit-used)
	}
	return Decision{
		Allowed:   remaining > 0,
		Kind:      id.Kind,
		Remaining: remaining,
		Limit:     limit,
		Used:      used,
		Plan:      plan,
	}, nil
}

// DeniedMessage is the user-facing explanation for a quota denial.
func DeniedMessage(kind Kind) string {
	switch kind {
	case KindUser:
		return "Quota exhausted. Free accounts get 50 runs; subscribe for unlimited."
	case KindAnon:
		return "Quota exhausted. Visitors get 3 runs; sign in for 50, subscribe for unlimited."
	default:
		return "Quota exhausted."
	}
}
