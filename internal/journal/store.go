// Package journal persists the mutation history: one entry per completed
// mutation boundary, with the digest triple on either side. The journal is an
// audit trail, never an input to change detection, and a journal write
// failure never fails the boundary that produced it.
package journal

import (
	"context"
	"time"
)

// Entry is one recorded mutation boundary.
type Entry struct {
	ID         int64
	SessionID  string
	BoundaryID string
	Origin     string
	StartedAt  time.Time
	Duration   time.Duration
	Changed    []string
	Failed     bool
	Err        string

	BeforeParams    string
	BeforeTOAs      string
	BeforeResiduals string
	AfterParams     string
	AfterTOAs       string
	AfterResiduals  string
}

// Store defines the interface for persisting and retrieving journal entries.
type Store interface {
	// Append adds a new entry to the journal.
	Append(ctx context.Context, e Entry) error

	// GetBySession retrieves all entries for one session, oldest first.
	GetBySession(ctx context.Context, sessionID string) ([]Entry, error)

	// GetRecent retrieves the most recent entries across sessions, newest
	// first, capped at limit.
	GetRecent(ctx context.Context, limit int) ([]Entry, error)

	// Close closes the store and releases resources.
	Close() error
}
