// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists interaction events that could not be delivered.
//
// Interactions (views, likes, shares) are posted to the platform as they
// happen. When the post fails, the event is queued in a local SQLite
// database and retried later; a queued event is reported as queued, never
// as delivered.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/marketwire/marketwire-tui/internal/api"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrQueueClosed   = errors.New("interaction queue closed")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// QUEUE
// =============================================================================

// QueuedInteraction is one interaction waiting for delivery.
type QueuedInteraction struct {
	ID       int64
	Article  string
	Kind     string
	At       time.Time
	Attempts int
}

// Queue is a durable FIFO of undelivered interactions.
type Queue struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS pending_interactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	at         INTEGER NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_created ON pending_interactions(created_at);
`

// OpenQueue opens (or creates) the queue database at path.
func OpenQueue(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: pragma: %v", ErrDatabaseError, err)
		}
	}

	for _, stmt := range []string{schema, likesSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: schema: %v", ErrDatabaseError, err)
		}
	}

	return &Queue{db: db}, nil
}

// Close closes the queue database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue stores one undelivered interaction.
func (q *Queue) Enqueue(in api.Interaction) error {
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := q.db.Exec(
		`INSERT INTO pending_interactions (article_id, kind, at, created_at) VALUES (?, ?, ?, ?)`,
		in.ArticleID, in.Kind, at.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: enqueue: %v", ErrDatabaseError, err)
	}
	return nil
}

// Pending returns queued interactions in arrival order.
func (q *Queue) Pending(ctx context.Context) ([]QueuedInteraction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, article_id, kind, at, attempts FROM pending_interactions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var pending []QueuedInteraction
	for rows.Next() {
		var qi QueuedInteraction
		var at int64
		if err := rows.Scan(&qi.ID, &qi.Article, &qi.Kind, &at, &qi.Attempts); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrDatabaseError, err)
		}
		qi.At = time.Unix(at, 0)
		pending = append(pending, qi)
	}
	return pending, rows.Err()
}

// Len returns the number of queued interactions.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_interactions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrDatabaseError, err)
	}
	return n, nil
}

// remove deletes one delivered interaction.
func (q *Queue) remove(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM pending_interactions WHERE id = ?`, id)
	return err
}

// bumpAttempts records a failed delivery attempt.
func (q *Queue) bumpAttempts(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE pending_interactions SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

// =============================================================================
// RECORDER
// =============================================================================

// Sender posts interactions to the platform.
type Sender interface {
	RecordInteraction(ctx context.Context, in api.Interaction) error
}

// Recorder delivers interactions immediately when possible, queueing them on
// failure.
type Recorder struct {
	sender Sender
	queue  *Queue
}

// NewRecorder creates a recorder over a sender and a durable queue.
func NewRecorder(sender Sender, queue *Queue) *Recorder {
	return &Recorder{sender: sender, queue: queue}
}

// Record attempts delivery, falling back to the queue. The returned queued
// flag is true when the event was stored for later rather than delivered;
// callers surface that distinction instead of claiming success.
func (r *Recorder) Record(ctx context.Context, in api.Interaction) (queued bool, err error) {
	if in.At.IsZero() {
		in.At = time.Now()
	}
	if sendErr := r.sender.RecordInteraction(ctx, in); sendErr != nil {
		if qErr := r.queue.Enqueue(in); qErr != nil {
			// Both the network and the local queue failed; nothing was saved.
			return false, fmt.Errorf("record failed and queue unavailable: %w", qErr)
		}
		return true, nil
	}
	return false, nil
}

// Sync drains the queue, oldest first. Delivery stops at the first failure
// so ordering is preserved; synced reports how many events were delivered.
func (r *Recorder) Sync(ctx context.Context) (synced int, err error) {
	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for _, qi := range pending {
		in := api.Interaction{ArticleID: qi.Article, Kind: qi.Kind, At: qi.At}
		if sendErr := r.sender.RecordInteraction(ctx, in); sendErr != nil {
			_ = r.queue.bumpAttempts(ctx, qi.ID)
			return synced, sendErr
		}
		if err := r.queue.remove(ctx, qi.ID); err != nil {
			return synced, fmt.Errorf("%w: remove: %v", ErrDatabaseError, err)
		}
		synced++
	}
	return synced, nil
}
