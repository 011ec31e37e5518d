// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/marketwire/marketwire-tui/internal/api"
)

// =============================================================================
// LIKE STATE
// =============================================================================

const likesSchema = `
CREATE TABLE IF NOT EXISTS article_likes (
	article_id TEXT PRIMARY KEY,
	liked      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Liked returns the locally held like state for an article.
func (q *Queue) Liked(ctx context.Context, articleID string) (bool, error) {
	var liked int
	err := q.db.QueryRowContext(ctx,
		`SELECT liked FROM article_likes WHERE article_id = ?`, articleID).Scan(&liked)
	if err != nil {
		// Unknown articles are simply not liked.
		return false, nil
	}
	return liked != 0, nil
}

func (q *Queue) setLiked(ctx context.Context, articleID string, liked bool) error {
	v := 0
	if liked {
		v = 1
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO article_likes (article_id, liked, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(article_id) DO UPDATE SET liked = excluded.liked, updated_at = excluded.updated_at`,
		articleID, v, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: set liked: %v", ErrDatabaseError, err)
	}
	return nil
}

// ToggleLike flips the like state for an article. The new local state is
// persisted first, then the matching interaction is delivered. A failed
// delivery is queued and reported via the pending flag rather than passed
// off as a confirmed server-side change.
func (r *Recorder) ToggleLike(ctx context.Context, articleID string) (liked bool, pending bool, err error) {
	current, err := r.queue.Liked(ctx, articleID)
	if err != nil {
		return false, false, err
	}
	liked = !current

	if err := r.queue.setLiked(ctx, articleID, liked); err != nil {
		return current, false, err
	}

	kind := "like"
	if !liked {
		kind = "unlike"
	}
	pending, err = r.Record(ctx, api.Interaction{ArticleID: articleID, Kind: kind})
	return liked, pending, err
}
