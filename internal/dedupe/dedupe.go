package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Tracker records repeat uploads of the same object name. The catalog keys
// items by bare filename, so same-name uploads silently overwrite each
// other (original, thumbnail and metadata alike); the tracker makes that
// collision observable without changing it.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new upload tracker
func NewTracker(db *sql.DB) (*Tracker, error) {
	tracker := &Tracker{db: db}

	if err := tracker.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure upload_dedupe table: %w", err)
	}

	return tracker, nil
}

// ensureTable creates the upload_dedupe table if it doesn't exist
func (t *Tracker) ensureTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS upload_dedupe (
			name TEXT PRIMARY KEY,
			content_type TEXT,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1
		)
	`

	_, err := t.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create upload_dedupe table: %w", err)
	}

	log.Printf("✓ upload_dedupe table ready")
	return nil
}

// Record records an upload of the given object name and returns the seen
// count. A count above 1 means the previous item of that name was
// overwritten (last writer wins).
func (t *Tracker) Record(ctx context.Context, name string, contentType string) (int, error) {
	query := `
		INSERT INTO upload_dedupe (name, content_type, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, NOW(), NOW(), 1)
		ON CONFLICT (name) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = upload_dedupe.seen_count + 1,
		    content_type = EXCLUDED.content_type
		RETURNING seen_count
	`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, name, contentType).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record upload: %w", err)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for an object name
func (t *Tracker) GetSeenCount(ctx context.Context, name string) (int, error) {
	query := `SELECT seen_count FROM upload_dedupe WHERE name = $1`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, name).Scan(&seenCount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}
