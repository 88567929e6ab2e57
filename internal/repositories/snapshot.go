package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackmatch/internal/shared"
)

// SnapshotRepository implements cache.Store on the export_snapshots table.
//
// Each container is one row holding the whole snapshot document, so a write is a single
// UPSERT and readers never see a half-written snapshot.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get returns the stored payload, or [shared.ErrNotFound]
func (r *SnapshotRepository) Get(ctx context.Context, containerID string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM export_snapshots WHERE container_id = ?`, containerID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %s", shared.ErrNotFound, containerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return payload, nil
}

// Put replaces the record for containerID
func (r *SnapshotRepository) Put(ctx context.Context, containerID string, data []byte) error {
	now := time.Now()
	query := `
		INSERT INTO export_snapshots (container_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(container_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, containerID, data, now, now); err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Delete removes the record for containerID. Deleting a missing record is not an error.
func (r *SnapshotRepository) Delete(ctx context.Context, containerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM export_snapshots WHERE container_id = ?`, containerID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns every stored payload keyed by container id
func (r *SnapshotRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT container_id, payload FROM export_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	records := make(map[string][]byte)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		records[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return records, nil
}
