package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// RunRepository records reconciliation history in the reconcile_runs table.
type RunRepository struct {
	db        *sql.DB
	validator *shared.Validator
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db, validator: shared.NewValidator()}
}

// Create inserts a run and assigns its sequence number
func (r *RunRepository) Create(ctx context.Context, run *models.RunRecord) error {
	if err := r.validator.Validate(run); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "reconcile_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO reconcile_runs (
			id, sequence, container_id, status, tracks_total, tracks_matched,
			tracks_ambiguous, tracks_unmatched, tracks_queried, error_message,
			started_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		sequence,
		run.ContainerID,
		run.Status,
		run.Statistics.Total,
		run.Statistics.Matched,
		run.Statistics.Ambiguous,
		run.Statistics.Unmatched,
		run.QueriedCount,
		nullString(run.ErrorMessage),
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.Sequence = sequence
	return nil
}

// Update stores the run's status, counters and completion time
func (r *RunRepository) Update(ctx context.Context, run *models.RunRecord) error {
	if err := r.validator.Validate(run); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE reconcile_runs
		SET status = ?, tracks_total = ?, tracks_matched = ?, tracks_ambiguous = ?,
			tracks_unmatched = ?, tracks_queried = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		run.Status,
		run.Statistics.Total,
		run.Statistics.Matched,
		run.Statistics.Ambiguous,
		run.Statistics.Unmatched,
		run.QueriedCount,
		nullString(run.ErrorMessage),
		run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", shared.ErrNotFound, run.ID)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.RunRecord, error) {
	query := `
		SELECT id, sequence, container_id, status, tracks_total, tracks_matched,
			tracks_ambiguous, tracks_unmatched, tracks_queried, error_message,
			started_at, completed_at
		FROM reconcile_runs
		WHERE id = ?
	`

	run, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, id)
	}
	return run, err
}

// List returns the most recent runs first, optionally filtered by container. A limit of 0 means no limit.
func (r *RunRepository) List(ctx context.Context, containerID string, limit int) ([]*models.RunRecord, error) {
	query := `
		SELECT id, sequence, container_id, status, tracks_total, tracks_matched,
			tracks_ambiguous, tracks_unmatched, tracks_queried, error_message,
			started_at, completed_at
		FROM reconcile_runs
		WHERE (? = '' OR container_id = ?)
		ORDER BY sequence DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, query, containerID, containerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *RunRepository) scan(row scanner) (*models.RunRecord, error) {
	var (
		run         models.RunRecord
		status      string
		errorMsg    sql.NullString
		completedAt sql.NullTime
	)
	run.Statistics = models.NewStatistics()

	err := row.Scan(
		&run.ID,
		&run.Sequence,
		&run.ContainerID,
		&status,
		&run.Statistics.Total,
		&run.Statistics.Matched,
		&run.Statistics.Ambiguous,
		&run.Statistics.Unmatched,
		&run.QueriedCount,
		&errorMsg,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.ErrorMessage = errorMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
