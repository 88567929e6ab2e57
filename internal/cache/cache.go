package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// Cache reads and writes snapshots through a [Store].
type Cache struct {
	store     Store
	logger    *log.Logger
	validator *shared.Validator
	now       func() time.Time
}

// New creates a cache over store. A nil logger discards output.
func New(store Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Cache{store: store, logger: logger, validator: shared.NewValidator(), now: time.Now}
}

// Load returns the snapshot for containerID, or false when there is no usable record.
//
// Backend errors and corrupt records are logged and reported as a miss.
func (c *Cache) Load(ctx context.Context, containerID string) (*models.Snapshot, bool) {
	data, err := c.store.Get(ctx, containerID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("cache read failed", "container", containerID, "error", err)
		}
		return nil, false
	}

	snapshot, err := c.decode(data)
	if err != nil {
		c.logger.Warn("ignoring unreadable cache record", "container", containerID, "error", err)
		return nil, false
	}
	return snapshot, true
}

// Save validates and writes the whole snapshot.
func (c *Cache) Save(ctx context.Context, snapshot models.Snapshot) error {
	if err := c.validator.Validate(snapshot); err != nil {
		return fmt.Errorf("refusing to cache invalid snapshot: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := c.store.Put(ctx, snapshot.ContainerID, data); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", snapshot.ContainerID, err)
	}
	return nil
}

// Delete removes the snapshot for containerID.
func (c *Cache) Delete(ctx context.Context, containerID string) error {
	if err := c.store.Delete(ctx, containerID); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", containerID, err)
	}
	return nil
}

// All returns every readable snapshot sorted by container id. Unreadable records are skipped.
func (c *Cache) All(ctx context.Context) ([]models.Snapshot, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]models.Snapshot, 0, len(records))
	for id, data := range records {
		snapshot, err := c.decode(data)
		if err != nil {
			c.logger.Debug("skipping unreadable cache record", "container", id, "error", err)
			continue
		}
		snapshots = append(snapshots, *snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ContainerID < snapshots[j].ContainerID })
	return snapshots, nil
}

// ClearExpired deletes snapshots exported more than maxAge ago along with unreadable records.
// It returns the ids it removed, sorted.
func (c *Cache) ClearExpired(ctx context.Context, maxAge time.Duration) ([]string, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	cutoff := c.now().Add(-maxAge)
	var removed []string
	for id, data := range records {
		snapshot, err := c.decode(data)
		if err == nil && !snapshot.ExportedAt.Before(cutoff) {
			continue
		}
		if err := c.store.Delete(ctx, id); err != nil {
			return removed, fmt.Errorf("failed to delete snapshot %s: %w", id, err)
		}
		removed = append(removed, id)
	}

	sort.Strings(removed)
	if len(removed) > 0 {
		c.logger.Info("cleared expired cache records", "count", len(removed), "max_age", maxAge)
	}
	return removed, nil
}

// Resolve promotes one of an entry's stored candidates to a manual match and rewrites the snapshot.
//
// candidateIndex refers to the entry's candidate list as cached.
func (c *Cache) Resolve(ctx context.Context, containerID, trackID string, candidateIndex int) (*models.CachedEntry, error) {
	snapshot, ok := c.Load(ctx, containerID)
	if !ok {
		return nil, fmt.Errorf("%w: no cached snapshot for %s", shared.ErrNotFound, containerID)
	}

	entry, ok := snapshot.Tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: track %s is not cached for %s", shared.ErrNotFound, trackID, containerID)
	}
	if candidateIndex < 0 || candidateIndex >= len(entry.Candidates) {
		return nil, fmt.Errorf("%w: candidate index %d out of range (%d candidates)", shared.ErrInvalidArgument, candidateIndex, len(entry.Candidates))
	}

	chosen := entry.Candidates[candidateIndex]
	chosen.Score = 1
	entry.CandidateID = chosen.ID
	entry.Matched = &chosen
	entry.Status = models.StatusMatched
	entry.Strategy = models.StrategyManual
	entry.Score = 1
	entry.MatchedAt = c.now()

	snapshot.Tracks[trackID] = entry
	snapshot.Statistics = statisticsFor(snapshot.Tracks)
	if err := c.Save(ctx, *snapshot); err != nil {
		return nil, err
	}
	return &entry, nil
}

// decode parses and validates a stored record.
func (c *Cache) decode(data []byte) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCacheCorrupt, err)
	}
	if err := c.validator.Validate(snapshot); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCacheCorrupt, err)
	}
	if snapshot.Tracks == nil {
		snapshot.Tracks = map[string]models.CachedEntry{}
	}
	return &snapshot, nil
}

func statisticsFor(entries map[string]models.CachedEntry) models.Statistics {
	stats := models.NewStatistics()
	for _, e := range entries {
		stats = stats.Add(models.MatchResult{Status: e.Status, Strategy: e.Strategy})
	}
	return stats
}
