package cache

import (
	"slices"
	"time"

	"github.com/desertthunder/trackmatch/internal/models"
)

// Diff partitions current track ids against snapshot.
//
// A nil snapshot makes every id new. New and Existing keep the order of current; Removed is
// sorted. Duplicate ids in current are reported once.
func Diff(current []string, snapshot *models.Snapshot) models.DiffResult {
	result := models.DiffResult{New: []string{}, Removed: []string{}, Existing: []string{}}

	seen := make(map[string]struct{}, len(current))
	for _, id := range current {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if snapshot != nil {
			if _, ok := snapshot.Tracks[id]; ok {
				result.Existing = append(result.Existing, id)
				continue
			}
		}
		result.New = append(result.New, id)
	}

	if snapshot != nil {
		for id := range snapshot.Tracks {
			if _, ok := seen[id]; !ok {
				result.Removed = append(result.Removed, id)
			}
		}
		slices.Sort(result.Removed)
	}
	return result
}

// IsUpToDate reports whether snapshot was taken at the given version marker.
func IsUpToDate(snapshot *models.Snapshot, marker string) bool {
	return snapshot != nil && snapshot.VersionMarker == marker
}

// BuildSnapshot builds the next snapshot for playlist from a run's results.
//
// Entries for tracks present in previous are carried over unchanged, so manual resolutions
// and original match times survive. Tracks no longer in the playlist are dropped.
func BuildSnapshot(playlist models.SourcePlaylist, results []models.MatchResult, previous *models.Snapshot, runID string, now time.Time) models.Snapshot {
	snapshot := models.Snapshot{
		ContainerID:   playlist.ID,
		VersionMarker: playlist.VersionMarker,
		Name:          playlist.Name,
		DestinationID: playlist.DestinationID,
		RunID:         runID,
		ExportedAt:    now,
		TrackCount:    len(playlist.Tracks),
		Tracks:        make(map[string]models.CachedEntry, len(results)),
	}
	if snapshot.DestinationID == "" && previous != nil {
		snapshot.DestinationID = previous.DestinationID
	}

	for _, r := range results {
		id := r.Source.ID
		if _, done := snapshot.Tracks[id]; done {
			continue
		}
		if previous != nil {
			if entry, ok := previous.Tracks[id]; ok {
				snapshot.Tracks[id] = entry
				continue
			}
		}
		snapshot.Tracks[id] = models.NewCachedEntry(r, now)
	}

	snapshot.Statistics = statisticsFor(snapshot.Tracks)
	return snapshot
}
