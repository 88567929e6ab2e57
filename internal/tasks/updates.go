package tasks

import (
	"fmt"

	"github.com/desertthunder/trackmatch/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, [models.Progress] while matching
}

// Operation phase enumeration
type Phase int

const (
	LoadCache Phase = iota
	DiffTracks
	MatchTracks
	SaveCache
	Reconcile
)

func (p Phase) String() string {
	switch p {
	case LoadCache:
		return "load_cache"
	case DiffTracks:
		return "diff_tracks"
	case MatchTracks:
		return "match_tracks"
	case SaveCache:
		return "save_cache"
	case Reconcile:
		return "reconcile"
	default:
		return ""
	}
}

func loadCacheUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadCache,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading cached export for %s...", name),
	}
}

func upToDateUpdate(name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadCache,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s is up to date (%d tracks cached)", name, tracks),
	}
}

func diffUpdate(diff models.DiffResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DiffTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d new, %d existing, %d removed", len(diff.New), len(diff.Existing), len(diff.Removed)),
		Data:    diff,
	}
}

func matchProgressUpdate(p models.Progress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    p.Current,
		Total:   p.Total,
		Message: fmt.Sprintf("[%d/%d] %d%% (%d found, %d unmatched)", p.Current, p.Total, p.Percent, p.Matched, p.Unmatched),
		Data:    p,
	}
}

func saveCacheUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveCache,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving export snapshot for %s...", name),
	}
}

func reconcileStartedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reconciling: %s...", step, total, name),
	}
}

func reconcileCompletedUpdate(step, total int, name string, stats models.Statistics) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d/%d matched)", step, total, name, stats.Matched, stats.Total),
	}
}

func reconcileFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
