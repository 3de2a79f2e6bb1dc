package tasks

import (
	"fmt"

	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
)

// ProgressUpdate represents a progress event during a resync.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase          // Operation phase
	Channel models.Channel // Channel being resynced
	Step    int            // Current step number within phase
	Total   int            // Total steps in this phase
	Message string         // Human-readable message for display
	Data    any            // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Throttle Phase = iota
	Fetch
	Reconcile
	Cache
	Failed
)

func (p Phase) String() string {
	switch p {
	case Throttle:
		return "throttle"
	case Fetch:
		return "fetch"
	case Reconcile:
		return "reconcile"
	case Cache:
		return "cache"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func throttleUpdate(step, total int, ch models.Channel) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Throttle,
		Channel: ch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Waiting to resync %s...", ch),
	}
}

func fetchUpdate(step, total int, ch models.Channel) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetch,
		Channel: ch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s...", step, total, ch),
	}
}

func reconcileUpdate(step, total int, report *mirror.ResyncReport) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (%d fetched)", step, total, report.Channel, report.Fetched)
	if n := len(report.Stale); n > 0 {
		msg = fmt.Sprintf("%s, %d stale", msg, n)
	}
	return ProgressUpdate{
		Phase:   Reconcile,
		Channel: report.Channel,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    report,
	}
}

func cacheUpdate(step, total int, ch models.Channel) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Cache,
		Channel: ch,
		Step:    step,
		Total:   total,
		Message: "Saving snapshot cache...",
	}
}

func failedUpdate(step, total int, ch models.Channel, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Channel: ch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, ch, err),
	}
}
