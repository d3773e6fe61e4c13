package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SpaceDealScanner/internal/domain"
)

// StatusTracker owns the run status. The active run is the only writer;
// pollers read copies through Snapshot.
type StatusTracker struct {
	mu       sync.RWMutex
	status   domain.PipelineStatus
	active   bool
	stop     bool
	logLimit int
	logger   *slog.Logger
	now      func() time.Time
}

// NewStatusTracker returns an idle tracker keeping at most logLimit lines.
func NewStatusTracker(logLimit int, logger *slog.Logger) *StatusTracker {
	if logLimit <= 0 {
		logLimit = 50
	}
	t := &StatusTracker{
		logLimit: logLimit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	t.status = domain.PipelineStatus{State: domain.StateIdle, Message: "Idle", LastUpdate: t.now()}
	return t
}

// TryBegin resets the status for runID unless a run is active, in which case
// it returns the active run id and false without touching anything.
func (t *StatusTracker) TryBegin(runID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return t.status.RunID, false
	}
	t.active = true
	t.stop = false
	t.status = domain.PipelineStatus{
		RunID:      runID,
		State:      domain.StateDiscovering,
		IsRunning:  true,
		Message:    "Starting",
		LastUpdate: t.now(),
	}
	return runID, true
}

// Active reports whether a run holds the tracker.
func (t *StatusTracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// RequestStop asks the active run to exit before its next item.
func (t *StatusTracker) RequestStop() bool {
	t.mu.Lock()
	if !t.active || t.stop {
		t.mu.Unlock()
		return false
	}
	t.stop = true
	t.status.IsRunning = false
	t.status.Message = "Stopping"
	t.status.LastUpdate = t.now()
	t.mu.Unlock()

	t.Log(domain.LogWarning, "Stop requested")
	return true
}

// StopRequested is polled by the pipeline once per item.
func (t *StatusTracker) StopRequested() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stop
}

// SetPhase moves the run to state with a human readable message.
func (t *StatusTracker) SetPhase(state domain.RunState, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.State = state
	t.status.Message = message
	t.status.LastUpdate = t.now()
}

// SetTotal records the number of unique candidates.
func (t *StatusTracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Total = total
	t.status.LastUpdate = t.now()
}

// Advance marks one more candidate as processed.
func (t *StatusTracker) Advance(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Processed++
	if message != "" {
		t.status.Message = message
	}
	t.status.LastUpdate = t.now()
}

// AddResult appends a relevant deal to the run's result list.
func (t *StatusTracker) AddResult(rec domain.DealRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Result = append(t.status.Result, rec)
	t.status.LastUpdate = t.now()
}

// Log prepends a line to the status feed and mirrors it to slog.
func (t *StatusTracker) Log(level domain.LogLevel, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	entry := domain.LogEntry{Timestamp: t.now(), Message: msg, Type: level}

	t.mu.Lock()
	logs := make([]domain.LogEntry, 0, min(len(t.status.Logs)+1, t.logLimit))
	logs = append(logs, entry)
	for _, prev := range t.status.Logs {
		if len(logs) == t.logLimit {
			break
		}
		logs = append(logs, prev)
	}
	t.status.Logs = logs
	t.status.LastUpdate = entry.Timestamp
	runID := t.status.RunID
	t.mu.Unlock()

	if t.logger == nil {
		return
	}
	switch level {
	case domain.LogError:
		t.logger.Error(msg, "run_id", runID)
	case domain.LogWarning:
		t.logger.Warn(msg, "run_id", runID)
	default:
		t.logger.Info(msg, "run_id", runID, "type", string(level))
	}
}

// Finish closes the run as completed, or failed when err is non-nil.
func (t *StatusTracker) Finish(err error) {
	t.mu.Lock()
	t.active = false
	t.status.IsRunning = false
	t.status.LastUpdate = t.now()
	if err != nil {
		t.status.State = domain.StateFailed
		t.status.Error = err.Error()
		t.status.Message = "Failed"
	} else {
		t.status.State = domain.StateCompleted
		t.status.Message = fmt.Sprintf("Completed: %d relevant deals", len(t.status.Result))
	}
	t.mu.Unlock()

	if err != nil {
		t.Log(domain.LogError, "Run failed: %v", err)
		return
	}
	t.Log(domain.LogSuccess, "Run completed")
}

// Snapshot returns a deep copy safe to serialize while the run continues.
func (t *StatusTracker) Snapshot() domain.PipelineStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.status
	out.Logs = append([]domain.LogEntry(nil), t.status.Logs...)
	out.Result = append([]domain.DealRecord(nil), t.status.Result...)
	if out.Logs == nil {
		out.Logs = []domain.LogEntry{}
	}
	return out
}
