package domain

import "time"

// RunState is the pipeline lifecycle position.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateDiscovering RunState = "discovering"
	StateAnalyzing   RunState = "analyzing"
	StateCompleted   RunState = "completed"
	StateFailed      RunState = "failed"
)

// LogLevel tags a status log line for the polling UI.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is a single line in the status feed.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      LogLevel  `json:"type"`
}

// PipelineStatus is a point-in-time copy of the run state.
type PipelineStatus struct {
	RunID      string       `json:"task_id,omitempty"`
	State      RunState     `json:"state"`
	IsRunning  bool         `json:"is_running"`
	Total      int          `json:"total_articles"`
	Processed  int          `json:"processed_articles"`
	Message    string       `json:"current_status"`
	LastUpdate time.Time    `json:"last_update"`
	Logs       []LogEntry   `json:"logs"`
	Result     []DealRecord `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}
