package metrics

// Snapshot is the unified metrics payload streamed to dashboard clients.
// Field names and nesting are a wire contract; timestamps are float seconds
// since the Unix epoch.
type Snapshot struct {
	System  SystemMetrics `json:"system"`
	Actions ActionMetrics `json:"actions"`
	Events  EventMetrics  `json:"events"`
}

// SystemMetrics reports process-wide resource usage.
type SystemMetrics struct {
	Timestamp     float64 `json:"timestamp"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      int64   `json:"memory_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	ThreadCount   int     `json:"thread_count"`
	ProcessCount  int     `json:"process_count"`
}

// ActionMetrics is derived from the action recorder's rolling window.
// Durations are seconds.
type ActionMetrics struct {
	Timestamp        float64 `json:"timestamp"`
	TotalActions     int     `json:"total_actions"`
	ActionsPerMinute float64 `json:"actions_per_minute"`
	AvgDuration      float64 `json:"avg_duration"`
	CurrentAction    *string `json:"current_action"`
	QueueDepth       int     `json:"queue_depth"`
	SuccessRate      float64 `json:"success_rate"`
	ErrorCount       int     `json:"error_count"`
}

// EventMetrics is derived from the event recorder's counters and
// processing-time window. Durations are seconds.
type EventMetrics struct {
	Timestamp         float64 `json:"timestamp"`
	EventsQueued      int     `json:"events_queued"`
	EventsProcessed   int     `json:"events_processed"`
	EventsFailed      int     `json:"events_failed"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	QueueDepth        int     `json:"queue_depth"`
}
