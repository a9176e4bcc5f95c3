package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// GenerateRequest represents the content generation payload.
type GenerateRequest struct {
	Topic string `json:"topic"`
}

// GenerateResponse acknowledges an admitted pipeline run.
type GenerateResponse struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
	Status string `json:"status"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// DebugResponse summarises internal state for the debug endpoint.
type DebugResponse struct {
	Sessions    int   `json:"sessions"`
	EventQueues int   `json:"event_queues"`
	Goroutines  int   `json:"goroutines"`
	UptimeSecs  int64 `json:"uptime_secs"`
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	UserID    string `json:"user_id"`
	Cancelled bool   `json:"cancelled"`
}
