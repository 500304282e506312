package daemonrpc

import (
	"encoding/json"
	"time"
)

// HealthRequest asks the daemon whether it is alive
type HealthRequest struct{}

// HealthResponse reports daemon liveness
type HealthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	ActiveContainers int     `json:"active_containers"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// ListContainersRequest filters the container listing. Nil fields
// match everything.
type ListContainersRequest struct {
	PlayerID *int    `json:"player_id,omitempty"`
	Type     *string `json:"type,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// ContainerSummary is the listing view of one container
type ContainerSummary struct {
	ContainerID      string    `json:"container_id"`
	ContainerType    string    `json:"container_type"`
	Status           string    `json:"status"`
	PlayerID         int       `json:"player_id"`
	CurrentIteration int       `json:"current_iteration"`
	MaxIterations    int       `json:"max_iterations"`
	RestartCount     int       `json:"restart_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListContainersResponse carries the matching containers, newest first
type ListContainersResponse struct {
	Containers []ContainerSummary `json:"containers"`
}

// GetContainerRequest asks for one container's full state
type GetContainerRequest struct {
	ContainerID string `json:"container_id"`
}

// GetContainerResponse is the full container state including its
// metadata document and last error, if any
type GetContainerResponse struct {
	Container ContainerSummary       `json:"container"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	StartedAt *time.Time             `json:"started_at,omitempty"`
	StoppedAt *time.Time             `json:"stopped_at,omitempty"`
	LastError string                 `json:"last_error,omitempty"`
}

// StopContainerRequest asks the daemon to stop one container
type StopContainerRequest struct {
	ContainerID string `json:"container_id"`
}

// StopContainerResponse acknowledges the stop
type StopContainerResponse struct {
	ContainerID string `json:"container_id"`
	Status      string `json:"status"`
}

// GetContainerLogsRequest pages through one container's log. Level and
// Since are optional filters.
type GetContainerLogsRequest struct {
	ContainerID string     `json:"container_id"`
	PlayerID    int        `json:"player_id"`
	Level       *string    `json:"level,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
}

// LogEntry is one container log line
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// GetContainerLogsResponse carries one page of log entries
type GetContainerLogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// StartContainerRequest registers a new container. Operation selects
// the command type and Payload is that command's JSON form; the server
// decodes and validates it through the mediator.
type StartContainerRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

// StartContainerResponse returns the handle of the registered
// container. Operations that answer synchronously (the player
// commands) have no container; their handler response rides in Result
// instead.
type StartContainerResponse struct {
	ContainerID string          `json:"container_id,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}
