package daemonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// DaemonService is the daemon's RPC surface. The server and the local
// in-process client both speak this interface.
type DaemonService interface {
	Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error)
	ListContainers(ctx context.Context, req *ListContainersRequest) (*ListContainersResponse, error)
	GetContainer(ctx context.Context, req *GetContainerRequest) (*GetContainerResponse, error)
	StopContainer(ctx context.Context, req *StopContainerRequest) (*StopContainerResponse, error)
	GetContainerLogs(ctx context.Context, req *GetContainerLogsRequest) (*GetContainerLogsResponse, error)
	StartContainer(ctx context.Context, req *StartContainerRequest) (*StartContainerResponse, error)
}

// ContainerLister reads persisted containers for the query surface
type ContainerLister interface {
	List(ctx context.Context, filter persistence.ContainerFilter) ([]*container.Container, error)
	FindByIDAnyPlayer(ctx context.Context, id string) (*container.Container, error)
}

// LogReader pages through container logs
type LogReader interface {
	GetLogs(ctx context.Context, containerID string, playerID int, limit, offset int, level *string, since *time.Time) ([]persistence.ContainerLogEntry, error)
}

// Service implements DaemonService over the supervisor, the mediator,
// and the repositories
type Service struct {
	sup        *supervisor.Supervisor
	mediator   common.Mediator
	containers ContainerLister
	logs       LogReader
	commands   map[string]commandDecoder
	version    string
}

// NewService creates the daemon RPC service
func NewService(
	sup *supervisor.Supervisor,
	mediator common.Mediator,
	containers ContainerLister,
	logs LogReader,
	version string,
) *Service {
	return &Service{
		sup:        sup,
		mediator:   mediator,
		containers: containers,
		logs:       logs,
		commands:   commandRegistry(),
		version:    version,
	}
}

// Health reports daemon version, active-container count, and uptime
func (s *Service) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{
		Status:           "ok",
		Version:          s.version,
		ActiveContainers: s.sup.ActiveCount(),
		UptimeSeconds:    s.sup.Uptime().Seconds(),
	}, nil
}

// ListContainers returns persisted containers matching the filter,
// newest first
func (s *Service) ListContainers(ctx context.Context, req *ListContainersRequest) (*ListContainersResponse, error) {
	filter := persistence.ContainerFilter{PlayerID: req.PlayerID}
	if req.Type != nil {
		t := container.Type(*req.Type)
		filter.Type = &t
	}
	if req.Status != nil {
		status := container.Status(*req.Status)
		filter.Status = &status
	}

	containers, err := s.containers.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	summaries := make([]ContainerSummary, 0, len(containers))
	for _, c := range containers {
		summaries = append(summaries, summarize(c))
	}
	return &ListContainersResponse{Containers: summaries}, nil
}

// GetContainer returns one container's full state. Live containers are
// read from the supervisor so iteration counters are current; stopped
// ones come from the database.
func (s *Service) GetContainer(ctx context.Context, req *GetContainerRequest) (*GetContainerResponse, error) {
	c, ok := s.sup.Get(req.ContainerID)
	if !ok {
		var err error
		c, err = s.containers.FindByIDAnyPlayer(ctx, req.ContainerID)
		if err != nil {
			return nil, err
		}
	}

	resp := &GetContainerResponse{
		Container: summarize(c),
		Metadata:  c.Metadata(),
		StartedAt: c.StartedAt(),
		StoppedAt: c.StoppedAt(),
	}
	if lastErr := c.LastError(); lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	return resp, nil
}

// StopContainer gracefully stops a supervised container
func (s *Service) StopContainer(ctx context.Context, req *StopContainerRequest) (*StopContainerResponse, error) {
	if err := s.sup.StopContainer(ctx, req.ContainerID); err != nil {
		return nil, err
	}
	return &StopContainerResponse{
		ContainerID: req.ContainerID,
		Status:      string(container.StatusStopped),
	}, nil
}

// GetContainerLogs pages through one container's log
func (s *Service) GetContainerLogs(ctx context.Context, req *GetContainerLogsRequest) (*GetContainerLogsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	entries, err := s.logs.GetLogs(ctx, req.ContainerID, req.PlayerID, limit, req.Offset, req.Level, req.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load container logs: %w", err)
	}

	logs := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, LogEntry{
			Timestamp: entry.Timestamp,
			Level:     entry.Level,
			Message:   entry.Message,
			Metadata:  entry.Metadata,
		})
	}
	return &GetContainerLogsResponse{Logs: logs}, nil
}

// StartContainer decodes the operation payload into its command and
// dispatches it through the mediator. Container operations answer with
// the new container id; synchronous operations answer with the
// handler's response document.
func (s *Service) StartContainer(ctx context.Context, req *StartContainerRequest) (*StartContainerResponse, error) {
	decode, ok := s.commands[req.Operation]
	if !ok {
		return nil, shared.NewDomainError(shared.KindBadRequest,
			fmt.Sprintf("unknown operation %q", req.Operation))
	}

	cmd, err := decode(req.Payload)
	if err != nil {
		return nil, err
	}

	response, err := s.mediator.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if started, ok := response.(*ship.StartContainerResponse); ok {
		return &StartContainerResponse{ContainerID: started.ContainerID}, nil
	}

	result, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s response: %w", req.Operation, err)
	}
	return &StartContainerResponse{Result: result}, nil
}

func summarize(c *container.Container) ContainerSummary {
	return ContainerSummary{
		ContainerID:      c.ID(),
		ContainerType:    string(c.Type()),
		Status:           string(c.Status()),
		PlayerID:         c.PlayerID(),
		CurrentIteration: c.CurrentIteration(),
		MaxIterations:    c.MaxIterations(),
		RestartCount:     c.RestartCount(),
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
}
