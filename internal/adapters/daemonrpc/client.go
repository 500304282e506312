package daemonrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/andrescamacho/fleetd/internal/application/common"
)

// Client talks to a running daemon over its unix socket
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to the daemon socket. The connection is lazy;
// the first call reports a dead daemon.
func NewClient(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix:"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon socket: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the daemon connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out)
}

// Health reports daemon liveness
func (c *Client) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.invoke(ctx, "Health", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContainers lists containers matching the filter
func (c *Client) ListContainers(ctx context.Context, req *ListContainersRequest) (*ListContainersResponse, error) {
	out := new(ListContainersResponse)
	if err := c.invoke(ctx, "ListContainers", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContainer fetches one container's full state
func (c *Client) GetContainer(ctx context.Context, req *GetContainerRequest) (*GetContainerResponse, error) {
	out := new(GetContainerResponse)
	if err := c.invoke(ctx, "GetContainer", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StopContainer asks the daemon to stop one container
func (c *Client) StopContainer(ctx context.Context, req *StopContainerRequest) (*StopContainerResponse, error) {
	out := new(StopContainerResponse)
	if err := c.invoke(ctx, "StopContainer", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContainerLogs pages through one container's log
func (c *Client) GetContainerLogs(ctx context.Context, req *GetContainerLogsRequest) (*GetContainerLogsResponse, error) {
	out := new(GetContainerLogsResponse)
	if err := c.invoke(ctx, "GetContainerLogs", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartContainer registers a new container operation. The payload is
// the command struct for the operation; it is marshaled to JSON here
// and validated daemon-side.
func (c *Client) StartContainer(ctx context.Context, operation string, command interface{}) (*StartContainerResponse, error) {
	payload, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", operation, err)
	}

	out := new(StartContainerResponse)
	req := &StartContainerRequest{Operation: operation, Payload: payload}
	if err := c.invoke(ctx, "StartContainer", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LocalClient serves the DaemonService interface in-process, for
// embedding the daemon and its driver in one binary
type LocalClient struct {
	service DaemonService
}

// NewLocalClient wraps a service for in-process use
func NewLocalClient(service DaemonService) *LocalClient {
	return &LocalClient{service: service}
}

func (c *LocalClient) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	return c.service.Health(ctx, req)
}

func (c *LocalClient) ListContainers(ctx context.Context, req *ListContainersRequest) (*ListContainersResponse, error) {
	return c.service.ListContainers(ctx, req)
}

func (c *LocalClient) GetContainer(ctx context.Context, req *GetContainerRequest) (*GetContainerResponse, error) {
	return c.service.GetContainer(ctx, req)
}

func (c *LocalClient) StopContainer(ctx context.Context, req *StopContainerRequest) (*StopContainerResponse, error) {
	return c.service.StopContainer(ctx, req)
}

func (c *LocalClient) GetContainerLogs(ctx context.Context, req *GetContainerLogsRequest) (*GetContainerLogsResponse, error) {
	return c.service.GetContainerLogs(ctx, req)
}

func (c *LocalClient) StartContainer(ctx context.Context, operation string, command common.Request) (*StartContainerResponse, error) {
	payload, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", operation, err)
	}
	return c.service.StartContainer(ctx, &StartContainerRequest{Operation: operation, Payload: payload})
}
