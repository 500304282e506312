package daemonrpc_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/daemonrpc"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

type rpcFixture struct {
	service    *daemonrpc.Service
	sup        *supervisor.Supervisor
	containers *persistence.GormContainerRepository
	logs       *persistence.GormContainerLogRepository
	clock      *shared.MockClock
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	containerRepo := persistence.NewGormContainerRepository(db, clock)
	logRepo := persistence.NewGormContainerLogRepository(db, clock)
	assignmentRepo := persistence.NewGormShipAssignmentRepository(db, clock)

	sub := &supervisor.Substrate{
		Clock:      clock,
		Containers: containerRepo,
		Logs:       logRepo,
		Locks:      locks.NewManager(assignmentRepo, 30*time.Minute),
	}
	sup := supervisor.New(sub, supervisor.Options{})
	sup.RegisterFactory(container.TypeDock, func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
		return func(ctx context.Context) error { return nil }, nil
	})

	m := common.NewMediator()
	m.Use(common.ValidationMiddleware())
	require.NoError(t, ship.NewHandlers(sup, clock).Register(m))

	service := daemonrpc.NewService(sup, m, containerRepo, logRepo, "test")
	return &rpcFixture{
		service:    service,
		sup:        sup,
		containers: containerRepo,
		logs:       logRepo,
		clock:      clock,
	}
}

func TestService_StartContainerDispatchesCommand(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()

	client := daemonrpc.NewLocalClient(f.service)
	resp, err := client.StartContainer(ctx, "dock", &ship.DockCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SHIP-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ContainerID)

	f.sup.Wait(resp.ContainerID)

	persisted, err := f.containers.FindByIDAnyPlayer(ctx, resp.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, container.StatusCompleted, persisted.Status())
}

func TestService_StartContainerRejectsUnknownOperation(t *testing.T) {
	f := newRPCFixture(t)

	_, err := f.service.StartContainer(context.Background(), &daemonrpc.StartContainerRequest{
		Operation: "summon-fleet",
	})
	require.Error(t, err)
	assert.True(t, shared.IsBadRequest(err))
}

func TestService_StartContainerValidatesPayload(t *testing.T) {
	f := newRPCFixture(t)

	client := daemonrpc.NewLocalClient(f.service)
	_, err := client.StartContainer(context.Background(), "dock", &ship.DockCommand{
		PlayerID: 1,
	})
	require.Error(t, err)
}

func TestService_ListContainersFiltersByStatus(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()

	running := container.New("c-running", container.TypeMiningWorker, 1, -1, nil, f.clock)
	require.NoError(t, running.Start())
	require.NoError(t, f.containers.Save(ctx, running))

	done := container.New("c-done", container.TypeDock, 1, 1, nil, f.clock)
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete())
	require.NoError(t, f.containers.Save(ctx, done))

	status := string(container.StatusRunning)
	resp, err := f.service.ListContainers(ctx, &daemonrpc.ListContainersRequest{Status: &status})
	require.NoError(t, err)
	require.Len(t, resp.Containers, 1)
	assert.Equal(t, "c-running", resp.Containers[0].ContainerID)

	all, err := f.service.ListContainers(ctx, &daemonrpc.ListContainersRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Containers, 2)
}

func TestService_GetContainerReturnsMetadataAndError(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()

	c := container.New("c-failed", container.TypeMiningWorker, 1, -1,
		map[string]interface{}{"ship": "AGENT-DRONE-1"}, f.clock)
	require.NoError(t, c.Start())
	require.NoError(t, c.Fail(assert.AnError))
	require.NoError(t, f.containers.Save(ctx, c))

	resp, err := f.service.GetContainer(ctx, &daemonrpc.GetContainerRequest{ContainerID: "c-failed"})
	require.NoError(t, err)
	assert.Equal(t, string(container.StatusFailed), resp.Container.Status)
	assert.Equal(t, "AGENT-DRONE-1", resp.Metadata["ship"])
	assert.NotEmpty(t, resp.LastError)
}

func TestService_GetContainerLogsPages(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, f.logs.Log(ctx, "c-1", 1, "INFO", msg, nil))
		f.clock.Advance(2 * time.Minute)
	}

	resp, err := f.service.GetContainerLogs(ctx, &daemonrpc.GetContainerLogsRequest{
		ContainerID: "c-1",
		PlayerID:    1,
		Limit:       2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, "third", resp.Logs[0].Message)
}

func TestService_StopContainerUnknownID(t *testing.T) {
	f := newRPCFixture(t)

	_, err := f.service.StopContainer(context.Background(), &daemonrpc.StopContainerRequest{
		ContainerID: "no-such-container",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestServerAndClient_HealthOverUnixSocket(t *testing.T) {
	f := newRPCFixture(t)
	socketPath := filepath.Join(t.TempDir(), "daemon.sock")

	server, err := daemonrpc.NewServer(f.service, socketPath)
	require.NoError(t, err)
	go func() { _ = server.Serve() }()
	t.Cleanup(server.Shutdown)

	client, err := daemonrpc.NewClient(socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Health(ctx, &daemonrpc.HealthRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}
