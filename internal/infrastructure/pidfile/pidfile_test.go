package pidfile_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/infrastructure/pidfile"
)

func TestAcquireWritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	p := pidfile.New(path)

	require.NoError(t, p.Acquire(false))
	t.Cleanup(func() { _ = p.Release() })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireFailsWhenOwnerIsAlive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")

	// Our own pid plays the part of a live owner
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644))

	p := pidfile.New(path)
	err := p.Acquire(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestForceEvictsLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644))

	p := pidfile.New(path)
	require.NoError(t, p.Acquire(true))
	t.Cleanup(func() { _ = p.Release() })
}

func TestStalePIDIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")

	// PID 2^22 is above the default linux pid_max, so nothing owns it
	require.NoError(t, os.WriteFile(path, []byte("4194304\n"), 0644))

	p := pidfile.New(path)
	require.NoError(t, p.Acquire(false))
	t.Cleanup(func() { _ = p.Release() })
}

func TestGarbagePIDFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0644))

	p := pidfile.New(path)
	require.NoError(t, p.Acquire(false))
	t.Cleanup(func() { _ = p.Release() })
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	p := pidfile.New(path)

	require.NoError(t, p.Acquire(false))
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
}
