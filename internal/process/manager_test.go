package process

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_PIDLifecycle(t *testing.T) {
	m := NewManager(t.TempDir())

	assert.Zero(t, m.ReadPID())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.WritePID())
	assert.Equal(t, os.Getpid(), m.ReadPID())
	// The test process itself is alive, so the PID checks out.
	assert.True(t, m.IsRunning())

	m.CleanupPID()
	assert.Zero(t, m.ReadPID())
	assert.False(t, m.IsRunning())
}

func TestManager_IsRunningCleansStalePID(t *testing.T) {
	m := NewManager(t.TempDir())

	// A PID no process can have on Linux.
	require.NoError(t, os.WriteFile(m.pidFile, []byte("999999999"), 0600))

	assert.False(t, m.IsRunning())
	assert.Zero(t, m.ReadPID())
}

func TestManager_WaitForService(t *testing.T) {
	m := NewManager(t.TempDir())

	t.Run("times out when nothing starts", func(t *testing.T) {
		start := time.Now()
		assert.False(t, m.WaitForService(300*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	})

	t.Run("returns once the pid is live", func(t *testing.T) {
		require.NoError(t, m.WritePID())
		defer m.CleanupPID()

		assert.True(t, m.WaitForService(2*time.Second))
	})
}

func TestManager_StartServiceIfNeeded_AlreadyRunning(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.WritePID())
	defer m.CleanupPID()

	started, err := m.StartServiceIfNeeded()
	require.NoError(t, err)
	assert.False(t, started)
}
