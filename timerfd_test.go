package goalarm

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

func waitReadable(t *testing.T, fd int, timeoutMs int) bool {
	t.Helper()
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(pfd, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return n == 1
	}
}

func TestTimerfdRelArm(t *testing.T) {
	tfd, err := newTimerfd()
	require.NoError(t, err)
	defer syscall.Close(tfd)

	require.NoError(t, armTimerfdRel(tfd, 10*ms))
	assert.True(t, waitReadable(t, tfd, 500), "timer did not fire")
}

func TestTimerfdDisarm(t *testing.T) {
	tfd, err := newTimerfd()
	require.NoError(t, err)
	defer syscall.Close(tfd)

	require.NoError(t, armTimerfdRel(tfd, 20*ms))
	require.NoError(t, disarmTimerfd(tfd))
	assert.False(t, waitReadable(t, tfd, 100), "disarmed timer fired")
}

func TestTimerfdAbsArm(t *testing.T) {
	tfd, err := newTimerfd()
	require.NoError(t, err)
	defer syscall.Close(tfd)

	now := monoNow()
	deadline := deadlineAfter(now, 10*ms)
	require.NoError(t, armTimerfdAbs(tfd, deadline, now))
	assert.True(t, waitReadable(t, tfd, 500), "timer did not fire")
}

func TestTimerfdAbsArmPastDeadlineClamps(t *testing.T) {
	tfd, err := newTimerfd()
	require.NoError(t, err)
	defer syscall.Close(tfd)

	now := monoNow()
	past := unix.Timeval{Sec: now.Sec - 1, Usec: 0}
	// a deadline already reached must still fire, a zero interval
	// would disarm instead
	require.NoError(t, armTimerfdAbs(tfd, past, now))
	assert.True(t, waitReadable(t, tfd, 100), "clamped timer did not fire")
}
