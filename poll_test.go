package goalarm

import (
	"encoding/binary"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

func newTestEventfdHandle(t *testing.T) *IntrHandle {
	t.Helper()
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	require.NoError(t, err)
	h := NewIntrHandle(IntrEventfd)
	h.SetFd(efd)
	t.Cleanup(h.Free)
	return h
}

func kickEventfd(t *testing.T, fd int) {
	t.Helper()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	n, err := syscall.Write(fd, buf[:])
	require.NoError(t, err)
	require.Equal(t, 8, n)
}

func TestPollerDispatchesReadable(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	go p.Run()
	defer p.Shutdown()

	h := newTestEventfdHandle(t)
	got := make(chan any, 4)
	require.NoError(t, p.Register(h, func(arg any) { got <- arg }, "hello"))

	kickEventfd(t, h.Fd())
	select {
	case arg := <-got:
		assert.Equal(t, "hello", arg)
	case <-time.After(time.Second):
		t.Fatal("callback not dispatched")
	}

	// drained per handle kind, a single kick means a single dispatch
	select {
	case <-got:
		t.Fatal("spurious second dispatch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollerUnregisterStopsDispatch(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	go p.Run()
	defer p.Shutdown()

	h := newTestEventfdHandle(t)
	got := make(chan any, 4)
	require.NoError(t, p.Register(h, func(arg any) { got <- arg }, nil))
	require.NoError(t, p.Unregister(h))

	kickEventfd(t, h.Fd())
	select {
	case <-got:
		t.Fatal("dispatched after Unregister")
	case <-time.After(50 * time.Millisecond):
	}

	assert.ErrorIs(t, p.Unregister(h), ErrNotFound)
}

func TestPollerRegisterValidation(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	go p.Run()

	h := newTestEventfdHandle(t)
	assert.ErrorIs(t, p.Register(nil, func(any) {}, nil), ErrInvalidArgument)
	assert.ErrorIs(t, p.Register(h, nil, nil), ErrInvalidArgument)
	assert.ErrorIs(t, p.Register(NewIntrHandle(IntrUnknown), func(any) {}, nil), ErrInvalidArgument)
	assert.ErrorIs(t, p.Unregister(nil), ErrInvalidArgument)

	p.Shutdown()
	p.Shutdown() // idempotent
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, p.Register(h, func(any) {}, nil), ErrPollerClosed)
}

func TestPollerShutdownWakesRun(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run() }()
	time.Sleep(20 * time.Millisecond)

	p.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}
