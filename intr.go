package goalarm

import (
	"syscall"
)

// Detecting illegal struct copies using `go vet`
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// IntrKind identifies what kind of event source an interrupt handle owns,
// the poller drains the fd differently depending on it.
type IntrKind int32

const (
	// IntrUnknown fd is not drained before the callback runs
	IntrUnknown IntrKind = iota

	// IntrAlarm a one-shot timerfd, readiness delivers an 8 byte counter
	IntrAlarm

	// IntrEventfd an eventfd, readiness delivers an 8 byte counter
	IntrEventfd
)

// IntrCallback is invoked on the poller thread when the handle's fd
// becomes readable
type IntrCallback func(arg any)

// IntrHandle is a private demultiplexer slot. It owns exactly one fd;
// Free closes it. Handles are not safe for concurrent mutation, the
// owner wires the fd once and then hands the handle to Register.
type IntrHandle struct {
	noCopy

	kind IntrKind
	fd   int
}

// NewIntrHandle allocates a private slot of the given kind with no fd
// attached yet
func NewIntrHandle(kind IntrKind) *IntrHandle {
	return &IntrHandle{kind: kind, fd: -1}
}

// Fd returns the owned fd, -1 if none
func (h *IntrHandle) Fd() int {
	return h.fd
}

// SetFd stores the fd into the slot, the slot takes ownership
func (h *IntrHandle) SetFd(fd int) {
	h.fd = fd
}

// Free releases the slot and closes the owned fd. Idempotent
func (h *IntrHandle) Free() {
	if h.fd >= 0 {
		syscall.Close(h.fd)
		h.fd = -1
	}
}
