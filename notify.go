package goalarm

import (
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	notifyV      int64 = 1
	notifyWriteV       = (*(*[8]byte)(unsafe.Pointer(&notifyV)))[:]
)

// notifier wakes the poll loop out of epoll_wait through an eventfd.
// Thread-safe, coalesces concurrent notifications.
type notifier struct {
	efd        int
	notifyOnce atomic.Int32 // avoid piling up writes before the loop drains
}

func newNotifier() (*notifier, error) {
	// since Linux 2.6.27
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &notifier{efd: fd}, nil
}

func (nt *notifier) notify() {
	if !nt.notifyOnce.CompareAndSwap(0, 1) {
		return
	}
	for {
		n, err := syscall.Write(nt.efd, notifyWriteV) // man 2 eventfd
		if n == 8 || err == syscall.EAGAIN {
			return
		}
		if err == syscall.EINTR {
			continue
		}
		return
	}
}

// drain consumes the counter, called on the poll thread only
func (nt *notifier) drain() {
	var tmp [8]byte
	for {
		_, err := syscall.Read(nt.efd, tmp[:])
		if err == syscall.EINTR {
			continue
		}
		break
	}
	nt.notifyOnce.Store(0)
}
