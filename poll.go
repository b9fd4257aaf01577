package goalarm

import (
	"errors"
	"runtime"
	"sync/atomic"
	"syscall"
)

// intrSlot binds a registered interrupt handle to its readable-fd
// callback
type intrSlot struct {
	h   *IntrHandle
	cb  IntrCallback
	arg any
}

// Poller is a single-threaded epoll demultiplexer. One dedicated
// goroutine calls Run and becomes the dispatch thread, it is pinned to
// its OS thread for its whole lifetime. Register/Unregister are safe
// from any goroutine, epoll_ctl on an fd set another thread is waiting
// on is well defined.
type Poller struct {
	noCopy

	efd int // epoll fd

	evPollSize int // ready events fetched per epoll_wait round

	slots  *arrayMapUnion[intrSlot]
	wakeup *notifier // shutdown path
	closed atomic.Int32
}

// NewPoller creates the demultiplexer, ready for Run
func NewPoller(opts ...Option) (*Poller, error) {
	evOptions := setOptions(opts...)
	efd, err := syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.New("syscall epoll_create1: " + err.Error())
	}
	p := &Poller{
		efd:        efd,
		evPollSize: evOptions.evPollSize,
		slots:      newArrayMapUnion[intrSlot](evOptions.evDataArrSize),
	}
	p.wakeup, err = newNotifier()
	if err != nil {
		syscall.Close(efd)
		return nil, errors.New("eventfd: " + err.Error())
	}
	if err = p.epollAdd(p.wakeup.efd); err != nil {
		syscall.Close(p.wakeup.efd)
		syscall.Close(efd)
		return nil, err
	}
	return p, nil
}

// Register attaches a readable-fd callback to the handle's fd. The
// callback runs on the poll thread, after the fd has been drained
// according to the handle kind.
func (p *Poller) Register(h *IntrHandle, cb IntrCallback, arg any) error {
	if h == nil || h.Fd() < 0 || cb == nil {
		return ErrInvalidArgument
	}
	if p.closed.Load() != 0 {
		return ErrPollerClosed
	}
	fd := h.Fd()
	p.slots.Store(fd, &intrSlot{h: h, cb: cb, arg: arg})
	if err := p.epollAdd(fd); err != nil {
		p.slots.Delete(fd)
		return err
	}
	return nil
}

// Unregister detaches the handle, its fd stays open and owned by the
// caller
func (p *Poller) Unregister(h *IntrHandle) error {
	if h == nil || h.Fd() < 0 {
		return ErrInvalidArgument
	}
	fd := h.Fd()
	if p.slots.Load(fd) == nil {
		return ErrNotFound
	}
	p.slots.Delete(fd)
	// The event argument is ignored and can be NULL (but see `man 2 epoll_ctl` BUGS)
	// kernel versions > 2.6.9
	if err := syscall.EpollCtl(p.efd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.New("epoll_ctl del: " + err.Error())
	}
	return nil
}

// Shutdown wakes the poll loop and makes Run return. Registered handles
// are not freed
func (p *Poller) Shutdown() {
	if !p.closed.CompareAndSwap(0, 1) {
		return
	}
	p.wakeup.notify()
}

// Run blocks dispatching readiness callbacks until Shutdown.
// The calling goroutine is the dispatch thread.
func (p *Poller) Run() error {
	// Refer to go doc runtime.LockOSThread
	// LockOSThread binds the current goroutine to the current OS thread T,
	// preventing other goroutines from being scheduled onto this thread T.
	// Alarm cancellation relies on this pin to tell a callback canceling
	// itself apart from a cross-thread cancel.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var nfds, i int
	var err error
	events := make([]syscall.EpollEvent, p.evPollSize)
	for {
		nfds, err = syscall.EpollWait(p.efd, events, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return errors.New("syscall epoll_wait: " + err.Error())
		}
		for i = 0; i < nfds; i++ {
			fd := int(events[i].Fd)
			if fd == p.wakeup.efd {
				p.wakeup.drain()
				if p.closed.Load() != 0 {
					p.close()
					return nil
				}
				continue
			}
			slot := p.slots.Load(fd)
			if slot == nil { // raced with Unregister
				continue
			}
			switch slot.h.kind {
			case IntrAlarm, IntrEventfd:
				drainCounterFd(fd)
			}
			slot.cb(slot.arg)
		}
	}
}

func (p *Poller) epollAdd(fd int) error {
	ev := syscall.EpollEvent{
		Events: syscall.EPOLLIN | syscall.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := syscall.EpollCtl(p.efd, syscall.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.New("epoll_ctl add: " + err.Error())
	}
	return nil
}

func (p *Poller) close() {
	syscall.Close(p.wakeup.efd)
	syscall.Close(p.efd)
	p.efd = -1
}

// drainCounterFd consumes the 8 byte expiration counter of a timerfd or
// eventfd so level-triggered epoll does not report it again
func drainCounterFd(fd int) {
	var tmp [8]byte
	for {
		_, err := syscall.Read(fd, tmp[:])
		if err == syscall.EINTR {
			continue
		}
		return
	}
}
