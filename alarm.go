package goalarm

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sync"

	"github.com/realjf/spinlock"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Callback is a one-shot alarm callback, invoked on the poller thread
// with the argument given to Set
type Callback func(arg any)

type anyArg struct{}

// AnyArg is the cancel wildcard, it matches every pending alarm of the
// callback regardless of argument
var AnyArg any = anyArg{}

// alarm is one pending (callback, argument, deadline) entry.
// Linked into the engine's deadline-sorted list, all fields are guarded
// by the engine lock except during the callback invocation window.
type alarm struct {
	next, prev *alarm

	deadline unix.Timeval // absolute, raw monotonic clock

	cb    Callback
	cbPtr uintptr // identity for cancel matching
	arg   any

	executing  bool // callback is running right now
	executorID int  // dispatch thread tid, valid only while executing
}

// Alarm is a one-shot timer scheduler backed by a single kernel timer.
// Set and Cancel are safe from any goroutine, including from inside a
// firing callback. Expiries dispatch on the poller's thread.
type Alarm struct {
	noCopy

	poller *Poller
	intr   *IntrHandle
	log    *zap.Logger

	// lock guards the pending list, the registration flag and the
	// timerfd arming state. Critical sections stay short, the lock is
	// never held across a callback invocation.
	lock sync.Locker
	head *alarm
	tail *alarm

	handlerRegistered bool // one-way, set on first successful Register
}

// NewAlarm creates an engine on the given poller. The timer handle is
// brought up here, registration with the poller is deferred to the
// first Set so engine creation may precede the poll loop.
func NewAlarm(p *Poller, opts ...Option) (*Alarm, error) {
	if p == nil {
		return nil, ErrInvalidArgument
	}
	evOptions := setOptions(opts...)
	a := &Alarm{
		poller: p,
		log:    evOptions.logger,
		lock:   spinlock.NewSpinLock(),
		intr:   NewIntrHandle(IntrAlarm),
	}
	tfd, err := newTimerfd()
	if err != nil {
		a.intr.Free()
		return nil, fmt.Errorf("%w: timerfd_create: %s", ErrResourceExhausted, err.Error())
	}
	a.intr.SetFd(tfd)
	return a, nil
}

// Cleanup releases the timer handle and its poller slot.
// Callers must have no pending alarms and no in-flight dispatch.
func (a *Alarm) Cleanup() {
	a.lock.Lock()
	registered := a.handlerRegistered
	a.handlerRegistered = false
	a.lock.Unlock()
	if registered {
		a.poller.Unregister(a.intr)
	}
	a.intr.Free()
}

// Set schedules cb(arg) to run once, us microseconds from now.
// us must be at least 1 and small enough that the deadline math cannot
// overflow. On success the callback fires at or after the deadline
// unless canceled first.
//
// A timer reprogramming failure is returned to the caller but the
// alarm stays linked in, the next Set or dispatch re-arms the fd.
func (a *Alarm) Set(us uint64, cb Callback, arg any) error {
	// check parameters, including that us won't overflow the deadline math
	if us < 1 || us > math.MaxUint64-usPerS || cb == nil {
		return ErrInvalidArgument
	}

	now := monoNow()
	na := &alarm{
		deadline: deadlineAfter(now, us),
		cb:       cb,
		cbPtr:    callbackPtr(cb),
		arg:      arg,
	}

	a.lock.Lock()
	if !a.handlerRegistered {
		// registration can legitimately race with poller bring-up,
		// failure is not fatal here - the next Set retries
		if a.poller.Register(a.intr, a.dispatch, nil) == nil {
			a.handlerRegistered = true
		}
	}
	a.insert(na)
	var err error
	if a.head == na {
		err = armTimerfdRel(a.intr.Fd(), us)
	}
	a.lock.Unlock()

	a.traceSet(us, na.cbPtr, arg, err)
	return err
}

// Cancel removes pending alarms matching cb and arg, AnyArg matches any
// argument. It returns how many alarms were removed.
//
// A matching alarm whose callback is running on another thread makes
// Cancel spin until dispatch has retired it, so a nil error guarantees
// no matched callback runs afterwards. A matching alarm running on the
// calling thread (a callback canceling itself) cannot be waited on,
// Cancel flags it with ErrInProgress and still removes idle siblings -
// consult both return values.
func (a *Alarm) Cancel(cb Callback, arg any) (int, error) {
	if cb == nil {
		return 0, ErrInvalidArgument
	}
	ptr := callbackPtr(cb)
	self := unix.Gettid()
	count := 0
	var err error

	for {
		sawExecuting := false
		a.lock.Lock()
		// phase A: drain matches at the head of the list
		for ap := a.head; ap != nil && a.match(ap, ptr, arg); ap = a.head {
			if !ap.executing {
				a.unlink(ap)
				count++
				continue
			}
			// Executing right now. From another thread we spin until
			// dispatch retires the entry, from the dispatch thread
			// itself that would never end - flag in-progress instead
			if ap.executorID != self {
				sawExecuting = true
			} else {
				err = ErrInProgress
			}
			break
		}
		// phase B: sweep the remainder for matches not at the head
		var next *alarm
		for ap := a.head; ap != nil; ap = next {
			next = ap.next
			if !a.match(ap, ptr, arg) {
				continue
			}
			if !ap.executing {
				a.unlink(ap)
				count++
			} else if ap.executorID != self {
				sawExecuting = true
			} else {
				err = ErrInProgress
			}
		}
		a.lock.Unlock()

		if !sawExecuting {
			break
		}
		runtime.Gosched() // let dispatch finish the callback
	}

	if count == 0 && err == nil {
		err = ErrNotFound
	}
	a.traceCancel(ptr, arg, count)
	return count, err
}

// dispatch runs on the poller thread when the timerfd fires. It pops
// due entries one at a time, invoking each callback with the lock
// released so Set and Cancel work re-entrantly from inside callbacks.
func (a *Alarm) dispatch(any) {
	a.lock.Lock()
	now := monoNow()
	for ap := a.head; ap != nil && deadlineReached(ap.deadline, now); ap = a.head {
		ap.executing = true
		ap.executorID = unix.Gettid()
		a.lock.Unlock()

		ap.cb(ap.arg)

		a.lock.Lock()
		// unlink by identity, the callback may have Set an earlier
		// sibling so ap is not necessarily still the head
		a.unlink(ap)
		now = monoNow()
	}
	if a.head != nil {
		armTimerfdAbs(a.intr.Fd(), a.head.deadline, now)
	}
	a.lock.Unlock()
}

// insert links na keeping the list sorted non-decreasingly by deadline,
// new entries go after existing entries with an equal deadline
func (a *Alarm) insert(na *alarm) {
	ap := a.head
	for ; ap != nil; ap = ap.next {
		if deadlineBefore(na.deadline, ap.deadline) {
			break
		}
	}
	if ap == nil { // tail append, also covers the empty list
		na.prev = a.tail
		if a.tail != nil {
			a.tail.next = na
		} else {
			a.head = na
		}
		a.tail = na
		return
	}
	na.prev = ap.prev
	na.next = ap
	if ap.prev != nil {
		ap.prev.next = na
	} else {
		a.head = na
	}
	ap.prev = na
}

func (a *Alarm) unlink(ap *alarm) {
	if ap.prev != nil {
		ap.prev.next = ap.next
	} else {
		a.head = ap.next
	}
	if ap.next != nil {
		ap.next.prev = ap.prev
	} else {
		a.tail = ap.prev
	}
	ap.next, ap.prev = nil, nil
}

func (a *Alarm) match(ap *alarm, ptr uintptr, arg any) bool {
	return ap.cbPtr == ptr && (arg == AnyArg || ap.arg == arg)
}

// callbackPtr yields a comparable identity for a callback, its code
// pointer. Named functions and distinct function literals compare
// distinct. Closures built from the same literal share one identity,
// as do method values of one method on different receivers - use the
// argument to tell such alarms apart.
func callbackPtr(cb Callback) uintptr {
	return reflect.ValueOf(cb).Pointer()
}

//= process-wide engine

var (
	defaultMtx   sync.Mutex
	defaultAlarm *Alarm
)

// Init brings up the process-wide engine on the given poller.
// Idempotent, later calls are no-ops
func Init(p *Poller, opts ...Option) error {
	defaultMtx.Lock()
	defer defaultMtx.Unlock()
	if defaultAlarm != nil {
		return nil
	}
	a, err := NewAlarm(p, opts...)
	if err != nil {
		return err
	}
	defaultAlarm = a
	return nil
}

// Default returns the process-wide engine, nil before Init
func Default() *Alarm {
	defaultMtx.Lock()
	defer defaultMtx.Unlock()
	return defaultAlarm
}

// Cleanup tears down the process-wide engine, preconditions as
// (*Alarm).Cleanup
func Cleanup() {
	defaultMtx.Lock()
	a := defaultAlarm
	defaultAlarm = nil
	defaultMtx.Unlock()
	if a != nil {
		a.Cleanup()
	}
}

// Set schedules on the process-wide engine. Refer to (*Alarm).Set
func Set(us uint64, cb Callback, arg any) error {
	a := Default()
	if a == nil {
		return ErrNotInitialized
	}
	return a.Set(us, cb, arg)
}

// Cancel cancels on the process-wide engine. Refer to (*Alarm).Cancel
func Cancel(cb Callback, arg any) (int, error) {
	a := Default()
	if a == nil {
		return 0, ErrNotInitialized
	}
	return a.Cancel(cb, arg)
}
