package goalarm

import (
	"golang.org/x/sys/unix"
)

// One-shot kernel timer backing the alarm engine. The fd is created
// once at engine init and reprogrammed with relative intervals; writing
// a zero interval disarms it. Reprogramming replaces, never queues.

func newTimerfd() (int, error) {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return tfd, nil
}

// armTimerfdRel arms the timer us microseconds from now
func armTimerfdRel(fd int, us uint64) error {
	its := unix.ItimerSpec{
		Value: unix.Timespec{
			Sec:  int64(us / usPerS),
			Nsec: int64(us%usPerS) * nsPerUs,
		},
	}
	return unix.TimerfdSettime(fd, 0 /*relative*/, &its, nil)
}

// armTimerfdAbs arms the timer for an absolute deadline by converting
// it to an interval relative to now. A deadline at or before now is
// clamped to one microsecond, a zero interval would disarm instead of
// firing immediately.
func armTimerfdAbs(fd int, deadline unix.Timeval, now unix.Timespec) error {
	var its unix.ItimerSpec
	its.Value.Sec = deadline.Sec
	its.Value.Nsec = deadline.Usec * nsPerUs
	// perform borrow for subtraction if necessary
	if now.Nsec > deadline.Usec*nsPerUs {
		its.Value.Sec--
		its.Value.Nsec += nsPerS
	}
	its.Value.Sec -= now.Sec
	its.Value.Nsec -= now.Nsec
	if its.Value.Sec < 0 || (its.Value.Sec == 0 && its.Value.Nsec < nsPerUs) {
		its.Value.Sec, its.Value.Nsec = 0, nsPerUs
	}
	return unix.TimerfdSettime(fd, 0 /*relative*/, &its, nil)
}

// disarmTimerfd clears any pending expiration
func disarmTimerfd(fd int) error {
	var its unix.ItimerSpec
	return unix.TimerfdSettime(fd, 0, &its, nil)
}
