package goalarm

import (
	"golang.org/x/sys/unix"
)

const (
	nsPerUs = 1000
	usPerMs = 1000
	msPerS  = 1000
	usPerS  = usPerMs * msPerS
	nsPerS  = nsPerUs * usPerS
)

// monoNow reads the raw monotonic clock, insulated from NTP slewing.
// Falls back to the plain monotonic clock where RAW is unavailable
func monoNow() unix.Timespec {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	}
	return ts
}

// deadlineAfter converts a relative delay in microseconds into an
// absolute sec/usec deadline against now, normalizing the microsecond
// carry into seconds
func deadlineAfter(now unix.Timespec, us uint64) unix.Timeval {
	total := uint64(now.Nsec)/nsPerUs + us
	return unix.Timeval{
		Sec:  now.Sec + int64(total/usPerS),
		Usec: int64(total % usPerS),
	}
}

// deadlineReached reports whether deadline <= now
func deadlineReached(deadline unix.Timeval, now unix.Timespec) bool {
	return deadline.Sec < now.Sec ||
		(deadline.Sec == now.Sec && deadline.Usec*nsPerUs <= now.Nsec)
}

// deadlineBefore orders two deadlines, strict
func deadlineBefore(a, b unix.Timeval) bool {
	return a.Sec < b.Sec || (a.Sec == b.Sec && a.Usec < b.Usec)
}
