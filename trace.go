package goalarm

import (
	"go.uber.org/zap"
)

// Fire-and-forget trace points, emitted after each operation completes.
// Free when no Logger option was given (nop core short-circuits in
// Check).

func (a *Alarm) traceSet(us uint64, cbPtr uintptr, arg any, err error) {
	if ce := a.log.Check(zap.DebugLevel, "alarm set"); ce != nil {
		ce.Write(
			zap.Uint64("delay_us", us),
			zap.Uintptr("cb", cbPtr),
			zap.Any("arg", arg),
			zap.Error(err),
		)
	}
}

func (a *Alarm) traceCancel(cbPtr uintptr, arg any, count int) {
	if ce := a.log.Check(zap.DebugLevel, "alarm cancel"); ce != nil {
		ce.Write(
			zap.Uintptr("cb", cbPtr),
			zap.Any("arg", arg),
			zap.Int("count", count),
		)
	}
}
