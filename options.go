package goalarm

import (
	"go.uber.org/zap"
)

// Options for Poller and Alarm instances
type Options struct {
	// poller options
	evPollSize    int // number of ready events fetched per epoll_wait
	evDataArrSize int // array part of the fd -> slot table

	// alarm options
	logger *zap.Logger // trace sink, nop by default
}

// Option func
type Option func(*Options)

func setOptions(optL ...Option) *Options {
	//= default options
	opts := &Options{
		evPollSize:    128,
		evDataArrSize: 8192,
		logger:        zap.NewNop(),
	}
	for _, opt := range optL {
		opt(opts)
	}
	return opts
}

// EvPollSize epoll_wait fetches up to n ready I/O events per round
func EvPollSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.evPollSize = n
		}
	}
}

// EvDataArrSize sizes the array part of the fd -> slot table, fds below n
// use array indexing, the rest fall into a map.
// Refer to arraymap.go
func EvDataArrSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.evDataArrSize = n
		}
	}
}

// Logger receives the set/cancel trace points. The engine is silent
// without it
func Logger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}
