package realtime

import (
	"sync"

	"balance_aggregator/internal/app/port"
)

var (
	sharedOnce    sync.Once
	sharedChannel *Channel
)

// Shared returns the process-wide channel, creating it on first use.
// Options passed on later calls are ignored.
func Shared(opts Options, l port.Logger) *Channel {
	sharedOnce.Do(func() {
		sharedChannel = NewChannel(opts, l)
	})
	return sharedChannel
}
