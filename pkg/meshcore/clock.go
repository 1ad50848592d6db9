package meshcore

import "time"

// Clock supplies monotonic milliseconds since boot. Injected so multiple
// simulated nodes can share a deterministic time source in tests.
type Clock interface {
	NowMillis() int64
}

// SystemClock is the wall Clock, measuring from process start.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a Clock anchored at the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowMillis() int64 {
	return time.Since(c.start).Milliseconds()
}
