// Package refresh bounds how often the full game reload runs, no matter
// how many change notifications arrive.
package refresh

// Coalescer collapses bursts of triggers into at most one in-flight
// reload plus at most one queued follow-up. The start function kicks
// off one reload attempt; whoever runs it must call Settle exactly once
// when it finishes, success or failure.
//
// Not safe for concurrent use; the session loop owns it.
type Coalescer struct {
	start    func()
	inFlight bool
	queued   bool
}

func NewCoalescer(start func()) *Coalescer {
	return &Coalescer{start: start}
}

// Trigger requests a reload. Starts one immediately if none is running,
// otherwise queues a single follow-up.
func (c *Coalescer) Trigger() {
	if c.inFlight {
		c.queued = true
		return
	}
	c.inFlight = true
	c.start()
}

// Settle marks the in-flight reload finished. If a follow-up was queued
// it starts right away, still counting as the one in-flight reload.
func (c *Coalescer) Settle() {
	if !c.inFlight {
		return
	}
	if c.queued {
		c.queued = false
		c.start()
		return
	}
	c.inFlight = false
}

// InFlight reports whether a reload is currently running.
func (c *Coalescer) InFlight() bool { return c.inFlight }
