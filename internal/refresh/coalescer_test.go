package refresh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalescer_BurstRunsAtMostTwice(t *testing.T) {
	starts := 0
	c := NewCoalescer(func() { starts++ })

	// Ten triggers land before the first reload finishes.
	for i := 0; i < 10; i++ {
		c.Trigger()
	}
	assert.Equal(t, 1, starts)
	assert.True(t, c.InFlight())

	// Settling the first starts exactly one follow-up.
	c.Settle()
	assert.Equal(t, 2, starts)
	assert.True(t, c.InFlight())

	// Settling the follow-up with nothing queued goes idle.
	c.Settle()
	assert.Equal(t, 2, starts)
	assert.False(t, c.InFlight())
}

func TestCoalescer_QuietTriggersRunIndividually(t *testing.T) {
	starts := 0
	c := NewCoalescer(func() { starts++ })

	c.Trigger()
	c.Settle()
	c.Trigger()
	c.Settle()

	assert.Equal(t, 2, starts)
	assert.False(t, c.InFlight())
}

func TestCoalescer_SettleWithoutTriggerIsNoop(t *testing.T) {
	starts := 0
	c := NewCoalescer(func() { starts++ })

	c.Settle()
	assert.Equal(t, 0, starts)
	assert.False(t, c.InFlight())
}
