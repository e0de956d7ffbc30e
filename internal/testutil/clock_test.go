package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt("2025-03-10")
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), c.Now())
}

func TestClock_NewClockAt_PanicsOnBadDate(t *testing.T) {
	assert.Panics(t, func() { NewClockAt("10/03/2025") })
}

func TestClock_AdvanceAndSet(t *testing.T) {
	c := NewClockAt("2025-03-10")

	c.AdvanceDays(1)
	assert.Equal(t, "2025-03-11", c.Now().Format(time.DateOnly))

	c.Advance(13 * time.Hour)
	assert.Equal(t, "2025-03-12", c.Now().Format(time.DateOnly))

	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(fixed)
	assert.Equal(t, fixed, c.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClockAt("2025-01-01")
	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			c.Advance(time.Minute)
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Date(2025, 1, 1, 12, workers, 0, 0, time.UTC), c.Now())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "doc-0001", g.Generate())
	assert.Equal(t, "doc-0002", g.Generate())

	g.Reset()
	assert.Equal(t, "doc-0001", g.Generate())

	p := NewSequentialIDs("plan")
	assert.Equal(t, "plan-0001", p.Generate())
}
