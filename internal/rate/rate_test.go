package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_WindowSlides(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "window full")
	assert.Equal(t, 0, l.Pending())

	clock = clock.Add(30 * time.Second)
	assert.False(t, l.Allow(), "still inside the window")

	clock = clock.Add(31 * time.Second)
	assert.True(t, l.Allow(), "oldest start expired")
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
	assert.Equal(t, 0, l.Pending())
}

func TestLimiter_Pending(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(3, time.Minute)
	l.now = func() time.Time { return clock }

	assert.Equal(t, 3, l.Pending())
	l.Allow()
	assert.Equal(t, 2, l.Pending())
	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 3, l.Pending())
}
