package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudget(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	b := NewBudget(10*time.Second, clock)

	assert.Equal(t, 10*time.Second, b.Remaining())
	assert.True(t, b.Allows(10*time.Second))
	assert.False(t, b.Exhausted())

	now = now.Add(7 * time.Second)
	assert.Equal(t, 3*time.Second, b.Remaining())
	assert.True(t, b.Allows(2*time.Second))
	assert.False(t, b.Allows(4*time.Second))

	now = now.Add(5 * time.Second)
	assert.Equal(t, time.Duration(0), b.Remaining())
	assert.True(t, b.Exhausted())
	assert.Equal(t, 12*time.Second, b.Elapsed())
}
