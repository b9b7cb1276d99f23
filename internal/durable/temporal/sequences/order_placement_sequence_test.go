package sequences

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlacementActivityOptionsUntil(t *testing.T) {
	now := time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

	opts, ok := PlacementActivityOptionsUntil(now, time.Time{})
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, opts.StartToCloseTimeout)
	assert.Zero(t, opts.ScheduleToCloseTimeout)

	opts, ok = PlacementActivityOptionsUntil(now, now.Add(8*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 8*time.Second, opts.ScheduleToCloseTimeout)
	assert.Equal(t, 8*time.Second, opts.StartToCloseTimeout)
	assert.Equal(t, 30*time.Second, PlacementActivityOptions.StartToCloseTimeout, "defaults stay untouched")

	opts, ok = PlacementActivityOptionsUntil(now, now.Add(time.Minute))
	assert.True(t, ok)
	assert.Equal(t, time.Minute, opts.ScheduleToCloseTimeout)
	assert.Equal(t, 30*time.Second, opts.StartToCloseTimeout)

	_, ok = PlacementActivityOptionsUntil(now, now.Add(-time.Millisecond))
	assert.False(t, ok)
}
