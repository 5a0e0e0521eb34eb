package kafkalib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighWaterMark(t *testing.T) {
	hwm := NewHighWaterMark()
	assert.False(t, hwm.CaughtUp())

	assert.Empty(t, hwm.Lag())

	hwm.SetHWM("orders", 0, 10)
	hwm.SetHWM("orders", 1, 4)
	assert.Empty(t, hwm.Lag())

	// Positions never move backwards
	hwm.Advance("orders", 0, 7)
	hwm.Advance("orders", 0, 3)
	assert.Equal(t, map[string]map[int32]int64{"orders": {0: 3}}, hwm.Lag())
	assert.False(t, hwm.CaughtUp())

	hwm.Advance("orders", 0, 10)
	hwm.Advance("orders", 1, 4)
	assert.True(t, hwm.CaughtUp())
	assert.Equal(t, map[string]map[int32]int64{"orders": {0: 0, 1: 0}}, hwm.Lag())
}
