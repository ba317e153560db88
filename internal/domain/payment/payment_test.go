package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObligationDueImmediately(t *testing.T) {
	ob := New(123456, "ws://renter:8082/ws", "ws://owner:8081/ws", 500, 60)

	require.True(t, ob.Due(), "fresh obligation must be due on the first tick")
	assert.Equal(t, 3600, ob.Repeat)
	assert.Equal(t, StatusActive, ob.Status)
}

func TestObligationCadence(t *testing.T) {
	// Frequency of one minute gives a repeat interval of 60 ticks.
	ob := New(1, "payer", "payee", 100, 1)
	require.Equal(t, 60, ob.Repeat)

	attempts := []int{}
	for tick := 1; tick <= 181; tick++ {
		if ob.Due() {
			attempts = append(attempts, tick)
			ob.Reset()
		}
		ob.Advance()
	}
	assert.Equal(t, []int{1, 61, 121, 181}, attempts)
}
