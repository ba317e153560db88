package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"rentmesh/internal/domain/item"
)

func TestNewTicket(t *testing.T) {
	it := item.Item{Name: "kayak", PriceCents: 2000, Period: item.PeriodDay, Category: "sports"}
	tk := New(it, "ws://owner:8081/ws", "ws://renter:8082/ws")

	require.NotEqual(t, tk.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, StateRequested, tk.State)
	assert.Equal(t, it, tk.Item)
	assert.Len(t, tk.HandoverCode, 4)
	assert.Empty(t, tk.ReturnCode)
	assert.False(t, tk.CreatedAt.IsZero())
}

func TestNewCodeDigitsOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code := NewCode()
		require.Len(t, code, 4)
		for _, c := range code {
			require.True(t, c >= '0' && c <= '9', "code %q contains non-digit", code)
		}
	})
}
