package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentmesh/internal/domain/shared"
)

func TestBillingPeriodHours(t *testing.T) {
	assert.Equal(t, 1, PeriodHour.Hours())
	assert.Equal(t, 24, PeriodDay.Hours())
	assert.Equal(t, 168, PeriodWeek.Hours())
	assert.Equal(t, 720, PeriodMonth.Hours())
	assert.Equal(t, 8760, PeriodYear.Hours())
	assert.Equal(t, 0, BillingPeriod("fortnight").Hours())
}

func TestBillingPeriodMinutes(t *testing.T) {
	assert.Equal(t, 60, PeriodHour.Minutes())
	assert.Equal(t, 1440, PeriodDay.Minutes())
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("week")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("decade")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

func TestItemValidate(t *testing.T) {
	valid := Item{
		Name:       "drill",
		PriceCents: 500,
		Period:     PeriodDay,
		Category:   "tools",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Item)
		want   error
	}{
		{"missing name", func(i *Item) { i.Name = "" }, shared.ErrInvalidItem},
		{"missing category", func(i *Item) { i.Category = "" }, shared.ErrInvalidItem},
		{"zero price", func(i *Item) { i.PriceCents = 0 }, shared.ErrInvalidItem},
		{"negative price", func(i *Item) { i.PriceCents = -100 }, shared.ErrInvalidItem},
		{"bad period", func(i *Item) { i.Period = "eon" }, shared.ErrInvalidPeriod},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			it := valid
			tc.mutate(&it)
			assert.ErrorIs(t, it.Validate(), tc.want)
		})
	}
}
