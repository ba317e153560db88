package item

import (
	"rentmesh/internal/domain/shared"
)

// BillingPeriod is the unit an item's rental price is quoted in.
type BillingPeriod string

const (
	PeriodHour  BillingPeriod = "hour"
	PeriodDay   BillingPeriod = "day"
	PeriodWeek  BillingPeriod = "week"
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// periodHours maps each billing period to its length in hours.
var periodHours = map[BillingPeriod]int{
	PeriodHour:  1,
	PeriodDay:   24,
	PeriodWeek:  24 * 7,
	PeriodMonth: 24 * 30,
	PeriodYear:  24 * 365,
}

// Hours returns the period length in hours, or 0 for an unknown period.
func (p BillingPeriod) Hours() int {
	return periodHours[p]
}

// Minutes returns the period length in minutes. This is the frequency
// a payment obligation for the item is registered with.
func (p BillingPeriod) Minutes() int {
	return p.Hours() * 60
}

// Valid reports whether p is one of the known billing periods.
func (p BillingPeriod) Valid() bool {
	_, ok := periodHours[p]
	return ok
}

// ParsePeriod converts a string into a BillingPeriod.
func ParsePeriod(s string) (BillingPeriod, error) {
	p := BillingPeriod(s)
	if !p.Valid() {
		return "", shared.ErrInvalidPeriod
	}
	return p, nil
}

// Item is a physical item offered for rent. Identity is the pair
// (owner address, name); names are unique within one owner's inventory.
// The image blob is carried opaque, base64 encoded by the caller.
type Item struct {
	Name        string        `json:"name"`
	PriceCents  int64         `json:"price_cents"`
	Period      BillingPeriod `json:"period"`
	Category    string        `json:"category"`
	Description string        `json:"description,omitempty"`
	Image       string        `json:"image,omitempty"`
}

// Validate checks the fields required to list or reserve an item.
func (i Item) Validate() error {
	if i.Name == "" {
		return shared.ErrInvalidItem
	}
	if i.Category == "" {
		return shared.ErrInvalidItem
	}
	if i.PriceCents <= 0 {
		return shared.ErrInvalidItem
	}
	if !i.Period.Valid() {
		return shared.ErrInvalidPeriod
	}
	return nil
}
