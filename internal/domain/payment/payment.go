package payment

import "time"

// Status of a recurring payment obligation.
type Status string

const (
	StatusActive Status = "active"
)

// Obligation is one recurring payment schedule tracked by the scheduler.
// The counter starts at zero so the first transfer is attempted on the
// very next tick, and resets to Repeat after every attempt. An attempt
// that fails leaves the schedule untouched; the obligation is simply due
// again Repeat ticks later.
type Obligation struct {
	ID               int64     `json:"id"`
	PayerAddress     string    `json:"payer_address"`
	PayeeAddress     string    `json:"payee_address"`
	AmountCents      int64     `json:"amount_cents"`
	FrequencyMinutes int       `json:"frequency_minutes"`
	Repeat           int       `json:"repeat"`
	Counter          int       `json:"counter"`
	Status           Status    `json:"status"`
	LastError        string    `json:"last_error,omitempty"`
	LastPaidAt       time.Time `json:"last_paid_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// New creates an obligation due on the first tick after creation.
func New(id int64, payer, payee string, amountCents int64, frequencyMinutes int) *Obligation {
	return &Obligation{
		ID:               id,
		PayerAddress:     payer,
		PayeeAddress:     payee,
		AmountCents:      amountCents,
		FrequencyMinutes: frequencyMinutes,
		Repeat:           60 * frequencyMinutes,
		Counter:          0,
		Status:           StatusActive,
		CreatedAt:        time.Now(),
	}
}

// Due reports whether a transfer should be attempted on this tick.
func (o *Obligation) Due() bool {
	return o.Counter <= 0
}

// Reset restarts the countdown after a transfer attempt.
func (o *Obligation) Reset() {
	o.Counter = o.Repeat
}

// Advance moves the obligation one tick closer to being due.
func (o *Obligation) Advance() {
	o.Counter--
}
