package ticket

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"

	"rentmesh/internal/domain/item"
)

// State tracks an item's progress through the rental lifecycle.
type State string

const (
	StateRequested    State = "requested"
	StateHandedOver   State = "handed_over"
	StateActiveRental State = "active_rental"
	StateReturned     State = "returned"
)

// Ticket is the owner-side record of one rental in flight. Every
// lifecycle message after the initial reservation carries the ticket ID,
// so two same-named items from different owners can never be confused.
//
// Two distinct codes are used over a ticket's lifetime: the handover code
// minted at reservation proves the owner-to-renter custody transfer, and
// the return code minted at activation proves the renter-to-owner one.
// Each is validated exactly once.
type Ticket struct {
	ID           uuid.UUID `json:"id"`
	Item         item.Item `json:"item"`
	OwnerAddress string    `json:"owner_address"`
	RenterAddress string   `json:"renter_address"`
	HandoverCode string    `json:"handover_code"`
	ReturnCode   string    `json:"return_code,omitempty"`
	PaymentID    int64     `json:"payment_id,omitempty"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// New creates a ticket in the requested state with a fresh handover code.
func New(it item.Item, owner, renter string) *Ticket {
	return &Ticket{
		ID:            uuid.New(),
		Item:          it,
		OwnerAddress:  owner,
		RenterAddress: renter,
		HandoverCode:  NewCode(),
		State:         StateRequested,
		CreatedAt:     time.Now(),
	}
}

// Lease is the renter-side view of a rental: the possession record kept
// in the rented list and the payment obligation kept in the rents list.
type Lease struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	Item         item.Item `json:"item"`
	OwnerAddress string    `json:"owner_address"`
	ReturnCode   string    `json:"return_code,omitempty"`
	PaymentID    int64     `json:"payment_id,omitempty"`
	State        State     `json:"state"`
}

// NewCode generates a 4-digit handover or return code.
func NewCode() string {
	const digits = "0123456789"
	code := make([]byte, 4)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			// crypto/rand only fails when the platform source is
			// broken; there is no useful recovery here.
			panic(err)
		}
		code[i] = digits[n.Int64()]
	}
	return string(code)
}
