package outbound

import (
	"context"

	"github.com/google/uuid"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/protocol"
)

// DirectoryGateway is the directory service as its consumers see it.
type DirectoryGateway interface {
	// Lookup resolves a location name to its registry agent address.
	Lookup(ctx context.Context, location string) (string, error)

	// Locations lists every registered location name.
	Locations(ctx context.Context) ([]string, error)

	// RegisterLocation announces a registry agent for a location.
	RegisterLocation(ctx context.Context, location, address string) error

	// UnregisterLocation removes a location from the directory.
	UnregisterLocation(ctx context.Context, location string) error

	// IssueUserID returns a fresh, never before issued user id.
	IssueUserID(ctx context.Context) (string, error)
}

// RegistryGateway is a location registry as owners and renters see it.
type RegistryGateway interface {
	// AddItem lists an item under its owner in the catalogue.
	AddItem(ctx context.Context, it item.Item, ownerAddress string) error

	// DeleteItem removes a listing from the catalogue.
	DeleteItem(ctx context.Context, name, category, ownerAddress string) error

	// Catalogue browses listings, optionally filtered by item name.
	Catalogue(ctx context.Context, name string) ([]protocol.Listing, error)

	// RegisterUser stores a user record and returns its permanent id.
	RegisterUser(ctx context.Context, user protocol.UserRecord) (string, error)
}

// SchedulerGateway is the payment scheduler as agents see it.
type SchedulerGateway interface {
	// CreatePayment registers a recurring obligation and returns its id.
	CreatePayment(ctx context.Context, from, to string, amountCents int64, frequencyMinutes int) (int64, error)

	// CancelPayment removes an obligation.
	CancelPayment(ctx context.Context, id int64) error
}

// OwnerGateway is an owner agent as the renter side drives it.
type OwnerGateway interface {
	// Reserve asks the owner to hold an item and returns the ticket id.
	Reserve(ctx context.Context, ownerAddress string, it item.Item) (uuid.UUID, error)

	// ConfirmHandover presents the handover code to activate a rental.
	ConfirmHandover(ctx context.Context, ownerAddress string, ticketID uuid.UUID, it item.Item, code string) error

	// EndRental presents the return code to end a rental.
	EndRental(ctx context.Context, ownerAddress string, ticketID uuid.UUID, it item.Item, code string) error
}

// RenterGateway is a renter agent as owners and the scheduler drive it.
type RenterGateway interface {
	// HandOver notifies the renter the item has been released to it.
	HandOver(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item, ownerAddress string) error

	// RentConfirm delivers the return code and payment id on activation.
	RentConfirm(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item, code string, paymentID int64) error

	// EndConfirm tells the renter its return was accepted.
	EndConfirm(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item) error

	// RequestTransaction asks the payer agent to submit a ledger
	// transfer and returns the receipt hash.
	RequestTransaction(ctx context.Context, payerAddress, to string, amountCents int64) (string, error)
}
