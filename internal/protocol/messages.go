package protocol

import (
	"github.com/google/uuid"

	"rentmesh/internal/domain/item"
)

// MessageType identifies a protocol message carried in an envelope.
type MessageType string

const (
	// Directory messages
	TypeLocationRequest        MessageType = "location_request"
	TypeLocationRegistration   MessageType = "location_registration"
	TypeLocationUnregistration MessageType = "location_unregistration"
	TypeUserIDRequest          MessageType = "user_id_request"

	// Registry messages
	TypeAddRequest       MessageType = "add_request"
	TypeDeleteRequest    MessageType = "delete_request"
	TypeItemRequest      MessageType = "item_request"
	TypeUserRegistration MessageType = "user_registration"

	// Rental lifecycle messages
	TypeRequestedItem      MessageType = "requested_item"
	TypeHandOverRequest    MessageType = "hand_over_request"
	TypeHandOverConfirm    MessageType = "hand_over_confirm"
	TypeRentConfirmRequest MessageType = "rent_confirm_request"
	TypeHandOverEnd        MessageType = "hand_over_end"
	TypeHandOverEndConfirm MessageType = "hand_over_end_confirm"

	// Payment messages
	TypePaymentRequest     MessageType = "payment_request"
	TypePaymentCancel      MessageType = "payment_cancel"
	TypeTransactionRequest MessageType = "transaction_request"

	// Reply envelope
	TypeResponse MessageType = "response"
)

// LocationRequest looks up one location's registry address, or lists all
// known locations when Location is empty.
type LocationRequest struct {
	Location string `json:"location,omitempty"`
}

// LocationList is the reply content for a blank LocationRequest.
type LocationList struct {
	Locations []string `json:"locations"`
}

// LocationAddress is the reply content for a named LocationRequest.
type LocationAddress struct {
	Address string `json:"address"`
}

// LocationRegistrationRequest registers a registry agent for a location.
type LocationRegistrationRequest struct {
	Location string `json:"location"`
	Address  string `json:"address"`
}

// LocationUnregistrationRequest removes a location from the directory.
type LocationUnregistrationRequest struct {
	Location string `json:"location"`
}

// UserIDRequest asks the directory to issue a fresh user id.
type UserIDRequest struct{}

// UserID is the reply content for user-id issuance and registration.
type UserID struct {
	ID string `json:"id"`
}

// UserRecord describes a user registered at a location.
type UserRecord struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	AgentAddress string `json:"agent_address"`
	HomeLocation string `json:"home_location,omitempty"`
}

// UserRegistrationRequest registers a user with a location registry. A
// user with an id already assigned keeps it; the id is permanent.
type UserRegistrationRequest struct {
	User UserRecord `json:"user"`
}

// AddRequest lists an item in a registry's catalogue.
type AddRequest struct {
	Item         item.Item `json:"item"`
	AgentAddress string    `json:"agent_address"`
}

// DeleteRequest removes an item from a registry's catalogue.
type DeleteRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	AgentAddress string `json:"agent_address"`
}

// ItemRequest browses a registry's catalogue, optionally by item name.
type ItemRequest struct {
	Name string `json:"name,omitempty"`
}

// Listing is one catalogue entry: an item under its owner's address.
type Listing struct {
	OwnerAddress string    `json:"owner_address"`
	Item         item.Item `json:"item"`
}

// ListingList is the reply content for an ItemRequest.
type ListingList struct {
	Listings []Listing `json:"listings"`
}

// RequestedItem reserves a listed item with its owner.
type RequestedItem struct {
	Item item.Item `json:"item"`
}

// ReserveReply carries the ticket id issued for a reservation.
type ReserveReply struct {
	TicketID uuid.UUID `json:"ticket_id"`
}

// HandOverRequest tells the renter the owner has physically released the
// item; the renter records a pending lease awaiting activation.
type HandOverRequest struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Item     item.Item `json:"item"`
	Agent    string    `json:"agent"`
}

// HandOverConfirm presents the handover code to the owner to activate a
// rental. The code travels out of band between the two humans.
type HandOverConfirm struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Item     item.Item `json:"item"`
	Code     string    `json:"code"`
}

// RentConfirmRequest hands the renter the return code and the payment id
// for an activated rental.
type RentConfirmRequest struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	Item      item.Item `json:"item"`
	Code      string    `json:"code"`
	Agent     string    `json:"agent"`
	PaymentID int64     `json:"payment_id"`
}

// HandOverEnd presents the return code to the owner to end a rental.
type HandOverEnd struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Item     item.Item `json:"item"`
	Code     string    `json:"code"`
}

// HandOverEndConfirm tells the renter the return was accepted; the
// renter clears its lease and cancels the payment obligation.
type HandOverEndConfirm struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Item     item.Item `json:"item"`
}

// PaymentRequest registers a recurring payment with the scheduler.
type PaymentRequest struct {
	FromAddress      string `json:"from_address"`
	ToAddress        string `json:"to_address"`
	AmountCents      int64  `json:"amount_cents"`
	FrequencyMinutes int    `json:"frequency_minutes"`
}

// PaymentReply carries the scheduler-assigned obligation id.
type PaymentReply struct {
	ID int64 `json:"id"`
}

// PaymentCancel removes a payment obligation.
type PaymentCancel struct {
	ID int64 `json:"id"`
}

// TransactionRequest asks a payer agent to submit a ledger transfer.
type TransactionRequest struct {
	ToAddress   string `json:"to_address"`
	AmountCents int64  `json:"amount_cents"`
}

// TransactionReply carries the ledger receipt for a submitted transfer.
type TransactionReply struct {
	TxHash string `json:"tx_hash"`
}
