package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/domain/ticket"
	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

const (
	renterLeasesKey = "leases"
	renterUserKey   = "user"
)

// RenterService is the renter side of the rental lifecycle. It tracks
// leases through pending (handed over, code not yet presented), rented
// (active custody) and rents (active payment obligations), registers
// the human behind the agent with a registry, and answers the payment
// scheduler's transfer requests against the agent wallet.
type RenterService struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*ticket.Lease
	rented  map[uuid.UUID]*ticket.Lease
	rents   map[uuid.UUID]*ticket.Lease
	user    protocol.UserRecord

	store    outbound.Store
	owners   outbound.OwnerGateway
	payments outbound.SchedulerGateway
	registry outbound.RegistryGateway
	ledger   outbound.Ledger
	address  string
	logger   zerolog.Logger
}

type RenterServiceParams struct {
	Store    outbound.Store
	Owners   outbound.OwnerGateway
	Payments outbound.SchedulerGateway
	Registry outbound.RegistryGateway
	Ledger   outbound.Ledger
	Address  string
	User     protocol.UserRecord
	Logger   zerolog.Logger
}

type renterLeases struct {
	Pending []*ticket.Lease `json:"pending"`
	Rented  []*ticket.Lease `json:"rented"`
	Rents   []*ticket.Lease `json:"rents"`
}

// NewRenterService creates a renter service, restoring leases and the
// user record from the agent store. The user identity in the store wins
// over the configured one so an issued id survives restarts.
func NewRenterService(params RenterServiceParams) (*RenterService, error) {
	s := &RenterService{
		pending:  make(map[uuid.UUID]*ticket.Lease),
		rented:   make(map[uuid.UUID]*ticket.Lease),
		rents:    make(map[uuid.UUID]*ticket.Lease),
		user:     params.User,
		store:    params.Store,
		owners:   params.Owners,
		payments: params.Payments,
		registry: params.Registry,
		ledger:   params.Ledger,
		address:  params.Address,
		logger:   params.Logger.With().Str("component", "renter_service").Logger(),
	}
	s.user.AgentAddress = params.Address

	if err := s.store.EnsureDefaults(map[string]any{
		renterLeasesKey: renterLeases{},
		renterUserKey:   s.user,
	}); err != nil {
		return nil, err
	}

	var saved renterLeases
	found, err := s.store.Get(renterLeasesKey, &saved)
	if err != nil {
		return nil, err
	}
	if found {
		for _, l := range saved.Pending {
			s.pending[l.TicketID] = l
		}
		for _, l := range saved.Rented {
			s.rented[l.TicketID] = l
		}
		for _, l := range saved.Rents {
			s.rents[l.TicketID] = l
		}
	}

	var storedUser protocol.UserRecord
	found, err = s.store.Get(renterUserKey, &storedUser)
	if err != nil {
		return nil, err
	}
	if found && storedUser.ID != "" {
		s.user.ID = storedUser.ID
		s.user.HomeLocation = storedUser.HomeLocation
	}
	return s, nil
}

// Register introduces the user behind this agent to a registry. The
// registry issues a permanent id on first contact; later calls carry
// the stored id and only refresh the record.
func (s *RenterService) Register(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	id, err := s.registry.RegisterUser(ctx, user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user.ID = id
	user = s.user
	s.mu.Unlock()

	s.logger.Info().Str("user_id", id).Msg("User registered")
	return s.store.Put(renterUserKey, user)
}

// Browse queries the registry catalogue, optionally filtered by item
// name.
func (s *RenterService) Browse(ctx context.Context, name string) ([]protocol.Listing, error) {
	return s.registry.Catalogue(ctx, name)
}

// Reserve asks the owner at the given address to hold the item for this
// agent.
func (s *RenterService) Reserve(ctx context.Context, ownerAddress string, it item.Item) (uuid.UUID, error) {
	return s.owners.Reserve(ctx, ownerAddress, it)
}

// ConfirmHandover presents the out-of-band handover code for a pending
// lease to its owner. The lease stays pending until the owner pushes
// the rent confirmation back.
func (s *RenterService) ConfirmHandover(ctx context.Context, ticketID uuid.UUID, code string) error {
	s.mu.Lock()
	l, ok := s.pending[ticketID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrTicketNotFound
	}
	snapshot := *l
	s.mu.Unlock()

	return s.owners.ConfirmHandover(ctx, snapshot.OwnerAddress, ticketID, snapshot.Item, code)
}

// Return presents the return code for a rented item to its owner. The
// lease is cleared when the owner pushes the end confirmation back.
func (s *RenterService) Return(ctx context.Context, ticketID uuid.UUID) error {
	s.mu.Lock()
	l, ok := s.rented[ticketID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrTicketNotFound
	}
	snapshot := *l
	s.mu.Unlock()

	return s.owners.EndRental(ctx, snapshot.OwnerAddress, ticketID, snapshot.Item, snapshot.ReturnCode)
}

// acceptHandOver records the owner's handover push as a pending lease.
// Re-delivery of the same ticket is a no-op.
func (s *RenterService) acceptHandOver(req protocol.HandOverRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[req.TicketID]; ok {
		return nil
	}
	s.pending[req.TicketID] = &ticket.Lease{
		TicketID:     req.TicketID,
		Item:         req.Item,
		OwnerAddress: req.Agent,
		State:        ticket.StateHandedOver,
	}
	s.logger.Info().
		Str("ticket_id", req.TicketID.String()).
		Str("item", req.Item.Name).
		Str("owner", req.Agent).
		Msg("Handover received, awaiting code confirmation")
	return s.persistLocked()
}

// acceptRentConfirm promotes a pending lease to an active rental,
// storing the return code and payment id the owner minted.
func (s *RenterService) acceptRentConfirm(req protocol.RentConfirmRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.pending[req.TicketID]
	if !ok {
		if _, active := s.rented[req.TicketID]; active {
			return nil
		}
		return shared.ErrTicketNotFound
	}
	l.ReturnCode = req.Code
	l.PaymentID = req.PaymentID
	l.State = ticket.StateActiveRental
	if req.Agent != "" {
		l.OwnerAddress = req.Agent
	}
	delete(s.pending, req.TicketID)
	s.rented[req.TicketID] = l
	rent := *l
	s.rents[req.TicketID] = &rent

	s.logger.Info().
		Str("ticket_id", req.TicketID.String()).
		Str("item", req.Item.Name).
		Int64("payment_id", req.PaymentID).
		Msg("Rental active")
	return s.persistLocked()
}

// acceptEndConfirm clears a finished rental and cancels its payment
// obligation with the scheduler.
func (s *RenterService) acceptEndConfirm(ctx context.Context, req protocol.HandOverEndConfirm) error {
	s.mu.Lock()
	l, ok := s.rents[req.TicketID]
	if !ok {
		if _, held := s.rented[req.TicketID]; !held {
			s.mu.Unlock()
			return shared.ErrTicketNotFound
		}
		l = s.rented[req.TicketID]
	}
	paymentID := l.PaymentID
	delete(s.rented, req.TicketID)
	delete(s.rents, req.TicketID)
	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("ticket_id", req.TicketID.String()).
		Str("item", req.Item.Name).
		Msg("Rental ended")

	if err := s.payments.CancelPayment(ctx, paymentID); err != nil {
		s.logger.Warn().Err(err).
			Int64("payment_id", paymentID).
			Msg("Payment obligation not cancelled")
	}
	return nil
}

// transfer pays an amount out of this agent's wallet on behalf of the
// scheduler.
func (s *RenterService) transfer(ctx context.Context, req protocol.TransactionRequest) (string, error) {
	hash, err := s.ledger.SubmitTransfer(ctx, s.address, req.ToAddress, req.AmountCents)
	if err != nil {
		return "", err
	}
	s.logger.Info().
		Str("to", req.ToAddress).
		Int64("amount_cents", req.AmountCents).
		Str("tx_hash", hash).
		Msg("Transfer submitted")
	return hash, nil
}

// RenterState is the idempotent read of the lease lists and the user
// record.
type RenterState struct {
	User    protocol.UserRecord `json:"user"`
	Pending []ticket.Lease      `json:"pending"`
	Rented  []ticket.Lease      `json:"rented"`
	Rents   []ticket.Lease      `json:"rents"`
}

// State snapshots the lease lists.
func (s *RenterService) State() RenterState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := RenterState{
		User:    s.user,
		Pending: make([]ticket.Lease, 0, len(s.pending)),
		Rented:  make([]ticket.Lease, 0, len(s.rented)),
		Rents:   make([]ticket.Lease, 0, len(s.rents)),
	}
	for _, l := range s.pending {
		state.Pending = append(state.Pending, *l)
	}
	for _, l := range s.rented {
		state.Rented = append(state.Rented, *l)
	}
	for _, l := range s.rents {
		state.Rents = append(state.Rents, *l)
	}
	return state
}

func (s *RenterService) persistLocked() error {
	saved := renterLeases{
		Pending: make([]*ticket.Lease, 0, len(s.pending)),
		Rented:  make([]*ticket.Lease, 0, len(s.rented)),
		Rents:   make([]*ticket.Lease, 0, len(s.rents)),
	}
	for _, l := range s.pending {
		saved.Pending = append(saved.Pending, l)
	}
	for _, l := range s.rented {
		saved.Rented = append(saved.Rented, l)
	}
	for _, l := range s.rents {
		saved.Rents = append(saved.Rents, l)
	}
	return s.store.Put(renterLeasesKey, saved)
}
