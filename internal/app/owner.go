package app

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/domain/ticket"
	"rentmesh/internal/ports/outbound"
)

const ownerCustodyKey = "custody"

// OwnerService holds an owner agent's inventory and the three custody
// lists tickets move through. The lists are disjoint by construction:
// every transition is a remove-then-append under one mutex, so an item
// is in exactly one of available/requested/handed_over/lent at any
// instant. Cross-agent calls are never made while the mutex is held;
// a crash between the message exchanges of one transition leaves a
// partial state that peers recover by re-reading State, not by retrying
// writes.
type OwnerService struct {
	mu         sync.Mutex
	items      map[string]item.Item
	requested  map[uuid.UUID]*ticket.Ticket
	handedOver map[uuid.UUID]*ticket.Ticket
	lent       map[uuid.UUID]*ticket.Ticket

	store    outbound.Store
	registry outbound.RegistryGateway
	payments outbound.SchedulerGateway
	renters  outbound.RenterGateway
	address  string
	logger   zerolog.Logger
}

type OwnerServiceParams struct {
	Store    outbound.Store
	Registry outbound.RegistryGateway
	Payments outbound.SchedulerGateway
	Renters  outbound.RenterGateway
	Address  string
	Logger   zerolog.Logger
}

// ownerCustody is the persisted form of the four custody lists.
type ownerCustody struct {
	Items      []item.Item      `json:"items"`
	Requested  []*ticket.Ticket `json:"requested"`
	HandedOver []*ticket.Ticket `json:"handed_over"`
	Lent       []*ticket.Ticket `json:"lent"`
}

// NewOwnerService creates an owner service, restoring custody state from
// the agent store.
func NewOwnerService(params OwnerServiceParams) (*OwnerService, error) {
	s := &OwnerService{
		items:      make(map[string]item.Item),
		requested:  make(map[uuid.UUID]*ticket.Ticket),
		handedOver: make(map[uuid.UUID]*ticket.Ticket),
		lent:       make(map[uuid.UUID]*ticket.Ticket),
		store:      params.Store,
		registry:   params.Registry,
		payments:   params.Payments,
		renters:    params.Renters,
		address:    params.Address,
		logger:     params.Logger.With().Str("component", "owner_service").Logger(),
	}

	if err := s.store.EnsureDefaults(map[string]any{ownerCustodyKey: ownerCustody{}}); err != nil {
		return nil, err
	}

	var saved ownerCustody
	found, err := s.store.Get(ownerCustodyKey, &saved)
	if err != nil {
		return nil, err
	}
	if found {
		for _, it := range saved.Items {
			s.items[it.Name] = it
		}
		for _, t := range saved.Requested {
			s.requested[t.ID] = t
		}
		for _, t := range saved.HandedOver {
			s.handedOver[t.ID] = t
		}
		for _, t := range saved.Lent {
			s.lent[t.ID] = t
		}
	}
	return s, nil
}

// AddItem puts a new item into the available inventory. Names are the
// item identity within one owner, so duplicates anywhere in the custody
// lists are rejected.
func (s *OwnerService) AddItem(it item.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[it.Name]; ok {
		return shared.ErrAlreadyExists
	}
	if s.findTicketByName(it.Name) != nil {
		return shared.ErrAlreadyExists
	}
	s.items[it.Name] = it
	s.logger.Info().Str("item", it.Name).Msg("Item added to inventory")
	return s.persistLocked()
}

// RemoveItem deletes an available item from the inventory. An item in
// the middle of a rental cannot be removed.
func (s *OwnerService) RemoveItem(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[name]; !ok {
		if s.findTicketByName(name) != nil {
			return shared.ErrAlreadyReserved
		}
		return shared.ErrItemNotFound
	}
	delete(s.items, name)
	s.logger.Info().Str("item", name).Msg("Item removed from inventory")
	return s.persistLocked()
}

// ListItem publishes an available item in the location registry.
func (s *OwnerService) ListItem(ctx context.Context, name string) error {
	s.mu.Lock()
	it, ok := s.items[name]
	s.mu.Unlock()
	if !ok {
		return shared.ErrItemNotFound
	}
	return s.registry.AddItem(ctx, it, s.address)
}

// UnlistItem withdraws an available item from the location registry.
func (s *OwnerService) UnlistItem(ctx context.Context, name string) error {
	s.mu.Lock()
	it, ok := s.items[name]
	s.mu.Unlock()
	if !ok {
		return shared.ErrItemNotFound
	}
	return s.registry.DeleteItem(ctx, it.Name, it.Category, s.address)
}

// Reserve holds an available item for a renter and issues the ticket
// with its handover code. First request wins: once an item has left the
// available list any further reservation is rejected rather than
// silently double-booked.
func (s *OwnerService) Reserve(renterAddress, name string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[name]
	if !ok {
		if s.findTicketByName(name) != nil {
			return nil, shared.ErrAlreadyReserved
		}
		return nil, shared.ErrItemNotFound
	}

	t := ticket.New(it, s.address, renterAddress)
	delete(s.items, name)
	s.requested[t.ID] = t
	if err := s.persistLocked(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item", name).
		Str("renter", renterAddress).
		Str("ticket_id", t.ID.String()).
		Msg("Item reserved")

	copied := *t
	return &copied, nil
}

// Release is the owner-human action of physically handing the item
// over: the ticket moves from requested to handed_over, the listing is
// withdrawn from the registry, a recurring payment is registered with
// the scheduler, and the renter is notified. The three exchanges are
// independent; a failure part-way leaves a state the peers recover from
// by re-query.
func (s *OwnerService) Release(ctx context.Context, ticketID uuid.UUID) error {
	s.mu.Lock()
	t, ok := s.requested[ticketID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrTicketNotFound
	}
	snapshot := *t
	s.mu.Unlock()

	err := s.registry.DeleteItem(ctx, snapshot.Item.Name, snapshot.Item.Category, s.address)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	paymentID, err := s.payments.CreatePayment(
		ctx,
		snapshot.RenterAddress,
		s.address,
		snapshot.Item.PriceCents,
		snapshot.Item.Period.Minutes(),
	)
	if err != nil {
		s.logger.Error().Err(err).
			Str("ticket_id", ticketID.String()).
			Msg("Item delisted but payment registration failed; ticket stays requested")
		return err
	}

	s.mu.Lock()
	t, ok = s.requested[ticketID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrTicketNotFound
	}
	t.PaymentID = paymentID
	t.State = ticket.StateHandedOver
	delete(s.requested, ticketID)
	s.handedOver[ticketID] = t
	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot = *t
	s.mu.Unlock()

	s.logger.Info().
		Str("ticket_id", ticketID.String()).
		Int64("payment_id", paymentID).
		Msg("Item handed over")

	if err := s.renters.HandOver(ctx, snapshot.RenterAddress, snapshot.ID, snapshot.Item, s.address); err != nil {
		s.logger.Warn().Err(err).
			Str("ticket_id", ticketID.String()).
			Msg("Renter not notified of handover; it will recover by re-query")
	}
	return nil
}

// ConfirmHandover validates the handover code the renter presents. A
// wrong code rejects without touching the ticket; a match consumes the
// code for good, mints the return code, and activates the rental.
func (s *OwnerService) ConfirmHandover(ctx context.Context, ticketID uuid.UUID, code string) error {
	s.mu.Lock()
	t, ok := s.handedOver[ticketID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrTicketNotFound
	}
	if code != t.HandoverCode {
		s.mu.Unlock()
		return shared.ErrInvalidCode
	}

	t.ReturnCode = ticket.NewCode()
	t.State = ticket.StateActiveRental
	delete(s.handedOver, ticketID)
	s.lent[ticketID] = t
	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := *t
	s.mu.Unlock()

	s.logger.Info().
		Str("ticket_id", ticketID.String()).
		Str("item", snapshot.Item.Name).
		Msg("Rental activated")

	if err := s.renters.RentConfirm(ctx, snapshot.RenterAddress, snapshot.ID, snapshot.Item, snapshot.ReturnCode, snapshot.PaymentID); err != nil {
		s.logger.Warn().Err(err).
			Str("ticket_id", ticketID.String()).
			Msg("Renter not handed the return code; it will recover by re-query")
	}
	return nil
}

// EndRental validates the return code, takes the item back into the
// available inventory, re-lists it, and confirms the termination to the
// renter.
func (s *OwnerService) EndRental(ctx context.Context, ticketID uuid.UUID, code string) error {
	s.mu.Lock()
	t, ok := s.lent[ticketID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrTicketNotFound
	}
	if code != t.ReturnCode {
		s.mu.Unlock()
		return shared.ErrInvalidCode
	}

	delete(s.lent, ticketID)
	s.items[t.Item.Name] = t.Item
	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := *t
	s.mu.Unlock()

	s.logger.Info().
		Str("ticket_id", ticketID.String()).
		Str("item", snapshot.Item.Name).
		Msg("Rental ended, item back in inventory")

	if err := s.registry.AddItem(ctx, snapshot.Item, s.address); err != nil {
		s.logger.Warn().Err(err).
			Str("item", snapshot.Item.Name).
			Msg("Failed to re-list returned item")
	}
	if err := s.renters.EndConfirm(ctx, snapshot.RenterAddress, snapshot.ID, snapshot.Item); err != nil {
		s.logger.Warn().Err(err).
			Str("ticket_id", ticketID.String()).
			Msg("Renter not notified of rental end; it will recover by re-query")
	}
	return nil
}

// OwnerState is the idempotent read of the four custody lists.
type OwnerState struct {
	Items      []item.Item     `json:"items"`
	Requested  []ticket.Ticket `json:"requested"`
	HandedOver []ticket.Ticket `json:"handed_over"`
	Lent       []ticket.Ticket `json:"lent"`
}

// State snapshots the custody lists.
func (s *OwnerService) State() OwnerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := OwnerState{
		Items:      make([]item.Item, 0, len(s.items)),
		Requested:  make([]ticket.Ticket, 0, len(s.requested)),
		HandedOver: make([]ticket.Ticket, 0, len(s.handedOver)),
		Lent:       make([]ticket.Ticket, 0, len(s.lent)),
	}
	for _, it := range s.items {
		state.Items = append(state.Items, it)
	}
	for _, t := range s.requested {
		state.Requested = append(state.Requested, *t)
	}
	for _, t := range s.handedOver {
		state.HandedOver = append(state.HandedOver, *t)
	}
	for _, t := range s.lent {
		state.Lent = append(state.Lent, *t)
	}
	return state
}

// findTicketByName looks for the item's ticket across the three
// in-flight lists. Callers hold the mutex.
func (s *OwnerService) findTicketByName(name string) *ticket.Ticket {
	for _, t := range s.requested {
		if t.Item.Name == name {
			return t
		}
	}
	for _, t := range s.handedOver {
		if t.Item.Name == name {
			return t
		}
	}
	for _, t := range s.lent {
		if t.Item.Name == name {
			return t
		}
	}
	return nil
}

// persistLocked writes the custody lists to the agent store. Callers
// hold the mutex.
func (s *OwnerService) persistLocked() error {
	saved := ownerCustody{
		Items:      make([]item.Item, 0, len(s.items)),
		Requested:  make([]*ticket.Ticket, 0, len(s.requested)),
		HandedOver: make([]*ticket.Ticket, 0, len(s.handedOver)),
		Lent:       make([]*ticket.Ticket, 0, len(s.lent)),
	}
	for _, it := range s.items {
		saved.Items = append(saved.Items, it)
	}
	for _, t := range s.requested {
		saved.Requested = append(saved.Requested, t)
	}
	for _, t := range s.handedOver {
		saved.HandedOver = append(saved.HandedOver, t)
	}
	for _, t := range s.lent {
		saved.Lent = append(saved.Lent, t)
	}
	return s.store.Put(ownerCustodyKey, saved)
}
