package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]json.RawMessage)}
}

func (m *memStore) Get(key string, into any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, into)
}

func (m *memStore) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memStore) EnsureDefaults(defaults map[string]any) error {
	for key, value := range defaults {
		m.mu.Lock()
		_, ok := m.data[key]
		m.mu.Unlock()
		if ok {
			continue
		}
		if err := m.Put(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Close() error { return nil }

// stubRegistry records catalogue calls.
type stubRegistry struct {
	mu       sync.Mutex
	added    []item.Item
	deleted  []string
	listings []protocol.Listing
	userID   string
}

func (s *stubRegistry) AddItem(ctx context.Context, it item.Item, ownerAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, it)
	return nil
}

func (s *stubRegistry) DeleteItem(ctx context.Context, name, category, ownerAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *stubRegistry) Catalogue(ctx context.Context, name string) ([]protocol.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings, nil
}

func (s *stubRegistry) RegisterUser(ctx context.Context, user protocol.UserRecord) (string, error) {
	if user.ID != "" {
		return user.ID, nil
	}
	return s.userID, nil
}

func (s *stubRegistry) addedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.added))
	for _, it := range s.added {
		names = append(names, it.Name)
	}
	return names
}

// stubScheduler hands out sequential payment ids and records cancels.
type stubScheduler struct {
	mu        sync.Mutex
	nextID    int64
	created   []int64
	cancelled []int64
}

func (s *stubScheduler) CreatePayment(ctx context.Context, from, to string, amountCents int64, frequencyMinutes int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.created = append(s.created, s.nextID)
	return s.nextID, nil
}

func (s *stubScheduler) CancelPayment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, id)
	return nil
}

// stubRenterGW records the pushes an owner sends a renter and the
// transfer requests the scheduler sends a payer.
type stubRenterGW struct {
	mu           sync.Mutex
	handovers    []protocol.HandOverRequest
	rentConfirms []protocol.RentConfirmRequest
	endConfirms  []protocol.HandOverEndConfirm
	transfers    []protocol.TransactionRequest
	transferHash string
	transferErr  error
}

func (s *stubRenterGW) HandOver(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item, ownerAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handovers = append(s.handovers, protocol.HandOverRequest{TicketID: ticketID, Item: it, Agent: ownerAddress})
	return nil
}

func (s *stubRenterGW) RentConfirm(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item, code string, paymentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rentConfirms = append(s.rentConfirms, protocol.RentConfirmRequest{TicketID: ticketID, Item: it, Code: code, PaymentID: paymentID})
	return nil
}

func (s *stubRenterGW) EndConfirm(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endConfirms = append(s.endConfirms, protocol.HandOverEndConfirm{TicketID: ticketID, Item: it})
	return nil
}

func (s *stubRenterGW) RequestTransaction(ctx context.Context, payerAddress, to string, amountCents int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, protocol.TransactionRequest{ToAddress: to, AmountCents: amountCents})
	if s.transferErr != nil {
		return "", s.transferErr
	}
	return s.transferHash, nil
}

func (s *stubRenterGW) transferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

// stubOwnerGW records the renter-driven legs of the lifecycle.
type stubOwnerGW struct {
	mu         sync.Mutex
	reserved   []item.Item
	confirmed  []string
	ended      []string
	ticketID   uuid.UUID
	confirmErr error
}

func (s *stubOwnerGW) Reserve(ctx context.Context, ownerAddress string, it item.Item) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved = append(s.reserved, it)
	return s.ticketID, nil
}

func (s *stubOwnerGW) ConfirmHandover(ctx context.Context, ownerAddress string, ticketID uuid.UUID, it item.Item, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, code)
	return nil
}

func (s *stubOwnerGW) EndRental(ctx context.Context, ownerAddress string, ticketID uuid.UUID, it item.Item, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, code)
	return nil
}

// stubDirectory issues predictable user ids.
type stubDirectory struct {
	mu        sync.Mutex
	nextID    int
	locations map[string]string
}

func (s *stubDirectory) Lookup(ctx context.Context, location string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.locations[location]
	if !ok {
		return "", shared.ErrLocationNotFound
	}
	return addr, nil
}

func (s *stubDirectory) Locations(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubDirectory) RegisterLocation(ctx context.Context, location, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locations == nil {
		s.locations = make(map[string]string)
	}
	if _, ok := s.locations[location]; ok {
		return shared.ErrAlreadyExists
	}
	s.locations[location] = address
	return nil
}

func (s *stubDirectory) UnregisterLocation(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, location)
	return nil
}

func (s *stubDirectory) IssueUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("%010d", s.nextID), nil
}

// stubLedger settles transfers immediately in memory.
type stubLedger struct {
	mu          sync.Mutex
	settlements map[string]*outbound.Settlement
	submitErr   error
	nextHash    int
}

func newStubLedger() *stubLedger {
	return &stubLedger{settlements: make(map[string]*outbound.Settlement)}
}

func (l *stubLedger) SubmitTransfer(ctx context.Context, from, to string, amountCents int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return "", l.submitErr
	}
	l.nextHash++
	hash := fmt.Sprintf("tx-%d", l.nextHash)
	l.settlements[hash] = &outbound.Settlement{Payer: from, Payee: to, AmountCents: amountCents}
	return hash, nil
}

func (l *stubLedger) AwaitSettlement(ctx context.Context, txHash string) (*outbound.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.settlements[txHash]
	if !ok {
		return nil, fmt.Errorf("settlement %s not observed", txHash)
	}
	return st, nil
}

// seed places a canned settlement under a hash, for mismatch tests.
func (l *stubLedger) seed(hash string, st *outbound.Settlement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settlements[hash] = st
}
