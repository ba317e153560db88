package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

const (
	registryCatalogueKey = "catalogue"
	registryUsersKey     = "users"
)

// RegistryService is a location's marketplace registry. It keeps the
// catalogue of listed items keyed category/owner/name, the user records
// of the location's inhabitants, and announces itself to the directory
// on startup.
type RegistryService struct {
	mu        sync.Mutex
	catalogue map[string]map[string]map[string]item.Item
	users     map[string]protocol.UserRecord

	store     outbound.Store
	directory outbound.DirectoryGateway
	location  string
	address   string
	logger    zerolog.Logger
}

type RegistryServiceParams struct {
	Store     outbound.Store
	Directory outbound.DirectoryGateway
	Location  string
	Address   string
	Logger    zerolog.Logger
}

type registrySnapshot struct {
	Listings []protocol.Listing `json:"listings"`
}

// NewRegistryService creates a registry service, restoring the
// catalogue and user records from the agent store.
func NewRegistryService(params RegistryServiceParams) (*RegistryService, error) {
	s := &RegistryService{
		catalogue: make(map[string]map[string]map[string]item.Item),
		users:     make(map[string]protocol.UserRecord),
		store:     params.Store,
		directory: params.Directory,
		location:  params.Location,
		address:   params.Address,
		logger:    params.Logger.With().Str("component", "registry_service").Logger(),
	}

	if err := s.store.EnsureDefaults(map[string]any{
		registryCatalogueKey: registrySnapshot{},
		registryUsersKey:     map[string]protocol.UserRecord{},
	}); err != nil {
		return nil, err
	}

	var saved registrySnapshot
	found, err := s.store.Get(registryCatalogueKey, &saved)
	if err != nil {
		return nil, err
	}
	if found {
		for _, l := range saved.Listings {
			s.insertLocked(l.Item, l.OwnerAddress)
		}
	}

	var users map[string]protocol.UserRecord
	found, err = s.store.Get(registryUsersKey, &users)
	if err != nil {
		return nil, err
	}
	if found {
		s.users = users
	}
	return s, nil
}

// Start announces the location in the directory. An existing entry for
// the same location is tolerated so restarts stay quiet.
func (s *RegistryService) Start(ctx context.Context) error {
	err := s.directory.RegisterLocation(ctx, s.location, s.address)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Warn().Str("location", s.location).Msg("Location already registered in directory")
			return nil
		}
		return err
	}
	s.logger.Info().Str("location", s.location).Msg("Location registered in directory")
	return nil
}

// Shutdown withdraws the location from the directory.
func (s *RegistryService) Shutdown(ctx context.Context) {
	if err := s.directory.UnregisterLocation(ctx, s.location); err != nil {
		s.logger.Warn().Err(err).Str("location", s.location).Msg("Location not unregistered from directory")
		return
	}
	s.logger.Info().Str("location", s.location).Msg("Location unregistered from directory")
}

// AddItem publishes an owner's item in the catalogue. An owner cannot
// list two items with the same name, whatever the category.
func (s *RegistryService) AddItem(it item.Item, ownerAddress string) error {
	if err := it.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, owners := range s.catalogue {
		if _, ok := owners[ownerAddress][it.Name]; ok {
			return shared.ErrAlreadyExists
		}
	}
	s.insertLocked(it, ownerAddress)
	s.logger.Info().
		Str("item", it.Name).
		Str("category", it.Category).
		Str("owner", ownerAddress).
		Msg("Item listed")
	return s.persistLocked()
}

// DeleteItem withdraws an owner's item from the catalogue.
func (s *RegistryService) DeleteItem(name, category, ownerAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners, ok := s.catalogue[category]
	if !ok {
		return shared.ErrItemNotFound
	}
	items, ok := owners[ownerAddress]
	if !ok {
		return shared.ErrItemNotFound
	}
	if _, ok := items[name]; !ok {
		return shared.ErrItemNotFound
	}
	delete(items, name)
	if len(items) == 0 {
		delete(owners, ownerAddress)
	}
	if len(owners) == 0 {
		delete(s.catalogue, category)
	}
	s.logger.Info().
		Str("item", name).
		Str("category", category).
		Str("owner", ownerAddress).
		Msg("Item delisted")
	return s.persistLocked()
}

// Catalogue returns the current listings, optionally filtered by item
// name.
func (s *RegistryService) Catalogue(name string) []protocol.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings := make([]protocol.Listing, 0)
	for _, owners := range s.catalogue {
		for owner, items := range owners {
			for _, it := range items {
				if name != "" && it.Name != name {
					continue
				}
				listings = append(listings, protocol.Listing{Item: it, OwnerAddress: owner})
			}
		}
	}
	return listings
}

// RegisterUser records a user at this location. A user arriving without
// an id gets one issued by the directory, once and for all; a user that
// already carries an id only has its record refreshed.
func (s *RegistryService) RegisterUser(ctx context.Context, user protocol.UserRecord) (string, error) {
	if user.ID == "" {
		id, err := s.directory.IssueUserID(ctx)
		if err != nil {
			return "", err
		}
		user.ID = id
		s.logger.Info().Str("user_id", id).Msg("New user id issued")
	}
	if user.HomeLocation == "" {
		user.HomeLocation = s.location
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	if err := s.store.Put(registryUsersKey, s.users); err != nil {
		return "", err
	}
	s.logger.Info().Str("user_id", user.ID).Str("agent", user.AgentAddress).Msg("User registered")
	return user.ID, nil
}

// RegistryState is the idempotent read of the catalogue and the user
// roster.
type RegistryState struct {
	Location string                `json:"location"`
	Listings []protocol.Listing    `json:"listings"`
	Users    []protocol.UserRecord `json:"users"`
}

// State snapshots the catalogue and user roster.
func (s *RegistryService) State() RegistryState {
	state := RegistryState{
		Location: s.location,
		Listings: s.Catalogue(""),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state.Users = make([]protocol.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		state.Users = append(state.Users, u)
	}
	return state
}

// insertLocked places an item under category/owner, creating the
// intermediate maps. Callers hold the mutex.
func (s *RegistryService) insertLocked(it item.Item, ownerAddress string) {
	owners, ok := s.catalogue[it.Category]
	if !ok {
		owners = make(map[string]map[string]item.Item)
		s.catalogue[it.Category] = owners
	}
	items, ok := owners[ownerAddress]
	if !ok {
		items = make(map[string]item.Item)
		owners[ownerAddress] = items
	}
	items[it.Name] = it
}

func (s *RegistryService) persistLocked() error {
	saved := registrySnapshot{Listings: make([]protocol.Listing, 0)}
	for _, owners := range s.catalogue {
		for owner, items := range owners {
			for _, it := range items {
				saved.Listings = append(saved.Listings, protocol.Listing{Item: it, OwnerAddress: owner})
			}
		}
	}
	return s.store.Put(registryCatalogueKey, saved)
}
