package app

import (
	"crypto/rand"
	"sync"

	"github.com/rs/zerolog"

	"rentmesh/internal/domain/shared"
	"rentmesh/internal/ports/outbound"
)

const (
	directoryLocationsKey = "locations"
	directoryUserIDsKey   = "user_ids"

	userIDDigits = 10
)

// DirectoryService is the well-known naming agent. It maps location
// names to registry addresses and issues the globally unique user ids
// registries hand out to new users.
type DirectoryService struct {
	mu        sync.Mutex
	locations map[string]string
	issuedIDs map[string]bool

	store  outbound.Store
	logger zerolog.Logger
}

type DirectoryServiceParams struct {
	Store  outbound.Store
	Logger zerolog.Logger
}

// NewDirectoryService creates a directory service, restoring the
// location table and issued ids from the agent store.
func NewDirectoryService(params DirectoryServiceParams) (*DirectoryService, error) {
	s := &DirectoryService{
		locations: make(map[string]string),
		issuedIDs: make(map[string]bool),
		store:     params.Store,
		logger:    params.Logger.With().Str("component", "directory_service").Logger(),
	}

	if err := s.store.EnsureDefaults(map[string]any{
		directoryLocationsKey: map[string]string{},
		directoryUserIDsKey:   []string{},
	}); err != nil {
		return nil, err
	}

	var locations map[string]string
	found, err := s.store.Get(directoryLocationsKey, &locations)
	if err != nil {
		return nil, err
	}
	if found {
		s.locations = locations
	}

	var ids []string
	found, err = s.store.Get(directoryUserIDsKey, &ids)
	if err != nil {
		return nil, err
	}
	if found {
		for _, id := range ids {
			s.issuedIDs[id] = true
		}
	}
	return s, nil
}

// Lookup resolves a location name to its registry address.
func (s *DirectoryService) Lookup(location string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.locations[location]
	if !ok {
		return "", shared.ErrLocationNotFound
	}
	return addr, nil
}

// Locations returns the names of all registered locations.
func (s *DirectoryService) Locations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.locations))
	for name := range s.locations {
		names = append(names, name)
	}
	return names
}

// Register records a location's registry address. A name can only be
// claimed once; the holder must unregister before the name is reusable.
func (s *DirectoryService) Register(location, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[location]; ok {
		return shared.ErrAlreadyExists
	}
	s.locations[location] = address
	if err := s.store.Put(directoryLocationsKey, s.locations); err != nil {
		return err
	}
	s.logger.Info().Str("location", location).Str("address", address).Msg("Location registered")
	return nil
}

// Unregister releases a location name.
func (s *DirectoryService) Unregister(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[location]; !ok {
		return shared.ErrLocationNotFound
	}
	delete(s.locations, location)
	if err := s.store.Put(directoryLocationsKey, s.locations); err != nil {
		return err
	}
	s.logger.Info().Str("location", location).Msg("Location unregistered")
	return nil
}

// IssueUserID mints a fresh 10-digit user id. Issued ids are remembered
// forever so an id is never handed out twice.
func (s *DirectoryService) IssueUserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		id = randomDigits(userIDDigits)
		if !s.issuedIDs[id] {
			break
		}
	}
	s.issuedIDs[id] = true

	ids := make([]string, 0, len(s.issuedIDs))
	for issued := range s.issuedIDs {
		ids = append(ids, issued)
	}
	if err := s.store.Put(directoryUserIDsKey, ids); err != nil {
		return "", err
	}
	s.logger.Info().Str("user_id", id).Msg("User id issued")
	return id, nil
}

// DirectoryState is the idempotent read of the location table.
type DirectoryState struct {
	Locations map[string]string `json:"locations"`
	IssuedIDs int               `json:"issued_ids"`
}

// State snapshots the location table.
func (s *DirectoryService) State() DirectoryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	locations := make(map[string]string, len(s.locations))
	for name, addr := range s.locations {
		locations[name] = addr
	}
	return DirectoryState{Locations: locations, IssuedIDs: len(s.issuedIDs)}
}

func randomDigits(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("directory: crypto/rand unavailable: " + err.Error())
	}
	for i := range buf {
		buf[i] = '0' + buf[i]%10
	}
	return string(buf)
}
