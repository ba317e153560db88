package clients

import (
	"context"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

// RegistryClient drives a location registry agent over the fabric.
type RegistryClient struct {
	peer    outbound.Peer
	address string
}

func NewRegistryClient(peer outbound.Peer, address string) *RegistryClient {
	return &RegistryClient{peer: peer, address: address}
}

func (c *RegistryClient) AddItem(ctx context.Context, it item.Item, ownerAddress string) error {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeAddRequest, protocol.AddRequest{
		Item:         it,
		AgentAddress: ownerAddress,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *RegistryClient) DeleteItem(ctx context.Context, name, category, ownerAddress string) error {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeDeleteRequest, protocol.DeleteRequest{
		Name:         name,
		Category:     category,
		AgentAddress: ownerAddress,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *RegistryClient) Catalogue(ctx context.Context, name string) ([]protocol.Listing, error) {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeItemRequest, protocol.ItemRequest{Name: name})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	var list protocol.ListingList
	if err := resp.DecodeContent(&list); err != nil {
		return nil, err
	}
	return list.Listings, nil
}

func (c *RegistryClient) RegisterUser(ctx context.Context, user protocol.UserRecord) (string, error) {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeUserRegistration, protocol.UserRegistrationRequest{User: user})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	var id protocol.UserID
	if err := resp.DecodeContent(&id); err != nil {
		return "", err
	}
	return id.ID, nil
}
