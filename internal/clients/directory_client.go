package clients

import (
	"context"

	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

// DirectoryClient drives the directory agent over the fabric.
type DirectoryClient struct {
	peer    outbound.Peer
	address string
}

func NewDirectoryClient(peer outbound.Peer, address string) *DirectoryClient {
	return &DirectoryClient{peer: peer, address: address}
}

func (c *DirectoryClient) Lookup(ctx context.Context, location string) (string, error) {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeLocationRequest, protocol.LocationRequest{Location: location})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	var addr protocol.LocationAddress
	if err := resp.DecodeContent(&addr); err != nil {
		return "", err
	}
	return addr.Address, nil
}

func (c *DirectoryClient) Locations(ctx context.Context) ([]string, error) {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeLocationRequest, protocol.LocationRequest{})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	var list protocol.LocationList
	if err := resp.DecodeContent(&list); err != nil {
		return nil, err
	}
	return list.Locations, nil
}

func (c *DirectoryClient) RegisterLocation(ctx context.Context, location, address string) error {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeLocationRegistration, protocol.LocationRegistrationRequest{
		Location: location,
		Address:  address,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *DirectoryClient) UnregisterLocation(ctx context.Context, location string) error {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeLocationUnregistration, protocol.LocationUnregistrationRequest{
		Location: location,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *DirectoryClient) IssueUserID(ctx context.Context) (string, error) {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypeUserIDRequest, protocol.UserIDRequest{})
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
