package clients

import (
	"context"

	"github.com/google/uuid"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

// OwnerClient drives an owner agent through the renter-side legs of the
// rental lifecycle. The target address varies per call because a renter
// deals with many owners.
type OwnerClient struct {
	peer outbound.Peer
}

func NewOwnerClient(peer outbound.Peer) *OwnerClient {
	return &OwnerClient{peer: peer}
}

func (c *OwnerClient) Reserve(ctx context.Context, ownerAddress string, it item.Item) (uuid.UUID, error) {
	resp, err := c.peer.Request(ctx, ownerAddress, protocol.TypeRequestedItem, protocol.RequestedItem{Item: it})
	if err != nil {
		return uuid.Nil, err
	}
	if err := resp.Err(); err != nil {
		return uuid.Nil, err
	}
	var reply protocol.ReserveReply
	if err := resp.DecodeContent(&reply); err != nil {
		return uuid.Nil, err
	}
	return reply.TicketID, nil
}

func (c *OwnerClient) ConfirmHandover(ctx context.Context, ownerAddress string, ticketID uuid.UUID, it item.Item, code string) error {
	resp, err := c.peer.Request(ctx, ownerAddress, protocol.TypeHandOverConfirm, protocol.HandOverConfirm{
		TicketID: ticketID,
		Item:     it,
		Code:     code,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *OwnerClient) EndRental(ctx context.Context, ownerAddress string, ticketID uuid.UUID, it item.Item, code string) error {
	resp, err := c.peer.Request(ctx, ownerAddress, protocol.TypeHandOverEnd, protocol.HandOverEnd{
		TicketID: ticketID,
		Item:     it,
		Code:     code,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

// RenterClient drives a renter agent through the owner-side pushes of
// the lifecycle and the scheduler's transfer requests.
type RenterClient struct {
	peer outbound.Peer
}

func NewRenterClient(peer outbound.Peer) *RenterClient {
	return &RenterClient{peer: peer}
}

func (c *RenterClient) HandOver(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item, ownerAddress string) error {
	resp, err := c.peer.Request(ctx, renterAddress, protocol.TypeHandOverRequest, protocol.HandOverRequest{
		TicketID: ticketID,
		Item:     it,
		Agent:    ownerAddress,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *RenterClient) RentConfirm(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item, code string, paymentID int64) error {
	resp, err := c.peer.Request(ctx, renterAddress, protocol.TypeRentConfirmRequest, protocol.RentConfirmRequest{
		TicketID:  ticketID,
		Item:      it,
		Code:      code,
		Agent:     c.peer.Address(),
		PaymentID: paymentID,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *RenterClient) EndConfirm(ctx context.Context, renterAddress string, ticketID uuid.UUID, it item.Item) error {
	resp, err := c.peer.Request(ctx, renterAddress, protocol.TypeHandOverEndConfirm, protocol.HandOverEndConfirm{
		TicketID: ticketID,
		Item:     it,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *RenterClient) RequestTransaction(ctx context.Context, payerAddress, to string, amountCents int64) (string, error) {
	resp, err := c.peer.Request(ctx, payerAddress, protocol.TypeTransactionRequest, protocol.TransactionRequest{
		ToAddress:   to,
		AmountCents: amountCents,
	})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	var reply protocol.TransactionReply
	if err := resp.DecodeContent(&reply); err != nil {
		return "", err
	}
	return reply.TxHash, nil
}
