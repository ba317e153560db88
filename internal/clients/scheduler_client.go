package clients

import (
	"context"

	"rentmesh/internal/ports/outbound"
	"rentmesh/internal/protocol"
)

// SchedulerClient drives the payment scheduler agent over the fabric.
type SchedulerClient struct {
	peer    outbound.Peer
	address string
}

func NewSchedulerClient(peer outbound.Peer, address string) *SchedulerClient {
	return &SchedulerClient{peer: peer, address: address}
}

func (c *SchedulerClient) CreatePayment(ctx context.Context, from, to string, amountCents int64, frequencyMinutes int) (int64, error) {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypePaymentRequest, protocol.PaymentRequest{
		FromAddress:      from,
		ToAddress:        to,
		AmountCents:      amountCents,
		FrequencyMinutes: frequencyMinutes,
	})
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	var reply protocol.PaymentReply
	if err := resp.DecodeContent(&reply); err != nil {
		return 0, err
	}
	return reply.ID, nil
}

func (c *SchedulerClient) CancelPayment(ctx context.Context, id int64) error {
	resp, err := c.peer.Request(ctx, c.address, protocol.TypePaymentCancel, protocol.PaymentCancel{ID: id})
	if err != nil {
		return err
	}
	return resp.Err()
}
