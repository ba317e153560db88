package outbound

import (
	"context"

	"rentmesh/internal/protocol"
)

// Peer sends addressed request/response messages over the agent fabric.
// Every exchange is at most one reply per request; when no reply arrives
// within the configured bound the call returns shared.ErrNoReply, which
// deliberately does not distinguish a timeout from an unreachable peer.
type Peer interface {
	// Request sends one message to the agent at the given address and
	// waits for its reply.
	Request(ctx context.Context, to string, msgType protocol.MessageType, payload any) (*protocol.Response, error)

	// Address returns this agent's own address as peers see it.
	Address() string
}
