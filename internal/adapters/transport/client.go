package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rentmesh/internal/domain/shared"
	"rentmesh/internal/protocol"
)

// Client is an agent's outbound side of the messaging fabric. It keeps
// one websocket connection per peer address, correlates replies to
// requests by envelope id, and enforces the request timeout. A timeout
// and an unreachable peer both surface as shared.ErrNoReply.
type Client struct {
	self    string
	timeout time.Duration
	mu      sync.Mutex
	peers   map[string]*peerConn
	logger  zerolog.Logger
}

type ClientParams struct {
	// Address is this agent's own advertised address.
	Address string

	// Timeout bounds every request/response exchange.
	Timeout time.Duration

	Logger zerolog.Logger
}

func NewClient(params ClientParams) *Client {
	return &Client{
		self:    params.Address,
		timeout: params.Timeout,
		peers:   make(map[string]*peerConn),
		logger:  params.Logger.With().Str("component", "transport_client").Logger(),
	}
}

// Address returns this agent's own address as peers see it.
func (c *Client) Address() string {
	return c.self
}

// Request sends one message and waits for the correlated reply.
func (c *Client) Request(ctx context.Context, to string, msgType protocol.MessageType, payload any) (*protocol.Response, error) {
	env, err := protocol.NewEnvelope(msgType, c.self, payload)
	if err != nil {
		return nil, err
	}

	pc, err := c.peer(to)
	if err != nil {
		c.logger.Warn().Err(err).Str("to", to).Str("type", string(msgType)).Msg("Peer unreachable")
		return nil, shared.ErrNoReply
	}

	ch := pc.register(env.ID)
	if err := pc.send(env); err != nil {
		pc.unregister(env.ID)
		c.drop(to, pc)
		c.logger.Warn().Err(err).Str("to", to).Str("type", string(msgType)).Msg("Failed to send request")
		return nil, shared.ErrNoReply
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok || reply == nil {
			return nil, shared.ErrNoReply
		}
		var resp protocol.Response
		if err := reply.Decode(&resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &resp, nil
	case <-timer.C:
		pc.unregister(env.ID)
		return nil, shared.ErrNoReply
	case <-ctx.Done():
		pc.unregister(env.ID)
		return nil, shared.ErrNoReply
	}
}

// Close tears down all peer connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pc := range c.peers {
		pc.close()
	}
	c.peers = make(map[string]*peerConn)
}

func (c *Client) peer(to string) (*peerConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pc, ok := c.peers[to]; ok && !pc.isClosed() {
		return pc, nil
	}

	endpoint, err := wsURL(to)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	pc := &peerConn{
		conn:     conn,
		sendChan: make(chan *protocol.Envelope, 100),
		pending:  make(map[uuid.UUID]chan *protocol.Envelope),
		done:     make(chan struct{}),
	}
	go pc.writeLoop()
	go pc.readLoop(c, to)

	c.peers[to] = pc
	return pc, nil
}

func (c *Client) drop(to string, pc *peerConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.peers[to]; ok && current == pc {
		delete(c.peers, to)
	}
}

// wsURL normalizes an agent address into a dialable websocket URL.
func wsURL(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid agent address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid agent address %q: unsupported scheme", addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// peerConn is one outbound connection. The writer goroutine owns the
// socket's write side; the reader delivers correlated replies to the
// pending request channels.
type peerConn struct {
	conn     *websocket.Conn
	sendChan chan *protocol.Envelope
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	pending map[uuid.UUID]chan *protocol.Envelope
	closed  bool
}

func (p *peerConn) register(id uuid.UUID) chan *protocol.Envelope {
	ch := make(chan *protocol.Envelope, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *peerConn) unregister(id uuid.UUID) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *peerConn) send(env *protocol.Envelope) error {
	if p.isClosed() {
		return fmt.Errorf("connection closed")
	}
	select {
	case p.sendChan <- env:
		return nil
	case <-p.done:
		return fmt.Errorf("connection closed")
	}
}

func (p *peerConn) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *peerConn) close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		pending := p.pending
		p.pending = make(map[uuid.UUID]chan *protocol.Envelope)
		p.mu.Unlock()

		close(p.done)
		p.conn.Close()

		// Wake every waiter; a closed channel reads as no reply.
		for _, ch := range pending {
			close(ch)
		}
	})
}

func (p *peerConn) writeLoop() {
	for {
		select {
		case env := <-p.sendChan:
			if err := p.conn.WriteJSON(env); err != nil {
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *peerConn) readLoop(c *Client, to string) {
	defer func() {
		p.close()
		c.drop(to, p)
	}()
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			c.logger.Warn().Err(err).Str("peer", to).Msg("Discarding malformed reply")
			continue
		}
		if !env.IsReply() {
			c.logger.Warn().Str("peer", to).Str("type", string(env.Type)).Msg("Discarding unsolicited request on client connection")
			continue
		}

		p.mu.Lock()
		ch, ok := p.pending[env.CorrelationID]
		if ok {
			delete(p.pending, env.CorrelationID)
		}
		p.mu.Unlock()

		if ok {
			ch <- env
		}
	}
}
