package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rentmesh/internal/domain/shared"
	"rentmesh/internal/protocol"
)

// Handler processes one inbound protocol message and produces the reply.
// Returning an error is equivalent to returning protocol.Fail(err); it
// never crosses the wire as anything but a status/kind pair.
type Handler func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error)

// Server is an agent's inbound side of the messaging fabric: it accepts
// websocket connections from peers, dispatches request envelopes to the
// registered handlers on a bounded worker pool, and writes correlated
// replies back over the same connection.
type Server struct {
	address    string
	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader
	handlers   map[protocol.MessageType]Handler
	pool       *pond.WorkerPool
	ctx        context.Context
	cancel     context.CancelFunc
	logger     zerolog.Logger
}

type ServerParams struct {
	// ListenAddr is the host:port to bind.
	ListenAddr string

	// Address is this agent's advertised address, stamped into replies.
	Address string

	ReadBufferSize  int
	WriteBufferSize int
	MaxWorkers      int
	MaxCapacity     int
	Logger          zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		address:  params.Address,
		handlers: make(map[protocol.MessageType]Handler),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  params.ReadBufferSize,
			WriteBufferSize: params.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pool: pond.New(
			params.MaxWorkers,
			params.MaxCapacity,
			pond.Context(ctx),
			pond.Strategy(pond.Balanced()),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: params.Logger.With().Str("component", "transport_server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", handleHealth)
	s.mux = mux

	s.httpServer = &http.Server{
		Addr:        params.ListenAddr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Minute,
	}

	return s
}

// Handle registers the handler for one message type. Registration must
// happen before Start.
func (s *Server) Handle(msgType protocol.MessageType, handler Handler) {
	s.handlers[msgType] = handler
}

// Route attaches an extra HTTP handler (admin or state endpoints) to the
// agent's server alongside the websocket endpoint.
func (s *Server) Route(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Handler exposes the full mux, used by tests to serve on an ephemeral
// listener.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks serving the fabric until Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting transport server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start transport server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and drains in-flight handlers.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping transport server...")
	s.cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown transport server: %w", err)
	}
	s.pool.StopAndWait()
	s.logger.Info().Msg("Transport server stopped")
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sc := &serverConn{
		conn:     conn,
		sendChan: make(chan *protocol.Envelope, 100),
		done:     make(chan struct{}),
		srv:      s,
	}
	go sc.writeLoop()
	go sc.readLoop()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// serverConn is one peer's inbound connection. A single writer goroutine
// owns the socket's write side; dispatch workers hand it replies over
// sendChan.
type serverConn struct {
	conn     *websocket.Conn
	sendChan chan *protocol.Envelope
	done     chan struct{}
	once     sync.Once
	srv      *Server
}

func (c *serverConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *serverConn) writeLoop() {
	for {
		select {
		case env := <-c.sendChan:
			if err := c.conn.WriteJSON(env); err != nil {
				c.srv.logger.Error().Err(err).Msg("Failed to write reply")
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *serverConn) readLoop() {
	defer c.close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.logger.Error().Err(err).Msg("Transport read error")
			}
			return
		}

		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			c.srv.logger.Warn().Err(err).Msg("Discarding malformed envelope")
			continue
		}
		if env.IsReply() {
			// Replies belong on the client side of a connection;
			// an inbound one has nothing to correlate with.
			c.srv.logger.Warn().Str("type", string(env.Type)).Msg("Discarding unexpected reply envelope")
			continue
		}

		c.srv.pool.Submit(func() {
			c.dispatch(env)
		})
	}
}

func (c *serverConn) dispatch(env *protocol.Envelope) {
	handler, ok := c.srv.handlers[env.Type]

	var resp *protocol.Response
	if !ok {
		resp = protocol.Fail(shared.ErrUnknownMessageType)
	} else {
		r, err := handler(c.srv.ctx, env)
		if err != nil {
			resp = protocol.Fail(err)
		} else {
			resp = r
		}
	}

	reply, err := protocol.NewReply(env, c.srv.address, resp)
	if err != nil {
		c.srv.logger.Error().Err(err).Msg("Failed to build reply envelope")
		return
	}

	select {
	case c.sendChan <- reply:
	case <-c.done:
	}
}
