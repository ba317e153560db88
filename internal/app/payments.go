package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/rs/zerolog"

	"rentmesh/internal/domain/payment"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/ports/outbound"
)

// PaymentService is the recurring payment scheduler. A single goroutine
// owns the obligation table and consumes commands from a channel, so
// create, cancel and tick never race. Transfer attempts are slow
// network work and run on a worker pool; their outcomes come back as
// commands.
type PaymentService struct {
	cmds        chan func()
	obligations map[int64]*payment.Obligation

	store          outbound.Store
	renters        outbound.RenterGateway
	ledger         outbound.Ledger
	pool           *pond.WorkerPool
	requestTimeout time.Duration
	logger         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type PaymentServiceParams struct {
	Store          outbound.Store
	Renters        outbound.RenterGateway
	Ledger         outbound.Ledger
	RequestTimeout time.Duration
	MaxWorkers     int
	MaxCapacity    int
	Logger         zerolog.Logger
}

const paymentObligationsKey = "obligations"

// NewPaymentService creates the scheduler, restoring obligations from
// the agent store so payments survive restarts.
func NewPaymentService(params PaymentServiceParams) (*PaymentService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PaymentService{
		cmds:        make(chan func(), params.MaxCapacity),
		obligations: make(map[int64]*payment.Obligation),
		store:       params.Store,
		renters:     params.Renters,
		ledger:      params.Ledger,
		pool: pond.New(params.MaxWorkers, params.MaxCapacity,
			pond.Context(ctx),
			pond.Strategy(pond.Balanced()),
		),
		requestTimeout: params.RequestTimeout,
		logger:         params.Logger.With().Str("component", "payment_service").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}

	if err := s.store.EnsureDefaults(map[string]any{paymentObligationsKey: []*payment.Obligation{}}); err != nil {
		cancel()
		return nil, err
	}

	var saved []*payment.Obligation
	found, err := s.store.Get(paymentObligationsKey, &saved)
	if err != nil {
		cancel()
		return nil, err
	}
	if found {
		for _, ob := range saved {
			s.obligations[ob.ID] = ob
		}
	}
	return s, nil
}

// Start launches the command loop.
func (s *PaymentService) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info().Msg("Payment service started")
}

// Stop shuts the command loop and the transfer pool down.
func (s *PaymentService) Stop() {
	s.cancel()
	s.wg.Wait()
	s.pool.Stop()
	s.logger.Info().Msg("Payment service stopped")
}

func (s *PaymentService) run() {
	defer s.wg.Done()
	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *PaymentService) post(ctx context.Context, cmd func()) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Create registers a recurring obligation. The elapsed counter starts
// at zero, so the first transfer goes out on the next tick.
func (s *PaymentService) Create(ctx context.Context, payer, payee string, amountCents int64, frequencyMinutes int) (int64, error) {
	if amountCents <= 0 || frequencyMinutes <= 0 {
		return 0, fmt.Errorf("%w: amount and frequency must be positive", shared.ErrInvalidItem)
	}

	reply := make(chan int64, 1)
	err := s.post(ctx, func() {
		id := s.newID()
		s.obligations[id] = payment.New(id, payer, payee, amountCents, frequencyMinutes)
		s.persist()
		s.logger.Info().
			Int64("payment_id", id).
			Str("payer", payer).
			Str("payee", payee).
			Int64("amount_cents", amountCents).
			Int("frequency_minutes", frequencyMinutes).
			Msg("Payment obligation created")
		reply <- id
	})
	if err != nil {
		return 0, err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Cancel removes an obligation. Cancelling twice reports not found, as
// does cancelling an id that never existed.
func (s *PaymentService) Cancel(ctx context.Context, id int64) error {
	reply := make(chan error, 1)
	err := s.post(ctx, func() {
		if _, ok := s.obligations[id]; !ok {
			reply <- shared.ErrObligationNotFound
			return
		}
		delete(s.obligations, id)
		s.persist()
		s.logger.Info().Int64("payment_id", id).Msg("Payment obligation cancelled")
		reply <- nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Obligations snapshots the obligation table.
func (s *PaymentService) Obligations(ctx context.Context) ([]payment.Obligation, error) {
	reply := make(chan []payment.Obligation, 1)
	err := s.post(ctx, func() {
		out := make([]payment.Obligation, 0, len(s.obligations))
		for _, ob := range s.obligations {
			out = append(out, *ob)
		}
		reply <- out
	})
	if err != nil {
		return nil, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tick advances every obligation by one minute of scheduler time and
// fires the due ones. It returns once the counters have moved; the
// transfers themselves run on the pool and report back asynchronously.
func (s *PaymentService) Tick() {
	done := make(chan struct{})
	err := s.post(s.ctx, func() {
		s.processTick()
		close(done)
	})
	if err != nil {
		return
	}
	select {
	case <-done:
	case <-s.ctx.Done():
	}
}

// processTick fires obligations whose counter has run out and resets
// them, then advances every counter. The reset happens before the
// shared advance, so the cadence between attempts is exactly the
// repeat interval.
func (s *PaymentService) processTick() {
	for _, ob := range s.obligations {
		if ob.Due() {
			ob.Reset()
			snapshot := *ob
			s.pool.Submit(func() {
				s.attemptTransfer(snapshot)
			})
		}
		ob.Advance()
	}
	s.persist()
}

// attemptTransfer runs one payment round trip: ask the payer agent to
// move the money, then watch the ledger until the settlement appears
// and matches the obligation. Runs on the pool, never touches the
// obligation table directly.
func (s *PaymentService) attemptTransfer(ob payment.Obligation) {
	ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout)
	defer cancel()

	logger := s.logger.With().
		Int64("payment_id", ob.ID).
		Str("payer", ob.PayerAddress).
		Str("payee", ob.PayeeAddress).
		Logger()

	hash, err := s.renters.RequestTransaction(ctx, ob.PayerAddress, ob.PayeeAddress, ob.AmountCents)
	if err != nil {
		logger.Error().Err(err).Msg("Transfer request failed")
		s.recordOutcome(ob.ID, fmt.Errorf("transfer request: %w", err))
		return
	}

	settlement, err := s.ledger.AwaitSettlement(ctx, hash)
	if err != nil {
		logger.Error().Err(err).Str("tx_hash", hash).Msg("Settlement not observed")
		s.recordOutcome(ob.ID, fmt.Errorf("await settlement: %w", err))
		return
	}

	if settlement.Payee != ob.PayeeAddress || settlement.AmountCents != ob.AmountCents {
		logger.Error().
			Str("tx_hash", hash).
			Str("settled_payee", settlement.Payee).
			Int64("settled_amount_cents", settlement.AmountCents).
			Msg("Settlement does not match obligation")
		s.recordOutcome(ob.ID, shared.ErrLedgerMismatch)
		return
	}

	logger.Info().Str("tx_hash", hash).Msg("Payment settled")
	s.recordOutcome(ob.ID, nil)
}

// recordOutcome posts the transfer result back to the command loop. The
// obligation may have been cancelled in the meantime; then the outcome
// is dropped.
func (s *PaymentService) recordOutcome(id int64, result error) {
	_ = s.post(s.ctx, func() {
		ob, ok := s.obligations[id]
		if !ok {
			return
		}
		if result != nil {
			ob.LastError = result.Error()
		} else {
			ob.LastError = ""
			ob.LastPaidAt = time.Now()
		}
		s.persist()
	})
}

// persist writes the obligation table to the agent store. Runs on the
// command loop.
func (s *PaymentService) persist() {
	saved := make([]*payment.Obligation, 0, len(s.obligations))
	for _, ob := range s.obligations {
		saved = append(saved, ob)
	}
	if err := s.store.Put(paymentObligationsKey, saved); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist obligations")
	}
}

// newID picks a fresh six-digit obligation id. Runs on the command
// loop.
func (s *PaymentService) newID() int64 {
	for {
		id := 100000 + rand.Int63n(900000)
		if _, ok := s.obligations[id]; !ok {
			return id
		}
	}
}
