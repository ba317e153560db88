package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickService is the payment service as the ticker drives it.
type TickService interface {
	Tick()
}

// PaymentTicker fires the payment service's tick on a fixed period. The
// tick itself only posts a command to the service's coordinating loop,
// so a slow ledger call never stalls the ticker.
type PaymentTicker struct {
	service  TickService
	interval time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type PaymentTickerParams struct {
	Service  TickService
	Interval time.Duration
	Logger   zerolog.Logger
}

func NewPaymentTicker(params PaymentTickerParams) *PaymentTicker {
	ctx, cancel := context.WithCancel(context.Background())
	return &PaymentTicker{
		service:  params.Service,
		interval: params.Interval,
		logger:   params.Logger.With().Str("component", "payment_ticker").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the tick loop.
func (t *PaymentTicker) Start() {
	t.logger.Info().Dur("interval", t.interval).Msg("Starting payment ticker")
	t.wg.Add(1)
	go t.tickLoop()
}

// Stop gracefully stops the ticker.
func (t *PaymentTicker) Stop() {
	t.logger.Info().Msg("Stopping payment ticker")
	t.cancel()
	t.wg.Wait()
}

func (t *PaymentTicker) tickLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.service.Tick()
		case <-t.ctx.Done():
			t.logger.Info().Msg("Payment ticker stopped")
			return
		}
	}
}
