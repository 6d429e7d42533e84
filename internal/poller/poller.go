// Package poller is the background daemon that reconciles open orders
// against the provider. The source project polled from the browser tab;
// here the server owns the loop, so an order left behind by a closed
// tab still completes or refunds.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/orderflow"
	"github.com/ditznesia/otpstore/internal/storage"
)

type Poller struct {
	log          *slog.Logger
	pollInterval time.Duration
	poolSize     int
	storage      storage.OrderStorage
	flow         *orderflow.Service
}

type Config struct {
	logger       *slog.Logger
	pollInterval time.Duration
	poolSize     int
}

func New(store storage.OrderStorage, flow *orderflow.Service, opts ...Option) *Poller {
	cfg := &Config{
		logger:       slog.New(&slog.JSONHandler{}),
		pollInterval: 5 * time.Second,
		poolSize:     1,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Poller{
		log:          cfg.logger.With(slog.String("module", "poller")),
		pollInterval: cfg.pollInterval,
		poolSize:     cfg.poolSize,
		storage:      store,
		flow:         flow,
	}
}

type Option func(c *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.pollInterval = interval
	}
}

func WithPoolSize(size int) Option {
	return func(c *Config) {
		c.poolSize = size
	}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.log.Info("Start order poll daemon")

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Context done, stopping order poll daemon")

			return nil

		case <-ticker.C:
			if err := p.Process(ctx); err != nil {
				p.log.Error("poller.Process", slog.Any("error", err))
			}
		}
	}
}

// Process reconciles every order still awaiting an OTP. Success orders
// with an empty code are included: their OTP is in flight, or the
// provider timed them out and they need the refund correction.
func (p *Poller) Process(ctx context.Context) error {
	ords, err := p.storage.GetOrdersByStatus(ctx, orders.OrderStatusPending, orders.OrderStatusSuccess)
	if err != nil {
		return fmt.Errorf("storage.GetOrdersByStatus: %w", err)
	}

	open := ords[:0]
	for _, ord := range ords {
		if ord.AwaitingOTP() {
			open = append(open, ord)
		}
	}

	if len(open) == 0 {
		return nil
	}

	ordCh := orderGenerator(ctx, open)

	wg := &sync.WaitGroup{}

	for w := 1; w <= p.poolSize; w++ {
		wg.Add(1)
		go p.worker(ctx, wg, ordCh)
	}

	wg.Wait()

	return nil
}

func orderGenerator(ctx context.Context, ords []*orders.Order) chan *orders.Order {
	ordersCh := make(chan *orders.Order)

	go func() {
		defer close(ordersCh)

		for _, ord := range ords {
			select {
			case <-ctx.Done():
				return
			case ordersCh <- ord:
			}
		}
	}()

	return ordersCh
}

func (p *Poller) worker(ctx context.Context, wg *sync.WaitGroup, ordersCh chan *orders.Order) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case order, ok := <-ordersCh:
			if !ok {
				return
			}

			_, outcome, err := p.flow.Reconcile(ctx, order)
			if err != nil {
				// Gateway hiccups are not terminal; the next tick retries.
				p.log.Error("flow.Reconcile",
					slog.String("order_id", order.ID()),
					slog.Any("error", err),
				)

				continue
			}

			if outcome == orderflow.OutcomeWaiting {
				continue
			}

			p.log.Info("Order reconciled",
				slog.String("order_id", order.ID()),
				slog.String("provider_order_id", order.ProviderOrderID()),
				slog.String("outcome", outcome.String()),
			)
		}
	}
}
