// Package orderflow is the order lifecycle controller. It is the only
// place that coordinates the balance, the upstream provider and the
// persisted order record, and every transition here is written so that
// a partial failure or a racing caller can never move money twice.
package orderflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/storage"
)

var (
	// ErrInsufficientFunds blocks a purchase before anything moves.
	ErrInsufficientFunds = errors.New("balance not enough for this purchase")

	// ErrProductOutOfStock blocks a purchase of an empty SKU.
	ErrProductOutOfStock = errors.New("product is out of stock")

	// ErrPaymentFailed means the debit itself failed: funds never moved
	// and no order exists.
	ErrPaymentFailed = errors.New("payment processing failed, nothing was charged")
)

// PlacementError is a placement the provider refused after the debit;
// the price has been credited back.
type PlacementError struct {
	Message string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("order placement failed: %s (funds were restored)", e.Message)
}

// CancelRejectedError is a cancellation the provider refused. Nothing
// was refunded: the rental may have completed server-side, and a blind
// refund would double-credit. Callers should recheck the status.
type CancelRejectedError struct {
	Message string
}

func (e *CancelRejectedError) Error() string {
	return fmt.Sprintf("provider rejected cancellation: %s", e.Message)
}

// Outcome reports what a reconciliation pass did to an order.
type Outcome int

const (
	// OutcomeWaiting: still pending, keep polling.
	OutcomeWaiting Outcome = iota

	// OutcomeCompleted: OTP recorded, order is success.
	OutcomeCompleted

	// OutcomeRefunded: rental ended without delivery, price credited back.
	OutcomeRefunded

	// OutcomeUnchanged: the order was already terminal; nothing moved.
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRefunded:
		return "refunded"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "waiting"
	}
}

// Gateway is the slice of the provider client the controller needs.
type Gateway interface {
	PlaceOrder(ctx context.Context, countryID, serviceCode string) (*otpclient.PlacedOrder, error)
	GetSMS(ctx context.Context, providerOrderID string) (*otpclient.SMSData, error)
	CancelOrder(ctx context.Context, providerOrderID string) error
}

type Service struct {
	log     *slog.Logger
	storage storage.Storage
	gateway Gateway
}

func New(store storage.Storage, gateway Gateway, opts ...Option) *Service {
	svc := &Service{
		log:     slog.New(&slog.JSONHandler{}),
		storage: store,
		gateway: gateway,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger.With(slog.String("module", "orderflow"))
	}
}

// Place rents a number for the user. The debit always precedes the
// provider call; any provider failure after the debit credits the price
// back before the error is surfaced.
func (s *Service) Place(ctx context.Context, userID, productID string) (*orders.Order, error) {
	product, err := s.storage.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetProduct: %w", err)
	}

	if !product.InStock() {
		return nil, ErrProductOutOfStock
	}

	price := product.Price

	if _, err := s.storage.AdjustUserBalance(ctx, userID, price.Neg()); err != nil {
		if errors.Is(err, storage.ErrBalanceNotEnough) {
			return nil, ErrInsufficientFunds
		}

		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	placed, err := s.gateway.PlaceOrder(ctx, product.CountryID, product.ServiceCode)
	if err != nil {
		s.refundDebit(ctx, userID, product.ID, price)

		return nil, &PlacementError{Message: err.Error()}
	}

	order, err := orders.NewOrder(userID, placed.OrderID, placed.Number, product.ServiceLabel(), price)
	if err != nil {
		s.refundDebit(ctx, userID, product.ID, price)

		return nil, fmt.Errorf("orders.NewOrder: %w", err)
	}

	if err := s.storage.CreateOrder(ctx, order); err != nil {
		s.refundDebit(ctx, userID, product.ID, price)

		return nil, fmt.Errorf("storage.CreateOrder: %w", err)
	}

	return order, nil
}

// refundDebit restores a debit whose order never materialized. A failure
// here leaves the user short and is loud on purpose.
func (s *Service) refundDebit(ctx context.Context, userID, productID string, price decimal.Decimal) {
	if _, err := s.storage.AdjustUserBalance(ctx, userID, price); err != nil {
		s.log.Error("refund after failed placement did not apply; balance is short",
			slog.String("user_id", userID),
			slog.String("product_id", productID),
			slog.String("amount", price.String()),
			slog.Any("error", err),
		)
	}
}

// Reconcile applies the provider's reported SMS state to the order. It
// is idempotent and shared by the live poll loop, the history recheck
// and the background daemon; terminal orders pass through untouched.
func (s *Service) Reconcile(ctx context.Context, order *orders.Order) (*orders.Order, Outcome, error) {
	if order.Status().Terminal() {
		return order, OutcomeUnchanged, nil
	}

	if !order.AwaitingOTP() {
		return order, OutcomeUnchanged, nil
	}

	sms, err := s.gateway.GetSMS(ctx, order.ProviderOrderID())
	if err != nil {
		// The provider purges expired rentals from its history; a gone
		// order is a server-side cancellation.
		if errors.Is(err, otpclient.ErrOrderGone) {
			return s.refundOrder(ctx, order)
		}

		return order, OutcomeWaiting, fmt.Errorf("gateway.GetSMS: %w", err)
	}

	switch otpclient.Classify(sms.Status, sms.OTP != "") {
	case otpclient.ResolutionSucceeded:
		if err := s.storage.CompleteOrder(ctx, order.ID(), sms.OTP); err != nil {
			if errors.Is(err, storage.ErrOrderNotTransitional) {
				return s.reload(ctx, order, OutcomeUnchanged)
			}

			return order, OutcomeWaiting, fmt.Errorf("storage.CompleteOrder: %w", err)
		}

		return s.reload(ctx, order, OutcomeCompleted)

	case otpclient.ResolutionRefundable:
		return s.refundOrder(ctx, order)

	default:
		return order, OutcomeWaiting, nil
	}
}

// Cancel attempts to stop the rental at the provider. Only an explicit
// provider success refunds; a refusal falls back to a status recheck so
// an order that already completed server-side is corrected instead of
// blindly refunded.
func (s *Service) Cancel(ctx context.Context, order *orders.Order) (*orders.Order, Outcome, error) {
	if order.Status().Terminal() {
		return order, OutcomeUnchanged, nil
	}

	err := s.gateway.CancelOrder(ctx, order.ProviderOrderID())
	if err == nil {
		return s.refundOrder(ctx, order)
	}

	var provErr *otpclient.ProviderError
	if errors.As(err, &provErr) {
		reconciled, outcome, recErr := s.Reconcile(ctx, order)
		if recErr == nil && outcome != OutcomeWaiting {
			return reconciled, outcome, nil
		}

		return reconciled, outcome, &CancelRejectedError{Message: provErr.Message}
	}

	return order, OutcomeWaiting, fmt.Errorf("gateway.CancelOrder: %w", err)
}

// refundOrder routes every refund through the storage's guarded
// cancel-and-credit. Losing the race to another caller is not an error.
func (s *Service) refundOrder(ctx context.Context, order *orders.Order) (*orders.Order, Outcome, error) {
	refunded, err := s.storage.RefundOrder(ctx, order.ID())
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotTransitional) {
			return s.reload(ctx, order, OutcomeUnchanged)
		}

		return order, OutcomeWaiting, fmt.Errorf("storage.RefundOrder: %w", err)
	}

	return refunded, OutcomeRefunded, nil
}

func (s *Service) reload(ctx context.Context, order *orders.Order, outcome Outcome) (*orders.Order, Outcome, error) {
	fresh, err := s.storage.GetOrder(ctx, order.ID())
	if err != nil {
		return order, outcome, fmt.Errorf("storage.GetOrder: %w", err)
	}

	return fresh, outcome, nil
}

// UserOrder loads an order and verifies ownership. Foreign orders are
// indistinguishable from missing ones.
func (s *Service) UserOrder(ctx context.Context, userID, orderID string) (*orders.Order, error) {
	order, err := s.storage.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOrder: %w", err)
	}

	if order.UserID() != userID {
		return nil, storage.ErrOrderNotFound
	}

	return order, nil
}
