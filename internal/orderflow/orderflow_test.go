package orderflow

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/products"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/logger"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/storage"
	"github.com/ditznesia/otpstore/internal/storage/inmemory"
)

type stubGateway struct {
	placeFn  func(ctx context.Context, countryID, serviceCode string) (*otpclient.PlacedOrder, error)
	smsFn    func(ctx context.Context, providerOrderID string) (*otpclient.SMSData, error)
	cancelFn func(ctx context.Context, providerOrderID string) error

	placeCalls  int
	smsCalls    int
	cancelCalls int
}

func (g *stubGateway) PlaceOrder(ctx context.Context, countryID, serviceCode string) (*otpclient.PlacedOrder, error) {
	g.placeCalls++

	if g.placeFn != nil {
		return g.placeFn(ctx, countryID, serviceCode)
	}

	return &otpclient.PlacedOrder{OrderID: "prov-1", Number: "628123456789"}, nil
}

func (g *stubGateway) GetSMS(ctx context.Context, providerOrderID string) (*otpclient.SMSData, error) {
	g.smsCalls++

	if g.smsFn != nil {
		return g.smsFn(ctx, providerOrderID)
	}

	return &otpclient.SMSData{Status: "Ready"}, nil
}

func (g *stubGateway) CancelOrder(ctx context.Context, providerOrderID string) error {
	g.cancelCalls++

	if g.cancelFn != nil {
		return g.cancelFn(ctx, providerOrderID)
	}

	return nil
}

type fixture struct {
	store   *inmemory.Storage
	gateway *stubGateway
	svc     *Service
	user    *users.User
	product *products.Product
}

func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()

	store := inmemory.NewStorage()

	usr, err := users.NewUser("Budi", "budi@example.com", "password123")
	if err != nil {
		t.Fatalf("users.NewUser: %v", err)
	}

	usr.Balance = decimal.NewFromInt(balance)

	if err := store.CreateUser(context.Background(), usr); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	product, err := products.NewProduct("WhatsApp", "Indonesia", decimal.NewFromInt(5000), 100, "6", "wa")
	if err != nil {
		t.Fatalf("products.NewProduct: %v", err)
	}

	if err := store.CreateProduct(context.Background(), product); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	gateway := &stubGateway{}

	return &fixture{
		store:   store,
		gateway: gateway,
		svc:     New(store, gateway, WithLogger(logger.NewLogger(logger.WithOutput(io.Discard)))),
		user:    usr,
		product: product,
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()

	usr, err := f.store.GetUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	return usr.Balance
}

func TestPlace_DebitsBeforeGateway(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	if order.Status() != orders.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status())
	}
	if order.Number() != "628123456789" || order.ProviderOrderID() != "prov-1" {
		t.Fatalf("unexpected order: %s %s", order.Number(), order.ProviderOrderID())
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("balance = %s, want 15000", got)
	}
	if f.gateway.placeCalls != 1 {
		t.Fatalf("placeCalls = %d, want 1", f.gateway.placeCalls)
	}
}

func TestPlace_InsufficientFunds(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	// The gateway must never be reached when the debit is refused.
	if f.gateway.placeCalls != 0 {
		t.Fatalf("placeCalls = %d, want 0", f.gateway.placeCalls)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s, want 1000", got)
	}
}

func TestPlace_OutOfStock(t *testing.T) {
	f := newFixture(t, 20000)

	f.product.Stock = 0
	if err := f.store.UpdateProduct(context.Background(), f.product); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	_, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if !errors.Is(err, ErrProductOutOfStock) {
		t.Fatalf("error = %v, want ErrProductOutOfStock", err)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000", got)
	}
}

func TestPlace_GatewayFailureRestoresFunds(t *testing.T) {
	f := newFixture(t, 20000)

	f.gateway.placeFn = func(_ context.Context, _, _ string) (*otpclient.PlacedOrder, error) {
		return nil, &otpclient.ProviderError{Endpoint: "order", Message: "stok habis"}
	}

	_, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)

	var placeErr *PlacementError
	if !errors.As(err, &placeErr) {
		t.Fatalf("error = %v, want *PlacementError", err)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000 after refund", got)
	}

	// Nothing should remain on record for a failed placement.
	list, err := f.store.GetOrdersByUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("GetOrdersByUser: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("orders = %d, want 0", len(list))
	}
}

// brokenLedgerStorage fails every balance write with a non-balance
// error, the way a dropped database connection would.
type brokenLedgerStorage struct {
	*inmemory.Storage
}

func (s *brokenLedgerStorage) AdjustUserBalance(_ context.Context, _ string, _ decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("write: connection reset by peer")
}

func TestPlace_DebitPersistenceFailure(t *testing.T) {
	f := newFixture(t, 20000)

	svc := New(&brokenLedgerStorage{Storage: f.store}, f.gateway,
		WithLogger(logger.NewLogger(logger.WithOutput(io.Discard))))

	_, err := svc.Place(context.Background(), f.user.ID, f.product.ID)
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("error = %v, want ErrPaymentFailed", err)
	}

	var placeErr *PlacementError
	if errors.As(err, &placeErr) {
		t.Fatalf("error = %v, want a payment failure, not a placement failure", err)
	}

	// The debit never applied, so the provider must not be contacted
	// and no order may exist.
	if f.gateway.placeCalls != 0 {
		t.Fatalf("gateway PlaceOrder calls = %d, want 0", f.gateway.placeCalls)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000 untouched", got)
	}

	list, err := f.store.GetOrdersByUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("GetOrdersByUser: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("orders = %d, want 0", len(list))
	}
}

func TestReconcile_OTPArrived(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.smsFn = func(_ context.Context, _ string) (*otpclient.SMSData, error) {
		return &otpclient.SMSData{Status: "Otp Masuk", OTP: "443211"}, nil
	}

	reconciled, outcome, err := f.svc.Reconcile(context.Background(), order)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", outcome)
	}
	if reconciled.Status() != orders.OrderStatusSuccess || reconciled.OTPCode() != "443211" {
		t.Fatalf("unexpected order: %s %q", reconciled.Status(), reconciled.OTPCode())
	}

	// Delivery never refunds.
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("balance = %s, want 15000", got)
	}
}

func TestReconcile_RefundVocabularyWinsOverOTP(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.smsFn = func(_ context.Context, _ string) (*otpclient.SMSData, error) {
		return &otpclient.SMSData{Status: "DIBATALKAN", OTP: "443211"}, nil
	}

	reconciled, outcome, err := f.svc.Reconcile(context.Background(), order)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if outcome != OutcomeRefunded {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if reconciled.Status() != orders.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", reconciled.Status())
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000", got)
	}
}

func TestReconcile_OrderGoneRefunds(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.smsFn = func(_ context.Context, _ string) (*otpclient.SMSData, error) {
		return nil, otpclient.ErrOrderGone
	}

	_, outcome, err := f.svc.Reconcile(context.Background(), order)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if outcome != OutcomeRefunded {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000", got)
	}
}

func TestReconcile_RefundAtMostOnce(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.smsFn = func(_ context.Context, _ string) (*otpclient.SMSData, error) {
		return &otpclient.SMSData{Status: "TIMEOUT"}, nil
	}

	refunded, outcome, err := f.svc.Reconcile(context.Background(), order)
	if err != nil || outcome != OutcomeRefunded {
		t.Fatalf("first pass: outcome=%s err=%v", outcome, err)
	}

	// A second pass over the now-cancelled order must not touch the
	// balance or the provider.
	smsCallsBefore := f.gateway.smsCalls

	_, outcome, err = f.svc.Reconcile(context.Background(), refunded)
	if err != nil {
		t.Fatalf("second pass error: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Fatalf("outcome = %s, want unchanged", outcome)
	}
	if f.gateway.smsCalls != smsCallsBefore {
		t.Fatalf("terminal order reached the provider")
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000 after double pass", got)
	}
}

func TestReconcile_Waiting(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	reconciled, outcome, err := f.svc.Reconcile(context.Background(), order)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if outcome != OutcomeWaiting {
		t.Fatalf("outcome = %s, want waiting", outcome)
	}
	if reconciled.Status() != orders.OrderStatusPending {
		t.Fatalf("status = %s, want pending", reconciled.Status())
	}
}

func TestReconcile_GatewayErrorKeepsWaiting(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.smsFn = func(_ context.Context, _ string) (*otpclient.SMSData, error) {
		return nil, errors.New("connection refused")
	}

	_, outcome, err := f.svc.Reconcile(context.Background(), order)
	if err == nil {
		t.Fatalf("expected transport error to surface")
	}
	if outcome != OutcomeWaiting {
		t.Fatalf("outcome = %s, want waiting", outcome)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("balance = %s, want 15000 untouched", got)
	}
}

func TestCancel_ProviderAccepts(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	cancelled, outcome, err := f.svc.Cancel(context.Background(), order)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if outcome != OutcomeRefunded {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if cancelled.Status() != orders.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status())
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance = %s, want 20000", got)
	}
}

func TestCancel_RefusedFallsBackToRecheck(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	// The provider refuses because an SMS already landed; the fallback
	// recheck picks the OTP up instead of refunding.
	f.gateway.cancelFn = func(_ context.Context, _ string) error {
		return &otpclient.ProviderError{Endpoint: "cancel", Message: "sms sudah masuk"}
	}
	f.gateway.smsFn = func(_ context.Context, _ string) (*otpclient.SMSData, error) {
		return &otpclient.SMSData{Status: "Otp Masuk", OTP: "881100"}, nil
	}

	reconciled, outcome, err := f.svc.Cancel(context.Background(), order)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", outcome)
	}
	if reconciled.OTPCode() != "881100" {
		t.Fatalf("otp = %q, want 881100", reconciled.OTPCode())
	}

	// Not refunded: the user got the code.
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("balance = %s, want 15000", got)
	}
}

func TestCancel_RefusedAndStillWaiting(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.cancelFn = func(_ context.Context, _ string) error {
		return &otpclient.ProviderError{Endpoint: "cancel", Message: "belum 5 menit"}
	}

	_, outcome, err := f.svc.Cancel(context.Background(), order)

	var rejErr *CancelRejectedError
	if !errors.As(err, &rejErr) {
		t.Fatalf("error = %v, want *CancelRejectedError", err)
	}
	if outcome != OutcomeWaiting {
		t.Fatalf("outcome = %s, want waiting", outcome)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("balance = %s, want 15000: no blind refund on refusal", got)
	}
}

func TestCancel_TransportErrorNoRefund(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	f.gateway.cancelFn = func(_ context.Context, _ string) error {
		return errors.New("connection reset")
	}

	_, outcome, err := f.svc.Cancel(context.Background(), order)
	if err == nil {
		t.Fatalf("expected transport error to surface")
	}
	if outcome != OutcomeWaiting {
		t.Fatalf("outcome = %s, want waiting", outcome)
	}
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("balance = %s, want 15000", got)
	}
}

func TestCancel_TerminalOrderUnchanged(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	refunded, err := f.store.RefundOrder(context.Background(), order.ID())
	if err != nil {
		t.Fatalf("RefundOrder: %v", err)
	}

	_, outcome, err := f.svc.Cancel(context.Background(), refunded)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Fatalf("outcome = %s, want unchanged", outcome)
	}
	if f.gateway.cancelCalls != 0 {
		t.Fatalf("terminal order reached the provider")
	}
}

func TestUserOrder_ForeignOrderHidden(t *testing.T) {
	f := newFixture(t, 20000)

	order, err := f.svc.Place(context.Background(), f.user.ID, f.product.ID)
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}

	if _, err := f.svc.UserOrder(context.Background(), f.user.ID, order.ID()); err != nil {
		t.Fatalf("owner lookup error: %v", err)
	}

	_, err = f.svc.UserOrder(context.Background(), "someone-else", order.ID())
	if !errors.Is(err, storage.ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}
