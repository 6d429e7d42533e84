package poller

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/logger"
	"github.com/ditznesia/otpstore/internal/orderflow"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/storage"
	"github.com/ditznesia/otpstore/internal/storage/inmemory"
)

func testLogger() *slog.Logger {
	return logger.NewLogger(logger.WithOutput(io.Discard))
}

type stubGateway struct {
	smsByOrder map[string]*otpclient.SMSData
}

func (g *stubGateway) PlaceOrder(_ context.Context, _, _ string) (*otpclient.PlacedOrder, error) {
	return &otpclient.PlacedOrder{OrderID: "prov-1", Number: "628123456789"}, nil
}

func (g *stubGateway) GetSMS(_ context.Context, providerOrderID string) (*otpclient.SMSData, error) {
	if sms, ok := g.smsByOrder[providerOrderID]; ok {
		return sms, nil
	}

	return &otpclient.SMSData{Status: "Ready"}, nil
}

func (g *stubGateway) CancelOrder(_ context.Context, _ string) error {
	return nil
}

func TestProcess(t *testing.T) {
	store := inmemory.NewStorage()

	usr, err := users.NewUser("Budi", "budi@example.com", "password123")
	if err != nil {
		t.Fatalf("users.NewUser: %v", err)
	}

	if err := store.CreateUser(context.Background(), usr); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	seed := func(providerID string) *orders.Order {
		order, err := orders.NewOrder(usr.ID, providerID, "628123456789", "WhatsApp Indonesia", decimal.NewFromInt(5000))
		if err != nil {
			t.Fatalf("orders.NewOrder: %v", err)
		}

		if err := store.CreateOrder(context.Background(), order); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}

		return order
	}

	delivered := seed("prov-delivered")
	timedOut := seed("prov-timeout")
	waiting := seed("prov-waiting")

	gateway := &stubGateway{smsByOrder: map[string]*otpclient.SMSData{
		"prov-delivered": {Status: "Otp Masuk", OTP: "443211"},
		"prov-timeout":   {Status: "TIMEOUT"},
	}}

	flow := orderflow.New(storage.NewStorage(store), gateway)

	poller := New(store, flow, WithPoolSize(3), WithLogger(testLogger()))

	if err := poller.Process(context.Background()); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	check := func(orderID string, want orders.OrderStatus) {
		t.Helper()

		order, err := store.GetOrder(context.Background(), orderID)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}

		if order.Status() != want {
			t.Fatalf("order %s status = %s, want %s", orderID, order.Status(), want)
		}
	}

	check(delivered.ID(), orders.OrderStatusSuccess)
	check(timedOut.ID(), orders.OrderStatusCancelled)
	check(waiting.ID(), orders.OrderStatusPending)

	// The one timed-out rental was credited back.
	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("balance = %s, want 5000", fresh.Balance)
	}
}

func TestProcess_NothingOpen(t *testing.T) {
	store := inmemory.NewStorage()
	flow := orderflow.New(storage.NewStorage(store), &stubGateway{})

	poller := New(store, flow, WithLogger(testLogger()))

	if err := poller.Process(context.Background()); err != nil {
		t.Fatalf("Process error: %v", err)
	}
}
