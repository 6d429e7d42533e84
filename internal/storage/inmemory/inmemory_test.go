package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/domain/vouchers"
	"github.com/ditznesia/otpstore/internal/storage"
)

func seedUser(t *testing.T, store *Storage, balance int64) *users.User {
	t.Helper()

	usr, err := users.NewUser("Budi", "budi@example.com", "password123")
	if err != nil {
		t.Fatalf("users.NewUser: %v", err)
	}

	usr.Balance = decimal.NewFromInt(balance)

	if err := store.CreateUser(context.Background(), usr); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	return usr
}

func seedPendingOrder(t *testing.T, store *Storage, userID string, price int64) *orders.Order {
	t.Helper()

	order, err := orders.NewOrder(userID, "prov-1", "628123456789", "WhatsApp Indonesia", decimal.NewFromInt(price))
	if err != nil {
		t.Fatalf("orders.NewOrder: %v", err)
	}

	if err := store.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	return order
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := NewStorage()
	seedUser(t, store, 0)

	dup, err := users.NewUser("Budi Lagi", "budi@example.com", "password456")
	if err != nil {
		t.Fatalf("users.NewUser: %v", err)
	}

	if err := store.CreateUser(context.Background(), dup); !errors.Is(err, storage.ErrUserAlreadyExists) {
		t.Fatalf("error = %v, want ErrUserAlreadyExists", err)
	}
}

func TestAdjustUserBalance(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 10000)

	got, err := store.AdjustUserBalance(context.Background(), usr.ID, decimal.NewFromInt(-4000))
	if err != nil {
		t.Fatalf("AdjustUserBalance: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("balance = %s, want 6000", got)
	}

	// Overdrawing is refused and leaves the balance untouched.
	_, err = store.AdjustUserBalance(context.Background(), usr.ID, decimal.NewFromInt(-6001))
	if !errors.Is(err, storage.ErrBalanceNotEnough) {
		t.Fatalf("error = %v, want ErrBalanceNotEnough", err)
	}

	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("balance = %s, want 6000 after refused debit", fresh.Balance)
	}
}

func TestAdjustUserBalance_ConcurrentDebits(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 5000)

	// Only one of the racing full-balance debits may win.
	const racers = 10

	var wg sync.WaitGroup

	okCount := 0

	var mu sync.Mutex

	for i := 0; i < racers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := store.AdjustUserBalance(context.Background(), usr.ID, decimal.NewFromInt(-5000)); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if okCount != 1 {
		t.Fatalf("winning debits = %d, want 1", okCount)
	}

	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", fresh.Balance)
	}
}

func TestCompleteOrder(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 0)
	order := seedPendingOrder(t, store, usr.ID, 5000)

	if err := store.CompleteOrder(context.Background(), order.ID(), "443211"); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	fresh, err := store.GetOrder(context.Background(), order.ID())
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if fresh.Status() != orders.OrderStatusSuccess || fresh.OTPCode() != "443211" {
		t.Fatalf("unexpected order: %s %q", fresh.Status(), fresh.OTPCode())
	}

	// A completed order is a sink for further completes.
	err = store.CompleteOrder(context.Background(), order.ID(), "999999")
	if !errors.Is(err, storage.ErrOrderNotTransitional) {
		t.Fatalf("error = %v, want ErrOrderNotTransitional", err)
	}
}

func TestRefundOrder_AtMostOnce(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 0)
	order := seedPendingOrder(t, store, usr.ID, 5000)

	refunded, err := store.RefundOrder(context.Background(), order.ID())
	if err != nil {
		t.Fatalf("RefundOrder: %v", err)
	}
	if refunded.Status() != orders.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", refunded.Status())
	}

	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("balance = %s, want 5000", fresh.Balance)
	}

	_, err = store.RefundOrder(context.Background(), order.ID())
	if !errors.Is(err, storage.ErrOrderNotTransitional) {
		t.Fatalf("error = %v, want ErrOrderNotTransitional", err)
	}

	fresh, err = store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("balance = %s after second refund, want 5000", fresh.Balance)
	}
}

func TestRefundOrder_CompletedOrderRefused(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 0)
	order := seedPendingOrder(t, store, usr.ID, 5000)

	if err := store.CompleteOrder(context.Background(), order.ID(), "443211"); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	_, err := store.RefundOrder(context.Background(), order.ID())
	if !errors.Is(err, storage.ErrOrderNotTransitional) {
		t.Fatalf("error = %v, want ErrOrderNotTransitional", err)
	}

	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0: delivered order must not refund", fresh.Balance)
	}
}

func TestRefundOrder_SuccessWithoutCodeStillRefundable(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 0)
	order := seedPendingOrder(t, store, usr.ID, 5000)

	// Success with an empty code is still awaiting the OTP and may be
	// corrected to cancelled.
	store.OrderStore.orders[order.ID()] = orders.RestoreOrder(
		order.ID(), order.UserID(), order.ProviderOrderID(), order.Number(),
		order.ServiceName(), order.Price(), orders.OrderStatusSuccess, "", order.CreatedAt(),
	)

	refunded, err := store.RefundOrder(context.Background(), order.ID())
	if err != nil {
		t.Fatalf("RefundOrder: %v", err)
	}
	if refunded.Status() != orders.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", refunded.Status())
	}
}

func TestRedeemVoucher(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 1000)

	voucher, err := vouchers.NewVoucher("WELCOME50", decimal.NewFromInt(50000))
	if err != nil {
		t.Fatalf("vouchers.NewVoucher: %v", err)
	}

	if err := store.CreateVoucher(context.Background(), voucher); err != nil {
		t.Fatalf("CreateVoucher: %v", err)
	}

	amount, err := store.RedeemVoucher(context.Background(), "WELCOME50", usr.ID)
	if err != nil {
		t.Fatalf("RedeemVoucher: %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("amount = %s, want 50000", amount)
	}

	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.Equal(decimal.NewFromInt(51000)) {
		t.Fatalf("balance = %s, want 51000", fresh.Balance)
	}

	_, err = store.RedeemVoucher(context.Background(), "WELCOME50", usr.ID)
	if !errors.Is(err, storage.ErrVoucherAlreadyUsed) {
		t.Fatalf("error = %v, want ErrVoucherAlreadyUsed", err)
	}

	_, err = store.RedeemVoucher(context.Background(), "NOPE", usr.ID)
	if !errors.Is(err, storage.ErrVoucherNotFound) {
		t.Fatalf("error = %v, want ErrVoucherNotFound", err)
	}
}

func TestRedeemVoucher_ConcurrentSingleCredit(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 0)

	voucher, err := vouchers.NewVoucher("RACE100", decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("vouchers.NewVoucher: %v", err)
	}

	if err := store.CreateVoucher(context.Background(), voucher); err != nil {
		t.Fatalf("CreateVoucher: %v", err)
	}

	const racers = 10

	var wg sync.WaitGroup

	okCount := 0

	var mu sync.Mutex

	for i := 0; i < racers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := store.RedeemVoucher(context.Background(), "RACE100", usr.ID); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if okCount != 1 {
		t.Fatalf("winning redemptions = %d, want 1", okCount)
	}

	fresh, err := store.GetUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !fresh.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("balance = %s, want a single 10000 credit", fresh.Balance)
	}
}

func TestGetOrdersByStatus(t *testing.T) {
	store := NewStorage()
	usr := seedUser(t, store, 0)

	pending := seedPendingOrder(t, store, usr.ID, 5000)

	done, err := orders.NewOrder(usr.ID, "prov-2", "628987654321", "Telegram Indonesia", decimal.NewFromInt(3000))
	if err != nil {
		t.Fatalf("orders.NewOrder: %v", err)
	}

	if err := store.CreateOrder(context.Background(), done); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if err := store.CompleteOrder(context.Background(), done.ID(), "112233"); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	list, err := store.GetOrdersByStatus(context.Background(), orders.OrderStatusPending)
	if err != nil {
		t.Fatalf("GetOrdersByStatus: %v", err)
	}
	if len(list) != 1 || list[0].ID() != pending.ID() {
		t.Fatalf("unexpected pending list: %d entries", len(list))
	}

	list, err = store.GetOrdersByStatus(context.Background(), orders.OrderStatusPending, orders.OrderStatusSuccess)
	if err != nil {
		t.Fatalf("GetOrdersByStatus: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d entries, want 2", len(list))
	}
}
