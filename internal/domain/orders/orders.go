//nolint:wrapcheck
package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderUserEmpty       = errors.New("order user id is empty")
	ErrOrderProviderIDEmpty = errors.New("order provider id is empty")
	ErrOrderNumberEmpty     = errors.New("order phone number is empty")
	ErrOrderServiceEmpty    = errors.New("order service name is empty")
)

type OrderStatus string

const (
	// OrderStatusPending is the only non-terminal status: the number is
	// rented and the OTP has not arrived yet.
	OrderStatusPending OrderStatus = "pending"

	// OrderStatusSuccess means an OTP was delivered. An order can sit in
	// success with a still-empty OTP code while the code is in flight;
	// such an order may yet be corrected to cancelled.
	OrderStatusSuccess OrderStatus = "success"

	// OrderStatusCancelled means the rental ended without an OTP and the
	// price was credited back.
	OrderStatusCancelled OrderStatus = "cancelled"

	// OrderStatusFailed marks a placement that never produced a rental.
	OrderStatusFailed OrderStatus = "failed"
)

func (s OrderStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition may change the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusFailed
}

// Order is one number rental. ProviderOrderID, Number, ServiceName and
// Price are frozen at placement and never change afterwards.
type Order struct {
	id              string
	userID          string
	providerOrderID string
	number          string
	serviceName     string
	price           decimal.Decimal
	status          OrderStatus
	otpCode         string
	createdAt       time.Time
}

func NewOrder(userID, providerOrderID, number, serviceName string, price decimal.Decimal) (*Order, error) {
	if userID == "" {
		return nil, ErrOrderUserEmpty
	}

	if providerOrderID == "" {
		return nil, ErrOrderProviderIDEmpty
	}

	if number == "" {
		return nil, ErrOrderNumberEmpty
	}

	if serviceName == "" {
		return nil, ErrOrderServiceEmpty
	}

	return &Order{
		id:              uuid.NewString(),
		userID:          userID,
		providerOrderID: providerOrderID,
		number:          number,
		serviceName:     serviceName,
		price:           price,
		status:          OrderStatusPending,
		createdAt:       time.Now(),
	}, nil
}

// RestoreOrder rebuilds an order from persisted state.
func RestoreOrder(id, userID, providerOrderID, number, serviceName string,
	price decimal.Decimal, status OrderStatus, otpCode string, createdAt time.Time,
) *Order {
	return &Order{
		id:              id,
		userID:          userID,
		providerOrderID: providerOrderID,
		number:          number,
		serviceName:     serviceName,
		price:           price,
		status:          status,
		otpCode:         otpCode,
		createdAt:       createdAt,
	}
}

func (o *Order) ID() string {
	return o.id
}

func (o *Order) UserID() string {
	return o.userID
}

func (o *Order) ProviderOrderID() string {
	return o.providerOrderID
}

func (o *Order) Number() string {
	return o.number
}

func (o *Order) ServiceName() string {
	return o.serviceName
}

func (o *Order) Price() decimal.Decimal {
	return o.price
}

func (o *Order) Status() OrderStatus {
	return o.status
}

func (o *Order) OTPCode() string {
	return o.otpCode
}

func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// AwaitingOTP reports whether the order should still be reconciled
// against the provider: pending, or marked success without a code yet.
func (o *Order) AwaitingOTP() bool {
	return o.status == OrderStatusPending ||
		(o.status == OrderStatusSuccess && o.otpCode == "")
}
