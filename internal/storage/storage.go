package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/announcements"
	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/products"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/domain/vouchers"
)

var (
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrBalanceNotEnough     = errors.New("user balance not enough")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderAlreadyExists   = errors.New("order already exists")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotTransitional = errors.New("order already reached a terminal status")
	ErrVoucherAlreadyExists = errors.New("voucher already exists")
	ErrVoucherNotFound      = errors.New("voucher not found")
	ErrVoucherAlreadyUsed   = errors.New("voucher already used")
	ErrAnnouncementNotFound = errors.New("announcement not found")
)

type UserStorage interface {
	CreateUser(ctx context.Context, usr *users.User) error
	GetUser(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	ListUsers(ctx context.Context) ([]*users.User, error)

	// AdjustUserBalance applies a server-evaluated delta to the user's
	// balance and returns the resulting value. A delta that would drive
	// the balance negative fails with ErrBalanceNotEnough and moves no
	// funds. This is the sole mutation point for money.
	AdjustUserBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error)
}

type ProductStorage interface {
	CreateProduct(ctx context.Context, product *products.Product) error
	GetProduct(ctx context.Context, id string) (*products.Product, error)
	ListProducts(ctx context.Context) ([]*products.Product, error)
	UpdateProduct(ctx context.Context, product *products.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type OrderStorage interface {
	CreateOrder(ctx context.Context, order *orders.Order) error
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]*orders.Order, error)
	GetOrdersByStatus(ctx context.Context, statuses ...orders.OrderStatus) ([]*orders.Order, error)

	// CompleteOrder records a delivered OTP. It succeeds only while the
	// order is still awaiting one (pending, or success with an empty
	// code); otherwise ErrOrderNotTransitional.
	CompleteOrder(ctx context.Context, orderID, otpCode string) error

	// RefundOrder marks the order cancelled and credits its frozen price
	// back to the owner in one guarded operation. It succeeds at most
	// once: a terminal order yields ErrOrderNotTransitional and no
	// credit. Returns the refreshed order.
	RefundOrder(ctx context.Context, orderID string) (*orders.Order, error)
}

type VoucherStorage interface {
	CreateVoucher(ctx context.Context, voucher *vouchers.Voucher) error
	ListVouchers(ctx context.Context) ([]*vouchers.Voucher, error)
	DeleteVoucher(ctx context.Context, id string) error

	// RedeemVoucher consumes an unused voucher and credits its amount to
	// the user in one guarded operation; a second redemption of the same
	// code fails with ErrVoucherAlreadyUsed. Returns the credited amount.
	RedeemVoucher(ctx context.Context, code, userID string) (decimal.Decimal, error)
}

type AnnouncementStorage interface {
	CreateAnnouncement(ctx context.Context, ann *announcements.Announcement) error
	ListAnnouncements(ctx context.Context, activeOnly bool) ([]*announcements.Announcement, error)
	DeleteAnnouncement(ctx context.Context, id string) error
}

type Storage interface {
	UserStorage
	ProductStorage
	OrderStorage
	VoucherStorage
	AnnouncementStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}
