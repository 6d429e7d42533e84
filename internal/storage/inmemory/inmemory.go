package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/announcements"
	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/products"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/domain/vouchers"
	"github.com/ditznesia/otpstore/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

type UserStore struct {
	users map[string]*users.User
	mu    sync.Mutex
}

type ProductStore struct {
	products map[string]*products.Product
	mu       sync.Mutex
}

type OrderStore struct {
	orders map[string]*orders.Order
	mu     sync.Mutex
}

type VoucherStore struct {
	vouchers map[string]*vouchers.Voucher
	mu       sync.Mutex
}

type AnnouncementStore struct {
	announcements map[string]*announcements.Announcement
	mu            sync.Mutex
}

type Storage struct {
	UserStore         UserStore
	ProductStore      ProductStore
	OrderStore        OrderStore
	VoucherStore      VoucherStore
	AnnouncementStore AnnouncementStore
}

func NewStorage() *Storage {
	return &Storage{
		UserStore: UserStore{
			users: make(map[string]*users.User),
		},
		ProductStore: ProductStore{
			products: make(map[string]*products.Product),
		},
		OrderStore: OrderStore{
			orders: make(map[string]*orders.Order),
		},
		VoucherStore: VoucherStore{
			vouchers: make(map[string]*vouchers.Voucher),
		},
		AnnouncementStore: AnnouncementStore{
			announcements: make(map[string]*announcements.Announcement),
		},
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) CreateUser(_ context.Context, usr *users.User) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	for _, u := range s.UserStore.users {
		if u.Email == usr.Email {
			return storage.ErrUserAlreadyExists
		}
	}

	cp := *usr
	s.UserStore.users[usr.ID] = &cp

	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (*users.User, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	usr, ok := s.UserStore.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	cp := *usr

	return &cp, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	for _, usr := range s.UserStore.users {
		if usr.Email == email {
			cp := *usr

			return &cp, nil
		}
	}

	return nil, storage.ErrUserNotFound
}

func (s *Storage) ListUsers(_ context.Context) ([]*users.User, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	list := make([]*users.User, 0, len(s.UserStore.users))
	for _, usr := range s.UserStore.users {
		cp := *usr
		list = append(list, &cp)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })

	return list, nil
}

func (s *Storage) AdjustUserBalance(_ context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	usr, ok := s.UserStore.users[userID]
	if !ok {
		return decimal.Zero, storage.ErrUserNotFound
	}

	next := usr.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, storage.ErrBalanceNotEnough
	}

	usr.Balance = next

	return next, nil
}

func (s *Storage) CreateProduct(_ context.Context, product *products.Product) error {
	s.ProductStore.mu.Lock()
	defer s.ProductStore.mu.Unlock()

	cp := *product
	s.ProductStore.products[product.ID] = &cp

	return nil
}

func (s *Storage) GetProduct(_ context.Context, id string) (*products.Product, error) {
	s.ProductStore.mu.Lock()
	defer s.ProductStore.mu.Unlock()

	product, ok := s.ProductStore.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}

	cp := *product

	return &cp, nil
}

func (s *Storage) ListProducts(_ context.Context) ([]*products.Product, error) {
	s.ProductStore.mu.Lock()
	defer s.ProductStore.mu.Unlock()

	list := make([]*products.Product, 0, len(s.ProductStore.products))
	for _, product := range s.ProductStore.products {
		cp := *product
		list = append(list, &cp)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Platform != list[j].Platform {
			return list[i].Platform < list[j].Platform
		}

		return list[i].Country < list[j].Country
	})

	return list, nil
}

func (s *Storage) UpdateProduct(_ context.Context, product *products.Product) error {
	s.ProductStore.mu.Lock()
	defer s.ProductStore.mu.Unlock()

	if _, ok := s.ProductStore.products[product.ID]; !ok {
		return storage.ErrProductNotFound
	}

	cp := *product
	s.ProductStore.products[product.ID] = &cp

	return nil
}

func (s *Storage) DeleteProduct(_ context.Context, id string) error {
	s.ProductStore.mu.Lock()
	defer s.ProductStore.mu.Unlock()

	if _, ok := s.ProductStore.products[id]; !ok {
		return storage.ErrProductNotFound
	}

	delete(s.ProductStore.products, id)

	return nil
}

func (s *Storage) CreateOrder(_ context.Context, order *orders.Order) error {
	s.OrderStore.mu.Lock()
	defer s.OrderStore.mu.Unlock()

	if _, ok := s.OrderStore.orders[order.ID()]; ok {
		return storage.ErrOrderAlreadyExists
	}

	s.OrderStore.orders[order.ID()] = order

	return nil
}

func (s *Storage) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.OrderStore.mu.Lock()
	defer s.OrderStore.mu.Unlock()

	order, ok := s.OrderStore.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}

	return order, nil
}

func (s *Storage) GetOrdersByUser(_ context.Context, userID string) ([]*orders.Order, error) {
	s.OrderStore.mu.Lock()
	defer s.OrderStore.mu.Unlock()

	list := make([]*orders.Order, 0)
	for _, order := range s.OrderStore.orders {
		if order.UserID() == userID {
			list = append(list, order)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt().After(list[j].CreatedAt()) })

	return list, nil
}

func (s *Storage) GetOrdersByStatus(_ context.Context, statuses ...orders.OrderStatus) ([]*orders.Order, error) {
	s.OrderStore.mu.Lock()
	defer s.OrderStore.mu.Unlock()

	wanted := make(map[orders.OrderStatus]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	list := make([]*orders.Order, 0)
	for _, order := range s.OrderStore.orders {
		if _, ok := wanted[order.Status()]; ok || len(statuses) == 0 {
			list = append(list, order)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt().After(list[j].CreatedAt()) })

	return list, nil
}

func (s *Storage) CompleteOrder(_ context.Context, orderID, otpCode string) error {
	s.OrderStore.mu.Lock()
	defer s.OrderStore.mu.Unlock()

	order, ok := s.OrderStore.orders[orderID]
	if !ok {
		return storage.ErrOrderNotFound
	}

	if !order.AwaitingOTP() {
		return storage.ErrOrderNotTransitional
	}

	s.OrderStore.orders[orderID] = orders.RestoreOrder(
		order.ID(), order.UserID(), order.ProviderOrderID(), order.Number(),
		order.ServiceName(), order.Price(), orders.OrderStatusSuccess, otpCode, order.CreatedAt(),
	)

	return nil
}

func (s *Storage) RefundOrder(_ context.Context, orderID string) (*orders.Order, error) {
	s.OrderStore.mu.Lock()
	defer s.OrderStore.mu.Unlock()

	order, ok := s.OrderStore.orders[orderID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}

	// Refundable while pending or while success still waits on a code.
	// A completed or already-cancelled order must never be credited
	// again.
	if !order.AwaitingOTP() {
		return nil, storage.ErrOrderNotTransitional
	}

	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	usr, ok := s.UserStore.users[order.UserID()]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	cancelled := orders.RestoreOrder(
		order.ID(), order.UserID(), order.ProviderOrderID(), order.Number(),
		order.ServiceName(), order.Price(), orders.OrderStatusCancelled, "", order.CreatedAt(),
	)

	s.OrderStore.orders[orderID] = cancelled
	usr.Balance = usr.Balance.Add(order.Price())

	return cancelled, nil
}

func (s *Storage) CreateVoucher(_ context.Context, voucher *vouchers.Voucher) error {
	s.VoucherStore.mu.Lock()
	defer s.VoucherStore.mu.Unlock()

	for _, v := range s.VoucherStore.vouchers {
		if v.Code == voucher.Code {
			return storage.ErrVoucherAlreadyExists
		}
	}

	cp := *voucher
	s.VoucherStore.vouchers[voucher.ID] = &cp

	return nil
}

func (s *Storage) ListVouchers(_ context.Context) ([]*vouchers.Voucher, error) {
	s.VoucherStore.mu.Lock()
	defer s.VoucherStore.mu.Unlock()

	list := make([]*vouchers.Voucher, 0, len(s.VoucherStore.vouchers))
	for _, voucher := range s.VoucherStore.vouchers {
		cp := *voucher
		list = append(list, &cp)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })

	return list, nil
}

func (s *Storage) DeleteVoucher(_ context.Context, id string) error {
	s.VoucherStore.mu.Lock()
	defer s.VoucherStore.mu.Unlock()

	if _, ok := s.VoucherStore.vouchers[id]; !ok {
		return storage.ErrVoucherNotFound
	}

	delete(s.VoucherStore.vouchers, id)

	return nil
}

func (s *Storage) RedeemVoucher(_ context.Context, code, userID string) (decimal.Decimal, error) {
	s.VoucherStore.mu.Lock()
	defer s.VoucherStore.mu.Unlock()

	var voucher *vouchers.Voucher

	for _, v := range s.VoucherStore.vouchers {
		if v.Code == code {
			voucher = v

			break
		}
	}

	if voucher == nil {
		return decimal.Zero, storage.ErrVoucherNotFound
	}

	if voucher.IsUsed {
		return decimal.Zero, storage.ErrVoucherAlreadyUsed
	}

	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	usr, ok := s.UserStore.users[userID]
	if !ok {
		return decimal.Zero, storage.ErrUserNotFound
	}

	voucher.IsUsed = true
	usr.Balance = usr.Balance.Add(voucher.Amount)

	return voucher.Amount, nil
}

func (s *Storage) CreateAnnouncement(_ context.Context, ann *announcements.Announcement) error {
	s.AnnouncementStore.mu.Lock()
	defer s.AnnouncementStore.mu.Unlock()

	cp := *ann
	s.AnnouncementStore.announcements[ann.ID] = &cp

	return nil
}

func (s *Storage) ListAnnouncements(_ context.Context, activeOnly bool) ([]*announcements.Announcement, error) {
	s.AnnouncementStore.mu.Lock()
	defer s.AnnouncementStore.mu.Unlock()

	list := make([]*announcements.Announcement, 0, len(s.AnnouncementStore.announcements))
	for _, ann := range s.AnnouncementStore.announcements {
		if activeOnly && !ann.IsActive {
			continue
		}

		cp := *ann
		list = append(list, &cp)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	return list, nil
}

func (s *Storage) DeleteAnnouncement(_ context.Context, id string) error {
	s.AnnouncementStore.mu.Lock()
	defer s.AnnouncementStore.mu.Unlock()

	if _, ok := s.AnnouncementStore.announcements[id]; !ok {
		return storage.ErrAnnouncementNotFound
	}

	delete(s.AnnouncementStore.announcements, id)

	return nil
}
