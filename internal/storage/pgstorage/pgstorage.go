package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/announcements"
	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/products"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/domain/vouchers"
	"github.com/ditznesia/otpstore/internal/storage"
	"github.com/ditznesia/otpstore/internal/storage/dbmodels"

	// Postgres driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	db *sql.DB
}

type Config struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
}

type Option func(s *Config)

func WithMaxOpenConns(conns int) Option {
	return func(c *Config) {
		c.maxOpenConns = conns
	}
}

func WithMaxIdleConns(conns int) Option {
	return func(c *Config) {
		c.maxIdleConns = conns
	}
}

func WithConnMaxIdleTime(idleTime time.Duration) Option {
	return func(c *Config) {
		c.connMaxIdleTime = idleTime
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(c *Config) {
		c.connMaxLifetime = lifetime
	}
}

func NewStorage(connStr string, opts ...Option) (*Storage, error) {
	cfg := &Config{
		maxOpenConns:    10,
		maxIdleConns:    5,
		connMaxIdleTime: 180 * time.Second,
		connMaxLifetime: 3600 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	return &Storage{
		db: db,
	}, nil
}

func (s *Storage) Bootstrap(ctx context.Context) error {
	provider, err := goose.NewProvider(
		goose.DialectPostgres,
		s.db,
		os.DirFS("internal/storage/pgstorage/migrations"),
	)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	_, err = provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("provider.Up: %w", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close: %w", err)
	}

	return nil
}

// isRetryableError checks if error is retryable.
func isRetryableError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return true
	}

	return false
}

// WithRetry retries operations in case of retryable errors.
func WithRetry(operation func() error) error {
	retryCount := 3

	var retryWaitTime time.Duration

	retryWaitInterval := 2

	var err error

	for i := 0; i < retryCount; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if isRetryableError(err) {
			retryWaitTime = time.Duration(i*retryWaitInterval+1) * time.Second // 1s, 3s, 5s, etc.

			time.Sleep(retryWaitTime)
		} else {
			return fmt.Errorf("%w", err)
		}
	}

	return fmt.Errorf("retry attempts exceeded: %w", err)
}

func (s *Storage) Ping(ctx context.Context) error {
	err := WithRetry(func() error {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CreateUser(ctx context.Context, usr *users.User) error {
	err := WithRetry(func() error {
		query := `INSERT INTO users (id, name, email, password_hash, balance, role) VALUES ($1, $2, $3, $4, $5, $6)`

		if _, err := s.db.ExecContext(ctx, query,
			usr.ID, usr.Name, usr.Email, usr.PasswordHash, usr.Balance, string(usr.Role),
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return storage.ErrUserAlreadyExists
			}

			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	dbUser := new(dbmodels.User)

	if err := row.Scan(
		&dbUser.ID, &dbUser.Name, &dbUser.Email, &dbUser.PasswordHash, &dbUser.Balance, &dbUser.Role,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return &users.User{
		ID:           dbUser.ID,
		Name:         dbUser.Name,
		Email:        dbUser.Email,
		PasswordHash: dbUser.PasswordHash,
		Balance:      dbUser.Balance,
		Role:         users.Role(dbUser.Role),
	}, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*users.User, error) {
	var usr *users.User

	err := WithRetry(func() error {
		query := `SELECT id, name, email, password_hash, balance, role FROM users WHERE id = $1`

		u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}

		usr = u

		return nil
	})
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var usr *users.User

	err := WithRetry(func() error {
		query := `SELECT id, name, email, password_hash, balance, role FROM users WHERE email = $1`

		u, err := scanUser(s.db.QueryRowContext(ctx, query, email))
		if err != nil {
			return err
		}

		usr = u

		return nil
	})
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*users.User, error) {
	bUsers := make([]*users.User, 0)

	err := WithRetry(func() error {
		query := `SELECT id, name, email, password_hash, balance, role FROM users ORDER BY email`

		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		bUsers = bUsers[:0]

		for rows.Next() {
			dbUser := new(dbmodels.User)

			if err := rows.Scan(
				&dbUser.ID, &dbUser.Name, &dbUser.Email, &dbUser.PasswordHash, &dbUser.Balance, &dbUser.Role,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			bUsers = append(bUsers, &users.User{
				ID:           dbUser.ID,
				Name:         dbUser.Name,
				Email:        dbUser.Email,
				PasswordHash: dbUser.PasswordHash,
				Balance:      dbUser.Balance,
				Role:         users.Role(dbUser.Role),
			})
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return bUsers, nil
}

// AdjustUserBalance moves funds with a server-evaluated delta. The guard
// in the WHERE clause makes a concurrent double-spend impossible: the
// arithmetic happens inside the row update, not in the caller.
func (s *Storage) AdjustUserBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := WithRetry(func() error {
		query := `UPDATE users SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0 RETURNING balance`

		row := s.db.QueryRowContext(ctx, query, delta, userID)

		if err := row.Scan(&balance); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// No row updated: either the user is unknown or the guard
				// rejected the delta.
				existsQuery := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

				var exists bool
				if err := s.db.QueryRowContext(ctx, existsQuery, userID).Scan(&exists); err != nil {
					return fmt.Errorf("db.QueryRowContext: %w", err)
				}

				if !exists {
					return storage.ErrUserNotFound
				}

				return storage.ErrBalanceNotEnough
			}

			return fmt.Errorf("row.Scan: %w", err)
		}

		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

func (s *Storage) CreateProduct(ctx context.Context, product *products.Product) error {
	err := WithRetry(func() error {
		query := `INSERT INTO products (id, platform, country, price, stock, icon, flag, country_id, service_code)` +
			` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		if _, err := s.db.ExecContext(ctx, query,
			product.ID, product.Platform, product.Country, product.Price, product.Stock,
			product.Icon, product.Flag, product.CountryID, product.ServiceCode,
		); err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func scanProduct(dbProduct *dbmodels.Product) *products.Product {
	return &products.Product{
		ID:          dbProduct.ID,
		Platform:    dbProduct.Platform,
		Country:     dbProduct.Country,
		Price:       dbProduct.Price,
		Stock:       dbProduct.Stock,
		Icon:        dbProduct.Icon,
		Flag:        dbProduct.Flag,
		CountryID:   dbProduct.CountryID,
		ServiceCode: dbProduct.ServiceCode,
	}
}

func (s *Storage) GetProduct(ctx context.Context, id string) (*products.Product, error) {
	dbProduct := new(dbmodels.Product)

	err := WithRetry(func() error {
		query := `SELECT id, platform, country, price, stock, icon, flag, country_id, service_code` +
			` FROM products WHERE id = $1`

		row := s.db.QueryRowContext(ctx, query, id)

		if err := row.Scan(
			&dbProduct.ID, &dbProduct.Platform, &dbProduct.Country, &dbProduct.Price, &dbProduct.Stock,
			&dbProduct.Icon, &dbProduct.Flag, &dbProduct.CountryID, &dbProduct.ServiceCode,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrProductNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return scanProduct(dbProduct), nil
}

func (s *Storage) ListProducts(ctx context.Context) ([]*products.Product, error) {
	bProducts := make([]*products.Product, 0)

	err := WithRetry(func() error {
		query := `SELECT id, platform, country, price, stock, icon, flag, country_id, service_code` +
			` FROM products ORDER BY platform, country`

		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		bProducts = bProducts[:0]

		for rows.Next() {
			dbProduct := new(dbmodels.Product)

			if err := rows.Scan(
				&dbProduct.ID, &dbProduct.Platform, &dbProduct.Country, &dbProduct.Price, &dbProduct.Stock,
				&dbProduct.Icon, &dbProduct.Flag, &dbProduct.CountryID, &dbProduct.ServiceCode,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			bProducts = append(bProducts, scanProduct(dbProduct))
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return bProducts, nil
}

func (s *Storage) UpdateProduct(ctx context.Context, product *products.Product) error {
	err := WithRetry(func() error {
		query := `UPDATE products SET platform = $2, country = $3, price = $4, stock = $5, icon = $6,` +
			` flag = $7, country_id = $8, service_code = $9 WHERE id = $1`

		res, err := s.db.ExecContext(ctx, query,
			product.ID, product.Platform, product.Country, product.Price, product.Stock,
			product.Icon, product.Flag, product.CountryID, product.ServiceCode,
		)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrProductNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) DeleteProduct(ctx context.Context, id string) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrProductNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CreateOrder(ctx context.Context, order *orders.Order) error {
	err := WithRetry(func() error {
		query := `INSERT INTO orders (id, user_id, provider_order_id, number, service_name, price, status, otp_code, created_at)` +
			` VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`

		if _, err := s.db.ExecContext(ctx, query,
			order.ID(), order.UserID(), order.ProviderOrderID(), order.Number(), order.ServiceName(),
			order.Price(), order.Status().String(), order.OTPCode(), order.CreatedAt(),
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return storage.ErrOrderAlreadyExists
			}

			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func restoreOrder(dbOrder *dbmodels.Order) *orders.Order {
	return orders.RestoreOrder(
		dbOrder.ID,
		dbOrder.UserID,
		dbOrder.ProviderOrderID,
		dbOrder.Number,
		dbOrder.ServiceName,
		dbOrder.Price,
		orders.OrderStatus(dbOrder.Status),
		dbOrder.OTPCode.String,
		dbOrder.CreatedAt,
	)
}

const orderColumns = `id, user_id, provider_order_id, number, service_name, price, status, otp_code, created_at`

func (s *Storage) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	dbOrder := new(dbmodels.Order)

	err := WithRetry(func() error {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

		row := s.db.QueryRowContext(ctx, query, id)

		if err := row.Scan(
			&dbOrder.ID, &dbOrder.UserID, &dbOrder.ProviderOrderID, &dbOrder.Number, &dbOrder.ServiceName,
			&dbOrder.Price, &dbOrder.Status, &dbOrder.OTPCode, &dbOrder.CreatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrOrderNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return restoreOrder(dbOrder), nil
}

func (s *Storage) queryOrders(ctx context.Context, query string, args ...any) ([]*orders.Order, error) {
	bOrders := make([]*orders.Order, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		bOrders = bOrders[:0]

		for rows.Next() {
			dbOrder := new(dbmodels.Order)

			if err := rows.Scan(
				&dbOrder.ID, &dbOrder.UserID, &dbOrder.ProviderOrderID, &dbOrder.Number, &dbOrder.ServiceName,
				&dbOrder.Price, &dbOrder.Status, &dbOrder.OTPCode, &dbOrder.CreatedAt,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			bOrders = append(bOrders, restoreOrder(dbOrder))
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return bOrders, nil
}

func (s *Storage) GetOrdersByUser(ctx context.Context, userID string) ([]*orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	return s.queryOrders(ctx, query, userID)
}

func (s *Storage) GetOrdersByStatus(ctx context.Context, statuses ...orders.OrderStatus) ([]*orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`

	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
	}

	query += ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		return s.queryOrders(ctx, query)
	}

	strStatuses := make([]string, len(statuses))
	for i, status := range statuses {
		strStatuses[i] = status.String()
	}

	return s.queryOrders(ctx, query, pq.Array(strStatuses))
}

// awaitingGuard limits transitions to orders still waiting for an OTP:
// pending, or success whose code never arrived.
const awaitingGuard = `(status = 'pending' OR (status = 'success' AND otp_code IS NULL))`

func (s *Storage) CompleteOrder(ctx context.Context, orderID, otpCode string) error {
	err := WithRetry(func() error {
		query := `UPDATE orders SET status = 'success', otp_code = $2 WHERE id = $1 AND ` + awaitingGuard

		res, err := s.db.ExecContext(ctx, query, orderID, otpCode)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return s.orderTransitionError(ctx, orderID)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// RefundOrder performs the terminal-status change and the balance credit
// inside one transaction with a conditional first step, so concurrent
// callers (poll loop, manual recheck, cancel) cannot double-credit.
func (s *Storage) RefundOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	var refunded *orders.Order

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		dbOrder := new(dbmodels.Order)

		query := `UPDATE orders SET status = 'cancelled', otp_code = NULL WHERE id = $1 AND ` + awaitingGuard +
			` RETURNING ` + orderColumns

		row := tx.QueryRowContext(ctx, query, orderID)

		if err := row.Scan(
			&dbOrder.ID, &dbOrder.UserID, &dbOrder.ProviderOrderID, &dbOrder.Number, &dbOrder.ServiceName,
			&dbOrder.Price, &dbOrder.Status, &dbOrder.OTPCode, &dbOrder.CreatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return s.orderTransitionError(ctx, orderID)
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = balance + $1 WHERE id = $2`,
			dbOrder.Price, dbOrder.UserID,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		refunded = restoreOrder(dbOrder)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return refunded, nil
}

func (s *Storage) orderTransitionError(ctx context.Context, orderID string) error {
	var exists bool

	query := `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	if err := s.db.QueryRowContext(ctx, query, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("db.QueryRowContext: %w", err)
	}

	if !exists {
		return storage.ErrOrderNotFound
	}

	return storage.ErrOrderNotTransitional
}

func (s *Storage) CreateVoucher(ctx context.Context, voucher *vouchers.Voucher) error {
	err := WithRetry(func() error {
		query := `INSERT INTO vouchers (id, code, amount, is_used) VALUES ($1, $2, $3, $4)`

		if _, err := s.db.ExecContext(ctx, query,
			voucher.ID, voucher.Code, voucher.Amount, voucher.IsUsed,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return storage.ErrVoucherAlreadyExists
			}

			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) ListVouchers(ctx context.Context) ([]*vouchers.Voucher, error) {
	bVouchers := make([]*vouchers.Voucher, 0)

	err := WithRetry(func() error {
		query := `SELECT id, code, amount, is_used FROM vouchers ORDER BY code`

		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		bVouchers = bVouchers[:0]

		for rows.Next() {
			dbVoucher := new(dbmodels.Voucher)

			if err := rows.Scan(&dbVoucher.ID, &dbVoucher.Code, &dbVoucher.Amount, &dbVoucher.IsUsed); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			bVouchers = append(bVouchers, &vouchers.Voucher{
				ID:     dbVoucher.ID,
				Code:   dbVoucher.Code,
				Amount: dbVoucher.Amount,
				IsUsed: dbVoucher.IsUsed,
			})
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return bVouchers, nil
}

func (s *Storage) DeleteVoucher(ctx context.Context, id string) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM vouchers WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrVoucherNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// RedeemVoucher flips the used flag with a conditional update before
// crediting, so the same code cannot credit two concurrent redeemers.
func (s *Storage) RedeemVoucher(ctx context.Context, code, userID string) (decimal.Decimal, error) {
	var amount decimal.Decimal

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		query := `UPDATE vouchers SET is_used = TRUE WHERE code = $1 AND is_used = FALSE RETURNING amount`

		row := tx.QueryRowContext(ctx, query, code)

		if err := row.Scan(&amount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				var exists bool

				existsQuery := `SELECT EXISTS (SELECT 1 FROM vouchers WHERE code = $1)`

				if err := tx.QueryRowContext(ctx, existsQuery, code).Scan(&exists); err != nil {
					return fmt.Errorf("tx.QueryRowContext: %w", err)
				}

				if !exists {
					return storage.ErrVoucherNotFound
				}

				return storage.ErrVoucherAlreadyUsed
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID)
		if err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrUserNotFound
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

func (s *Storage) CreateAnnouncement(ctx context.Context, ann *announcements.Announcement) error {
	err := WithRetry(func() error {
		query := `INSERT INTO announcements (id, title, content, kind, is_active, created_at)` +
			` VALUES ($1, $2, $3, $4, $5, $6)`

		if _, err := s.db.ExecContext(ctx, query,
			ann.ID, ann.Title, ann.Content, string(ann.Kind), ann.IsActive, ann.CreatedAt,
		); err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) ListAnnouncements(ctx context.Context, activeOnly bool) ([]*announcements.Announcement, error) {
	bAnns := make([]*announcements.Announcement, 0)

	err := WithRetry(func() error {
		query := `SELECT id, title, content, kind, is_active, created_at FROM announcements`

		if activeOnly {
			query += ` WHERE is_active`
		}

		query += ` ORDER BY created_at DESC`

		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		bAnns = bAnns[:0]

		for rows.Next() {
			dbAnn := new(dbmodels.Announcement)

			if err := rows.Scan(
				&dbAnn.ID, &dbAnn.Title, &dbAnn.Content, &dbAnn.Kind, &dbAnn.IsActive, &dbAnn.CreatedAt,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			bAnns = append(bAnns, &announcements.Announcement{
				ID:        dbAnn.ID,
				Title:     dbAnn.Title,
				Content:   dbAnn.Content,
				Kind:      announcements.Kind(dbAnn.Kind),
				IsActive:  dbAnn.IsActive,
				CreatedAt: dbAnn.CreatedAt,
			})
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return bAnns, nil
}

func (s *Storage) DeleteAnnouncement(ctx context.Context, id string) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrAnnouncementNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}
