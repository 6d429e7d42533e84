package dbmodels

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	Role         string
}

type Product struct {
	ID          string
	Platform    string
	Country     string
	Price       decimal.Decimal
	Stock       int
	Icon        string
	Flag        string
	CountryID   string
	ServiceCode string
}

type Order struct {
	ID              string
	UserID          string
	ProviderOrderID string
	Number          string
	ServiceName     string
	Price           decimal.Decimal
	Status          string
	OTPCode         sql.NullString
	CreatedAt       time.Time
}

type Voucher struct {
	ID     string
	Code   string
	Amount decimal.Decimal
	IsUsed bool
}

type Announcement struct {
	ID        string
	Title     string
	Content   string
	Kind      string
	IsActive  bool
	CreatedAt time.Time
}
