package models

import "github.com/shopspring/decimal"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

type ProductResponse struct {
	ID       string  `json:"id"`
	Platform string  `json:"platform"`
	Country  string  `json:"country"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Icon     string  `json:"icon"`
	Flag     string  `json:"flag"`
}

type ProductRequest struct {
	Platform    string          `json:"platform"`
	Country     string          `json:"country"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CountryID   string          `json:"country_id"`
	ServiceCode string          `json:"service_code"`
}

type PlaceOrderRequest struct {
	ProductID string `json:"product_id"`
}

type OrderResponse struct {
	ID          string  `json:"id"`
	ServiceName string  `json:"service_name"`
	Number      string  `json:"number"`
	Price       float64 `json:"price"`
	Status      string  `json:"status"`
	OTPCode     string  `json:"otp_code,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type OrderActionResponse struct {
	Order   OrderResponse `json:"order"`
	Outcome string        `json:"outcome"`
	Message string        `json:"message,omitempty"`
}

type VoucherRedeemRequest struct {
	Code string `json:"code"`
}

type VoucherRedeemResponse struct {
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

type VoucherRequest struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

type VoucherResponse struct {
	ID     string  `json:"id"`
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
	IsUsed bool    `json:"is_used"`
}

type AnnouncementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

type AnnouncementResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Kind      string `json:"kind"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type UserResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Balance float64 `json:"balance"`
	Role    string  `json:"role"`
}

type AdjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type SyncRequest struct {
	CountryID string          `json:"country_id"`
	Markup    decimal.Decimal `json:"markup"`
}

type SyncResponse struct {
	Created int `json:"created"`
}

type ProviderBalanceResponse struct {
	Saldo float64 `json:"saldo"`
}
