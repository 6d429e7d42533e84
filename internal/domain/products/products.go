package products

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductPlatformEmpty = errors.New("product platform is empty")
	ErrProductCountryEmpty  = errors.New("product country is empty")
	ErrProductPriceInvalid  = errors.New("product price must not be negative")
	ErrProductNoProviderSKU = errors.New("product provider country id or service code is empty")
)

// Product is one purchasable platform/country combination. CountryID and
// ServiceCode identify the upstream SKU an order is placed against.
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

func NewProduct(platform, country string, price decimal.Decimal, stock int, countryID, serviceCode string) (*Product, error) {
	if platform == "" {
		return nil, ErrProductPlatformEmpty
	}

	if country == "" {
		return nil, ErrProductCountryEmpty
	}

	if price.IsNegative() {
		return nil, ErrProductPriceInvalid
	}

	if countryID == "" || serviceCode == "" {
		return nil, ErrProductNoProviderSKU
	}

	return &Product{
		ID:          uuid.NewString(),
		Platform:    platform,
		Country:     country,
		Price:       price,
		Stock:       stock,
		Icon:        IconForPlatform(platform),
		Flag:        FlagForCountry(country),
		CountryID:   countryID,
		ServiceCode: serviceCode,
	}, nil
}

// ServiceLabel is the display string frozen onto an order at purchase time.
func (p *Product) ServiceLabel() string {
	return p.Platform + " " + p.Country
}

// InStock gates purchases. Stock is informational and never decremented
// by a purchase; zero means the upstream reported the SKU as empty.
func (p *Product) InStock() bool {
	return p.Stock != 0
}

func IconForPlatform(platform string) string {
	switch l := strings.ToLower(platform); {
	case strings.Contains(l, "whats"):
		return "whatsapp"
	case strings.Contains(l, "tele"):
		return "telegram"
	case strings.Contains(l, "goog"):
		return "google"
	case strings.Contains(l, "face"):
		return "facebook"
	case strings.Contains(l, "tikt"):
		return "tiktok"
	default:
		return "other"
	}
}

func FlagForCountry(country string) string {
	switch l := strings.ToLower(country); {
	case strings.Contains(l, "indonesia"):
		return "\U0001F1EE\U0001F1E9"
	case strings.Contains(l, "malaysia"):
		return "\U0001F1F2\U0001F1FE"
	case strings.Contains(l, "usa"), strings.Contains(l, "united states"):
		return "\U0001F1FA\U0001F1F8"
	case strings.Contains(l, "russia"):
		return "\U0001F1F7\U0001F1FA"
	case strings.Contains(l, "vietnam"):
		return "\U0001F1FB\U0001F1F3"
	case strings.Contains(l, "brazil"):
		return "\U0001F1E7\U0001F1F7"
	case strings.Contains(l, "philippines"), strings.Contains(l, "phillipines"):
		return "\U0001F1F5\U0001F1ED"
	default:
		return "\U0001F3F3️"
	}
}
