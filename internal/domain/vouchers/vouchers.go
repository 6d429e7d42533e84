//nolint:wrapcheck
package vouchers

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrVoucherCodeEmpty     = errors.New("voucher code is empty")
	ErrVoucherAmountInvalid = errors.New("voucher amount must be positive")
)

// Voucher is a single-use code redeemable for a fixed balance credit.
type Voucher struct {
	ID     string
	Code   string
	Amount decimal.Decimal
	IsUsed bool
}

func NewVoucher(code string, amount decimal.Decimal) (*Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrVoucherCodeEmpty
	}

	if !amount.IsPositive() {
		return nil, ErrVoucherAmountInvalid
	}

	return &Voucher{
		ID:     uuid.NewString(),
		Code:   code,
		Amount: amount,
	}, nil
}

// NormalizeCode strips whitespace and upcases, matching how codes are
// entered in the member area.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
