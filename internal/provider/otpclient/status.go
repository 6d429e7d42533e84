package otpclient

import "strings"

// Resolution is the single source of truth for what an upstream SMS
// status means for an order. Every call site (live poll, manual
// recheck, background daemon) routes through Classify so the refund
// vocabulary is defined exactly once.
type Resolution int

const (
	// ResolutionWaiting: no OTP yet and no terminal status; keep polling.
	ResolutionWaiting Resolution = iota

	// ResolutionSucceeded: an OTP arrived and the status is not in the
	// refund vocabulary.
	ResolutionSucceeded

	// ResolutionRefundable: the provider ended the rental without
	// delivery; the frozen price must be credited back exactly once.
	ResolutionRefundable
)

func (r Resolution) String() string {
	switch r {
	case ResolutionSucceeded:
		return "succeeded"
	case ResolutionRefundable:
		return "refundable"
	default:
		return "waiting"
	}
}

// refundStatuses is the provider's cancel/failure vocabulary, including
// the Indonesian variants it emits.
var refundStatuses = map[string]struct{}{
	"CANCELED":   {},
	"CANCELLED":  {},
	"CANCEL":     {},
	"FAILURE":    {},
	"REFUND":     {},
	"DIBATALKAN": {},
	"GAGAL":      {},
	"TIMEOUT":    {},
}

// Classify maps a provider-reported status and OTP presence onto a
// resolution. A refund status wins even when an OTP string rides along
// in the same response.
func Classify(status string, hasOTP bool) Resolution {
	if _, refund := refundStatuses[strings.ToUpper(strings.TrimSpace(status))]; refund {
		return ResolutionRefundable
	}

	if hasOTP {
		return ResolutionSucceeded
	}

	return ResolutionWaiting
}
