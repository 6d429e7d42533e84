package otpclient

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status string
		hasOTP bool
		want   Resolution
	}{
		{name: "waiting without otp", status: "Ready", hasOTP: false, want: ResolutionWaiting},
		{name: "otp arrived", status: "Otp Masuk", hasOTP: true, want: ResolutionSucceeded},
		{name: "canceled", status: "CANCELED", hasOTP: false, want: ResolutionRefundable},
		{name: "cancelled british", status: "CANCELLED", hasOTP: false, want: ResolutionRefundable},
		{name: "cancel short", status: "cancel", hasOTP: false, want: ResolutionRefundable},
		{name: "failure", status: "FAILURE", hasOTP: false, want: ResolutionRefundable},
		{name: "refund", status: "REFUND", hasOTP: false, want: ResolutionRefundable},
		{name: "dibatalkan", status: "DIBATALKAN", hasOTP: false, want: ResolutionRefundable},
		{name: "gagal", status: "Gagal", hasOTP: false, want: ResolutionRefundable},
		{name: "timeout", status: "TIMEOUT", hasOTP: false, want: ResolutionRefundable},
		{name: "refund status wins over otp", status: "CANCELED", hasOTP: true, want: ResolutionRefundable},
		{name: "timeout wins over otp", status: " timeout ", hasOTP: true, want: ResolutionRefundable},
		{name: "empty status without otp", status: "", hasOTP: false, want: ResolutionWaiting},
		{name: "empty status with otp", status: "", hasOTP: true, want: ResolutionSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, tt.hasOTP); got != tt.want {
				t.Fatalf("Classify(%q, %v) = %s, want %s", tt.status, tt.hasOTP, got, tt.want)
			}
		})
	}
}
