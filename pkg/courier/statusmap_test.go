package courier

import (
	"testing"

	"github.com/threadkart/marketplace-backend/pkg/enums"
)

func TestMapStatusKnownCodes(t *testing.T) {
	tests := []struct {
		code string
		want StatusMapping
	}{
		{"booked", StatusMapping{enums.OrderStatusProcessing, enums.ShippingStatusPending, false}},
		{"Picked Up", StatusMapping{enums.OrderStatusProcessing, enums.ShippingStatusShipped, false}},
		{"in-transit", StatusMapping{enums.OrderStatusProcessing, enums.ShippingStatusShipped, false}},
		{"DELIVERED", StatusMapping{enums.OrderStatusDelivered, enums.ShippingStatusDelivered, false}},
		{"cancelled", StatusMapping{enums.OrderStatusCancelled, enums.ShippingStatusCancelled, false}},
		{"RTO Initiated", StatusMapping{enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true}},
		{"rto_delivered", StatusMapping{enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true}},
	}
	for _, tt := range tests {
		if got := MapStatus(tt.code); got != tt.want {
			t.Fatalf("MapStatus(%q) = %+v, want %+v", tt.code, got, tt.want)
		}
	}
}

func TestMapStatusUnknownDefaults(t *testing.T) {
	got := MapStatus("some-new-carrier-code")
	want := StatusMapping{enums.OrderStatusProcessing, enums.ShippingStatusShipped, false}
	if got != want {
		t.Fatalf("unknown code mapped to %+v, want %+v", got, want)
	}
}

func TestMapStatusUnknownRTOPrefixSetsReturning(t *testing.T) {
	got := MapStatus("RTO-EXCEPTION-42")
	if !got.IsReturning {
		t.Fatal("rto-prefixed unknown code must set IsReturning")
	}
	if got.OrderStatus != enums.OrderStatusProcessing || got.ShippingStatus != enums.ShippingStatusShipped {
		t.Fatalf("rto-prefixed unknown code changed derived status: %+v", got)
	}
}

func TestMapStatusIsPure(t *testing.T) {
	first := MapStatus("in_transit")
	for i := 0; i < 3; i++ {
		if got := MapStatus("in_transit"); got != first {
			t.Fatal("MapStatus is not deterministic")
		}
	}
}

func TestNormalizeStatusCode(t *testing.T) {
	if got := NormalizeStatusCode("  RTO -  In Transit "); got != "rto_in_transit" {
		t.Fatalf("normalized %q", got)
	}
}
