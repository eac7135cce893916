package courier

import (
	"strings"

	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// StatusMapping is the normalized view of a carrier status code.
type StatusMapping struct {
	OrderStatus    enums.OrderStatus
	ShippingStatus enums.ShippingStatus
	IsReturning    bool
}

// statusTable maps normalized carrier codes to internal state. Codes are
// normalized to lower snake case before lookup.
var statusTable = map[string]StatusMapping{
	"booked":           {enums.OrderStatusProcessing, enums.ShippingStatusPending, false},
	"awb_assigned":     {enums.OrderStatusProcessing, enums.ShippingStatusPending, false},
	"label_generated":  {enums.OrderStatusProcessing, enums.ShippingStatusPending, false},
	"pickup_scheduled": {enums.OrderStatusProcessing, enums.ShippingStatusPending, false},
	"pickup_generated": {enums.OrderStatusProcessing, enums.ShippingStatusPending, false},
	"picked_up":        {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"shipped":          {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"in_transit":       {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"out_for_delivery": {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"reached_hub":      {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"ndr":              {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"delayed":          {enums.OrderStatusProcessing, enums.ShippingStatusShipped, false},
	"delivered":        {enums.OrderStatusDelivered, enums.ShippingStatusDelivered, false},
	"cancelled":        {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, false},
	"lost":             {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, false},
	"damaged":          {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, false},
	"rto_initiated":    {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true},
	"rto_in_transit":   {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true},
	"rto_ndr":          {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true},
	"rto_delivered":    {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true},
	"rto_acknowledged": {enums.OrderStatusCancelled, enums.ShippingStatusCancelled, true},
}

// unknownMapping is the fallback for carrier codes not in the table.
// Carrier code sets evolve; ingestion must not fail on new codes.
var unknownMapping = StatusMapping{
	OrderStatus:    enums.OrderStatusProcessing,
	ShippingStatus: enums.ShippingStatusShipped,
	IsReturning:    false,
}

// MapStatus normalizes a carrier status code into internal order and
// shipping state. Unknown codes map to the in-flight default. Any code
// with an RTO prefix is flagged as returning even when not in the table.
func MapStatus(code string) StatusMapping {
	normalized := NormalizeStatusCode(code)
	if mapping, ok := statusTable[normalized]; ok {
		return mapping
	}
	mapping := unknownMapping
	if strings.HasPrefix(normalized, "rto") {
		mapping.IsReturning = true
	}
	return mapping
}

// NormalizeStatusCode lowercases a carrier code and collapses separators
// to underscores.
func NormalizeStatusCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "_")
	code = strings.ReplaceAll(code, " ", "_")
	for strings.Contains(code, "__") {
		code = strings.ReplaceAll(code, "__", "_")
	}
	return code
}
