package courierwebhook

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload is the decoded carrier push notification. Carriers vary in which
// reference fields they populate; resolution tries them in order of
// specificity (shipment id, order id, order number, AWB).
type Payload struct {
	EventID       string    `json:"event_id"`
	ShipmentID    string    `json:"shipment_id"`
	OrderID       string    `json:"order_id"`
	OrderRef      string    `json:"order_ref"`
	AWB           string    `json:"awb"`
	CurrentStatus string    `json:"current_status"`
	Description   string    `json:"description"`
	FreightCents  int64     `json:"freight_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// ParsePayload decodes the raw body. Only structural failures are errors;
// missing reference fields are handled later as unmatched deliveries.
func ParsePayload(body []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// HasReference reports whether any order-resolution key is present.
func (p *Payload) HasReference() bool {
	return p.ShipmentID != "" || p.OrderID != "" || p.OrderRef != "" || p.AWB != ""
}

// OrderNumber parses the seller-facing order number out of OrderRef.
// Carriers echo it back as a string.
func (p *Payload) OrderNumber() (int64, bool) {
	ref := strings.TrimSpace(p.OrderRef)
	if ref == "" {
		return 0, false
	}
	number, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}
