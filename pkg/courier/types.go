package courier

import "time"

// RateQuote is a serviceability/price quote for a lane and weight.
type RateQuote struct {
	CourierName  string  `json:"courier_name"`
	FreightCents int64   `json:"freight_charge"`
	CODCents     int64   `json:"cod_charge"`
	EstimatedDay int     `json:"estimated_delivery_days"`
	Rating       float64 `json:"rating"`
}

// ShipmentAddress is the carrier-facing address payload.
type ShipmentAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Line1   string `json:"address"`
	Line2   string `json:"address_2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

// ShipmentItem is one order line forwarded to the carrier.
type ShipmentItem struct {
	Name           string `json:"name"`
	SKU            string `json:"sku"`
	Units          int    `json:"units"`
	UnitPriceCents int64  `json:"selling_price"`
}

// ShipmentCreateParams describes a forward shipment booking.
type ShipmentCreateParams struct {
	OrderRef       string          `json:"order_id"`
	OrderDate      time.Time       `json:"order_date"`
	PickupLocation string          `json:"pickup_location"`
	ChannelID      string          `json:"channel_id,omitempty"`
	CODAmountCents int64           `json:"cod_amount,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	SubTotalCents  int64           `json:"sub_total"`
	WeightKG       float64         `json:"weight"`
	LengthCM       float64         `json:"length"`
	BreadthCM      float64         `json:"breadth"`
	HeightCM       float64         `json:"height"`
	Billing        ShipmentAddress `json:"billing"`
	Shipping       ShipmentAddress `json:"shipping"`
	Items          []ShipmentItem  `json:"items"`
}

// Shipment is the carrier's record of a booking.
type Shipment struct {
	ShipmentID   string `json:"shipment_id"`
	CarrierRef   string `json:"order_id"`
	AWB          string `json:"awb_code"`
	CourierName  string `json:"courier_name"`
	StatusCode   string `json:"status"`
	LabelURL     string `json:"label_url"`
	FreightCents int64  `json:"freight_charge"`
}

// PickupResponse confirms a scheduled pickup.
type PickupResponse struct {
	PickupScheduledAt time.Time `json:"pickup_scheduled_date"`
	PickupTokenNumber string    `json:"pickup_token_number"`
	Status            string    `json:"status"`
}

// LabelResponse carries a generated label URL.
type LabelResponse struct {
	LabelURL string `json:"label_url"`
}

// ReverseShipmentParams describes a reverse (return) pickup booking.
type ReverseShipmentParams struct {
	OrderRef       string          `json:"order_id"`
	ForwardAWB     string          `json:"forward_awb,omitempty"`
	PickupLocation string          `json:"pickup_location,omitempty"`
	Pickup         ShipmentAddress `json:"pickup"`
	Drop           ShipmentAddress `json:"drop"`
	Items          []ShipmentItem  `json:"items"`
	WeightKG       float64         `json:"weight"`
}

// TrackEvent is one scan in a tracking history.
type TrackEvent struct {
	StatusCode  string    `json:"status"`
	Description string    `json:"activity"`
	Location    string    `json:"location"`
	At          time.Time `json:"date"`
}

// TrackResult is current tracking state plus scan history.
type TrackResult struct {
	AWB          string       `json:"awb_code"`
	ShipmentID   string       `json:"shipment_id"`
	StatusCode   string       `json:"current_status"`
	Description  string       `json:"current_status_description"`
	EDD          string       `json:"edd"`
	FreightCents int64        `json:"freight_charge"`
	Events       []TrackEvent `json:"scans"`
}

// NDRAction values accepted by the carrier for failed-delivery followups.
const (
	NDRActionReattempt = "re-attempt"
	NDRActionReturn    = "return"
)
