package courier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
)

// Rates quotes serviceable couriers for a lane and weight.
func (c *Client) Rates(ctx context.Context, pickupPincode, deliveryPincode string, weightKG float64, cod bool) ([]RateQuote, error) {
	query := url.Values{}
	query.Set("pickup_postcode", strings.TrimSpace(pickupPincode))
	query.Set("delivery_postcode", strings.TrimSpace(deliveryPincode))
	query.Set("weight", fmt.Sprintf("%.2f", weightKG))
	if cod {
		query.Set("cod", "1")
	} else {
		query.Set("cod", "0")
	}

	c.log(ctx, "request", "rates", map[string]any{
		"pickup":   pickupPincode,
		"delivery": deliveryPincode,
	})

	var out struct {
		Couriers []RateQuote `json:"available_couriers"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/serviceability?"+query.Encode(), nil, &out); err != nil {
		c.log(ctx, "error", "rates", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "rates", map[string]any{"couriers": len(out.Couriers)})
	return out.Couriers, nil
}

// CreateShipment books a forward shipment. The carrier assigns AWB and
// label in the same call.
func (c *Client) CreateShipment(ctx context.Context, params ShipmentCreateParams) (*Shipment, error) {
	if strings.TrimSpace(params.OrderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier order ref is required")
	}
	if len(params.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier shipment needs at least one item")
	}
	if params.PickupLocation == "" {
		params.PickupLocation = c.pickupName
	}
	if params.ChannelID == "" {
		params.ChannelID = c.channelID
	}

	c.log(ctx, "request", "create_shipment", map[string]any{
		"order_ref": params.OrderRef,
		"items":     len(params.Items),
	})

	var shipment Shipment
	if err := c.doJSON(ctx, http.MethodPost, "/v1/shipments", params, &shipment); err != nil {
		c.log(ctx, "error", "create_shipment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_shipment", map[string]any{
		"shipment_id": shipment.ShipmentID,
		"awb":         shipment.AWB,
	})
	return &shipment, nil
}

// SchedulePickup requests a pickup slot for a booked shipment.
func (c *Client) SchedulePickup(ctx context.Context, shipmentID string) (*PickupResponse, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier shipment id is required")
	}

	c.log(ctx, "request", "schedule_pickup", map[string]any{"shipment_id": shipmentID})

	body := map[string]any{"shipment_id": []string{shipmentID}}
	var pickup PickupResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/shipments/pickup", body, &pickup); err != nil {
		c.log(ctx, "error", "schedule_pickup", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "schedule_pickup", map[string]any{"status": pickup.Status})
	return &pickup, nil
}

// CancelShipment cancels a booked shipment carrier-side.
func (c *Client) CancelShipment(ctx context.Context, awb string) error {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "awb is required")
	}

	c.log(ctx, "request", "cancel_shipment", map[string]any{"awb": awb})

	body := map[string]any{"awbs": []string{awb}}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/shipments/cancel", body, nil); err != nil {
		c.log(ctx, "error", "cancel_shipment", map[string]any{"error": err.Error()})
		return err
	}

	c.log(ctx, "response", "cancel_shipment", nil)
	return nil
}

// GenerateLabel fetches (or regenerates) the label for a shipment.
func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (*LabelResponse, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier shipment id is required")
	}

	c.log(ctx, "request", "generate_label", map[string]any{"shipment_id": shipmentID})

	body := map[string]any{"shipment_id": []string{shipmentID}}
	var label LabelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/shipments/label", body, &label); err != nil {
		c.log(ctx, "error", "generate_label", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "generate_label", nil)
	return &label, nil
}

// CreateReverseShipment books a reverse (return-to-seller) pickup.
func (c *Client) CreateReverseShipment(ctx context.Context, params ReverseShipmentParams) (*Shipment, error) {
	if strings.TrimSpace(params.OrderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier order ref is required")
	}

	c.log(ctx, "request", "create_reverse_shipment", map[string]any{
		"order_ref":   params.OrderRef,
		"forward_awb": params.ForwardAWB,
	})

	var shipment Shipment
	if err := c.doJSON(ctx, http.MethodPost, "/v1/shipments/return", params, &shipment); err != nil {
		c.log(ctx, "error", "create_reverse_shipment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_reverse_shipment", map[string]any{
		"shipment_id": shipment.ShipmentID,
		"awb":         shipment.AWB,
	})
	return &shipment, nil
}
