package courier

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
)

// TrackByAWB fetches tracking state for a waybill.
func (c *Client) TrackByAWB(ctx context.Context, awb string) (*TrackResult, error) {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awb is required")
	}

	c.log(ctx, "request", "track_awb", map[string]any{"awb": awb})

	var result TrackResult
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tracking/awb/"+url.PathEscape(awb), nil, &result); err != nil {
		c.log(ctx, "error", "track_awb", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "track_awb", map[string]any{"status": result.StatusCode})
	return &result, nil
}

// TrackByOrderRef fetches tracking state by the marketplace order reference.
func (c *Client) TrackByOrderRef(ctx context.Context, orderRef string) (*TrackResult, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref is required")
	}

	c.log(ctx, "request", "track_order", map[string]any{"order_ref": orderRef})

	var result TrackResult
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tracking/order/"+url.PathEscape(orderRef), nil, &result); err != nil {
		c.log(ctx, "error", "track_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "track_order", map[string]any{"status": result.StatusCode})
	return &result, nil
}

// NDRAction answers a non-delivery report with a re-attempt or return decision.
func (c *Client) NDRAction(ctx context.Context, awb, action, comment string) error {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "awb is required")
	}
	action = strings.TrimSpace(strings.ToLower(action))
	if action != NDRActionReattempt && action != NDRActionReturn {
		return pkgerrors.New(pkgerrors.CodeValidation, "ndr action must be re-attempt or return")
	}

	c.log(ctx, "request", "ndr_action", map[string]any{"awb": awb, "action": action})

	body := map[string]any{
		"action":  action,
		"comment": comment,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/ndr/"+url.PathEscape(awb)+"/action", body, nil); err != nil {
		c.log(ctx, "error", "ndr_action", map[string]any{"error": err.Error()})
		return err
	}

	c.log(ctx, "response", "ndr_action", nil)
	return nil
}
