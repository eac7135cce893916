package paygate

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
)

// Payout statuses the gateway reports.
const (
	PayoutStatusQueued     = "queued"
	PayoutStatusProcessing = "processing"
	PayoutStatusProcessed  = "processed"
	PayoutStatusReversed   = "reversed"
	PayoutStatusFailed     = "failed"
)

var errPayoutsNotConfigured = pkgerrors.New(pkgerrors.CodeDependency, "payout credentials are not configured")

// FundAccount is a verified seller destination for payouts.
type FundAccount struct {
	ID          string `json:"id"`
	ContactID   string `json:"contact_id"`
	AccountType string `json:"account_type"`
}

// Payout is the gateway's view of a transfer to a fund account.
type Payout struct {
	ID          string `json:"id"`
	FundAccount string `json:"fund_account_id"`
	AmountCents int64  `json:"amount"`
	Status      string `json:"status"`
	UTR         string `json:"utr"`
	ReferenceID string `json:"reference_id"`
}

// FundAccountParams describes the payout destination to register.
type FundAccountParams struct {
	ContactName   string
	ContactEmail  string
	AccountType   string // bank_account or vpa
	AccountName   string
	AccountNumber string
	IFSC          string
	VPA           string
}

// CreateFundAccount registers a payout destination with the gateway.
func (c *Client) CreateFundAccount(ctx context.Context, params FundAccountParams) (*FundAccount, error) {
	if !c.PayoutsEnabled() {
		return nil, errPayoutsNotConfigured
	}

	accountType := strings.TrimSpace(params.AccountType)
	body := map[string]any{
		"contact_name": params.ContactName,
		"email":        params.ContactEmail,
		"account_type": accountType,
	}
	switch accountType {
	case "vpa":
		body["vpa"] = map[string]any{"address": params.VPA}
	default:
		body["bank_account"] = map[string]any{
			"name":           params.AccountName,
			"account_number": params.AccountNumber,
			"ifsc":           params.IFSC,
		}
	}

	c.log(ctx, "request", "create_fund_account", map[string]any{"account_type": accountType})

	var account FundAccount
	if err := c.doJSON(ctx, c.payoutCreds(), http.MethodPost, "/v1/fund_accounts", body, &account); err != nil {
		c.log(ctx, "error", "create_fund_account", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_fund_account", map[string]any{"fund_account_id": account.ID})
	return &account, nil
}

// PayoutParams describes the transfer to execute.
type PayoutParams struct {
	FundAccountID string
	AmountCents   int64
	Mode          string // IMPS, NEFT, UPI
	ReferenceID   string
	Narration     string
}

// CreatePayout transfers funds from the platform account to a fund account.
func (c *Client) CreatePayout(ctx context.Context, params PayoutParams) (*Payout, error) {
	if !c.PayoutsEnabled() {
		return nil, errPayoutsNotConfigured
	}
	if strings.TrimSpace(params.FundAccountID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fund account id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	mode := strings.ToUpper(strings.TrimSpace(params.Mode))
	if mode == "" {
		mode = "IMPS"
	}

	c.log(ctx, "request", "create_payout", map[string]any{
		"fund_account_id": params.FundAccountID,
		"amount":          params.AmountCents,
		"mode":            mode,
		"reference_id":    params.ReferenceID,
	})

	body := map[string]any{
		"account_number":  c.payoutAccount,
		"fund_account_id": params.FundAccountID,
		"amount":          params.AmountCents,
		"currency":        "INR",
		"mode":            mode,
		"purpose":         "payout",
		"reference_id":    params.ReferenceID,
		"narration":       params.Narration,
	}

	var payout Payout
	if err := c.doJSON(ctx, c.payoutCreds(), http.MethodPost, "/v1/payouts", body, &payout); err != nil {
		c.log(ctx, "error", "create_payout", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_payout", map[string]any{
		"payout_id": payout.ID,
		"status":    payout.Status,
	})
	return &payout, nil
}

// FetchPayout retrieves the current payout state from the gateway.
func (c *Client) FetchPayout(ctx context.Context, payoutID string) (*Payout, error) {
	if !c.PayoutsEnabled() {
		return nil, errPayoutsNotConfigured
	}
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}

	c.log(ctx, "request", "fetch_payout", map[string]any{"payout_id": payoutID})

	var payout Payout
	if err := c.doJSON(ctx, c.payoutCreds(), http.MethodGet, "/v1/payouts/"+payoutID, nil, &payout); err != nil {
		c.log(ctx, "error", "fetch_payout", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "fetch_payout", map[string]any{
		"payout_id": payout.ID,
		"status":    payout.Status,
	})
	return &payout, nil
}
