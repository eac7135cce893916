package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/threadkart/marketplace-backend/pkg/config"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

var (
	errBaseURLRequired   = errors.New("paygate base url is required")
	errKeyIDRequired     = errors.New("paygate key id is required")
	errKeySecretRequired = errors.New("paygate key secret is required")
	errLoggerRequired    = errors.New("paygate logger is required")
)

// Client exposes payment gateway primitives with centralized auth, logging,
// and error mapping. Payment calls use the key credentials; payout calls use
// the payout credentials when configured.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	payoutKeyID   string
	payoutSecret  string
	payoutAccount string
	logger        *logger.Logger
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaygateConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		payoutKeyID:   strings.TrimSpace(cfg.PayoutKeyID),
		payoutSecret:  strings.TrimSpace(cfg.PayoutSecret),
		payoutAccount: strings.TrimSpace(cfg.PayoutAccount),
		logger:        logg,
	}

	logg.Info(ctx, "paygate client initialized")
	return c, nil
}

// PayoutsEnabled reports whether the payout API credentials are present.
func (c *Client) PayoutsEnabled() bool {
	return c != nil && c.payoutKeyID != "" && c.payoutSecret != ""
}

// PayoutAccount returns the configured payout source account number.
func (c *Client) PayoutAccount() string {
	if c == nil {
		return ""
	}
	return c.payoutAccount
}

type credentials struct {
	user string
	pass string
}

func (c *Client) paymentCreds() credentials {
	return credentials{user: c.keyID, pass: c.keySecret}
}

func (c *Client) payoutCreds() credentials {
	return credentials{user: c.payoutKeyID, pass: c.payoutSecret}
}

func (c *Client) doJSON(ctx context.Context, creds credentials, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gateway request")
	}
	req.SetBasicAuth(creds.user, creds.pass)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading gateway response")
	}

	if resp.StatusCode >= 400 {
		return c.mapGatewayError(resp.StatusCode, payload, method, path)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding gateway response")
		}
	}
	return nil
}

type gatewayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) mapGatewayError(status int, payload []byte, method, path string) error {
	body := gatewayErrorBody{}
	_ = json.Unmarshal(payload, &body)
	description := strings.TrimSpace(body.Error.Description)
	if description == "" {
		description = fmt.Sprintf("gateway returned status %d", status)
	}
	return pkgerrors.New(domainCodeForStatus(status), fmt.Sprintf("gateway %s %s: %s", method, path, description))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paygate %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paygate %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "account", "ifsc", "upi", "token", "signature"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
