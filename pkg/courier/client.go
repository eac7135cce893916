package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/threadkart/marketplace-backend/pkg/config"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultTokenTTL = 216 * time.Hour
)

var (
	errBaseURLRequired     = errors.New("courier base url is required")
	errCredentialsRequired = errors.New("courier email and password are required")
	errLoggerRequired      = errors.New("courier logger is required")
)

// Client wraps the shipping carrier API. The carrier issues bearer tokens
// from an email/password login; tokens are cached until close to expiry and
// refreshed lazily under a lock.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	pickupName string
	channelID  string
	tokenTTL   time.Duration
	logger     *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient initializes the carrier wrapper and validates the credentials.
// It does not log in eagerly; the first API call acquires a token.
func NewClient(ctx context.Context, cfg config.CourierConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	email := strings.TrimSpace(cfg.Email)
	password := strings.TrimSpace(cfg.Password)
	if email == "" || password == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		email:      email,
		password:   password,
		pickupName: strings.TrimSpace(cfg.PickupName),
		channelID:  strings.TrimSpace(cfg.ChannelID),
		tokenTTL:   tokenTTL,
		logger:     logg,
	}

	logg.Info(ctx, "courier client initialized")
	return c, nil
}

// PickupName returns the configured pickup location name.
func (c *Client) PickupName() string {
	if c == nil {
		return ""
	}
	return c.pickupName
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding carrier login")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building carrier login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carrier login failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("carrier login returned status %d", resp.StatusCode))
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier login response")
	}
	if strings.TrimSpace(login.Token) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "carrier login returned empty token")
	}

	c.token = login.Token
	// Refresh a little before the carrier-side expiry.
	c.tokenExpiry = time.Now().Add(c.tokenTTL - time.Hour)
	return c.token, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding carrier request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building carrier request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carrier request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading carrier response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Token likely expired server-side; drop it so the next call re-logs in.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode >= 400 {
		return c.mapCarrierError(resp.StatusCode, payload, method, path)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier response")
		}
	}
	return nil
}

type carrierErrorBody struct {
	Message string `json:"message"`
}

func (c *Client) mapCarrierError(status int, payload []byte, method, path string) error {
	body := carrierErrorBody{}
	_ = json.Unmarshal(payload, &body)
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = fmt.Sprintf("carrier returned status %d", status)
	}
	code := pkgerrors.CodeDependency
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = pkgerrors.CodeValidation
	case http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	}
	return pkgerrors.New(code, fmt.Sprintf("carrier %s %s: %s", method, path, message))
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
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("courier %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("courier %s", phase))
	}
}
