package wompi

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

	"go.uber.org/zap"

	"rogerbox/pkg/utils"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Config struct {
	PublicKey   string
	PrivateKey  string
	Environment Environment
	// BaseURL overrides the environment-derived API root.
	BaseURL string
	Timeout time.Duration
}

// GatewayError carries what the gateway answered on a failed call.
// StatusCode is 0 when the request never got a response.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("wompi %s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("wompi %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("wompi %s failed", e.Op)
	}
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{utils.ErrGateway, e.Err}
	}
	return []error{utils.ErrGateway}
}

// API is the subset of the gateway used by checkout and tooling.
type API interface {
	TokenizeCard(ctx context.Context, card CardDetails) (string, error)
	CreateAcceptanceToken(ctx context.Context) (string, error)
	CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
}

type Client struct {
	cfg    Config
	base   string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = cfg.Environment.BaseURL()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{},
		logger: logger.With(zap.String("component", "wompi")),
	}
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) TokenizeCard(ctx context.Context, card CardDetails) (string, error) {
	var out envelope[tokenData]
	if err := c.do(ctx, "tokenize card", http.MethodPost, "/tokens/cards", c.cfg.PublicKey, card, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &GatewayError{Op: "tokenize card", Err: errors.New("empty token in response")}
	}
	return out.Data.ID, nil
}

// CreateAcceptanceToken fetches a fresh presigned acceptance token. It is
// requested on every checkout.
func (c *Client) CreateAcceptanceToken(ctx context.Context) (string, error) {
	var out envelope[merchantData]
	if err := c.do(ctx, "acceptance token", http.MethodGet, "/merchants/"+c.cfg.PublicKey, "", nil, &out); err != nil {
		return "", err
	}
	token := out.Data.PresignedAcceptance.AcceptanceToken
	if token == "" {
		return "", &GatewayError{Op: "acceptance token", Err: errors.New("empty acceptance token in response")}
	}
	return token, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "create transaction", http.MethodPost, "/transactions", c.cfg.PrivateKey, req, &raw); err != nil {
		return nil, err
	}
	return decodeTransaction("create transaction", raw)
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", utils.ErrValidation)
	}
	var raw json.RawMessage
	if err := c.do(ctx, "get transaction", http.MethodGet, "/transactions/"+id, c.cfg.PrivateKey, nil, &raw); err != nil {
		return nil, err
	}
	return decodeTransaction("get transaction", raw)
}

func decodeTransaction(op string, raw json.RawMessage) (*Transaction, error) {
	var out envelope[Transaction]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Data.ID == "" {
		return nil, &GatewayError{Op: op, Err: errors.New("missing transaction id in response")}
	}
	out.Data.Status = ParseStatus(string(out.Data.Status))
	out.Data.Raw = raw
	return &out.Data, nil
}

func (c *Client) do(ctx context.Context, op, method, path, key string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway call failed", zap.String("op", op), zap.Duration("latency", time.Since(start)), zap.Error(err))
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway call", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
