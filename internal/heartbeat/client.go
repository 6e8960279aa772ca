package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/raspd/raspd/internal/config"
	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/report"
)

const maxResponseBytes = 4 << 20

var ErrUnexpectedStatus = errors.New("unexpected heartbeat status")

// Payload is the body of one heartbeat POST.
type Payload struct {
	Hash    string          `json:"hash"`
	Reports []report.Report `json:"reports"`
	AgentID string          `json:"agentId,omitempty"`
}

// Client posts heartbeats to the backend control plane.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *logging.Logger
}

func NewClient(cfg config.BackendConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		endpoint: strings.TrimRight(cfg.URL, "/") + cfg.HeartbeatPath,
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout, Transport: newTransport(timeout)},
		logger:   logger,
	}

	if cfg.Breaker.Enabled {
		maxFailures := cfg.Breaker.MaxFailures
		if maxFailures == 0 {
			maxFailures = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "heartbeat",
			MaxRequests: 1,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Post sends the payload and returns the raw response body. A non-2xx
// response is an error wrapping ErrUnexpectedStatus. While the breaker is
// open the call fails fast with gobreaker.ErrOpenState.
func (c *Client) Post(ctx context.Context, payload Payload) ([]byte, error) {
	if payload.Reports == nil {
		payload.Reports = []report.Report{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode heartbeat: %w", err)
	}

	if c.breaker == nil {
		return c.do(ctx, body)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) do(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read heartbeat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return data, nil
}

func newTransport(timeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}
