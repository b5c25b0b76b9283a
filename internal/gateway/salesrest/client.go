// Package salesrest is the HTTP DataSource for the sales records REST resource.
package salesrest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salesboard/internal/config"
	"salesboard/internal/logger"
	"salesboard/internal/pkg/circuit"
	"salesboard/internal/pkg/text"
	"salesboard/internal/sales"

	"golang.org/x/sync/singleflight"
)

const maxResponseBytes = 8 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sales api returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("sales api returned %d: %s", e.Status, e.Body)
}

// Client queries GET {api_url}{resource}?stat=&cohort=.
type Client struct {
	baseURL    *url.URL
	resource   string
	httpClient *http.Client
	token      string
	breaker    *circuit.Breaker
	group      singleflight.Group
}

// NewClient constructs a client from configuration.
func NewClient(cfg config.SourceConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("source.api_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse source.api_url: %w", err)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	resource := strings.TrimSpace(cfg.Resource)
	if resource == "" {
		resource = "/api/sales"
	}
	return &Client{
		baseURL:    parsed,
		resource:   resource,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		token:      strings.TrimSpace(cfg.APIToken),
		breaker:    circuit.New("sales-api", cfg.BreakerThreshold, cfg.BreakerCooldown()),
	}, nil
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Client) Breaker() *circuit.Breaker {
	return c.breaker
}

// Query implements pipeline.DataSource. Identical concurrent queries share one
// request; the shared request is detached from any single caller's
// cancellation and bounded by the client timeout.
func (c *Client) Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("sales client not initialized")
	}
	key := statistic + "\x00" + cohort
	ch := c.group.DoChan(key, func() (any, error) {
		var records []sales.Record
		err := c.breaker.Do(func() error {
			var err error
			records, err = c.fetch(context.WithoutCancel(ctx), statistic, cohort)
			return err
		}, isClientSide)
		return records, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		records, _ := res.Val.([]sales.Record)
		return records, nil
	}
}

func (c *Client) fetch(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	endpoint := c.endpoint(statistic, cohort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build sales request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call sales api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: text.Truncate(string(data), 256)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read sales response: %w", err)
	}
	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	logger.Debugf("sales api %s -> %d records in %s", endpoint, len(records), time.Since(start).Round(time.Millisecond))
	return records, nil
}

// endpoint always sends both parameters; an empty value means no filter.
func (c *Client) endpoint(statistic, cohort string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + c.resource
	q := url.Values{}
	q.Set("stat", statistic)
	q.Set("cohort", cohort)
	u.RawQuery = q.Encode()
	return u.String()
}

// isClientSide keeps caller mistakes and cancellations from tripping the breaker.
func isClientSide(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 400 && se.Status < 500
	}
	return errors.Is(err, ErrInvalidPayload)
}
