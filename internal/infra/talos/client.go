package talos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"tap_talos/internal/domain"
	"tap_talos/internal/infra"

	"github.com/shopspring/decimal"
)

// Client is the Talos REST API client (Boundary Layer).
// Requests are unpaginated: every response is complete on its own.
type Client struct {
	baseURL    string
	httpClient domain.HTTPDoer
	signer     *Signer
	numeric    map[string]struct{}
	metrics    *infra.Metrics
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport (fetch seam).
func WithHTTPClient(doer domain.HTTPDoer) Option {
	return func(c *Client) { c.httpClient = doer }
}

// WithBaseURL overrides https://{api_host}. Intended for sandboxes and tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithNumericFields marks top-level fields whose string values are parsed as decimals.
func WithNumericFields(fields ...string) Option {
	return func(c *Client) {
		for _, f := range fields {
			c.numeric[f] = struct{}{}
		}
	}
}

// WithMetrics records request counters into m instead of infra.GlobalMetrics.
func WithMetrics(m *infra.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("module", "talos_client") }
}

// WithClock pins the signer's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.signer.WithClock(now) }
}

// NewClient creates a new Talos API client.
// A zero timeout leaves the request unbounded, as the default http.Client does.
func NewClient(creds domain.Credentials, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: "https://" + creds.APIHost,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer:  NewSigner(creds),
		numeric: make(map[string]struct{}),
		metrics: infra.GlobalMetrics,
		logger:  slog.Default().With("module", "talos_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBalances returns the balances as a lazy sequence.
// Nothing is requested until the sequence is ranged over, and each range issues
// a fresh request. On failure a single (nil, err) pair is yielded.
func (c *Client) FetchBalances(ctx context.Context) iter.Seq2[domain.Record, error] {
	return c.fetchRecords(ctx, BalancesPath)
}

func (c *Client) fetchRecords(ctx context.Context, path string) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		records, err := c.getRecords(ctx, path)
		if err != nil {
			c.metrics.RecordError()
			yield(nil, err)
			return
		}

		count := 0
		for _, rec := range records {
			c.logger.Debug("Record parsed", "path", path, "index", count)
			count++
			if !yield(rec, nil) {
				return
			}
		}
		c.metrics.RecordRecords(count)
		c.logger.Info("Records fetched", "path", path, "count", count)
	}
}

// getRecords issues a single signed GET and extracts the data array.
func (c *Client) getRecords(ctx context.Context, path string) ([]domain.Record, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewFatalNetworkError(http.MethodGet+" "+path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parseRecords(body, c.numeric)
}

// doRequest handles Auth headers
func (c *Client) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	// Sign Request
	headers, err := c.signer.Headers(method, path)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)

	c.logger.Debug("Request started", "method", method, "url", reqURL)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordRequest(time.Since(start).Nanoseconds())
	if err != nil {
		return nil, domain.NewFatalNetworkError(method+" "+path, err)
	}
	return resp, nil
}

// parseRecords decodes {"data": [...]} keeping every number as an exact decimal.
func parseRecords(body []byte, numeric map[string]struct{}) ([]domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelope map[string]any
	if err := dec.Decode(&envelope); err != nil {
		return nil, &domain.MalformedResponseError{Reason: "invalid json", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &domain.MalformedResponseError{Reason: "trailing data after envelope", Err: err}
	}

	raw, ok := envelope[dataKey]
	if !ok {
		return nil, &domain.MalformedResponseError{Reason: "envelope", Err: domain.ErrMissingData}
	}
	if raw == nil {
		return nil, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, &domain.MalformedResponseError{Reason: fmt.Sprintf("data is %T, not an array", raw)}
	}

	records := make([]domain.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &domain.MalformedResponseError{Reason: fmt.Sprintf("data[%d] is %T, not an object", i, item)}
		}

		converted, err := convertNumbers(obj)
		if err != nil {
			return nil, &domain.MalformedResponseError{Reason: fmt.Sprintf("data[%d]", i), Err: err}
		}
		rec := domain.Record(converted.(map[string]any))
		coerceNumericStrings(rec, numeric)
		records = append(records, rec)
	}
	return records, nil
}

// convertNumbers walks a decoded value replacing json.Number with decimal.Decimal.
func convertNumbers(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return decimal.NewFromString(t.String())
	case map[string]any:
		for k, child := range t {
			c, err := convertNumbers(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			t[k] = c
		}
		return t, nil
	case []any:
		for i, child := range t {
			c, err := convertNumbers(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			t[i] = c
		}
		return t, nil
	default:
		return v, nil
	}
}

// coerceNumericStrings parses string amounts for fields declared numeric.
// Values that do not parse are left as they came.
func coerceNumericStrings(rec domain.Record, numeric map[string]struct{}) {
	for field := range numeric {
		s, ok := rec[field].(string)
		if !ok || s == "" {
			continue
		}
		if d, err := decimal.NewFromString(s); err == nil {
			rec[field] = d
		}
	}
}
