// Package platform talks to the commerce platform's Admin REST API.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PageRequest selects one page of a since_id paginated listing
type PageRequest struct {
	Limit        int
	SinceID      int64
	CreatedAtMin time.Time // orders only; zero means unbounded
}

// Platform is the read-only view of a merchant's shop used by the sync pipeline
type Platform interface {
	CountProducts(ctx context.Context) (int, error)
	ListProducts(ctx context.Context, page PageRequest) ([]Product, error)
	CountOrders(ctx context.Context, createdAtMin time.Time) (int, error)
	ListOrders(ctx context.Context, page PageRequest) ([]Order, error)
}

// Options configures a Client
type Options struct {
	ShopDomain        string
	AccessToken       string
	APIVersion        string
	BaseURL           string // overrides https://{ShopDomain}
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	HTTPClient        *http.Client
	Metrics           *metrics.Metrics
	Logger            *zap.Logger
}

type Client struct {
	baseURL    string
	token      string
	apiVersion string
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		domain := strings.TrimSpace(opts.ShopDomain)
		if domain == "" {
			return nil, errors.New("platform shop domain is empty")
		}
		if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
			domain = "https://" + domain
		}
		base = domain
	}
	if opts.APIVersion == "" {
		return nil, errors.New("platform api version is empty")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      opts.AccessToken,
		apiVersion: opts.APIVersion,
		maxRetries: max(opts.MaxRetries, 0),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		metrics:    opts.Metrics,
		log:        log.Named("platform"),
	}, nil
}

func (c *Client) CountProducts(ctx context.Context) (int, error) {
	var out countEnvelope
	if err := c.get(ctx, "count products", "products/count.json", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) ListProducts(ctx context.Context, page PageRequest) ([]Product, error) {
	var out productsEnvelope
	if err := c.get(ctx, "list products", "products.json", pageQuery(page), &out); err != nil {
		return nil, err
	}
	return decodeEach(out.Products, "product", func(p *Product, id int64, verr *apperror.ValidationError) {
		p.ID, p.Invalid = id, verr
	}), nil
}

func (c *Client) CountOrders(ctx context.Context, createdAtMin time.Time) (int, error) {
	q := url.Values{"status": {"any"}}
	if !createdAtMin.IsZero() {
		q.Set("created_at_min", createdAtMin.UTC().Format(time.RFC3339))
	}
	var out countEnvelope
	if err := c.get(ctx, "count orders", "orders/count.json", q, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) ListOrders(ctx context.Context, page PageRequest) ([]Order, error) {
	q := pageQuery(page)
	q.Set("status", "any")
	if !page.CreatedAtMin.IsZero() {
		q.Set("created_at_min", page.CreatedAtMin.UTC().Format(time.RFC3339))
	}
	var out ordersEnvelope
	if err := c.get(ctx, "list orders", "orders.json", q, &out); err != nil {
		return nil, err
	}
	return decodeEach(out.Orders, "order", func(o *Order, id int64, verr *apperror.ValidationError) {
		o.ID, o.Invalid = id, verr
	}), nil
}

// decodeEach decodes list records one by one. A record that fails to decode
// is kept in place, zeroed except for its id, and marked invalid.
func decodeEach[T any](raws []json.RawMessage, entity string, markInvalid func(rec *T, id int64, verr *apperror.ValidationError)) []T {
	out := make([]T, len(raws))
	for i, raw := range raws {
		err := json.Unmarshal(raw, &out[i])
		if err == nil {
			continue
		}

		var head struct {
			ID int64 `json:"id"`
		}
		_ = json.Unmarshal(raw, &head)

		field := "record"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		var zero T
		out[i] = zero
		markInvalid(&out[i], head.ID, &apperror.ValidationError{
			Entity:     entity,
			ExternalID: FormatID(head.ID),
			Field:      field,
			Tag:        "decode",
		})
	}
	return out
}

func pageQuery(page PageRequest) url.Values {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.SinceID > 0 {
		q.Set("since_id", strconv.FormatInt(page.SinceID, 10))
	}
	return q
}

// get performs a throttled GET with retries and decodes the JSON body into out.
// Every failure is returned as an *apperror.ConnectivityError.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	endpoint := c.baseURL + "/admin/api/" + c.apiVersion + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt-1, lastErr)
			c.log.Warn("retrying platform request",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			if err := sleepWithContext(ctx, delay); err != nil {
				return &apperror.ConnectivityError{Service: "platform", Op: op, Err: err}
			}
		}

		body, err := c.do(ctx, op, endpoint)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return &apperror.ConnectivityError{Service: "platform", Op: op, Err: fmt.Errorf("decode response: %w", err)}
			}
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return &apperror.ConnectivityError{Service: "platform", Op: op, Err: lastErr}
}

func (c *Client) do(ctx context.Context, op, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObservePlatformRequest(op, 0)
		return nil, err
	}
	defer resp.Body.Close()
	c.metrics.ObservePlatformRequest(op, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp, body)
	}
	return body, nil
}
