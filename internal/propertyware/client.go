package propertyware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rentfolio/rentfolio/internal/entities"
)

const (
	defaultBaseURL = "https://api.propertyware.com"

	defaultTimeout     = 30 * time.Second
	maxRetries         = 3
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2

	defaultRequestsPerSecond = 2.0
	defaultBurst             = 4
	defaultPageSize          = 200
)

// Resource-specific directory endpoints. The provider exposes these as
// POST search endpoints taking a JSON body.
var resourceEndpoints = map[string]string{
	entities.ResourceProperty:    "/api/v1/properties/search",
	entities.ResourceUnit:        "/api/v1/units/search",
	entities.ResourcePerson:      "/api/v1/contacts/search",
	entities.ResourceLease:       "/api/v1/leases/search",
	entities.ResourceTransaction: "/api/v1/rentroll/search",
	entities.ResourceWorkOrder:   "/api/v1/workorders/search",
	entities.ResourceVendor:      "/api/v1/vendors/search",
	entities.ResourceBill:        "/api/v1/bills/search",
}

// Credentials authorize requests against the provider API. They are
// read from the settings collaborator at the start of every sync run
// and never cached across runs.
type Credentials struct {
	ClientID     string
	ClientSecret string
	OrgID        string
}

func (c Credentials) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.OrgID != ""
}

// Options tune timeouts, retries and the client-side rate limiter.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	PageSize          int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:           defaultBaseURL,
		Timeout:           defaultTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
		Burst:             defaultBurst,
		PageSize:          defaultPageSize,
	}
}

// Client interfaces with the property-management provider API. A
// token-bucket limiter throttles outgoing requests independent of the
// provider's own 429 handling.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	opts       Options
	limiter    *rate.Limiter
}

// NewClient creates an API client for one set of credentials.
func NewClient(creds Credentials, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		creds:      creds,
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Page is one page of results from a directory endpoint. Records are
// kept as raw JSON so they can be captured verbatim before
// normalization.
type Page struct {
	Results      []json.RawMessage `json:"results"`
	NextPageURL  string            `json:"next_page_url"`
	TotalResults int               `json:"total_results"`
}

type searchRequest struct {
	ModifiedSince string `json:"modified_since,omitempty"`
	PageSize      int    `json:"page_size"`
}

// ValidateCredentials checks the configured credentials against the
// provider without fetching any data.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/api/v1/organization", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// FetchResource returns a lazy iterator over the pages of one resource
// directory. A nil since requests the full directory; otherwise only
// records modified at or after since are returned.
func (c *Client) FetchResource(resource string, since *time.Time) *PageIterator {
	return &PageIterator{client: c, resource: resource, since: since}
}

// PageIterator walks a paginated directory. The provider returns a
// next_page_url cursor with each page, so iteration is restartable
// from any page URL.
type PageIterator struct {
	client   *Client
	resource string
	since    *time.Time
	nextURL  string
	started  bool
	done     bool
}

// Next fetches the next page. It returns (nil, nil) once the directory
// is exhausted.
func (it *PageIterator) Next(ctx context.Context) (*Page, error) {
	if it.done {
		return nil, nil
	}

	var page *Page
	var err error
	if !it.started {
		endpoint, ok := resourceEndpoints[it.resource]
		if !ok {
			return nil, fmt.Errorf("unknown resource type %q", it.resource)
		}
		page, err = it.client.fetchPage(ctx, it.client.opts.BaseURL+endpoint, it.since)
	} else {
		page, err = it.client.fetchPage(ctx, it.nextURL, it.since)
	}
	if err != nil {
		return nil, err
	}

	it.started = true
	if page.NextPageURL == "" {
		it.done = true
	} else {
		it.nextURL = page.NextPageURL
	}
	return page, nil
}

// fetchPage POSTs one page request, retrying transient failures with
// capped exponential backoff. Auth failures and malformed requests are
// surfaced immediately.
func (c *Client) fetchPage(ctx context.Context, url string, since *time.Time) (*Page, error) {
	body := searchRequest{PageSize: c.opts.PageSize}
	if since != nil {
		body.ModifiedSince = since.UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var page *Page
		page, lastErr = c.doPageRequest(ctx, url, payload)
		if lastErr == nil {
			return page, nil
		}
		if !isRetryable(lastErr) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doPageRequest(ctx context.Context, url string, payload []byte) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &BadRequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("X-PW-Client-ID", c.creds.ClientID)
	req.Header.Set("X-PW-Client-Secret", c.creds.ClientSecret)
	req.Header.Set("X-PW-Org-ID", c.creds.OrgID)
}

func retryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
