package ezyvet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
	"github.com/jwalitptl/ezyvet-etl/internal/repository"
	"github.com/jwalitptl/ezyvet-etl/pkg/logger"
	"github.com/jwalitptl/ezyvet-etl/pkg/metrics"
)

// idChunkSize is the largest ID list sent in a single "in" filter.
const idChunkSize = 100

// Config holds client settings. BaseURL must end with a trailing slash,
// e.g. "https://api.ezyvet.com/".
type Config struct {
	BaseURL             string
	RetrySleep          time.Duration
	TokenCacheTTL       time.Duration
	TranslationCacheTTL time.Duration
	RateLimit           rate.Limit
	RateBurst           int
}

// Client queries the ezyVet API: it resolves per-location credentials
// through the credential store, paginates list endpoints, retries a
// failed request exactly once, and flattens page envelopes into a flat
// record sequence.
type Client struct {
	cfg          Config
	http         *http.Client
	creds        repository.CredentialRepository
	issuer       TokenIssuer
	limiter      *rate.Limiter
	translations *gocache.Cache
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

// NewClient creates an API client. metrics may be nil (tests).
func NewClient(cfg Config, creds repository.CredentialRepository, issuer TokenIssuer, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.TokenCacheTTL <= 0 {
		cfg.TokenCacheTTL = 10 * time.Minute
	}
	if cfg.TranslationCacheTTL <= 0 {
		cfg.TranslationCacheTTL = 15 * time.Minute
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Client{
		cfg:          cfg,
		http:         &http.Client{Timeout: 60 * time.Second},
		creds:        creds,
		issuer:       issuer,
		limiter:      rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		translations: gocache.New(cfg.TranslationCacheTTL, 2*cfg.TranslationCacheTTL),
		logger:       log,
		metrics:      m,
	}
}

// Get fetches every page of a list endpoint and returns the unwrapped
// records in page/item order. A response without items_total, or an
// empty first page, is a soft no-data result: it returns (nil, nil)
// after logging the payload.
func (c *Client) Get(ctx context.Context, locationID int64, version, name string, params Params, headers map[string]string) ([]json.RawMessage, error) {
	built, err := buildParams(params)
	if err != nil {
		return nil, err
	}

	cred, err := c.credentials(ctx, locationID)
	if err != nil {
		return nil, err
	}
	hdrs := mergeHeaders(headers, *cred.AccessToken)

	endpoint := fmt.Sprintf("%s/%s", version, name)
	requestURL := c.cfg.BaseURL + endpoint

	body, err := c.callAPI(ctx, endpoint, requestURL, hdrs, built)
	if err != nil {
		return nil, err
	}

	var env model.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	if env.Meta.ItemsTotal == nil {
		c.logger.Warn("items_total not found in response", "endpoint", endpoint, "payload", string(body))
		return nil, nil
	}
	if len(env.Items) == 0 {
		c.logger.Info("no results returned", "endpoint", endpoint)
		return nil, nil
	}

	pages := int(env.Meta.ItemsPageTotal)
	c.logger.Debug("fetched first page",
		"endpoint", endpoint,
		"items_total", env.Meta.ItemsTotal.Int64(),
		"pages", pages)
	c.countPage()

	items := env.Items
	for page := 2; page <= pages; page++ {
		built["page"] = strconv.Itoa(page)
		body, err := c.callAPI(ctx, endpoint, requestURL, hdrs, built)
		if err != nil {
			return nil, err
		}
		var next model.Envelope
		if err := json.Unmarshal(body, &next); err != nil {
			return nil, fmt.Errorf("failed to decode %s page %d: %w", endpoint, page, err)
		}
		c.logger.Debug("fetched page", "endpoint", endpoint, "page", page, "items", int(next.Meta.ItemsPageSize))
		c.countPage()
		items = append(items, next.Items...)
	}

	return unwrapItems(items, name)
}

// GetByIDs fetches records by ID, partitioning the list into chunks of
// at most 100 per request and concatenating results in order.
func (c *Client) GetByIDs(ctx context.Context, locationID int64, version, name string, ids []int64, params Params) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for start := 0; start < len(ids); start += idChunkSize {
		end := start + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		c.logger.Debug("fetching records by ID",
			"endpoint", fmt.Sprintf("%s/%s", version, name),
			"from", start, "to", end, "total", len(ids))

		p := params.clone()
		p["id"] = In(ids[start:end])
		batch, err := c.Get(ctx, locationID, version, name, p, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// GetDateRange fetches records filtered to a date range on
// dateFilterField, overwriting any caller filter of the same name.
func (c *Client) GetDateRange(ctx context.Context, locationID int64, version, name, dateFilterField string, params Params, startDate, endDate *time.Time, days int) ([]json.RawMessage, error) {
	filter, err := BuildDateFilter(dateFilterField, startDate, endDate, days)
	if err != nil {
		return nil, err
	}
	p := params.clone()
	for k, v := range filter {
		p[k] = v
	}
	return c.Get(ctx, locationID, version, name, p, nil)
}

// GetTranslation fetches an id/name lookup endpoint and returns it as a
// translation map. Results are cached per location and endpoint.
func (c *Client) GetTranslation(ctx context.Context, locationID int64, version, name string) (map[int64]string, error) {
	key := fmt.Sprintf("%d:%s/%s", locationID, version, name)
	if v, ok := c.translations.Get(key); ok {
		return v.(map[int64]string), nil
	}

	records, err := c.Get(ctx, locationID, version, name, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(records))
	for _, raw := range records {
		var rec model.TranslationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", name, err)
		}
		out[rec.ID.Int64()] = rec.Name
	}

	c.translations.Set(key, out, gocache.DefaultExpiration)
	return out, nil
}

// credentials returns the credential record for a location with a valid
// bearer token, refreshing and persisting the token when the cached one
// is missing or older than the cache TTL. The read-then-write is not
// guarded; concurrent callers can refresh redundantly and the last
// write wins.
func (c *Client) credentials(ctx context.Context, locationID int64) (*model.Credential, error) {
	cred, err := c.creds.GetByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if cred.TokenExpired(c.cfg.TokenCacheTTL) {
		token, err := c.issuer.AccessToken(ctx, cred)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh access token: %w", err)
		}
		if err := c.creds.UpdateToken(ctx, locationID, token, cred.SystemTime); err != nil {
			return nil, err
		}
		cred.AccessToken = &token
		createTime := cred.SystemTime
		cred.AccessTokenCreateTime = &createTime
		if c.metrics != nil {
			c.metrics.TokenRefreshes.Inc()
		}
		c.logger.Debug("refreshed access token", "location_id", locationID)
	}

	return cred, nil
}

// callAPI issues one GET and retries exactly once after RetrySleep on a
// non-200 status. A second non-200 is fatal. There is no backoff and no
// 4xx/5xx distinction.
func (c *Client) callAPI(ctx context.Context, endpoint, requestURL string, headers map[string]string, params map[string]string) ([]byte, error) {
	status, body, err := c.doRequest(ctx, endpoint, requestURL, headers, params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Warn("API replied with non-200 status, retrying once",
			"endpoint", endpoint, "status", status, "sleep", c.cfg.RetrySleep.String())
		if c.metrics != nil {
			c.metrics.APIRetries.Inc()
		}
		if err := sleepCtx(ctx, c.cfg.RetrySleep); err != nil {
			return nil, err
		}
		status, body, err = c.doRequest(ctx, endpoint, requestURL, headers, params)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, &APIError{StatusCode: status, Body: string(body)}
		}
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint, requestURL string, headers map[string]string, params map[string]string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if c.metrics != nil {
		c.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		c.metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}

	return resp.StatusCode, body, nil
}

func (c *Client) countPage() {
	if c.metrics != nil {
		c.metrics.PagesFetched.Inc()
	}
}

func mergeHeaders(headers map[string]string, token string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["Authorization"] = "Bearer " + token
	return out
}

func unwrapItems(items []map[string]json.RawMessage, resource string) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		record, ok := item[resource]
		if !ok {
			return nil, fmt.Errorf("item %d missing %q envelope key", i, resource)
		}
		out = append(out, record)
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
