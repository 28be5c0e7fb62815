// Package beehive implements the client for the smart-city IoT platform
// that hosts the digital beehive sensors.  It covers exactly the two
// operations the pipeline consumes: entity discovery per auth group and
// time-series retrieval per entity.  Retries and back-off live in httpx;
// a non-2xx status after retries surfaces as a *StatusError.
package beehive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/httpx"
)

// StatusError reports a non-2xx upstream response after the transport's
// retry policy is exhausted.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("beehive: %s: status %d", e.Op, e.StatusCode)
}

// API abstracts the platform calls so the polling pipeline can be tested
// with a mock.
type API interface {
	EntityIDs(ctx context.Context, authGroup string) ([]string, error)
	TimeSeries(ctx context.Context, entityID, authGroup string, start, end time.Time) (json.RawMessage, error)
}

// Client talks to the platform over HTTP.  Safe for concurrent use by
// parallel group workers.
type Client struct {
	client *httpx.Client
	base   string
	apiKey string

	mu   sync.Mutex
	keys map[string][]string // authGroup -> time-series keys
}

// NewClient creates a Client for the given platform base URL and API key.
func NewClient(client *httpx.Client, baseURL, apiKey string) *Client {
	return &Client{
		client: client,
		base:   strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		keys:   make(map[string][]string),
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type entitiesResponse struct {
	Entities []struct {
		EntityID struct {
			ID string `json:"id"`
		} `json:"entityId"`
	} `json:"entities"`
}

type valueTypesResponse struct {
	ValueType struct {
		TimeSeries []struct {
			Key string `json:"key"`
		} `json:"TIME_SERIES"`
	} `json:"valueType"`
}

type timeSeriesResponse struct {
	Timeseries json.RawMessage `json:"timeseries"`
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// EntityIDs lists the device entity IDs visible under an auth group.
func (c *Client) EntityIDs(ctx context.Context, authGroup string) ([]string, error) {
	u := fmt.Sprintf("%s/authGroup/%s/entityId?page=0", c.base, url.PathEscape(authGroup))

	var resp entitiesResponse
	if err := c.getJSON(ctx, "list entities", u, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		ids = append(ids, e.EntityID.ID)
	}
	return ids, nil
}

// TimeSeries fetches the raw time-series payload for one entity in the
// given window.  The payload shape is not normalized here; it is returned
// verbatim for the normalizer to classify.
func (c *Client) TimeSeries(ctx context.Context, entityID, authGroup string, start, end time.Time) (json.RawMessage, error) {
	keys, err := c.seriesKeys(ctx, authGroup)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/authGroup/%s/entityId/%s/valueType/timeseries?%s",
		c.base,
		url.PathEscape(authGroup),
		url.PathEscape(entityID),
		url.Values{
			"keys":    {strings.Join(keys, ",")},
			"startTs": {strconv.FormatInt(start.UnixMilli(), 10)},
			"endTs":   {strconv.FormatInt(end.UnixMilli(), 10)},
		}.Encode(),
	)

	var resp timeSeriesResponse
	if err := c.getJSON(ctx, "time series", u, &resp); err != nil {
		return nil, err
	}
	return resp.Timeseries, nil
}

// seriesKeys returns the time-series metric keys registered for an auth
// group.  The key set is static platform configuration, so it is fetched
// once per group and cached for the process lifetime.
func (c *Client) seriesKeys(ctx context.Context, authGroup string) ([]string, error) {
	c.mu.Lock()
	cached, ok := c.keys[authGroup]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	u := fmt.Sprintf("%s/authGroup/%s/valueType", c.base, url.PathEscape(authGroup))

	var resp valueTypesResponse
	if err := c.getJSON(ctx, "value types", u, &resp); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(resp.ValueType.TimeSeries))
	for _, vt := range resp.ValueType.TimeSeries {
		keys = append(keys, vt.Key)
	}

	c.mu.Lock()
	c.keys[authGroup] = keys
	c.mu.Unlock()
	return keys, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("beehive: %s: new request: %w", op, err)
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("beehive: %s: %w", op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("beehive: %s: decode response: %w", op, err)
	}
	return nil
}
