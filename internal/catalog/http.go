package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient talks to the supplier's JSON API. All requests pass through a
// client-side rate limiter so a full catalog scan stays under the upstream
// request budget instead of discovering it through 429s.
//
// Endpoints:
//
//	GET {base}/api/products?page=&size=        -> {"list":[...],"total_pages":N} or bare [...]
//	GET {base}/api/products/{pid}              -> product payload
//	GET {base}/api/products/{pid}/variants     -> variants payload (see ExtractVariants)
type HTTPClient struct {
	BaseURL   string
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

func NewHTTPClient(baseURL string, rps float64) *HTTPClient {
	if rps <= 0 {
		rps = 1
	}
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type listEnvelope struct {
	List       []json.RawMessage `json:"list"`
	TotalPages int               `json:"total_pages"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Upstream error codes that mean the product is permanently delisted.
var removedCodes = map[string]struct{}{
	"ITEM_OFF_SHELF":  {},
	"PRODUCT_REMOVED": {},
	"DELISTED":        {},
}

func (c *HTTPClient) ListPage(ctx context.Context, page, pageSize int, filters map[string]string) ([]ListItem, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(pageSize))
	for k, v := range filters {
		q.Set(k, v)
	}

	body, err := c.get(ctx, "", "/api/products?"+q.Encode())
	if err != nil {
		return nil, 0, err
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.List == nil {
		// Bare array fallback.
		var bare []json.RawMessage
		if err2 := json.Unmarshal(body, &bare); err2 != nil {
			return nil, 0, &Error{Kind: KindOther, Msg: "unexpected listing shape"}
		}
		env = listEnvelope{List: bare, TotalPages: 1}
	}
	if env.TotalPages <= 0 {
		env.TotalPages = 1
	}

	items := make([]ListItem, 0, len(env.List))
	for _, raw := range env.List {
		p, ok := ParseProduct(raw)
		if !ok {
			continue // item without a PID cannot be claimed or imported
		}
		items = append(items, ListItem{PID: p.PID, Raw: raw})
	}
	return items, env.TotalPages, nil
}

func (c *HTTPClient) GetDetail(ctx context.Context, pid string) (json.RawMessage, error) {
	return c.get(ctx, pid, "/api/products/"+url.PathEscape(pid))
}

func (c *HTTPClient) GetVariants(ctx context.Context, pid string) (json.RawMessage, error) {
	return c.get(ctx, pid, "/api/products/"+url.PathEscape(pid)+"/variants")
}

func (c *HTTPClient) get(ctx context.Context, pid, path string) (json.RawMessage, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, PID: pid, Msg: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &Error{Kind: KindTransient, PID: pid, Status: resp.StatusCode, Msg: err.Error()}
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	return nil, c.classify(resp.StatusCode, pid, body)
}

func (c *HTTPClient) classify(status int, pid string, body []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("http %d", status)
	}

	kind := KindOther
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusGone:
		kind = KindRemoved
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 500:
		kind = KindTransient
	}
	if _, removed := removedCodes[env.Code]; removed {
		kind = KindRemoved
	}

	return &Error{Kind: kind, Status: status, PID: pid, Msg: msg}
}
