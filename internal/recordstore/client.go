// Package recordstore talks to the spreadsheet-style record store that holds
// the membership data: named tables of loosely typed records, queried with
// server-side formulas and paged with offset tokens.
package recordstore

import (
	"bytes"
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
)

var (
	ErrNotFound    = errors.New("recordstore: record not found")
	ErrUnavailable = errors.New("recordstore: unavailable")
)

// APIError is a non-retryable rejection reported by the store.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recordstore: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

type Store interface {
	Find(ctx context.Context, table string, opts FindOptions) ([]Record, error)
	Get(ctx context.Context, table, recordID string) (Record, error)
	Create(ctx context.Context, table string, fields Fields) (Record, error)
	Update(ctx context.Context, table, recordID string, fields Fields) (Record, error)
}

type SortField struct {
	Field      string
	Descending bool
}

type FindOptions struct {
	Formula    Formula
	Fields     []string
	Sort       []SortField
	MaxRecords int
	PageSize   int
}

type Record struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      Fields    `json:"fields"`
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("recordstore: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("recordstore: invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, apiKey: cfg.APIKey, http: httpClient}, nil
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Find returns every record matching opts, following offset tokens until the
// store reports no further pages or MaxRecords is reached.
func (c *Client) Find(ctx context.Context, table string, opts FindOptions) ([]Record, error) {
	var out []Record
	offset := ""
	for {
		q := findQuery(opts, offset)
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)

		if opts.MaxRecords > 0 && len(out) >= opts.MaxRecords {
			return out[:opts.MaxRecords], nil
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) Get(ctx context.Context, table, recordID string) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.recordURL(table, recordID), nil, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	var rec Record
	body := map[string]any{"fields": fields, "typecast": true}
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) Update(ctx context.Context, table, recordID string, fields Fields) (Record, error) {
	var rec Record
	body := map[string]any{"fields": fields, "typecast": true}
	if err := c.do(ctx, http.MethodPatch, c.recordURL(table, recordID), body, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + url.PathEscape(table)
}

func (c *Client) recordURL(table, recordID string) string {
	return c.tableURL(table) + "/" + url.PathEscape(recordID)
}

func findQuery(opts FindOptions, offset string) url.Values {
	q := url.Values{}
	if opts.Formula != "" {
		q.Set("filterByFormula", string(opts.Formula))
	}
	for _, f := range opts.Fields {
		q.Add("fields[]", f)
	}
	for i, s := range opts.Sort {
		q.Set("sort["+strconv.Itoa(i)+"][field]", s.Field)
		dir := "asc"
		if s.Descending {
			dir = "desc"
		}
		q.Set("sort["+strconv.Itoa(i)+"][direction]", dir)
	}
	if opts.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	return q
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("recordstore: decode %s response: %w", req.URL.Path, err)
		}
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, method, req.URL.Path, resp.StatusCode)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Type = payload.Error.Type
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}
