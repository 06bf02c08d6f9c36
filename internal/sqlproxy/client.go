// Package sqlproxy reads invoice postings through the HTTP service that
// fronts the SQL Server database.
package sqlproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultURL is the query endpoint of the SQL Server proxy.
const DefaultURL = "http://10.1.8.118:9000/sql_server/query"

// Client posts SQL text to the query service. One call is one attempt;
// there are no retries.
type Client struct {
	url         string
	accountCode int
	http        *http.Client
	log         zerolog.Logger
}

// NewClient creates a client for the given endpoint. A zero timeout leaves
// the request bounded only by the remote service.
func NewClient(url string, accountCode int, timeout time.Duration, log zerolog.Logger) *Client {
	if accountCode == 0 {
		accountCode = DefaultAccountCode
	}
	return &Client{
		url:         url,
		accountCode: accountCode,
		http:        &http.Client{Timeout: timeout},
		log:         log,
	}
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Rows json.RawMessage `json:"rows"`
}

// FetchInvoices loads the card-invoice postings paid inside r.
// Any transport, status or decoding failure is reported as domain.ErrDataUnavailable.
func (c *Client) FetchInvoices(ctx context.Context, r domain.DateRange) (*domain.Dataset, error) {
	start := time.Now()

	raw, err := c.Query(ctx, BuildInvoiceQuery(c.accountCode, r))
	if err != nil {
		return nil, fmt.Errorf("FetchInvoices: %w", err)
	}

	ds, err := toDataset(raw)
	if err != nil {
		return nil, fmt.Errorf("FetchInvoices: decoding rows: %w: %w", domain.ErrDataUnavailable, err)
	}

	c.log.Debug().
		Str("start_date", r.Start.String()).
		Str("end_date", r.End.String()).
		Int("rows", ds.Len()).
		Dur("duration", time.Since(start)).
		Msg("Fetched invoice postings")

	return ds, nil
}

// Query submits sql and returns the raw row objects of the response.
func (c *Client) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	body, err := json.Marshal(queryRequest{SQL: sql})
	if err != nil {
		return nil, fmt.Errorf("Query: encoding request: %w: %w", domain.ErrDataUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Query: building request: %w: %w", domain.ErrDataUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Query: calling %s: %w: %w", c.url, domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Query: status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(snippet), domain.ErrDataUnavailable)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("Query: decoding response: %w: %w", domain.ErrDataUnavailable, err)
	}
	if len(qr.Rows) == 0 {
		return nil, fmt.Errorf("Query: response has no rows field: %w", domain.ErrDataUnavailable)
	}

	dec := json.NewDecoder(bytes.NewReader(qr.Rows))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("Query: decoding rows: %w: %w", domain.ErrDataUnavailable, err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}
