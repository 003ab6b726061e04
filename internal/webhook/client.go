// ABOUTME: HTTP client for the external workflow-automation webhooks
// ABOUTME: Submits captured leads and fetches the stored lead list

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/formgate/formgate/internal/lead"
)

// ErrNotConfigured is returned when the needed webhook URL is empty.
var ErrNotConfigured = errors.New("webhook URL not configured")

// StatusError reports a non-2xx response from the automation system.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

// Config holds the two webhook endpoints and an optional HTTP client.
type Config struct {
	SubmitURL string
	ReadURL   string

	// HTTPClient overrides the default 10-second-timeout client. Used in tests.
	HTTPClient *http.Client
}

// Client talks to the external automation system. It treats the system as an
// opaque collaborator: submit is fire-and-forget JSON, read returns whatever
// rows the flow emits, normalized into leads.
type Client struct {
	submitURL  string
	readURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a webhook client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		submitURL:  cfg.SubmitURL,
		readURL:    cfg.ReadURL,
		httpClient: httpClient,
		logger:     slog.Default().With("component", "webhook"),
	}
}

// Submit POSTs the lead as JSON to the submit webhook. A non-2xx response is
// a *StatusError; transport failures are returned as-is.
func (c *Client) Submit(ctx context.Context, l lead.Lead) error {
	if c.submitURL == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting lead: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	c.logger.Debug("lead submitted", "email", l.Email)
	return nil
}

// FetchLeads GETs the read webhook and normalizes the response into leads.
// The automation system may answer with a bare JSON array or wrap it in a
// {"data": [...]} / {"leads": [...]} / {"items": [...]} envelope.
func (c *Client) FetchLeads(ctx context.Context) ([]lead.Lead, error) {
	if c.readURL == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.readURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building read request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching leads: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading leads response: %w", err)
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}

	leads := lead.NormalizeAll(rows)
	c.logger.Debug("fetched leads", "rows", len(rows), "leads", len(leads))
	return leads, nil
}

func decodeRows(body []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding leads response: %w", err)
	}
	for _, key := range []string{"data", "leads", "items", "rows"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decoding leads response %q: %w", key, err)
		}
		return rows, nil
	}

	// A single-object response is treated as one row
	var row map[string]any
	if err := json.Unmarshal(body, &row); err == nil {
		return []map[string]any{row}, nil
	}
	return nil, fmt.Errorf("decoding leads response: unrecognized shape")
}
