package firs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const userAgent = "Sage50-EInvoicing-Integration/1.0"

// Client is a thin, retry-aware wrapper around the authority API. Every
// request carries the participant identity and API key headers.
type Client struct {
	baseURL       string
	participantID string
	apiKey        string
	httpClient    *http.Client
	maxAttempts   int
	backoffBase   time.Duration
	log           zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxAttempts sets the submit retry ceiling (including the first try).
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; each retry doubles it.
func WithBackoffBase(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// WithLogger sets the client logger
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates an authority API client.
func NewClient(baseURL, participantID, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       baseURL,
		participantID: participantID,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		maxAttempts:   4,
		backoffBase:   500 * time.Millisecond,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts a document to /invoice/generate and returns the issued IRN.
//
// Network failures and 5xx responses are retried with bounded exponential
// backoff. A 4xx means the authority rejected the document: no retry, the
// rejection message comes back verbatim. A 409 whose body already carries an
// IRN means the invoice exists on the authority side; that IRN is adopted and
// the call succeeds. A timeout is ambiguous (the server may have accepted the
// request) and is flagged so the caller verifies before any resubmission.
func (c *Client) Submit(ctx context.Context, doc *Invoice) (*SubmitResult, error) {
	var lastErr *SubmitError

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			c.log.Warn().
				Str("invoice", doc.DocumentIdentifier).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("retrying submission")
			select {
			case <-ctx.Done():
				lastErr.Message = fmt.Sprintf("%s; then cancelled: %v", lastErr.Message, ctx.Err())
				return nil, lastErr
			case <-time.After(delay):
			}
		}

		status, body, err := c.do(ctx, http.MethodPost, "/invoice/generate", doc)
		if err != nil {
			lastErr = &SubmitError{
				Kind:      KindTransient,
				Message:   err.Error(),
				Ambiguous: isTimeout(err),
				Cause:     err,
			}
			continue
		}

		switch {
		case status == http.StatusOK || status == http.StatusCreated:
			result := parseSubmitBody(body)
			if result.IRN == "" {
				result.IRN = "UNKNOWN"
			}
			return result, nil

		case status == http.StatusConflict:
			// Already on the authority: adopt the IRN from the error body.
			if result := parseConflictBody(body); result.IRN != "" {
				c.log.Info().
					Str("invoice", doc.DocumentIdentifier).
					Str("irn", result.IRN).
					Msg("invoice already exists on authority, adopting IRN")
				return result, nil
			}
			return nil, &SubmitError{
				Kind:       KindRejected,
				StatusCode: status,
				Message:    extractMessage(body),
			}

		case status >= 500:
			lastErr = &SubmitError{
				Kind:       KindTransient,
				StatusCode: status,
				Message:    extractMessage(body),
			}
			continue

		default:
			return nil, &SubmitError{
				Kind:       KindRejected,
				StatusCode: status,
				Message:    extractMessage(body),
			}
		}
	}

	return nil, lastErr
}

// FindByReference checks whether the authority already holds an invoice for
// the given document identifier. Used after an ambiguous submission outcome.
func (c *Client) FindByReference(ctx context.Context, reference string) (*SubmitResult, bool, error) {
	path := "/invoice/search?reference=" + url.QueryEscape(reference)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, false, err
	}

	var envelope struct {
		Data []struct {
			IRN                string `json:"irn"`
			QRCode             string `json:"qr_code"`
			DocumentIdentifier string `json:"document_identifier"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("parse search response: %w", err)
	}

	for _, inv := range envelope.Data {
		if inv.DocumentIdentifier == reference && inv.IRN != "" {
			return &SubmitResult{IRN: inv.IRN, QRPayload: inv.QRCode}, true, nil
		}
	}
	return nil, false, nil
}

// ListInvoices returns the raw invoice listing from /invoice/search.
func (c *Client) ListInvoices(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/invoice/search")
}

// FetchInvoice downloads the full invoice record for an IRN.
func (c *Client) FetchInvoice(ctx context.Context, irn string) (json.RawMessage, error) {
	return c.get(ctx, "/invoice/download/"+url.PathEscape(irn))
}

// FetchQRPayload returns the QR payload the authority issued for an IRN.
func (c *Client) FetchQRPayload(ctx context.Context, irn string) (string, error) {
	body, err := c.get(ctx, "/invoice/details/"+url.PathEscape(irn))
	if err != nil {
		return "", err
	}
	result := parseSubmitBody(body)
	if result.QRPayload == "" {
		return "", fmt.Errorf("no qr_code in response for IRN %s", irn)
	}
	return result.QRPayload, nil
}

// UpdatePaymentStatus patches the payment state of a submitted invoice.
func (c *Client) UpdatePaymentStatus(ctx context.Context, irn, status, reference string) error {
	payload := map[string]string{
		"payment_status": status,
		"reference":      reference,
	}
	httpStatus, body, err := c.do(ctx, http.MethodPatch, "/invoice/"+url.PathEscape(irn), payload)
	if err != nil {
		return err
	}
	if httpStatus != http.StatusOK {
		return fmt.Errorf("payment update failed [%d]: %s", httpStatus, extractMessage(body))
	}
	return nil
}

// FetchReferenceData downloads one of the authority's reference data sets
// (HS codes, currencies, countries...).
func (c *Client) FetchReferenceData(ctx context.Context, kind ReferenceDataKind) (json.RawMessage, error) {
	return c.get(ctx, "/resources/"+string(kind))
}

// TestConnection verifies API reachability and credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.FetchReferenceData(ctx, RefAll)
	return err
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GET %s failed [%d]: %s", path, status, extractMessage(body))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("participant-id", c.participantID)
	req.Header.Set("x-api-key", c.apiKey)

	c.log.Debug().Str("method", method).Str("path", path).Msg("api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("api response")
	return resp.StatusCode, body, nil
}

// parseSubmitBody pulls irn/qr_code out of a success envelope. The API wraps
// payloads in "data", sometimes twice.
func parseSubmitBody(body []byte) *SubmitResult {
	var envelope struct {
		IRN    string `json:"irn"`
		QRCode string `json:"qr_code"`
		Data   struct {
			IRN    string `json:"irn"`
			QRCode string `json:"qr_code"`
			Data   struct {
				IRN    string `json:"irn"`
				QRCode string `json:"qr_code"`
			} `json:"data"`
		} `json:"data"`
	}
	_ = json.Unmarshal(body, &envelope)

	result := &SubmitResult{IRN: envelope.IRN, QRPayload: envelope.QRCode}
	if result.IRN == "" {
		result.IRN = envelope.Data.IRN
		result.QRPayload = envelope.Data.QRCode
	}
	if result.IRN == "" {
		result.IRN = envelope.Data.Data.IRN
		result.QRPayload = envelope.Data.Data.QRCode
	}
	return result
}

// parseConflictBody pulls irn/qr_code out of a 409 body, where they live
// under "errors".
func parseConflictBody(body []byte) *SubmitResult {
	var envelope struct {
		IRN    string `json:"irn"`
		QRCode string `json:"qr_code"`
		Errors struct {
			IRN    string `json:"irn"`
			QRCode string `json:"qr_code"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(body, &envelope)

	if envelope.Errors.IRN != "" {
		return &SubmitResult{IRN: envelope.Errors.IRN, QRPayload: envelope.Errors.QRCode}
	}
	return &SubmitResult{IRN: envelope.IRN, QRPayload: envelope.QRCode}
}

func extractMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	msg := string(body)
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
