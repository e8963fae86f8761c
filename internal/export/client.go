package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxReportSize caps how much of a document response is read.
const maxReportSize = 32 << 20

// DocumentClient calls the document-generation endpoint over HTTP.
type DocumentClient struct {
	url        string
	httpClient *http.Client
}

type ClientOption func(*DocumentClient)

// WithHTTPClient replaces the default client, mostly for tests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(d *DocumentClient) { d.httpClient = c }
}

func NewDocumentClient(url string, timeout time.Duration, opts ...ClientOption) *DocumentClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d := &DocumentClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DocumentError is a non-2xx answer from the document endpoint.
type DocumentError struct {
	StatusCode int
	Message    string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document endpoint returned %d: %s", e.StatusCode, e.Message)
}

// Render POSTs req and returns the report bytes.
func (d *DocumentClient) Render(ctx context.Context, req DocumentRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode document request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build document request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/pdf")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call document endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &DocumentError{StatusCode: resp.StatusCode, Message: msg}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}
