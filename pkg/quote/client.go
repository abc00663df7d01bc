package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/types"
)

// Client talks to the external wallet backend: quotation issuance and
// withdrawal submission. Quotation fetches are retried on transport and
// server errors; submissions are attempted once because the backend treats a
// quotation id as single-use.
type Client struct {
	baseURL    string
	apiKey     string
	retries    uint
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, retries uint) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		retries: retries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type quotationRequest struct {
	Amount string `json:"amount"`
}

// GetQuotation requests a quotation for the given amount.
func (c *Client) GetQuotation(ctx context.Context, amount string) (types.Quotation, error) {
	body, err := json.Marshal(quotationRequest{Amount: amount})
	if err != nil {
		return types.Quotation{}, fmt.Errorf("get quotation: %w", err)
	}

	var quotation types.Quotation
	err = retry.Do(
		func() error {
			resp, err := c.post(ctx, "/v1/quotations", body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := c.statusError(resp)
				if resp.StatusCode >= http.StatusInternalServerError {
					return err
				}
				// 4xx means the request itself is bad; retrying cannot help.
				return retry.Unrecoverable(err)
			}
			return json.NewDecoder(resp.Body).Decode(&quotation)
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(200*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Quotation fetch failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return types.Quotation{}, fmt.Errorf("get quotation: %w", err)
	}
	return quotation, nil
}

type submitRequest struct {
	QuotationID string `json:"quotation_id"`
	Signature   string `json:"signature"`
}

type submitResponse struct {
	Accepted bool `json:"accepted"`
}

// SubmitWithdrawal submits a signed withdrawal. Returns false without error
// on a clean backend rejection; transport and server failures return an error.
func (c *Client) SubmitWithdrawal(ctx context.Context, quotationID, signature string) (bool, error) {
	body, err := json.Marshal(submitRequest{QuotationID: quotationID, Signature: signature})
	if err != nil {
		return false, fmt.Errorf("submit withdrawal: %w", err)
	}

	resp, err := c.post(ctx, "/v1/withdrawals", body)
	if err != nil {
		return false, fmt.Errorf("submit withdrawal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("submit withdrawal: %w", c.statusError(resp))
	}

	var result submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("submit withdrawal: %w", err)
	}
	return result.Accepted, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.httpClient.Do(req)
}

func (c *Client) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}
