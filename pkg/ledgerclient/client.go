/**
 * @description
 * This package provides a client for the external ledger system that holds
 * account balances and settles primitive single transfers. It encapsulates the
 * logic for making authenticated HTTP requests to the ledger's endpoints,
 * handling request body construction, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the ledger API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new ledger API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// transferRequest is the payload for the ledger's transfer primitive.
type transferRequest struct {
	Amount int64  `json:"amount"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// balanceResponse is the ledger's balance query response.
type balanceResponse struct {
	Account          string `json:"account"`
	AvailableBalance int64  `json:"available_balance"`
}

// ErrorResponse represents an error reported by the ledger API.
type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

func (e *ErrorResponse) Error() string {
	if e.Code == "" && e.Detail == "" {
		return "unknown ledger api error"
	}
	return fmt.Sprintf("ledger api error: %s - %s", e.Code, e.Detail)
}

// GetBalance fetches the available balance for an account.
func (c *Client) GetBalance(ctx context.Context, account string) (int64, error) {
	url := c.BaseURL + "/api/v1/accounts/" + account + "/balance"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create balance request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute balance request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, c.decodeError("get_balance", resp.StatusCode, bodyBytes)
	}

	var balance balanceResponse
	if err := json.Unmarshal(bodyBytes, &balance); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	return balance.AvailableBalance, nil
}

// Transfer settles one primitive transfer from one account to another.
func (c *Client) Transfer(ctx context.Context, amount int64, from, to string) error {
	body, err := json.Marshal(transferRequest{Amount: amount, From: from, To: to})
	if err != nil {
		return fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/transfers", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute transfer request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read transfer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError("transfer", resp.StatusCode, bodyBytes)
	}
	return nil
}

func (c *Client) decodeError(op string, status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		log.Printf("level=warn component=ledger_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, status)
		return fmt.Errorf("failed to decode error response (status %d)", status)
	}
	log.Printf("level=warn component=ledger_client op=%s status=%d code=%q detail=%q", op, status, errResp.Code, errResp.Detail)
	return &errResp
}
