/**
 * @description
 * This package provides an HTTP-backed implementation of the generic asset
 * capability consumed by the foreign-asset-recovery pathway. Each client
 * instance points at one external asset contract endpoint; the administrator
 * supplies a client per recovery call.
 */
package assetclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for one external asset contract.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new asset contract client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type metadataResponse struct {
	Name        string  `json:"name"`
	Symbol      string  `json:"symbol"`
	Decimals    uint8   `json:"decimals"`
	TotalSupply int64   `json:"total_supply"`
	TokenURI    *string `json:"token_uri,omitempty"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type transferRequest struct {
	Amount int64   `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Memo   *string `json:"memo,omitempty"`
}

type transferResponse struct {
	OK bool `json:"ok"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-asset-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("asset api error (status %d)", resp.StatusCode)
	}
	return json.Unmarshal(bodyBytes, out)
}

func (c *Client) metadata(ctx context.Context) (*metadataResponse, error) {
	var meta metadataResponse
	if err := c.getJSON(ctx, "/api/v1/metadata", &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) Name(ctx context.Context) (string, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (c *Client) Symbol(ctx context.Context) (string, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return "", err
	}
	return meta.Symbol, nil
}

func (c *Client) Decimals(ctx context.Context) (uint8, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

func (c *Client) TotalSupply(ctx context.Context) (int64, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return 0, err
	}
	return meta.TotalSupply, nil
}

func (c *Client) TokenURI(ctx context.Context) (*string, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return nil, err
	}
	return meta.TokenURI, nil
}

func (c *Client) BalanceOf(ctx context.Context, account string) (int64, error) {
	var balance balanceResponse
	if err := c.getJSON(ctx, "/api/v1/accounts/"+account+"/balance", &balance); err != nil {
		return 0, err
	}
	return balance.Balance, nil
}

// Transfer asks the asset contract to move `amount` from one account to
// another. The boolean mirrors the contract's own accepted/rejected verdict.
func (c *Client) Transfer(ctx context.Context, amount int64, from, to string, memo *string) (bool, error) {
	body, err := json.Marshal(transferRequest{Amount: amount, From: from, To: to, Memo: memo})
	if err != nil {
		return false, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/transfers", bytes.NewBuffer(body))
	if err != nil {
		return false, fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-asset-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute transfer request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read transfer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("asset api error (status %d)", resp.StatusCode)
	}

	var result transferResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return false, fmt.Errorf("failed to decode transfer response: %w", err)
	}
	return result.OK, nil
}
