package bank

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"merch_ledger/internal/sales"
)

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

type transferRequest struct {
	Amount uint64         `json:"amount"`
	From   sales.Identity `json:"from"`
	To     sales.Identity `json:"to"`
}

// Client talks to a remote balance service over HTTP.
//
//	GET  /balances/{identity} -> {"balance": n}, 404 for unknown accounts
//	POST /transfers {"amount", "from", "to"} -> 2xx on success, 402 or 409 when declined
type Client struct {
	client *resty.Client
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{client: c}
}

func (c *Client) BalanceOf(ctx context.Context, id sales.Identity) (uint64, error) {
	var out balanceResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("identity", string(id)).
		SetResult(&out).
		Get("/balances/{identity}")
	if err != nil {
		return 0, fmt.Errorf("error making request to balance API: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return out.Balance, nil
	case http.StatusNotFound:
		return 0, nil
	default:
		return 0, fmt.Errorf("balance API returned unexpected status: %d", resp.StatusCode())
	}
}

func (c *Client) Transfer(ctx context.Context, amount uint64, from, to sales.Identity) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(transferRequest{Amount: amount, From: from, To: to}).
		Post("/transfers")
	if err != nil {
		return fmt.Errorf("error making request to balance API: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusPaymentRequired || code == http.StatusConflict:
		return fmt.Errorf("transfer of %d from %q declined: %w", amount, from, sales.ErrInsufficientFunds)
	default:
		return fmt.Errorf("%w: balance API returned unexpected status: %d", sales.ErrTransferFailed, code)
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}
