package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ownership"
	"auctionhouse/internal/progression"
)

// Client talks to the auctionhouse API as one actor.
type Client struct {
	BaseURL string
	Token   string
	Actor   string
	HTTP    *http.Client
}

func NewClient(baseURL, token, actor string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Actor:   actor,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func auctionPath(key ledger.ItemKey) string {
	return fmt.Sprintf("/v1/auctions/%s/%d", key.Type, key.ID)
}

func (c *Client) RegisterAuction(ctx context.Context, key ledger.ItemKey) (auction.Status, error) {
	var out auction.Status
	err := c.jsonRequest(ctx, http.MethodPost, auctionPath(key), nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, key ledger.ItemKey) (auction.Status, error) {
	var out auction.Status
	err := c.jsonRequest(ctx, http.MethodGet, auctionPath(key), nil, &out)
	return out, err
}

type BidInput struct {
	Amount int64  `json:"amount"`
	Group  string `json:"group,omitempty"`
	ClubID *int64 `json:"club_id,omitempty"`
}

type BidResult struct {
	Bid    ledger.Bid     `json:"bid"`
	Status auction.Status `json:"status"`
}

func (c *Client) PlaceBid(ctx context.Context, key ledger.ItemKey, in BidInput) (BidResult, error) {
	var out BidResult
	err := c.jsonRequest(ctx, http.MethodPost, auctionPath(key)+"/bids", in, &out)
	return out, err
}

func (c *Client) Bids(ctx context.Context, key ledger.ItemKey) ([]ledger.Bid, error) {
	var out struct {
		Bids []ledger.Bid `json:"bids"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, auctionPath(key)+"/bids", nil, &out)
	return out.Bids, err
}

func (c *Client) Finalize(ctx context.Context, key ledger.ItemKey) (auction.Outcome, error) {
	var out auction.Outcome
	err := c.jsonRequest(ctx, http.MethodPost, auctionPath(key)+"/finalize", nil, &out)
	return out, err
}

func (c *Client) ResetAuction(ctx context.Context, key ledger.ItemKey) error {
	return c.jsonRequest(ctx, http.MethodDelete, auctionPath(key), nil, nil)
}

func (c *Client) SetFrozen(ctx context.Context, frozen bool) error {
	path := "/v1/admin/unfreeze"
	if frozen {
		path = "/v1/admin/freeze"
	}
	return c.jsonRequest(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) Tip(ctx context.Context, user string, amount int64) (ledger.Wallet, error) {
	var out ledger.Wallet
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/tips", map[string]any{"user": user, "amount": amount}, &out)
	return out, err
}

func (c *Client) RegisterClub(ctx context.Context, name string, basePrice int64) (ledger.Club, error) {
	var out ledger.Club
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/clubs", map[string]any{"name": name, "base_price": basePrice}, &out)
	return out, err
}

func (c *Client) RegisterDuelist(ctx context.Context, name string, basePrice, salary int64) (ledger.Duelist, error) {
	var out ledger.Duelist
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/duelists", map[string]any{
		"name":            name,
		"base_price":      basePrice,
		"expected_salary": salary,
	}, &out)
	return out, err
}

func (c *Client) Clubs(ctx context.Context) ([]ledger.Club, error) {
	var out struct {
		Clubs []ledger.Club `json:"clubs"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/clubs", nil, &out)
	return out.Clubs, err
}

func (c *Client) Standing(ctx context.Context, clubID int64) (progression.Standing, error) {
	var out progression.Standing
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/clubs/%d/standing", clubID), nil, &out)
	return out, err
}

func (c *Client) SellClub(ctx context.Context, clubID int64) (int64, error) {
	var out struct {
		Proceeds int64 `json:"proceeds"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/clubs/%d/sell", clubID), nil, &out)
	return out.Proceeds, err
}

func (c *Client) OfferClub(ctx context.Context, clubID int64, buyer string, price int64) (ownership.Proposal, error) {
	var out ownership.Proposal
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/clubs/%d/offers", clubID), map[string]any{"buyer": buyer, "price": price}, &out)
	return out, err
}

func (c *Client) EnsureWallet(ctx context.Context, user string) (ledger.Wallet, error) {
	var out ledger.Wallet
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/wallets/"+url.PathEscape(user), nil, &out)
	return out, err
}

func (c *Client) Wallet(ctx context.Context, user string) (ledger.Wallet, error) {
	var out ledger.Wallet
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/wallets/"+url.PathEscape(user), nil, &out)
	return out, err
}

func groupPath(name string) string {
	return "/v1/groups/" + url.PathEscape(name)
}

func (c *Client) CreateGroup(ctx context.Context, name string, sharePct int64) (ownership.GroupInfo, error) {
	var out ownership.GroupInfo
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/groups", map[string]any{"name": name, "share_pct": sharePct}, &out)
	return out, err
}

func (c *Client) Group(ctx context.Context, name string) (ownership.GroupInfo, error) {
	var out ownership.GroupInfo
	err := c.jsonRequest(ctx, http.MethodGet, groupPath(name), nil, &out)
	return out, err
}

func (c *Client) JoinGroup(ctx context.Context, name string, sharePct int64) error {
	return c.jsonRequest(ctx, http.MethodPost, groupPath(name)+"/join", map[string]any{"share_pct": sharePct}, nil)
}

func (c *Client) LeaveGroup(ctx context.Context, name string) (int64, error) {
	var out struct {
		Penalty int64 `json:"penalty"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, groupPath(name)+"/leave", nil, &out)
	return out.Penalty, err
}

func (c *Client) MoveFunds(ctx context.Context, name string, amount int64, deposit bool) (ownership.GroupInfo, error) {
	verb := "/withdraw"
	if deposit {
		verb = "/deposit"
	}
	var out ownership.GroupInfo
	err := c.jsonRequest(ctx, http.MethodPost, groupPath(name)+verb, map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) OfferShares(ctx context.Context, group string, clubID int64, buyer string, pct int64) (ownership.Proposal, error) {
	var out ownership.Proposal
	err := c.jsonRequest(ctx, http.MethodPost, groupPath(group)+"/share-offers", map[string]any{
		"club_id": clubID,
		"buyer":   buyer,
		"pct":     pct,
	}, &out)
	return out, err
}

func (c *Client) Confirmation(ctx context.Context, id string) (ownership.Proposal, error) {
	var out ownership.Proposal
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/confirmations/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) Resolve(ctx context.Context, id string, accept bool) (ownership.Proposal, error) {
	verb := "/reject"
	if accept {
		verb = "/accept"
	}
	var out ownership.Proposal
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/confirmations/"+url.PathEscape(id)+verb, nil, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.Actor != "" {
		req.Header.Set("X-Actor", c.Actor)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
