// Package salvato is a small client for the Salvato auction API: token
// exchange, auction listing and paginated lot listing.
package salvato

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

	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/model"
)

// PageSize is the fixed limit used when paging through lots.
const PageSize = 10

// ErrPaginationInvariant is returned when lot paging does not reach the
// server-reported total within the expected number of pages.
var ErrPaginationInvariant = errors.New("salvato pagination did not converge")

// AuthError is returned when the token exchange answers with a non-2xx status.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("salvato auth failed: %d", e.Status)
}

// APIError is returned when a listing request answers with a non-2xx status.
type APIError struct {
	Status int
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salvato api failed: %d (%s)", e.Status, e.Path)
}

// Client talks to the upstream auction API. It holds no token state; callers
// exchange a token once per invocation and pass it to each listing call.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	log          *zap.SugaredLogger
}

// New constructs a Client. A nil httpClient falls back to http.DefaultClient.
func New(cfg config.Salvato, httpClient *http.Client, log *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         httpClient,
		log:          log,
	}
}

type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type auctionList struct {
	Data       []model.Auction  `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

type lotPage struct {
	Data       []model.Lot      `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

// Token exchanges the client credentials for a bearer token.
func (c *Client) Token(ctx context.Context) (model.Token, error) {
	body, err := json.Marshal(tokenRequest{ClientID: c.clientID, ClientSecret: c.clientSecret})
	if err != nil {
		return model.Token{}, fmt.Errorf("marshal token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return model.Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return model.Token{}, fmt.Errorf("request token: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Token{}, &AuthError{Status: resp.StatusCode}
	}
	var tok model.Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return model.Token{}, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// Auctions lists every auction visible to the token.
func (c *Client) Auctions(ctx context.Context, token string) ([]model.Auction, error) {
	var out auctionList
	if err := c.getJSON(ctx, "/auctions", nil, token, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Lots pages through all lots of one auction. Paging stops once the
// cumulative count reaches the reported total, and gives up with
// ErrPaginationInvariant after total/PageSize+1 pages.
func (c *Client) Lots(ctx context.Context, auctionID int64, token string) ([]model.Lot, error) {
	path := fmt.Sprintf("/auctions/%d/lots", auctionID)
	lots := make([]model.Lot, 0, PageSize)
	maxPages, total := 0, 0
	for page, offset := 0, 0; ; page, offset = page+1, offset+PageSize {
		if maxPages > 0 && page >= maxPages {
			return nil, fmt.Errorf("%w: auction %d returned %d of %d lots after %d pages",
				ErrPaginationInvariant, auctionID, len(lots), total, page)
		}
		query := url.Values{}
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(PageSize))
		var resp lotPage
		if err := c.getJSON(ctx, path, query, token, &resp); err != nil {
			return nil, err
		}
		lots = append(lots, resp.Data...)
		total = resp.Pagination.Total
		if maxPages == 0 {
			maxPages = total/PageSize + 1
		}
		if len(lots) >= total {
			c.log.Debugw("lots listed", "auctionId", auctionID, "lots", len(lots), "pages", page+1)
			return lots, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer drain(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Path: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
