// Package supabase is a minimal client for the PostgREST API of a hosted
// Supabase project. It only reads the products table.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/rs/zerolog/log"
)

// APIError is a non-2xx PostgREST response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("supabase: status %d", e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase: status %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.StatusCode, e.Message)
}

// Client queries a Supabase project with its anon key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for cfg. A nil httpClient gets a 15 second
// timeout.
func NewClient(cfg *config.SupabaseConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.Key,
		httpClient: httpClient,
	}
}

// ProductsByCategory selects every products row with gender = category,
// newest first, in one request.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]models.ProductRow, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("gender", "eq."+category)
	query.Set("order", "created_at.desc")

	var products []restProduct
	if err := c.get(ctx, "/rest/v1/products", query, &products); err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	rows := make([]models.ProductRow, len(products))
	for i, p := range products {
		rows[i] = models.ProductRow{
			ID:        p.ID,
			Title:     p.Title,
			Price:     p.Price,
			ImageURL:  p.ImageURL,
			Gender:    p.Gender,
			CreatedAt: parseTimestamp(p.CreatedAt),
		}
	}

	log.Debug().Str("category", category).Int("rows", len(rows)).Msg("Fetched products from Supabase")
	return rows, nil
}

// restProduct is a products row as PostgREST encodes it. created_at stays
// text: "timestamp" columns come back without a zone offset.
type restProduct struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Price     *float64 `json:"price"`
	ImageURL  string   `json:"image_url"`
	Gender    string   `json:"gender"`
	CreatedAt string   `json:"created_at"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp reads a PostgREST timestamp with or without an offset.
// Values without one are taken as UTC; unparsable values yield the zero time.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	log.Debug().Str("created_at", value).Msg("Unrecognized timestamp from Supabase")
	return time.Time{}
}

// Ping checks that the REST endpoint answers for this key.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")

	var rows []json.RawMessage
	return c.get(ctx, "/rest/v1/products", query, &rows)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, target interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
