package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&config.SupabaseConfig{URL: server.URL + "/", Key: "anon-key"}, server.Client())
}

func TestProductsByCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the filtered query with both auth headers", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/products", r.URL.Path)
			assert.Equal(t, "*", r.URL.Query().Get("select"))
			assert.Equal(t, "eq.men", r.URL.Query().Get("gender"))
			assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id": 12, "title": "Formal Shirt", "price": 69.99, "image_url": "https://cdn.example.com/12.png", "gender": "men", "created_at": "2024-03-02T10:00:00.123456+00:00"},
				{"id": 11, "title": null, "price": null, "image_url": null, "gender": "men", "created_at": "2024-03-01T10:00:00+00:00"}
			]`))
		})

		rows, err := client.ProductsByCategory(ctx, "men")
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, int64(12), rows[0].ID)
		assert.Equal(t, "Formal Shirt", rows[0].Title)
		require.NotNil(t, rows[0].Price)
		assert.InDelta(t, 69.99, *rows[0].Price, 0.001)
		assert.Equal(t, 2024, rows[0].CreatedAt.Year())
		assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

		assert.Empty(t, rows[1].Title)
		assert.Nil(t, rows[1].Price)
		assert.Empty(t, rows[1].ImageURL)
	})

	t.Run("accepts timestamps without a zone", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"id": 3, "title": "Linen Shirt", "price": 39.99, "image_url": null, "gender": "men", "created_at": "2024-01-20T14:45:00.123456"},
				{"id": 2, "title": "Wool Coat", "price": 89.99, "image_url": null, "gender": "men", "created_at": "not a time"}
			]`))
		})

		rows, err := client.ProductsByCategory(ctx, "men")
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, time.Date(2024, 1, 20, 14, 45, 0, 123456000, time.UTC), rows[0].CreatedAt)
		assert.True(t, rows[1].CreatedAt.IsZero())
		assert.Equal(t, "Wool Coat", rows[1].Title)
	})

	t.Run("surfaces PostgREST errors", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"42P01","message":"relation \"public.products\" does not exist","details":null,"hint":null}`))
		})

		_, err := client.ProductsByCategory(ctx, "women")
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "42P01", apiErr.Code)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not": "an array"`))
		})

		_, err := client.ProductsByCategory(ctx, "women")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode response")
	})

	t.Run("respects context deadlines", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := client.ProductsByCategory(cctx, "women")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})

	assert.NoError(t, client.Ping(context.Background()))
}
