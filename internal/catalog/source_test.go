package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProductQuerier struct {
	mock.Mock
}

func (m *MockProductQuerier) ProductsByCategory(ctx context.Context, category string) ([]models.ProductRow, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProductRow), args.Error(1)
}

func floatPtr(v float64) *float64 { return &v }

func TestBackendSourceLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("maps rows in order", func(t *testing.T) {
		querier := new(MockProductQuerier)
		querier.On("ProductsByCategory", mock.Anything, "women").Return([]models.ProductRow{
			{ID: 9, Title: "Silk Blouse", Price: floatPtr(59.9), ImageURL: "https://cdn.example.com/9.png", Gender: "women"},
			{ID: 4, Title: "Maxi Dress", Price: floatPtr(89), ImageURL: "https://cdn.example.com/4.png", Gender: "women"},
		}, nil)

		records, err := NewBackendSource("postgres", querier).Load(ctx, "women")
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, models.ProductRecord{
			ID:          9,
			DisplayName: "Silk Blouse",
			Price:       "€59.90",
			ImageRef:    "https://cdn.example.com/9.png",
			AltText:     "Silk Blouse",
		}, records[0])
		assert.Equal(t, int64(4), records[1].ID)
		assert.Equal(t, "€89.00", records[1].Price)
		querier.AssertNumberOfCalls(t, "ProductsByCategory", 1)
	})

	t.Run("fills placeholders for missing fields", func(t *testing.T) {
		querier := new(MockProductQuerier)
		querier.On("ProductsByCategory", mock.Anything, "men").Return([]models.ProductRow{
			{ID: 1, Gender: "men"},
		}, nil)

		records, err := NewBackendSource("supabase", querier).Load(ctx, "men")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, UntitledProduct, records[0].DisplayName)
		assert.Equal(t, PlaceholderImage, records[0].ImageRef)
		assert.Equal(t, PriceOnRequest, records[0].Price)
	})

	t.Run("strips markup from titles", func(t *testing.T) {
		querier := new(MockProductQuerier)
		querier.On("ProductsByCategory", mock.Anything, "men").Return([]models.ProductRow{
			{ID: 2, Title: `<b>Wool</b> Sweater & Scarf<script>alert(1)</script>`, Gender: "men"},
			{ID: 3, Title: `<img src=x onerror=alert(1)>`, Gender: "men"},
		}, nil)

		records, err := NewBackendSource("postgres", querier).Load(ctx, "men")
		require.NoError(t, err)
		assert.Equal(t, "Wool Sweater & Scarf", records[0].DisplayName)
		assert.Equal(t, UntitledProduct, records[1].DisplayName)
	})

	t.Run("wraps query failures", func(t *testing.T) {
		querier := new(MockProductQuerier)
		querier.On("ProductsByCategory", mock.Anything, "men").Return(nil, errors.New("relation \"products\" does not exist"))

		_, err := NewBackendSource("postgres", querier).Load(ctx, "men")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load men products")
	})
}

func TestFormatEuro(t *testing.T) {
	assert.Equal(t, "€49.99", FormatEuro(49.99))
	assert.Equal(t, "€5.00", FormatEuro(5))
	assert.Equal(t, "€0.13", FormatEuro(0.125000001))
}

// gatedProber blocks every probe until release is closed.
type gatedProber struct {
	release chan struct{}
	calls   atomic.Int32
}

func (p *gatedProber) Probe(ctx context.Context, path string) (bool, error) {
	p.calls.Add(1)
	select {
	case <-p.release:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return path == "assets/products/1.png", nil
}

func TestProbeSourceSharesConcurrentRuns(t *testing.T) {
	prober := &gatedProber{release: make(chan struct{})}
	source := NewProbeSource(prober, ProbeOptions{Max: 5, Price: CyclicPrice()})

	var wg sync.WaitGroup
	results := make([][]models.ProductRecord, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records, err := source.Load(context.Background(), CategoryWomen)
			assert.NoError(t, err)
			results[i] = records
		}(i)
	}

	// Let all three callers join the same flight before any probe resolves.
	time.Sleep(50 * time.Millisecond)
	close(prober.release)
	wg.Wait()

	for _, records := range results {
		require.Len(t, records, 1)
		assert.Equal(t, int64(1), records[0].ID)
	}
	assert.Equal(t, int32(5), prober.calls.Load())
}
