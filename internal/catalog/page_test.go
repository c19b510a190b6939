package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource returns canned results per category and can hold loads open
// until released.
type stubSource struct {
	mu      sync.Mutex
	results map[string][]models.ProductRecord
	errs    map[string]error
	calls   []string
	gate    chan struct{}
}

func newStubSource() *stubSource {
	return &stubSource{
		results: make(map[string][]models.ProductRecord),
		errs:    make(map[string]error),
	}
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context, category string) ([]models.ProductRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, category)
	gate := s.gate
	records, err := s.results[category], s.errs[category]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return records, err
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func record(id int64, name string) models.ProductRecord {
	return models.ProductRecord{ID: id, DisplayName: name, Price: "€29.99", ImageRef: "/x.png", AltText: name}
}

func waitLoaded(t *testing.T, p *Page) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestPageRefresh(t *testing.T) {
	source := newStubSource()
	source.results[CategoryWomen] = []models.ProductRecord{record(1, "Cotton Dress"), record(2, "Silk Blouse")}

	page := NewPage("p1", source, PageOptions{DefaultCategory: CategoryWomen})

	assert.True(t, page.Refresh(context.Background()))
	waitLoaded(t, page)

	state := page.State()
	assert.False(t, state.IsLoading)
	assert.Equal(t, CategoryWomen, state.CurrentCategory)
	assert.Len(t, state.Products, 2)
	assert.Empty(t, state.StatusText)
	assert.Equal(t, 2, page.Grid().Len())
}

func TestPageSwitchCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown categories", func(t *testing.T) {
		page := NewPage("p", newStubSource(), PageOptions{})
		started, err := page.SwitchCategory(ctx, "kids")
		assert.ErrorIs(t, err, ErrUnknownCategory)
		assert.False(t, started)
	})

	t.Run("ignores the current category", func(t *testing.T) {
		source := newStubSource()
		page := NewPage("p", source, PageOptions{DefaultCategory: CategoryMen})
		page.Refresh(ctx)
		waitLoaded(t, page)

		started, err := page.SwitchCategory(ctx, CategoryMen)
		require.NoError(t, err)
		assert.False(t, started)
		assert.Equal(t, 1, source.callCount())
	})

	t.Run("rapid switches while loading issue one request", func(t *testing.T) {
		source := newStubSource()
		source.gate = make(chan struct{})
		source.results[CategoryMen] = []models.ProductRecord{record(7, "Blazer")}

		page := NewPage("p", source, PageOptions{DefaultCategory: CategoryWomen})

		started, err := page.SwitchCategory(ctx, CategoryMen)
		require.NoError(t, err)
		assert.True(t, started)
		assert.True(t, page.State().IsLoading)
		assert.Equal(t, StatusLoading, page.State().StatusText)

		started, err = page.SwitchCategory(ctx, CategoryWomen)
		require.NoError(t, err)
		assert.False(t, started)
		assert.False(t, page.Refresh(ctx))

		close(source.gate)
		waitLoaded(t, page)

		assert.Equal(t, 1, source.callCount())
		assert.Equal(t, CategoryMen, page.State().CurrentCategory)
	})

	t.Run("replaces the grid without residue", func(t *testing.T) {
		source := newStubSource()
		source.results[CategoryWomen] = []models.ProductRecord{record(1, "A"), record(2, "B")}
		source.results[CategoryMen] = []models.ProductRecord{record(3, "C")}

		page := NewPage("p", source, PageOptions{DefaultCategory: CategoryWomen})
		page.Refresh(ctx)
		waitLoaded(t, page)
		require.Equal(t, 2, page.Grid().Len())

		_, err := page.SwitchCategory(ctx, CategoryMen)
		require.NoError(t, err)
		waitLoaded(t, page)

		records := page.Grid().Records()
		require.Len(t, records, 1)
		assert.Equal(t, "C", records[0].DisplayName)
	})

	t.Run("failure keeps prior products and shows the error", func(t *testing.T) {
		source := newStubSource()
		source.results[CategoryWomen] = []models.ProductRecord{record(1, "A")}
		source.errs[CategoryMen] = errors.New("upstream timeout")

		page := NewPage("p", source, PageOptions{DefaultCategory: CategoryWomen})
		page.Refresh(ctx)
		waitLoaded(t, page)

		_, err := page.SwitchCategory(ctx, CategoryMen)
		require.NoError(t, err)
		waitLoaded(t, page)

		state := page.State()
		assert.True(t, state.ErrorFlag)
		assert.Contains(t, state.ErrorMessage, "upstream timeout")
		assert.Equal(t, CategoryWomen, state.CurrentCategory)
		assert.Len(t, state.Products, 1)
		assert.Equal(t, 1, page.Grid().Len())

		// The failed category can be retried.
		started, err := page.SwitchCategory(ctx, CategoryMen)
		require.NoError(t, err)
		assert.True(t, started)
		waitLoaded(t, page)
	})

	t.Run("load outlives the request context", func(t *testing.T) {
		source := newStubSource()
		source.gate = make(chan struct{})
		source.results[CategoryMen] = []models.ProductRecord{record(5, "Winter Coat")}

		page := NewPage("p", source, PageOptions{})

		reqCtx, cancel := context.WithCancel(ctx)
		_, err := page.SwitchCategory(reqCtx, CategoryMen)
		require.NoError(t, err)
		cancel()

		close(source.gate)
		waitLoaded(t, page)

		state := page.State()
		assert.False(t, state.ErrorFlag)
		assert.Len(t, state.Products, 1)
	})

	t.Run("reports loads to the observer", func(t *testing.T) {
		source := newStubSource()
		source.results[CategoryMen] = []models.ProductRecord{record(1, "A"), record(2, "B")}

		var gotSource string
		var gotCount int
		page := NewPage("p", source, PageOptions{
			Observer: func(name string, count int, err error, _ time.Duration) {
				gotSource, gotCount = name, count
			},
		})

		_, err := page.SwitchCategory(ctx, CategoryMen)
		require.NoError(t, err)
		waitLoaded(t, page)

		assert.Equal(t, "stub", gotSource)
		assert.Equal(t, 2, gotCount)
	})
}

// panicSource fails every load with a runtime panic.
type panicSource struct{}

func (panicSource) Name() string { return "panicky" }

func (panicSource) Load(ctx context.Context, category string) ([]models.ProductRecord, error) {
	var records []models.ProductRecord
	return records[:1], nil
}

func TestPageRecoversFromSourcePanic(t *testing.T) {
	var gotErr error
	page := NewPage("p", panicSource{}, PageOptions{
		DefaultCategory: CategoryWomen,
		Observer: func(source string, count int, err error, elapsed time.Duration) {
			gotErr = err
		},
	})

	require.True(t, page.Refresh(context.Background()))
	waitLoaded(t, page)

	state := page.State()
	assert.False(t, state.IsLoading)
	assert.True(t, state.ErrorFlag)
	assert.Equal(t, render.GenericErrorMessage, state.ErrorMessage)
	assert.Empty(t, state.Products)
	assert.ErrorIs(t, gotErr, ErrLoadPanicked)

	// The page stays usable after the panic.
	assert.True(t, page.Refresh(context.Background()))
	waitLoaded(t, page)
}

func TestPages(t *testing.T) {
	source := newStubSource()
	pages := NewPages(source, PageOptions{}, 30*time.Minute)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pages.now = func() time.Time { return now }

	t.Run("creates a page for unknown ids", func(t *testing.T) {
		page, created := pages.Open("does-not-exist")
		assert.True(t, created)
		assert.NotEqual(t, "does-not-exist", page.ID)

		again, created := pages.Open(page.ID)
		assert.False(t, created)
		assert.Same(t, page, again)
	})

	t.Run("sweeps idle pages", func(t *testing.T) {
		stale, _ := pages.Open("")
		now = now.Add(20 * time.Minute)
		fresh, _ := pages.Open("")

		now = now.Add(15 * time.Minute)
		removed := pages.Sweep()
		assert.GreaterOrEqual(t, removed, 1)

		_, ok := pages.Get(stale.ID)
		assert.False(t, ok)
		_, ok = pages.Get(fresh.ID)
		assert.True(t, ok)
	})
}
