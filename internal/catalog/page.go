package catalog

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/internal/render"
	"github.com/rs/zerolog/log"
)

// Categories accepted by SwitchCategory.
const (
	CategoryMen   = "men"
	CategoryWomen = "women"
)

// StatusLoading is the status text while a load is in flight.
const StatusLoading = "Loading products..."

// ErrUnknownCategory is returned for categories other than men and women.
var ErrUnknownCategory = errors.New("unknown category")

// ErrLoadPanicked wraps a panic raised by a source during a load.
var ErrLoadPanicked = errors.New("catalog load panicked")

// ValidCategory reports whether category is a known partition.
func ValidCategory(category string) bool {
	return category == CategoryMen || category == CategoryWomen
}

// LoadObserver is notified after every finished load.
type LoadObserver func(source string, count int, err error, elapsed time.Duration)

// PageOptions configures pages created by Pages.
type PageOptions struct {
	DefaultCategory string
	LoadTimeout     time.Duration
	Observer        LoadObserver
}

// Page is the storefront state of one visitor. It owns an AppState and the
// rendered grid, and runs at most one catalog load at a time.
//
// Loads run detached from the request that started them and are bounded by
// LoadTimeout only; nothing cancels a load in flight.
type Page struct {
	ID string

	source Source
	opts   PageOptions
	grid   *render.Grid

	mu       sync.Mutex
	state    models.AppState
	done     chan struct{} // closed when the current load finishes
	lastSeen time.Time
}

// NewPage creates an idle page with an empty grid.
func NewPage(id string, source Source, opts PageOptions) *Page {
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = CategoryWomen
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}

	done := make(chan struct{})
	close(done)

	return &Page{
		ID:       id,
		source:   source,
		opts:     opts,
		grid:     render.NewGrid(),
		done:     done,
		lastSeen: time.Now(),
	}
}

// State returns a copy of the current state.
func (p *Page) State() models.AppState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Grid returns the rendered grid of this page.
func (p *Page) Grid() *render.Grid {
	return p.grid
}

// SwitchCategory starts a load for category. It returns false without doing
// anything when a load is already in flight or category is already current.
func (p *Page) SwitchCategory(ctx context.Context, category string) (bool, error) {
	if !ValidCategory(category) {
		return false, ErrUnknownCategory
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.IsLoading || p.state.CurrentCategory == category {
		return false, nil
	}

	p.startLocked(ctx, category)
	return true, nil
}

// Refresh reloads the current category, or the default one on a fresh page.
// It is a no-op while a load is in flight.
func (p *Page) Refresh(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.IsLoading {
		return false
	}

	category := p.state.CurrentCategory
	if category == "" {
		category = p.opts.DefaultCategory
	}
	p.startLocked(ctx, category)
	return true
}

// Wait blocks until the load in flight (if any) has finished or ctx is done.
func (p *Page) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) startLocked(ctx context.Context, category string) {
	previous := p.state.CurrentCategory

	p.state.IsLoading = true
	p.state.CurrentCategory = category
	p.state.ErrorFlag = false
	p.state.ErrorMessage = ""
	p.state.StatusText = StatusLoading

	done := make(chan struct{})
	p.done = done

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.LoadTimeout)

	go func() {
		defer close(done)
		defer cancel()

		start := time.Now()
		records, err := p.load(loadCtx, category)
		p.finish(category, previous, records, err)

		if p.opts.Observer != nil {
			p.opts.Observer(p.source.Name(), len(records), err, time.Since(start))
		}
	}()
}

// load runs the source. A panic becomes an ErrLoadPanicked error so the page
// leaves the loading state instead of taking the process down.
func (p *Page) load(ctx context.Context, category string) (records []models.ProductRecord, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("error", rec).
				Str("page_id", p.ID).
				Str("category", category).
				Str("source", p.source.Name()).
				Bytes("stack", debug.Stack()).
				Msg("Panic recovered in catalog load")
			records, err = nil, fmt.Errorf("%w: %v", ErrLoadPanicked, rec)
		}
	}()

	return p.source.Load(ctx, category)
}

func (p *Page) finish(category, previous string, records []models.ProductRecord, err error) {
	if err == nil {
		err = p.grid.Replace(records)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.IsLoading = false
	p.state.StatusText = ""

	if err != nil {
		log.Error().
			Err(err).
			Str("page_id", p.ID).
			Str("category", category).
			Str("source", p.source.Name()).
			Msg("Catalog load failed")

		// Prior products stay on screen; the category reverts so the
		// failed one can be selected again.
		p.state.ErrorFlag = true
		p.state.ErrorMessage = "Failed to load products: " + err.Error()
		if errors.Is(err, ErrLoadPanicked) {
			p.state.ErrorMessage = render.GenericErrorMessage
		}
		p.state.CurrentCategory = previous
		return
	}

	p.state.Products = records
	log.Debug().
		Str("page_id", p.ID).
		Str("category", category).
		Int("count", len(records)).
		Msg("Catalog loaded")
}

func (p *Page) touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Page) idleSince(now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastSeen), p.state.IsLoading
}
