package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Pages keeps the Page of every active visitor, keyed by page id.
type Pages struct {
	source  Source
	opts    PageOptions
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	pages map[string]*Page
}

// NewPages creates an empty registry. Pages idle for longer than idleTTL are
// removed by Sweep.
func NewPages(source Source, opts PageOptions, idleTTL time.Duration) *Pages {
	return &Pages{
		source:  source,
		opts:    opts,
		idleTTL: idleTTL,
		now:     time.Now,
		pages:   make(map[string]*Page),
	}
}

// Open returns the page for id, creating a fresh one under a new id when id
// is empty or unknown. created reports whether a new page was made.
func (ps *Pages) Open(id string) (page *Page, created bool) {
	now := ps.now()

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if p, ok := ps.pages[id]; ok && id != "" {
		p.touch(now)
		return p, false
	}

	p := NewPage(uuid.New().String(), ps.source, ps.opts)
	p.touch(now)
	ps.pages[p.ID] = p
	return p, true
}

// Get returns an existing page without creating one.
func (ps *Pages) Get(id string) (*Page, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.pages[id]
	if ok {
		p.touch(ps.now())
	}
	return p, ok
}

// Len is the number of live pages.
func (ps *Pages) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.pages)
}

// Sweep drops pages idle for longer than the TTL. Pages with a load in
// flight are kept. It returns the number removed.
func (ps *Pages) Sweep() int {
	now := ps.now()

	ps.mu.Lock()
	defer ps.mu.Unlock()

	removed := 0
	for id, p := range ps.pages {
		idle, loading := p.idleSince(now)
		if loading || idle <= ps.idleTTL {
			continue
		}
		delete(ps.pages, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (ps *Pages) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ps.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Int("active", ps.Len()).Msg("Swept idle pages")
			}
		}
	}
}
