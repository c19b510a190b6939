// Package render turns product records and page state into HTML.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/ieraasyl/Storefront/internal/models"
)

// Grid holds the rendered product grid of one page. Replace builds the new
// markup completely before swapping it in, so readers always see one full
// set of cards.
type Grid struct {
	mu      sync.RWMutex
	records []models.ProductRecord
	html    template.HTML
}

// NewGrid returns a grid showing the empty placeholder.
func NewGrid() *Grid {
	g := &Grid{}
	_ = g.Replace(nil)
	return g
}

// Replace renders records and atomically replaces the grid contents.
// On a render error the previous contents are kept.
func (g *Grid) Replace(records []models.ProductRecord) error {
	var buf bytes.Buffer
	if err := RenderGrid(&buf, records); err != nil {
		return err
	}

	snapshot := make([]models.ProductRecord, len(records))
	copy(snapshot, records)

	g.mu.Lock()
	g.records = snapshot
	g.html = template.HTML(buf.String())
	g.mu.Unlock()
	return nil
}

// HTML returns the current grid markup.
func (g *Grid) HTML() template.HTML {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.html
}

// Records returns a copy of the records currently rendered.
func (g *Grid) Records() []models.ProductRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.ProductRecord, len(g.records))
	copy(out, g.records)
	return out
}

// Len is the number of cards in the grid.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// RenderGrid writes the cards for records in order, or the empty
// placeholder when there are none.
func RenderGrid(w io.Writer, records []models.ProductRecord) error {
	if err := templates().base.ExecuteTemplate(w, "grid", records); err != nil {
		return fmt.Errorf("failed to render grid: %w", err)
	}
	return nil
}
