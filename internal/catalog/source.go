package catalog

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"
)

// Placeholders used when a backend row is incomplete.
const (
	PlaceholderImage = "/static/img/placeholder.svg"
	UntitledProduct  = "Untitled product"
	PriceOnRequest   = "Price on request"
)

// Source loads the products of one category.
type Source interface {
	Name() string
	Load(ctx context.Context, category string) ([]models.ProductRecord, error)
}

// ProbeSource discovers products with ProbeLoop. The asset convention has no
// categories, so every category yields the same records. Concurrent loads
// share a single probe run.
type ProbeSource struct {
	prober AssetProber
	opts   ProbeOptions
	group  singleflight.Group
}

// NewProbeSource creates a probe-backed source.
func NewProbeSource(prober AssetProber, opts ProbeOptions) *ProbeSource {
	return &ProbeSource{prober: prober, opts: opts.withDefaults()}
}

func (s *ProbeSource) Name() string { return "probe" }

func (s *ProbeSource) Load(ctx context.Context, _ string) ([]models.ProductRecord, error) {
	v, err, _ := s.group.Do("probe", func() (interface{}, error) {
		return ProbeLoop(ctx, s.prober, s.opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to probe product assets: %w", err)
	}

	shared := v.([]models.ProductRecord)
	out := make([]models.ProductRecord, len(shared))
	copy(out, shared)
	return out, nil
}

// ProductQuerier returns product rows of one category, newest first.
type ProductQuerier interface {
	ProductsByCategory(ctx context.Context, category string) ([]models.ProductRow, error)
}

// BackendSource loads products from a ProductQuerier with a single query per
// load and maps the rows to display records.
type BackendSource struct {
	name    string
	querier ProductQuerier
	policy  *bluemonday.Policy
}

// NewBackendSource creates a source named name (for logs and metrics).
func NewBackendSource(name string, querier ProductQuerier) *BackendSource {
	return &BackendSource{
		name:    name,
		querier: querier,
		policy:  bluemonday.StrictPolicy(),
	}
}

func (s *BackendSource) Name() string { return s.name }

func (s *BackendSource) Load(ctx context.Context, category string) ([]models.ProductRecord, error) {
	rows, err := s.querier.ProductsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s products: %w", category, err)
	}

	records := make([]models.ProductRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, s.record(row))
	}
	return records, nil
}

func (s *BackendSource) record(row models.ProductRow) models.ProductRecord {
	title := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(row.Title)))
	if title == "" {
		title = UntitledProduct
	}

	image := strings.TrimSpace(row.ImageURL)
	if image == "" {
		image = PlaceholderImage
	}

	price := PriceOnRequest
	if row.Price != nil {
		price = FormatEuro(*row.Price)
	}

	return models.ProductRecord{
		ID:          row.ID,
		DisplayName: title,
		Price:       price,
		ImageRef:    image,
		AltText:     title,
	}
}

// FormatEuro formats an amount as "€49.99".
func FormatEuro(amount float64) string {
	return fmt.Sprintf("€%.2f", amount)
}
