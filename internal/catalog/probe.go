// Package catalog discovers and loads storefront products.
//
// Two strategies sit behind Source: ProbeSource walks a numbered asset
// convention (assets/products/1.png, 2.png, ...) against an AssetProber, and
// BackendSource queries product rows by category. A Page owns the state of one
// visitor's storefront and guarantees at most one load in flight.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/rs/zerolog/log"
)

// Defaults for ProbeOptions.
const (
	DefaultMaxProbe     = 50
	DefaultPathTemplate = "assets/products/%d.png"
)

// AssetProber checks whether a relative asset path resolves to a loadable
// image. A missing or non-image asset is (false, nil); an error means the
// backend could not answer.
type AssetProber interface {
	Probe(ctx context.Context, path string) (bool, error)
}

// ProbeOptions tunes ProbeLoop.
type ProbeOptions struct {
	Max          int         // Upper bound N, defaults to DefaultMaxProbe
	PathTemplate string      // fmt template with one %d verb
	ImagePrefix  string      // Prepended to the path to build ImageRef, defaults to "/"
	Price        PricePicker // Defaults to RandomPrice
}

func (o ProbeOptions) withDefaults() ProbeOptions {
	if o.Max <= 0 {
		o.Max = DefaultMaxProbe
	}
	if o.PathTemplate == "" {
		o.PathTemplate = DefaultPathTemplate
	}
	if o.ImagePrefix == "" {
		o.ImagePrefix = "/"
	}
	if o.Price == nil {
		o.Price = RandomPrice()
	}
	return o
}

// ProbeLoop probes indices 1..Max strictly in sequence and returns a record
// for every hit, in index order.
//
// After a miss at index i the loop stops when no hit has been seen and
// i > 3, or when i exceeds the hit count by more than 3. The convention is
// "contiguous with small gaps": a run of four or more misses ends the
// catalog, even if later indices exist.
//
// Prober errors are logged and counted as misses. Only a cancelled ctx
// aborts the loop, in which case the context error is returned.
func ProbeLoop(ctx context.Context, prober AssetProber, opts ProbeOptions) ([]models.ProductRecord, error) {
	opts = opts.withDefaults()
	records := make([]models.ProductRecord, 0)

	for i := 1; i <= opts.Max; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := fmt.Sprintf(opts.PathTemplate, i)
		found, err := prober.Probe(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn().Err(err).Str("path", path).Msg("Asset probe failed, treating as missing")
			found = false
		}

		if found {
			records = append(records, models.ProductRecord{
				ID:          int64(i),
				DisplayName: ProductName(i - 1),
				Price:       opts.Price(i),
				ImageRef:    joinImageRef(opts.ImagePrefix, path),
				AltText:     fmt.Sprintf("Product %d", i),
			})
			continue
		}

		hits := len(records)
		if i > 3 && hits == 0 {
			break
		}
		if i > hits+3 {
			break
		}
	}

	log.Debug().Int("found", len(records)).Msg("Asset probe finished")
	return records, nil
}

func joinImageRef(prefix, path string) string {
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(path, "/")
}
