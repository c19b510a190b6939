package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ieraasyl/Storefront/internal/catalog"
	"github.com/ieraasyl/Storefront/internal/database"
	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load product rows into the Postgres catalog",
	Long: `Applies the migrations and inserts the products listed in a YAML file:

  products:
    - title: Essential Jacket
      price: 79.99
      image_url: https://cdn.example.com/jacket.png
      gender: men

Connection settings come from the POSTGRES_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("failed to open seed file: %w", err)
		}
		defer f.Close()

		rows, err := parseSeed(f, time.Now())
		if err != nil {
			return err
		}

		dbCfg := config.DatabaseFromEnv()
		db, err := database.NewPostgresDB(&dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		if err := db.Migrate(ctx); err != nil {
			return err
		}

		n, err := db.InsertProducts(ctx, rows)
		if err != nil {
			return err
		}

		log.Info().Int("inserted", n).Str("file", seedFile).Msg("Catalog seeded")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "products.yaml", "YAML file with products")
	rootCmd.AddCommand(seedCmd)
}

type seedDocument struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Title    string   `yaml:"title"`
	Price    *float64 `yaml:"price"`
	ImageURL string   `yaml:"image_url"`
	Gender   string   `yaml:"gender"`
}

// parseSeed decodes and validates a seed document. Rows get created_at
// timestamps one second apart in file order, so the first product listed
// is the newest and is shown first.
func parseSeed(r io.Reader, now time.Time) ([]models.ProductRow, error) {
	var doc seedDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(doc.Products) == 0 {
		return nil, fmt.Errorf("seed file has no products")
	}

	rows := make([]models.ProductRow, len(doc.Products))
	for i, p := range doc.Products {
		gender := strings.ToLower(strings.TrimSpace(p.Gender))
		if !catalog.ValidCategory(gender) {
			return nil, fmt.Errorf("product %d (%q): gender must be men or women, got %q", i+1, p.Title, p.Gender)
		}
		if p.Price != nil && *p.Price < 0 {
			return nil, fmt.Errorf("product %d (%q): negative price", i+1, p.Title)
		}

		rows[i] = models.ProductRow{
			Title:     strings.TrimSpace(p.Title),
			Price:     p.Price,
			ImageURL:  strings.TrimSpace(p.ImageURL),
			Gender:    gender,
			CreatedAt: now.Add(-time.Duration(i) * time.Second),
		}
	}
	return rows, nil
}
