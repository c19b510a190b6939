// Package database provides database access layers for PostgreSQL and Redis.
//
// PostgreSQL backs the "postgres" catalog source: a single products table
// queried by category. Redis holds the user session flash and the rate
// limiter counters.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ieraasyl/Storefront/internal/database/migrations"
	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/ieraasyl/Storefront/pkg/utils"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

// TxFunc is a function that runs within a database transaction.
type TxFunc func(tx *sql.Tx) error

// PostgresDB wraps a PostgreSQL connection pool.
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB opens a PostgreSQL connection pool, retrying the initial
// ping with exponential backoff for up to 30 seconds.
//
// Connection pool settings:
//   - MaxOpenConns: From configuration (default: 10)
//   - MaxIdleConns: Half of MaxOpenConns
//   - ConnMaxLifetime: 1 hour
func NewPostgresDB(cfg *config.DatabaseConfig) (*PostgresDB, error) {
	var db *sql.DB
	var connErr error

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.DatabaseRetryConfig()
	retryConfig.InitialDelay = 100 * time.Millisecond
	retryConfig.MaxDelay = 3 * time.Second

	err := utils.Retry(ctx, retryConfig, func() error {
		var err error
		db, err = sql.Open("postgres", cfg.DSN())
		if err != nil {
			connErr = err
			log.Warn().Err(err).Msg("Failed to open database connection, retrying...")
			return err
		}

		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns / 2)
		db.SetConnMaxLifetime(time.Hour)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()

		if err := db.PingContext(pingCtx); err != nil {
			connErr = err
			log.Warn().Err(err).Msg("Failed to ping database, retrying...")
			db.Close()
			return err
		}

		return nil
	})

	if err != nil {
		if connErr != nil {
			return nil, fmt.Errorf("failed to connect to database after retries: %w", connErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")

	return &PostgresDB{db: db}, nil
}

// NewPostgresDBFromConn wraps an already opened pool. Used by tests and by
// tooling that manages its own connection.
func NewPostgresDBFromConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// Close closes the connection pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping checks if the database connection is alive.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Migrate applies the embedded goose migrations.
func (p *PostgresDB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, p.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ProductsByCategory returns every product row whose gender equals category,
// newest first. This is the only catalog query the storefront issues.
//
// Example:
//
//	rows, err := db.ProductsByCategory(ctx, "women")
func (p *PostgresDB) ProductsByCategory(ctx context.Context, category string) ([]models.ProductRow, error) {
	query := `
		SELECT id, title, price, image_url, gender, created_at
		FROM products
		WHERE gender = $1
		ORDER BY created_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.ProductRow
	for rows.Next() {
		var (
			row      models.ProductRow
			title    sql.NullString
			price    sql.NullFloat64
			imageURL sql.NullString
		)
		if err := rows.Scan(&row.ID, &title, &price, &imageURL, &row.Gender, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		row.Title = title.String
		row.ImageURL = imageURL.String
		if price.Valid {
			v := price.Float64
			row.Price = &v
		}
		products = append(products, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// InsertProducts inserts rows in one transaction. Zero CreatedAt values are
// left to the column default.
func (p *PostgresDB) InsertProducts(ctx context.Context, rows []models.ProductRow) (int, error) {
	inserted := 0
	err := p.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			var createdAt interface{}
			if !row.CreatedAt.IsZero() {
				createdAt = row.CreatedAt
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO products (title, price, image_url, gender, created_at)
				VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
			`, nullString(row.Title), row.Price, nullString(row.ImageURL), row.Gender, createdAt)
			if err != nil {
				return fmt.Errorf("failed to insert product %q: %w", row.Title, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// WithTransaction executes fn within a transaction, committing on success
// and rolling back on error or panic.
func (p *PostgresDB) WithTransaction(ctx context.Context, fn TxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
