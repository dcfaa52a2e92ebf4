package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a new ProductStore backed by the given connection pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const upsertProduct = `
	INSERT INTO products (
		id, name, category, cost, price, competitor_price,
		elasticity, baseline_volume, stock, suggested_price,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		COALESCE($11, NOW()), NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		name             = EXCLUDED.name,
		category         = EXCLUDED.category,
		cost             = EXCLUDED.cost,
		price            = EXCLUDED.price,
		competitor_price = EXCLUDED.competitor_price,
		elasticity       = EXCLUDED.elasticity,
		baseline_volume  = EXCLUDED.baseline_volume,
		stock            = EXCLUDED.stock,
		suggested_price  = EXCLUDED.suggested_price,
		updated_at       = NOW()`

const productCols = `id, name, category, cost, price, competitor_price,
	elasticity, baseline_volume, stock, suggested_price,
	created_at, updated_at`

func productArgs(p domain.Product) []any {
	var created any
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt
	}
	return []any{
		p.ID, p.Name, p.Category, p.Cost, p.Price, p.CompetitorPrice,
		p.Elasticity, p.BaselineVolume, p.Stock, p.SuggestedPrice,
		created,
	}
}

// Upsert inserts or updates a single product.
func (s *ProductStore) Upsert(ctx context.Context, p domain.Product) error {
	if _, err := s.pool.Exec(ctx, upsertProduct, productArgs(p)...); err != nil {
		return fmt.Errorf("postgres: upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple products in a single batch.
func (s *ProductStore) UpsertBatch(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProduct, productArgs(p)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range products {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert product batch item %d: %w", i, err)
		}
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Cost, &p.Price, &p.CompetitorPrice,
		&p.Elasticity, &p.BaselineVolume, &p.Stock, &p.SuggestedPrice,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// GetByID retrieves a product by its primary key.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("postgres: get product %s: %w", id, err)
	}
	return p, nil
}

// List returns products ordered by ID. A zero Limit returns every row.
func (s *ProductStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	query, args := listQuery(`SELECT `+productCols+` FROM products WHERE 1=1`, "updated_at", "id ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list products rows: %w", err)
	}
	return products, nil
}

// Count returns the number of products.
func (s *ProductStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count products: %w", err)
	}
	return count, nil
}

// UpdatePricing sets the committed and suggested price of a product.
func (s *ProductStore) UpdatePricing(ctx context.Context, id string, price float64, suggested *float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET price = $2, suggested_price = $3, updated_at = NOW() WHERE id = $1`,
		id, price, suggested,
	)
	if err != nil {
		return fmt.Errorf("postgres: update pricing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ProductStore = (*ProductStore)(nil)
