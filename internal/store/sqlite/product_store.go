package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// ProductStore implements domain.ProductStore on SQLite.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore creates a ProductStore on the client's database.
func NewProductStore(c *Client) *ProductStore {
	return &ProductStore{db: c.DB()}
}

const upsertProduct = `
	INSERT INTO products (
		id, name, category, cost, price, competitor_price,
		elasticity, baseline_volume, stock, suggested_price,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name             = excluded.name,
		category         = excluded.category,
		cost             = excluded.cost,
		price            = excluded.price,
		competitor_price = excluded.competitor_price,
		elasticity       = excluded.elasticity,
		baseline_volume  = excluded.baseline_volume,
		stock            = excluded.stock,
		suggested_price  = excluded.suggested_price,
		updated_at       = excluded.updated_at`

const productCols = `id, name, category, cost, price, competitor_price,
	elasticity, baseline_volume, stock, suggested_price,
	created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, p domain.Product) error {
	now := time.Now()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := db.ExecContext(ctx, upsertProduct,
		p.ID, p.Name, p.Category, p.Cost, p.Price, p.CompetitorPrice,
		p.Elasticity, p.BaselineVolume, p.Stock, p.SuggestedPrice,
		formatTime(created), formatTime(now),
	)
	return err
}

// Upsert inserts or updates a single product.
func (s *ProductStore) Upsert(ctx context.Context, p domain.Product) error {
	if err := upsert(ctx, s.db, p); err != nil {
		return fmt.Errorf("sqlite: upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertBatch writes all products in one transaction.
func (s *ProductStore) UpsertBatch(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin upsert batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, p := range products {
		if err := upsert(ctx, tx, p); err != nil {
			return fmt.Errorf("sqlite: upsert product batch item %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit upsert batch: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p                domain.Product
		suggested        sql.NullFloat64
		created, updated string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Cost, &p.Price, &p.CompetitorPrice,
		&p.Elasticity, &p.BaselineVolume, &p.Stock, &suggested,
		&created, &updated,
	); err != nil {
		return domain.Product{}, err
	}
	if suggested.Valid {
		v := suggested.Float64
		p.SuggestedPrice = &v
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Product{}, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Product{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return p, nil
}

// GetByID retrieves a product by its primary key.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("sqlite: get product %s: %w", id, err)
	}
	return p, nil
}

// List returns products ordered by ID. A zero Limit returns every row.
func (s *ProductStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	query, args := listQuery(`SELECT `+productCols+` FROM products WHERE 1=1`, "updated_at", "id ASC", opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list products rows: %w", err)
	}
	return products, nil
}

// Count returns the number of products.
func (s *ProductStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count products: %w", err)
	}
	return n, nil
}

// UpdatePricing sets the committed and suggested price of a product.
func (s *ProductStore) UpdatePricing(ctx context.Context, id string, price float64, suggested *float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET price = ?, suggested_price = ?, updated_at = ? WHERE id = ?`,
		price, suggested, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update pricing %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update pricing %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ProductStore = (*ProductStore)(nil)
