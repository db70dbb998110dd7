package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const productColumns = `id, name, category, price, stock, image, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию каталога.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Price,
		&p.Stock,
		&p.Image,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return domain.Product{}, productError("get product", id, err)
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	created, err := scanProduct(r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, category, price, stock, image, created_at, updated_at)
		VALUES ($1, $2, $3, GREATEST(0, $4::integer), $5, $6, $7)
		RETURNING `+productColumns,
		product.Name,
		product.Category,
		product.Price,
		product.Stock,
		product.Image,
		product.CreatedAt,
		product.UpdatedAt,
	))
	if err != nil {
		if isCheckViolation(err) {
			return domain.Product{}, domain.NewValidationError("product", err.Error())
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// Update меняет только переданные поля: NULL-параметр оставляет колонку как есть.
func (r *productRepository) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = COALESCE($2::text, name),
		    category = COALESCE($3::text, category),
		    price = COALESCE($4::numeric, price),
		    stock = GREATEST(0, COALESCE($5::integer, stock)),
		    image = COALESCE($6::text, image),
		    updated_at = $7
		WHERE id = $1
		RETURNING `+productColumns,
		id,
		patch.Name,
		patch.Category,
		patch.Price,
		patch.Stock,
		patch.Image,
		time.Now().UTC(),
	))
	if err != nil {
		if isCheckViolation(err) {
			return domain.Product{}, domain.NewValidationError("product", err.Error())
		}
		return domain.Product{}, productError("update product", id, err)
	}
	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

// ApplyStockDelta считает новый остаток одним UPDATE, поэтому параллельные
// списания не теряют друг друга.
func (r *productRepository) ApplyStockDelta(ctx context.Context, id int64, delta int) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(0, stock + $2::integer),
		    updated_at = $3
		WHERE id = $1
		RETURNING `+productColumns,
		id, delta, time.Now().UTC(),
	))
	if err != nil {
		return domain.Product{}, productError("apply stock delta", id, err)
	}
	return updated, nil
}

func productError(op string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", op, id, domain.ErrProductNotFound)
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}

var _ domain.ProductRepository = (*productRepository)(nil)
