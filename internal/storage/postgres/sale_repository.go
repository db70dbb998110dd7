package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const saleColumns = `id, order_number, date, total, total_paid, change, status, voided_at`

type saleRepository struct {
	store *Store
	db    *sql.DB
}

// NewSaleRepository создаёт PostgreSQL-реализацию журнала продаж.
// Номера заказов выдаёт последовательность sale_order_number_seq.
func NewSaleRepository(store *Store) domain.SaleRepository {
	return &saleRepository{store: store, db: store.DB()}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var (
		sale     domain.Sale
		status   string
		voidedAt sql.NullTime
	)
	if err := row.Scan(
		&sale.ID,
		&sale.OrderNumber,
		&sale.Date,
		&sale.Total,
		&sale.TotalPaid,
		&sale.Change,
		&status,
		&voidedAt,
	); err != nil {
		return domain.Sale{}, err
	}
	sale.Date = sale.Date.UTC()
	sale.Status = domain.SaleStatus(status)
	if !sale.Status.Valid() {
		return domain.Sale{}, fmt.Errorf("invalid sale status %q for sale %s", status, sale.ID)
	}
	if voidedAt.Valid {
		v := voidedAt.Time.UTC()
		sale.VoidedAt = &v
	}
	return sale, nil
}

// List возвращает продажи от новых к старым вместе с позициями и платежами.
func (r *saleRepository) List(ctx context.Context) ([]domain.Sale, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY date DESC, order_number DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	index := make(map[string]int)
	ids := make([]string, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		index[sale.ID] = len(sales)
		ids = append(ids, sale.ID)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	if len(sales) == 0 {
		return sales, nil
	}

	if err := loadSaleDetails(ctx, r.db, ids, func(saleID string) *domain.Sale {
		if i, ok := index[saleID]; ok {
			return &sales[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *saleRepository) Get(ctx context.Context, id string) (domain.Sale, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return getSale(ctx, r.db, id, false)
}

// Append сохраняет продажу одной транзакцией: шапка, позиции, платежи.
func (r *saleRepository) Append(ctx context.Context, lines []domain.CartLine, payments []domain.Payment) (domain.Sale, error) {
	if len(lines) == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	sale := domain.NewSale(lines, payments, time.Now().UTC().Truncate(time.Microsecond))
	sale.ID = uuid.NewString()

	err := r.store.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT nextval('sale_order_number_seq')`).Scan(&sale.OrderNumber); err != nil {
			return fmt.Errorf("next order number: %w", err)
		}
		sale.Date = time.Now().UTC().Truncate(time.Microsecond)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, order_number, date, total, total_paid, change, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			sale.ID,
			sale.OrderNumber,
			sale.Date,
			sale.Total,
			sale.TotalPaid,
			sale.Change,
			string(sale.Status),
		); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		for i, item := range sale.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_items (sale_id, position, product_id, name, category, price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, sale.ID, i, item.ProductID, item.Name, item.Category, item.Price, item.Quantity); err != nil {
				return fmt.Errorf("insert sale item %d: %w", item.ProductID, err)
			}
		}

		for i, p := range sale.Payments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_payments (sale_id, position, method, amount)
				VALUES ($1, $2, $3, $4)
			`, sale.ID, i, string(p.Method), p.Amount); err != nil {
				return fmt.Errorf("insert sale payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isCheckViolation(err) {
			return domain.Sale{}, domain.NewValidationError("sale", err.Error())
		}
		return domain.Sale{}, err
	}
	return sale, nil
}

// SetStatus блокирует строку продажи на время проверки перехода.
func (r *saleRepository) SetStatus(ctx context.Context, id string, status domain.SaleStatus) (domain.Sale, bool, error) {
	if !status.Valid() {
		return domain.Sale{}, false, fmt.Errorf("status %q: %w", status, domain.ErrInvalidStatusTransition)
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		result  domain.Sale
		changed bool
	)
	err := r.store.inTx(ctx, func(tx *sql.Tx) error {
		sale, err := getSale(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if sale.Status == status {
			result = sale
			return nil
		}
		if !sale.Status.CanTransitionTo(status) {
			result = sale
			return fmt.Errorf("%s -> %s: %w", sale.Status, status, domain.ErrInvalidStatusTransition)
		}

		var voidedAt *time.Time
		if status == domain.SaleStatusVoid {
			now := time.Now().UTC().Truncate(time.Microsecond)
			voidedAt = &now
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE sales SET status = $2, voided_at = $3 WHERE id = $1
		`, id, string(status), voidedAt); err != nil {
			return fmt.Errorf("update sale status: %w", err)
		}

		sale.Status = status
		sale.VoidedAt = voidedAt
		result = sale
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatusTransition) {
			return result, false, err
		}
		return domain.Sale{}, false, err
	}
	return result, changed, nil
}

// Delete удаляет продажу; позиции и платежи уходят каскадом.
func (r *saleRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete sale %s: %w", id, err)
	}
	return nil
}

func getSale(ctx context.Context, q queryer, id string, forUpdate bool) (domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	sale, err := scanSale(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, fmt.Errorf("get sale %s: %w", id, err)
	}

	if err := loadSaleDetails(ctx, q, []string{id}, func(string) *domain.Sale { return &sale }); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

// loadSaleDetails дочитывает позиции и платежи для набора продаж.
func loadSaleDetails(ctx context.Context, q queryer, ids []string, lookup func(saleID string) *domain.Sale) error {
	itemRows, err := q.QueryContext(ctx, `
		SELECT sale_id, product_id, name, category, price, quantity
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("load sale items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			saleID string
			item   domain.SaleItem
		)
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.Name, &item.Category, &item.Price, &item.Quantity); err != nil {
			return fmt.Errorf("scan sale item: %w", err)
		}
		if sale := lookup(saleID); sale != nil {
			sale.Items = append(sale.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("iterate sale items: %w", err)
	}

	paymentRows, err := q.QueryContext(ctx, `
		SELECT sale_id, method, amount
		FROM sale_payments
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("load sale payments: %w", err)
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		var (
			saleID string
			method string
			p      domain.Payment
		)
		if err := paymentRows.Scan(&saleID, &method, &p.Amount); err != nil {
			return fmt.Errorf("scan sale payment: %w", err)
		}
		p.Method = domain.PaymentMethod(method)
		if sale := lookup(saleID); sale != nil {
			sale.Payments = append(sale.Payments, p)
		}
	}
	if err := paymentRows.Err(); err != nil {
		return fmt.Errorf("iterate sale payments: %w", err)
	}
	return nil
}

var _ domain.SaleRepository = (*saleRepository)(nil)
