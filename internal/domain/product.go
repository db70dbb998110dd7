package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PlaceholderImage подставляется, если у товара нет изображения.
	PlaceholderImage = "https://images.unsplash.com/photo-1555507036-ab1f4038808a?auto=format&fit=crop&w=300&q=80"
	// DefaultCategory подставляется, если категория не указана при создании.
	DefaultCategory = "General"
)

// Product — карточка товара в каталоге.
type Product struct {
	ID        int64
	Name      string
	Category  string
	Price     decimal.Decimal
	Stock     int
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductDraft — входные данные для создания товара.
// Price и Stock — указатели, чтобы отличать отсутствие поля от нуля.
type ProductDraft struct {
	Name     string
	Category string
	Price    *decimal.Decimal
	Stock    *decimal.Decimal
	Image    string
}

// Build проверяет черновик и возвращает товар без идентификатора.
// Отсутствующий или некорректный остаток становится нулём.
func (d ProductDraft) Build(now time.Time) (Product, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return Product{}, NewValidationError("name", "is required")
	}
	if d.Price == nil {
		return Product{}, NewValidationError("price", "is required")
	}
	if d.Price.IsNegative() {
		return Product{}, NewValidationError("price", "must be non-negative")
	}

	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = DefaultCategory
	}
	image := strings.TrimSpace(d.Image)
	if image == "" {
		image = PlaceholderImage
	}

	stock := 0
	if d.Stock != nil {
		if v, ok := StockFromDecimal(*d.Stock); ok {
			stock = v
		}
	}

	return Product{
		Name:      name,
		Category:  category,
		Price:     *d.Price,
		Stock:     stock,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ProductPatch — частичное обновление товара. nil означает "поле не передано".
type ProductPatch struct {
	Name     *string
	Category *string
	Price    *decimal.Decimal
	Stock    *int
	Image    *string
	// Invalid — поля, которые пришли, но не разобрались.
	Invalid []string
}

// Sanitize отбрасывает некорректные значения вместо того, чтобы портить состояние.
// Возвращает очищенный patch и имена отброшенных полей.
func (p ProductPatch) Sanitize() (ProductPatch, []string) {
	dropped := append([]string(nil), p.Invalid...)
	out := ProductPatch{}

	if p.Name != nil {
		if v := strings.TrimSpace(*p.Name); v != "" {
			out.Name = &v
		} else {
			dropped = append(dropped, "name")
		}
	}
	if p.Category != nil {
		if v := strings.TrimSpace(*p.Category); v != "" {
			out.Category = &v
		} else {
			dropped = append(dropped, "category")
		}
	}
	if p.Price != nil {
		if !p.Price.IsNegative() {
			v := *p.Price
			out.Price = &v
		} else {
			dropped = append(dropped, "price")
		}
	}
	if p.Stock != nil {
		if *p.Stock >= 0 {
			v := *p.Stock
			out.Stock = &v
		} else {
			dropped = append(dropped, "stock")
		}
	}
	if p.Image != nil {
		v := strings.TrimSpace(*p.Image)
		if v == "" {
			v = PlaceholderImage
		}
		out.Image = &v
	}

	return out, dropped
}

// IsEmpty сообщает, что в patch нет ни одного поля.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil && p.Stock == nil && p.Image == nil
}

// Apply накладывает patch на копию товара.
func (p ProductPatch) Apply(product Product, now time.Time) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	product.UpdatedAt = now
	return product
}

// StockFromDecimal приводит числовое значение к остатку: дробная часть отбрасывается,
// отрицательные значения считаются некорректными.
func StockFromDecimal(v decimal.Decimal) (int, bool) {
	if v.IsNegative() {
		return 0, false
	}
	n := v.Truncate(0).IntPart()
	if n > int64(MaxQuantity) {
		return 0, false
	}
	return int(n), true
}

// MaxQuantity — предел остатка и количества в позиции.
const MaxQuantity = 1<<31 - 1

// ClampStock возвращает max(0, stock+delta).
func ClampStock(stock, delta int) int {
	next := stock + delta
	if next < 0 {
		return 0
	}
	return next
}
