package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus описывает состояние продажи.
type SaleStatus string

const (
	// SaleStatusCompleted — продажа проведена.
	SaleStatusCompleted SaleStatus = "COMPLETED"
	// SaleStatusVoid — продажа аннулирована, остатки возвращены. Терминальный статус.
	SaleStatusVoid SaleStatus = "VOID"
)

// Valid проверяет, что статус поддерживается.
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusCompleted, SaleStatusVoid:
		return true
	default:
		return false
	}
}

// CanTransitionTo разрешает только COMPLETED -> VOID.
func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	return s == SaleStatusCompleted && next == SaleStatusVoid
}

// CartLine — позиция корзины: копия витринных полей товара и количество.
type CartLine struct {
	ProductID int64
	Name      string
	Category  string
	Price     decimal.Decimal
	Image     string
	Quantity  int
}

// LineFromProduct создаёт позицию корзины по снимку товара.
func LineFromProduct(p Product, qty int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  qty,
	}
}

// Subtotal — цена позиции с учётом количества.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal суммирует позиции корзины.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// MergeLines проверяет позиции и склеивает повторы одного товара,
// сохраняя порядок первого появления.
func MergeLines(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	merged := make([]CartLine, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, NewValidationError("items.productId", "must be a positive id")
		}
		if line.Quantity <= 0 {
			return nil, NewValidationError("items.quantity", "must be greater than zero")
		}
		if line.Quantity > MaxQuantity {
			return nil, NewValidationError("items.quantity", "is too large")
		}
		if pos, ok := index[line.ProductID]; ok {
			if merged[pos].Quantity > MaxQuantity-line.Quantity {
				return nil, NewValidationError("items.quantity", "is too large")
			}
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// SaleItem — снимок товара в момент продажи. Последующие правки каталога его не меняют.
type SaleItem struct {
	ProductID int64
	Name      string
	Category  string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal — сумма позиции.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Sale — проведённая продажа. После создания меняется только статус.
type Sale struct {
	ID          string
	OrderNumber int64
	Date        time.Time
	Items       []SaleItem
	Payments    []Payment
	Total       decimal.Decimal
	TotalPaid   decimal.Decimal
	Change      decimal.Decimal
	Status      SaleStatus
	VoidedAt    *time.Time
}

// NewSale считает итоги по позициям и платежам. ID и номер заказа назначает журнал.
func NewSale(lines []CartLine, payments []Payment, now time.Time) Sale {
	items := make([]SaleItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, SaleItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Category:  line.Category,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}

	total := LinesTotal(lines)
	paid := PaymentsTotal(payments)

	return Sale{
		Date:      now,
		Items:     items,
		Payments:  append([]Payment(nil), payments...),
		Total:     total,
		TotalPaid: paid,
		Change:    ChangeDue(total, paid),
		Status:    SaleStatusCompleted,
	}
}

// Clone возвращает глубокую копию продажи.
func (s Sale) Clone() Sale {
	dst := s
	dst.Items = append([]SaleItem(nil), s.Items...)
	dst.Payments = append([]Payment(nil), s.Payments...)
	if s.VoidedAt != nil {
		v := *s.VoidedAt
		dst.VoidedAt = &v
	}
	return dst
}

// Units возвращает общее количество проданных единиц.
func (s Sale) Units() int {
	units := 0
	for _, item := range s.Items {
		units += item.Quantity
	}
	return units
}

// ProductIDs возвращает идентификаторы товаров в продаже.
func (s Sale) ProductIDs() []int64 {
	ids := make([]int64, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
