// Package convert переводит доменные типы в сообщения pos.v1 и обратно.
package convert

import (
	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
)

const dayLayout = "2006-01-02"

func Product(p domain.Product) posv1.Product {
	return posv1.Product{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
		Stock:     p.Stock,
		Image:     p.Image,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func Products(products []domain.Product) []posv1.Product {
	out := make([]posv1.Product, 0, len(products))
	for _, p := range products {
		out = append(out, Product(p))
	}
	return out
}

func Sale(s domain.Sale) posv1.Sale {
	items := make([]posv1.SaleItem, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, posv1.SaleItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Category:  item.Category,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		})
	}
	payments := make([]posv1.Payment, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, posv1.Payment{Method: string(p.Method), Amount: p.Amount})
	}

	out := posv1.Sale{
		ID:          s.ID,
		OrderNumber: s.OrderNumber,
		Date:        s.Date,
		Items:       items,
		Payments:    payments,
		Total:       s.Total,
		TotalPaid:   s.TotalPaid,
		Change:      s.Change,
		Status:      string(s.Status),
	}
	if s.VoidedAt != nil {
		v := *s.VoidedAt
		out.VoidedAt = &v
	}
	return out
}

func Sales(sales []domain.Sale) []posv1.Sale {
	out := make([]posv1.Sale, 0, len(sales))
	for _, s := range sales {
		out = append(out, Sale(s))
	}
	return out
}

func Timeline(events []domain.TimelineEvent) []posv1.TimelineEvent {
	out := make([]posv1.TimelineEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, posv1.TimelineEvent{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	return out
}

// Report переводит сводку; даты тренда форматируются как 2006-01-02.
func Report(s report.Summary) posv1.SalesReport {
	out := posv1.SalesReport{
		Revenue:       s.Revenue,
		Orders:        s.Orders,
		AverageTicket: s.AverageTicket,
		UnitsSold:     s.UnitsSold,
		VoidedOrders:  s.VoidedOrders,
		Trend:         make([]posv1.DayTotal, 0, len(s.Trend)),
		Categories:    make([]posv1.CategoryTotal, 0, len(s.Categories)),
		Payments:      make([]posv1.PaymentTotal, 0, len(s.Payments)),
		TopProducts:   make([]posv1.ProductSummary, 0, len(s.TopProducts)),
	}
	for _, d := range s.Trend {
		out.Trend = append(out.Trend, posv1.DayTotal{Date: d.Date.Format(dayLayout), Total: d.Total})
	}
	for _, c := range s.Categories {
		out.Categories = append(out.Categories, posv1.CategoryTotal{Category: c.Category, Units: c.Units, Revenue: c.Revenue})
	}
	for _, p := range s.Payments {
		out.Payments = append(out.Payments, posv1.PaymentTotal{Method: string(p.Method), Amount: p.Amount})
	}
	for _, p := range s.TopProducts {
		out.TopProducts = append(out.TopProducts, posv1.ProductSummary{
			ProductID: p.ProductID,
			Name:      p.Name,
			Units:     p.Units,
			Revenue:   p.Revenue,
		})
	}
	return out
}

func Draft(req posv1.CreateProductRequest) domain.ProductDraft {
	return domain.ProductDraft{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Stock:    req.Stock,
		Image:    req.Image,
	}
}

// Patch переводит запрос на обновление. Нечисловые price и stock попадают
// в Invalid и отбрасываются при Sanitize, остальные поля применяются.
func Patch(req posv1.UpdateProductRequest) domain.ProductPatch {
	patch := domain.ProductPatch{
		Name:     req.Name,
		Category: req.Category,
		Image:    req.Image,
	}
	if req.Price != nil {
		if v, ok := req.Price.Decimal(); ok {
			patch.Price = &v
		} else {
			patch.Invalid = append(patch.Invalid, "price")
		}
	}
	if req.Stock != nil {
		v, ok := req.Stock.Decimal()
		switch {
		case !ok:
			patch.Invalid = append(patch.Invalid, "stock")
		case v.IsNegative():
			n := -1
			patch.Stock = &n
		default:
			if n, ok := domain.StockFromDecimal(v); ok {
				patch.Stock = &n
			} else {
				patch.Invalid = append(patch.Invalid, "stock")
			}
		}
	}
	return patch
}

// Lines переводит позиции запроса. Витринные поля заполнит касса из каталога.
func Lines(items []posv1.CartItem) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		out = append(out, domain.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func Payments(payments []posv1.Payment) []domain.Payment {
	out := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, domain.Payment{Method: domain.PaymentMethod(p.Method), Amount: p.Amount})
	}
	return out
}
