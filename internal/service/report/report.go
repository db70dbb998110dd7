// Package report строит сводку продаж: выручку, средний чек, динамику по дням и разрезы.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	// DefaultTrendDays — сколько последних дней с продажами попадает в динамику.
	DefaultTrendDays = 7
	// DefaultTopProducts — размер списка лидеров продаж.
	DefaultTopProducts = 5
	// FallbackCategory — группа для позиций без категории.
	FallbackCategory = "Otros"
)

// Options управляет размерами разделов сводки.
type Options struct {
	TrendDays   int
	TopProducts int
	// Location задаёт часовой пояс для группировки по дням. По умолчанию UTC.
	Location *time.Location
}

// Summary — сводка по неаннулированным продажам.
type Summary struct {
	Revenue       decimal.Decimal
	Orders        int
	AverageTicket decimal.Decimal
	UnitsSold     int
	VoidedOrders  int
	Trend         []DayTotal
	Categories    []CategoryTotal
	Payments      []PaymentTotal
	TopProducts   []ProductTotal
}

// DayTotal — выручка за день.
type DayTotal struct {
	Date  time.Time
	Total decimal.Decimal
}

// CategoryTotal — продажи категории.
type CategoryTotal struct {
	Category string
	Units    int
	Revenue  decimal.Decimal
}

// PaymentTotal — сумма принятых платежей по методу.
type PaymentTotal struct {
	Method domain.PaymentMethod
	Amount decimal.Decimal
}

// ProductTotal — продажи одного товара.
type ProductTotal struct {
	ProductID int64
	Name      string
	Units     int
	Revenue   decimal.Decimal
}

// Summarize считает сводку. Аннулированные продажи учитываются только в VoidedOrders.
func Summarize(sales []domain.Sale, opts Options) Summary {
	if opts.TrendDays <= 0 {
		opts.TrendDays = DefaultTrendDays
	}
	if opts.TopProducts <= 0 {
		opts.TopProducts = DefaultTopProducts
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	summary := Summary{Revenue: decimal.Zero, AverageTicket: decimal.Zero}
	days := make(map[time.Time]decimal.Decimal)
	categories := make(map[string]*CategoryTotal)
	payments := make(map[domain.PaymentMethod]decimal.Decimal)
	products := make(map[int64]*ProductTotal)

	for _, sale := range sales {
		if sale.Status == domain.SaleStatusVoid {
			summary.VoidedOrders++
			continue
		}
		summary.Orders++
		summary.Revenue = summary.Revenue.Add(sale.Total)

		local := sale.Date.In(opts.Location)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, opts.Location)
		days[day] = days[day].Add(sale.Total)

		for _, item := range sale.Items {
			revenue := item.Subtotal()
			summary.UnitsSold += item.Quantity

			name := strings.TrimSpace(item.Category)
			if name == "" {
				name = FallbackCategory
			}
			cat, ok := categories[name]
			if !ok {
				cat = &CategoryTotal{Category: name, Revenue: decimal.Zero}
				categories[name] = cat
			}
			cat.Units += item.Quantity
			cat.Revenue = cat.Revenue.Add(revenue)

			prod, ok := products[item.ProductID]
			if !ok {
				prod = &ProductTotal{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				products[item.ProductID] = prod
			}
			prod.Units += item.Quantity
			prod.Revenue = prod.Revenue.Add(revenue)
		}

		for _, p := range sale.Payments {
			method := domain.NormalizeMethod(string(p.Method))
			payments[method] = payments[method].Add(p.Amount)
		}
	}

	if summary.Orders > 0 {
		summary.AverageTicket = summary.Revenue.Div(decimal.NewFromInt(int64(summary.Orders))).Round(2)
	}

	summary.Trend = trend(days, opts.TrendDays)
	summary.Categories = sortedCategories(categories)
	summary.Payments = sortedPayments(payments)
	summary.TopProducts = topProducts(products, opts.TopProducts)
	return summary
}

// trend возвращает последние n дней с продажами в хронологическом порядке.
func trend(days map[time.Time]decimal.Decimal, n int) []DayTotal {
	out := make([]DayTotal, 0, len(days))
	for day, total := range days {
		out = append(out, DayTotal{Date: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func sortedCategories(m map[string]*CategoryTotal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// sortedPayments пропускает методы с нулевой суммой.
func sortedPayments(m map[domain.PaymentMethod]decimal.Decimal) []PaymentTotal {
	out := make([]PaymentTotal, 0, len(m))
	for method, amount := range m {
		if !amount.IsPositive() {
			continue
		}
		out = append(out, PaymentTotal{Method: method, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

func topProducts(m map[int64]*ProductTotal, limit int) []ProductTotal {
	out := make([]ProductTotal, 0, len(m))
	for _, p := range m {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
