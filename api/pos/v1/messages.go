// Package posv1 описывает API кассы pos.v1.PointOfSale: сообщения, кодек и дескриптор сервиса.
package posv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — карточка товара.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Image     string          `json:"image"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SaleItem — позиция проведённой продажи.
type SaleItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Payment — внесённый платёж.
type Payment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// Sale — продажа.
type Sale struct {
	ID          string          `json:"id"`
	OrderNumber int64           `json:"orderNumber"`
	Date        time.Time       `json:"date"`
	Items       []SaleItem      `json:"items"`
	Payments    []Payment       `json:"payments"`
	Total       decimal.Decimal `json:"total"`
	TotalPaid   decimal.Decimal `json:"totalPaid"`
	Change      decimal.Decimal `json:"change"`
	Status      string          `json:"status"`
	VoidedAt    *time.Time      `json:"voidedAt,omitempty"`
}

// TimelineEvent — событие в истории продажи.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// CartItem — позиция в запросе на проведение. Цена и название берутся из каталога.
type CartItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []Product `json:"products"`
}

type GetProductRequest struct {
	ID int64 `json:"id"`
}

type GetProductResponse struct {
	Product Product `json:"product"`
}

// CreateProductRequest — новый товар. Price обязателен, Stock по умолчанию 0.
type CreateProductRequest struct {
	Name     string           `json:"name"`
	Category string           `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price"`
	Stock    *decimal.Decimal `json:"stock,omitempty"`
	Image    string           `json:"image,omitempty"`
}

type CreateProductResponse struct {
	Product Product `json:"product"`
}

// UpdateProductRequest — частичное обновление: меняются только переданные поля.
type UpdateProductRequest struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Price    *Number `json:"price,omitempty"`
	Stock    *Number `json:"stock,omitempty"`
	Image    *string `json:"image,omitempty"`
}

type UpdateProductResponse struct {
	Product Product `json:"product"`
}

type DeleteProductRequest struct {
	ID int64 `json:"id"`
}

type DeleteProductResponse struct {
	Success bool `json:"success"`
}

type ListSalesRequest struct{}

type ListSalesResponse struct {
	Sales []Sale `json:"sales"`
}

type GetSaleRequest struct {
	ID string `json:"id"`
}

type GetSaleResponse struct {
	Sale     Sale            `json:"sale"`
	Timeline []TimelineEvent `json:"timeline"`
}

type CommitSaleRequest struct {
	Items    []CartItem `json:"items"`
	Payments []Payment  `json:"payments"`
}

type CommitSaleResponse struct {
	Sale Sale `json:"sale"`
}

type VoidSaleRequest struct {
	ID string `json:"id"`
}

type VoidSaleResponse struct {
	Sale Sale `json:"sale"`
}

// GetSalesReportRequest — параметры сводки. Нули означают значения по умолчанию.
type GetSalesReportRequest struct {
	Days int `json:"days,omitempty"`
	Top  int `json:"top,omitempty"`
}

type GetSalesReportResponse struct {
	Report SalesReport `json:"report"`
}

// SalesReport — сводка по неаннулированным продажам.
type SalesReport struct {
	Revenue       decimal.Decimal  `json:"revenue"`
	Orders        int              `json:"orders"`
	AverageTicket decimal.Decimal  `json:"averageTicket"`
	UnitsSold     int              `json:"unitsSold"`
	VoidedOrders  int              `json:"voidedOrders"`
	Trend         []DayTotal       `json:"trend"`
	Categories    []CategoryTotal  `json:"categories"`
	Payments      []PaymentTotal   `json:"payments"`
	TopProducts   []ProductSummary `json:"topProducts"`
}

// DayTotal — выручка за день, Date в формате 2006-01-02.
type DayTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Units    int             `json:"units"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type PaymentTotal struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type ProductSummary struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}
