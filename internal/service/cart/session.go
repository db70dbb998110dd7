// Package cart хранит временное состояние кассы: позиции чека и внесённые платежи.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
)

var (
	// ErrStockCeiling — ещё одна единица превысит текущий остаток товара.
	ErrStockCeiling = errors.New("not enough stock to add another unit")
	// ErrLineNotFound — позиции с таким товаром в корзине нет.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrPaymentIndex — платежа с таким номером нет.
	ErrPaymentIndex = errors.New("payment index out of range")
	// ErrNotReady — корзина пуста или не оплачена полностью.
	ErrNotReady = errors.New("cart is empty or not fully paid")
)

// Session — состояние одной кассы до проведения продажи. Не потокобезопасна.
type Session struct {
	methods  domain.PaymentMethods
	lines    []domain.CartLine
	payments []domain.Payment
}

// NewSession создаёт пустую сессию с набором методов оплаты.
func NewSession(methods domain.PaymentMethods) *Session {
	return &Session{methods: methods}
}

// AddLine добавляет одну единицу товара. Если позиция уже есть, увеличивает количество.
// Ошибка ErrStockCeiling не фатальна: корзина остаётся прежней.
func (s *Session) AddLine(product domain.Product) error {
	if i := s.indexOf(product.ID); i >= 0 {
		if s.lines[i].Quantity+1 > product.Stock {
			return fmt.Errorf("%s: %w", product.Name, ErrStockCeiling)
		}
		s.lines[i].Quantity++
		return nil
	}
	if product.Stock < 1 {
		return fmt.Errorf("%s: %w", product.Name, ErrStockCeiling)
	}
	s.lines = append(s.lines, domain.LineFromProduct(product, 1))
	return nil
}

// AdjustQuantity меняет количество на delta. Рост проверяется по liveStock,
// уменьшение останавливается на единице.
func (s *Session) AdjustQuantity(productID int64, delta, liveStock int) error {
	i := s.indexOf(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if delta > 0 && s.lines[i].Quantity > domain.MaxQuantity-delta {
		return fmt.Errorf("%s: %w", s.lines[i].Name, ErrStockCeiling)
	}
	next := s.lines[i].Quantity + delta
	if delta > 0 && next > liveStock {
		return fmt.Errorf("%s: %w", s.lines[i].Name, ErrStockCeiling)
	}
	if next < 1 {
		next = 1
	}
	s.lines[i].Quantity = next
	return nil
}

// RemoveLine убирает позицию. Отсутствующая позиция игнорируется.
func (s *Session) RemoveLine(productID int64) {
	if i := s.indexOf(productID); i >= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
}

// AddPayment проверяет платёж против текущего остатка к оплате и добавляет его.
func (s *Session) AddPayment(method domain.PaymentMethod, amount decimal.Decimal) error {
	p := domain.Payment{Method: domain.NormalizeMethod(string(method)), Amount: amount}
	if err := s.methods.CheckPayment(s.Remaining(), p); err != nil {
		return err
	}
	s.payments = append(s.payments, p)
	return nil
}

// RemovePayment убирает платёж по номеру.
func (s *Session) RemovePayment(index int) error {
	if index < 0 || index >= len(s.payments) {
		return ErrPaymentIndex
	}
	s.payments = append(s.payments[:index], s.payments[index+1:]...)
	return nil
}

func (s *Session) Total() decimal.Decimal {
	return domain.LinesTotal(s.lines)
}

func (s *Session) TotalPaid() decimal.Decimal {
	return domain.PaymentsTotal(s.payments)
}

// Remaining — max(0, total - totalPaid).
func (s *Session) Remaining() decimal.Decimal {
	return domain.Remaining(s.Total(), s.TotalPaid())
}

// Change — max(0, totalPaid - total).
func (s *Session) Change() decimal.Decimal {
	return domain.ChangeDue(s.Total(), s.TotalPaid())
}

// IsComplete сообщает, что остаток к оплате в пределах допуска.
func (s *Session) IsComplete() bool {
	return domain.IsFullyPaid(s.Total(), s.TotalPaid())
}

// Lines возвращает копию позиций.
func (s *Session) Lines() []domain.CartLine {
	return append([]domain.CartLine(nil), s.lines...)
}

// Payments возвращает копию платежей.
func (s *Session) Payments() []domain.Payment {
	return append([]domain.Payment(nil), s.payments...)
}

// Clear очищает корзину и платежи.
func (s *Session) Clear() {
	s.lines = nil
	s.payments = nil
}

// Checkout проводит продажу через committer и очищает сессию при успехе.
// При ошибке состояние сохраняется, чтобы кассир мог его поправить.
func (s *Session) Checkout(ctx context.Context, committer checkout.Committer) (domain.Sale, error) {
	if len(s.lines) == 0 || !s.IsComplete() {
		return domain.Sale{}, ErrNotReady
	}
	sale, err := committer.Commit(ctx, s.Lines(), s.Payments())
	if err != nil {
		return domain.Sale{}, err
	}
	s.Clear()
	return sale, nil
}

func (s *Session) indexOf(productID int64) int {
	for i, line := range s.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
