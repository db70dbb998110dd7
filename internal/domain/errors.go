package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Базовые классы ошибок. Транспортный слой сопоставляет их со статусами ответа.
var (
	// ErrValidation — некорректные или отсутствующие входные данные.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound — запрошенная сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock — остатка товара не хватает для продажи.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrIncompletePayment — внесённых платежей не хватает для закрытия чека.
	ErrIncompletePayment = errors.New("incomplete payment")
)

var (
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrSaleNotFound возвращается, если продажи нет в журнале.
	ErrSaleNotFound = fmt.Errorf("sale %w", ErrNotFound)
	// ErrInvalidStatusTransition — запрещённый переход статуса продажи.
	ErrInvalidStatusTransition = fmt.Errorf("invalid sale status transition: %w", ErrValidation)
	// ErrEmptyCart — попытка провести продажу без позиций.
	ErrEmptyCart = fmt.Errorf("cart must contain at least one line: %w", ErrValidation)
	// ErrNonPositiveAmount — сумма платежа должна быть больше нуля.
	ErrNonPositiveAmount = fmt.Errorf("payment amount must be greater than zero: %w", ErrValidation)
	// ErrUnknownPaymentMethod — метод оплаты не настроен.
	ErrUnknownPaymentMethod = fmt.Errorf("unknown payment method: %w", ErrValidation)
	// ErrExactTenderExceeded — безналичный платёж больше остатка к оплате.
	ErrExactTenderExceeded = fmt.Errorf("exact tender payment exceeds remaining balance: %w", ErrValidation)
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

var (
	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — записи с таким ключом нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// ValidationError описывает ошибку конкретного поля.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError указывает, какая сущность не найдена.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ProductNotFound формирует NotFoundError для товара.
func ProductNotFound(id int64) *NotFoundError {
	return &NotFoundError{Entity: "product", ID: fmt.Sprintf("%d", id)}
}

// SaleNotFound формирует NotFoundError для продажи.
func SaleNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: "sale", ID: id}
}

// InsufficientStockError называет товар, на котором не сошёлся остаток.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IncompletePaymentError фиксирует сумму чека и фактически внесённую сумму.
type IncompletePaymentError struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

func (e *IncompletePaymentError) Error() string {
	return fmt.Sprintf("incomplete payment: total %s, paid %s", e.Total.StringFixed(2), e.Paid.StringFixed(2))
}

func (e *IncompletePaymentError) Unwrap() error { return ErrIncompletePayment }

// Remaining возвращает недоплаченную сумму.
func (e *IncompletePaymentError) Remaining() decimal.Decimal {
	return Remaining(e.Total, e.Paid)
}

// Kind классифицирует ошибку для транспортного слоя.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindIncompletePayment Kind = "incomplete_payment"
	KindInternal          Kind = "internal"
)

// ErrorKind возвращает класс ошибки. Всё неизвестное считается внутренней ошибкой.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrIncompletePayment):
		return KindIncompletePayment
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом idempotency-ключа.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
