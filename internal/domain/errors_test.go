package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation struct", err: NewValidationError("name", "is required"), want: KindValidation},
		{name: "validation sentinel wrapped", err: fmt.Errorf("commit: %w", ErrEmptyCart), want: KindValidation},
		{name: "exact tender", err: ErrExactTenderExceeded, want: KindValidation},
		{name: "product not found", err: ErrProductNotFound, want: KindNotFound},
		{name: "not found struct", err: SaleNotFound("s-1"), want: KindNotFound},
		{
			name: "insufficient stock",
			err:  fmt.Errorf("commit: %w", &InsufficientStockError{ProductID: 1, Name: "Latte", Requested: 3, Available: 1}),
			want: KindInsufficientStock,
		},
		{
			name: "incomplete payment",
			err:  &IncompletePaymentError{Total: decimal.NewFromInt(10), Paid: decimal.NewFromInt(5)},
			want: KindIncompletePayment,
		},
		{name: "unknown", err: errors.New("disk on fire"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInsufficientStockError_As(t *testing.T) {
	err := fmt.Errorf("checkout: %w", &InsufficientStockError{ProductID: 7, Name: "Matcha", Requested: 4, Available: 2})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatal("expected errors.As to find InsufficientStockError")
	}
	if stockErr.ProductID != 7 || stockErr.Requested != 4 || stockErr.Available != 2 {
		t.Fatalf("unexpected details: %+v", stockErr)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatal("expected errors.Is(ErrInsufficientStock)")
	}
}

func TestIncompletePaymentError_Remaining(t *testing.T) {
	err := &IncompletePaymentError{Total: decimal.RequireFromString("10.00"), Paid: decimal.RequireFromString("4.25")}
	if got := err.Remaining(); !got.Equal(decimal.RequireFromString("5.75")) {
		t.Fatalf("remaining = %s, want 5.75", got)
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "idempotency already exists", err: ErrIdempotencyKeyAlreadyExists, want: true},
		{name: "idempotency hash mismatch", err: ErrIdempotencyHashMismatch, want: true},
		{
			name: "wrapped idempotency conflict",
			err:  errors.Join(ErrIdempotencyHashMismatch, errors.New("extra context")),
			want: true,
		},
		{name: "non idempotency error", err: ErrSaleNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsIdempotencyConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
