package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod — метка способа оплаты. Расчётов с провайдером нет.
type PaymentMethod string

const (
	// PaymentMethodCash — наличные, допускают переплату со сдачей.
	PaymentMethodCash PaymentMethod = "CASH"
	// PaymentMethodCard — карта, только точная сумма.
	PaymentMethodCard PaymentMethod = "CARD"
)

// NormalizeMethod приводит метку к каноничному виду. Старые кассовые метки
// ("Efectivo", "Tarjetas") сводятся к CASH и CARD.
func NormalizeMethod(raw string) PaymentMethod {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch v {
	case "EFECTIVO":
		return PaymentMethodCash
	case "TARJETA", "TARJETAS":
		return PaymentMethodCard
	}
	return PaymentMethod(v)
}

// Payment — один внесённый платёж.
type Payment struct {
	Method PaymentMethod
	Amount decimal.Decimal
}

// PaymentsTotal суммирует платежи.
func PaymentsTotal(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// TenderPolicy описывает правила приёма метода оплаты.
type TenderPolicy struct {
	// AllowsChange — можно внести больше остатка и получить сдачу.
	AllowsChange bool
}

// PaymentMethods — явный набор разрешённых методов оплаты.
type PaymentMethods struct {
	policies map[PaymentMethod]TenderPolicy
}

// NewPaymentMethods собирает набор из пар метод/политика.
func NewPaymentMethods(policies map[PaymentMethod]TenderPolicy) (PaymentMethods, error) {
	if len(policies) == 0 {
		return PaymentMethods{}, NewValidationError("payment_methods", "at least one method is required")
	}
	out := make(map[PaymentMethod]TenderPolicy, len(policies))
	for method, policy := range policies {
		method = NormalizeMethod(string(method))
		if method == "" {
			return PaymentMethods{}, NewValidationError("payment_methods", "method name is empty")
		}
		out[method] = policy
	}
	return PaymentMethods{policies: out}, nil
}

// DefaultPaymentMethods — CASH со сдачей и CARD без сдачи.
func DefaultPaymentMethods() PaymentMethods {
	return PaymentMethods{policies: map[PaymentMethod]TenderPolicy{
		PaymentMethodCash: {AllowsChange: true},
		PaymentMethodCard: {AllowsChange: false},
	}}
}

// ParsePaymentMethods разбирает строку вида "CASH:change,CARD:exact".
// Метод без суффикса считается точным.
func ParsePaymentMethods(raw string) (PaymentMethods, error) {
	policies := make(map[PaymentMethod]TenderPolicy)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, mode, _ := strings.Cut(part, ":")
		method := NormalizeMethod(name)
		if method == "" {
			return PaymentMethods{}, NewValidationError("payment_methods", fmt.Sprintf("empty method in %q", part))
		}
		switch strings.ToLower(strings.TrimSpace(mode)) {
		case "change":
			policies[method] = TenderPolicy{AllowsChange: true}
		case "", "exact":
			policies[method] = TenderPolicy{AllowsChange: false}
		default:
			return PaymentMethods{}, NewValidationError("payment_methods", fmt.Sprintf("unknown tender mode %q", mode))
		}
	}
	return NewPaymentMethods(policies)
}

// Policy возвращает политику метода.
func (m PaymentMethods) Policy(method PaymentMethod) (TenderPolicy, bool) {
	policy, ok := m.policies[NormalizeMethod(string(method))]
	return policy, ok
}

// Methods возвращает отсортированный список методов.
func (m PaymentMethods) Methods() []PaymentMethod {
	out := make([]PaymentMethod, 0, len(m.policies))
	for method := range m.policies {
		out = append(out, method)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CheckPayment проверяет один платёж против текущего остатка к оплате.
func (m PaymentMethods) CheckPayment(remaining decimal.Decimal, p Payment) error {
	if !p.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	policy, ok := m.Policy(p.Method)
	if !ok {
		return fmt.Errorf("%q: %w", p.Method, ErrUnknownPaymentMethod)
	}
	if !policy.AllowsChange && ExceedsBalance(p.Amount, remaining) {
		return fmt.Errorf("%s %s over remaining %s: %w",
			NormalizeMethod(string(p.Method)), p.Amount.StringFixed(2), remaining.StringFixed(2), ErrExactTenderExceeded)
	}
	return nil
}

// ValidateTender воспроизводит платежи в порядке внесения и проверяет каждый
// против остатка на момент внесения. Полноту оплаты не проверяет.
func (m PaymentMethods) ValidateTender(total decimal.Decimal, payments []Payment) ([]Payment, error) {
	normalized := make([]Payment, 0, len(payments))
	remaining := total
	for _, p := range payments {
		p.Method = NormalizeMethod(string(p.Method))
		if err := m.CheckPayment(remaining, p); err != nil {
			return nil, err
		}
		remaining = Remaining(remaining, p.Amount)
		normalized = append(normalized, p)
	}
	return normalized, nil
}
