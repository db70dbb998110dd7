package domain

import "github.com/shopspring/decimal"

// Tolerance — допуск при сравнении денежных сумм: 0.01 денежной единицы.
var Tolerance = decimal.New(1, -2)

// Remaining возвращает max(0, total - paid).
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	rest := total.Sub(paid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// ChangeDue возвращает сдачу: max(0, paid - total).
func ChangeDue(total, paid decimal.Decimal) decimal.Decimal {
	change := paid.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// IsFullyPaid сравнивает суммы с допуском Tolerance.
func IsFullyPaid(total, paid decimal.Decimal) bool {
	return Remaining(total, paid).LessThanOrEqual(Tolerance)
}

// ExceedsBalance сообщает, превышает ли amount остаток balance с учётом допуска.
func ExceedsBalance(amount, balance decimal.Decimal) bool {
	return amount.GreaterThan(balance.Add(Tolerance))
}
