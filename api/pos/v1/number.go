package posv1

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Number — числовое поле частичного обновления. Декодируется без проверки,
// значение разбирается при применении: число или строка с числом.
type Number []byte

// IntNumber возвращает Number для целого значения.
func IntNumber(v int) *Number {
	n := Number(strconv.Itoa(v))
	return &n
}

// DecimalNumber возвращает Number для денежного значения.
func DecimalNumber(v decimal.Decimal) *Number {
	n := Number(v.String())
	return &n
}

func (n Number) MarshalJSON() ([]byte, error) {
	if len(n) == 0 {
		return []byte("null"), nil
	}
	return n, nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = append((*n)[:0], data...)
	return nil
}

// Decimal разбирает значение. false, если это не число.
func (n Number) Decimal() (decimal.Decimal, bool) {
	raw := bytes.TrimSpace(n)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, false
		}
	}
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
