package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount of Vietnamese dong. VND has no minor unit.
type Money int64

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Times returns m multiplied by qty.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// Format renders the amount with dot thousands separators, e.g. 250.000.
func (m Money) Format() string {
	raw := strconv.FormatInt(int64(m), 10)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	var b strings.Builder
	lead := len(raw) % 3
	if lead > 0 {
		b.WriteString(raw[:lead])
	}
	for i := lead; i < len(raw); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(raw[i : i+3])
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return fmt.Sprintf("%s ₫", m.Format())
}
