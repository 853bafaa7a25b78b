package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SensitiveMask replaces money figures when sensitive values are hidden.
const SensitiveMask = "****"

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatMoney renders v as yuan with thousands separators, e.g. ¥1,234.56.
func FormatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "¥" + groupThousands(d.StringFixed(2))
}

// FormatSignedMoney is FormatMoney with an explicit "+" for positive values.
func FormatSignedMoney(v float64) string {
	if decimal.NewFromFloat(v).Round(2).IsPositive() {
		return "+" + FormatMoney(v)
	}
	return FormatMoney(v)
}

// FormatPercent renders a percentage value with sign, e.g. +1.23%.
func FormatPercent(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// MaskMoney returns the mask when hidden is true, otherwise FormatMoney(v).
func MaskMoney(v float64, hidden bool) string {
	if hidden {
		return SensitiveMask
	}
	return FormatMoney(v)
}

// MaskSignedMoney returns the mask when hidden is true, otherwise FormatSignedMoney(v).
func MaskSignedMoney(v float64, hidden bool) string {
	if hidden {
		return SensitiveMask
	}
	return FormatSignedMoney(v)
}

func groupThousands(fixed string) string {
	intPart, frac, _ := strings.Cut(fixed, ".")
	if len(intPart) <= 3 {
		return fixed
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
