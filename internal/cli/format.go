package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mentor-desk/internal/analytics"
)

// IndianRupee selects lakh/crore digit grouping.
const IndianRupee = "₹"

// Formatter renders amounts and dates the way the journal is configured.
type Formatter struct {
	CurrencySymbol string
	DateFormat     string
}

// DefaultFormatter returns the formatter used before configuration is loaded.
func DefaultFormatter() Formatter {
	return Formatter{CurrencySymbol: "$", DateFormat: "02-Jan-2006"}
}

// Currency formats an amount with the currency symbol and two decimals.
// The rupee symbol switches to Indian grouping (1,00,000.00).
func (f Formatter) Currency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	var grouped string
	if f.CurrencySymbol == IndianRupee {
		grouped = formatIndianNumber(intPart)
	} else {
		grouped = formatThousands(intPart)
	}

	result := f.CurrencySymbol + grouped + "." + decPart
	if negative && strings.Trim(str, "0.") != "" {
		result = "-" + result
	}
	return result
}

// PnL formats a realized P&L with an explicit sign.
func (f Formatter) PnL(pnl float64) string {
	formatted := f.Currency(pnl)
	if pnl > 0 && formatted != f.Currency(0) {
		return "+" + formatted
	}
	return formatted
}

// OptionalPnL formats a possibly missing P&L.
func (f Formatter) OptionalPnL(pnl *float64) string {
	if pnl == nil {
		return "-"
	}
	return f.PnL(*pnl)
}

// Date formats a trade date.
func (f Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	layout := f.DateFormat
	if layout == "" {
		layout = DefaultFormatter().DateFormat
	}
	return t.Format(layout)
}

// formatThousands groups an integer string in threes: 1,234,567.
func formatThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatIndianNumber formats an integer string in Indian numbering system.
// Indian system: 1,00,00,000 (1 crore) vs Western: 10,000,000
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]

	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatWinRate formats an integer win-rate percentage.
func FormatWinRate(pct int) string {
	return strconv.Itoa(pct) + "%"
}

// FormatProfitFactor formats a profit factor, which may be undefined.
func FormatProfitFactor(pf analytics.ProfitFactor) string {
	v, ok := pf.Value()
	if !ok {
		return analytics.Undefined
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if price == 0 {
		return "-"
	}
	if price >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.5f", price)
}

// FormatOptionalPrice formats a possibly missing price.
func FormatOptionalPrice(price *float64) string {
	if price == nil {
		return "-"
	}
	return FormatPrice(*price)
}

// TruncateString truncates a string to max runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
