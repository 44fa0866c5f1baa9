package trust

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	volumeFractionDigits = 3
	thousandsSeparator   = ','
)

var (
	volumePrinter = message.NewPrinter(language.English)
	// below this magnitude a volume with three fraction digits fits float64 exactly
	exactVolumeLimit = decimal.New(1, 12)
)

// FormatVolume renders an economic volume with thousands separators and at most
// three fraction digits, e.g. 1234567.5 -> "1,234,567.5".
func FormatVolume(volume decimal.Decimal) string {
	rounded := volume.Round(volumeFractionDigits)
	if rounded.Abs().GreaterThanOrEqual(exactVolumeLimit) {
		return groupDigits(rounded.String())
	}
	if rounded.IsInteger() {
		return volumePrinter.Sprint(number.Decimal(rounded.IntPart()))
	}
	return volumePrinter.Sprint(number.Decimal(rounded.InexactFloat64(), number.MaxFractionDigits(volumeFractionDigits)))
}

// groupDigits inserts thousands separators into a plain decimal string.
func groupDigits(plain string) string {
	sign := ""
	if strings.HasPrefix(plain, "-") {
		sign, plain = "-", plain[1:]
	}
	integer, fraction, hasFraction := strings.Cut(plain, ".")

	var builder strings.Builder
	builder.WriteString(sign)
	for i, digit := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			builder.WriteByte(thousandsSeparator)
		}
		builder.WriteRune(digit)
	}
	if hasFraction {
		builder.WriteByte('.')
		builder.WriteString(fraction)
	}
	return builder.String()
}
