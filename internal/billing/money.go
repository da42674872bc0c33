package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// zeroDecimal are the currencies the gateway charges in whole units.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

func exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// ToMinor converts an amount to the gateway's smallest currency unit.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(exponent(currency)).Round(0).IntPart()
}

// FromMinor converts a gateway amount back to major units.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -exponent(currency))
}

// InvoiceNumber renders INV-YYYYMM-NNNN where NNNN follows the number of
// invoices ever issued.
func InvoiceNumber(t time.Time, issued int64) string {
	return fmt.Sprintf("INV-%04d%02d-%04d", t.Year(), int(t.Month()), issued+1)
}
