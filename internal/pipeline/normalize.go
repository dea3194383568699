package pipeline

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
)

// Sentinel display values for unset timestamps and payment state.
const (
	TimeUnset    = "N/A"
	NotDelivered = "Not Delivered"
	PaidText     = "Paid"
	NotPaidText  = "Not Paid"
)

// timestampLayout is the fixed display layout for ledger timestamps.
const timestampLayout = "Jan 2, 2006 15:04:05 MST"

// Normalize projects a raw ledger record into its display form. The mapping
// is pure and total: every raw record maps to exactly one display record,
// and unknown status codes render as UNKNOWN instead of failing.
func Normalize(raw *models.RawShipmentRecord) models.DisplayShipmentRecord {
	isPaid := NotPaidText

	if raw.IsPaid {
		isPaid = PaidText
	}

	return models.DisplayShipmentRecord{
		Supplier:     raw.Supplier,
		Contractor:   raw.Contractor,
		MaterialType: raw.MaterialType,
		Quantity:     FormatUnits(raw.Quantity),
		PickupTime:   formatTimestamp(raw.PickupTime, TimeUnset),
		DeliveryTime: formatTimestamp(raw.DeliveryTime, NotDelivered),
		Distance:     FormatUnits(raw.Distance),
		Price:        FormatUnits(raw.Price),
		Status:       models.ShipmentStatus(raw.Status).Display(),
		IsPaid:       isPaid,
	}
}

// FormatUnits renders a fixed-point integer scaled by 10^18 as an exact
// decimal string with trailing zeros trimmed: 5*10^18 -> "5",
// 15*10^17 -> "1.5". This is the one canonical descaling function; wei
// prices use it too since one ether is 10^18 wei.
func FormatUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}

	sign := ""

	abs := new(big.Int).Abs(v)

	if v.Sign() < 0 {
		sign = "-"
	}

	quo, rem := new(big.Int).QuoRem(abs, models.FixedPointScale, new(big.Int))

	if rem.Sign() == 0 {
		return sign + quo.String()
	}

	frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")

	return sign + quo.String() + "." + frac
}

// ParseUnits is the inverse of FormatUnits: it converts a decimal string
// into a fixed-point integer scaled by 10^18. More than 18 fractional
// digits cannot be represented and is rejected.
func ParseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return nil, errors.NewInvalidInputError("empty decimal value")
	}

	sign := int64(1)

	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}

	intPart := s
	fracPart := ""

	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	// A bare sign or dot carries no digits at all
	if intPart == "" && fracPart == "" {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("invalid decimal value %q", s))
	}

	if len(fracPart) > 18 {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("too many decimal places in %q", s))
	}

	// Only plain digits past this point; big.Int would otherwise accept a
	// second sign character.
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("invalid decimal value %q", s))
	}

	if intPart == "" {
		intPart = "0"
	}

	whole, ok := new(big.Int).SetString(intPart, 10)

	if !ok {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("invalid decimal value %q", s))
	}

	whole.Mul(whole, models.FixedPointScale)

	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart+strings.Repeat("0", 18-len(fracPart)), 10)

		if !ok {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("invalid decimal value %q", s))
		}

		whole.Add(whole, frac)
	}

	if sign < 0 {
		whole.Neg(whole)
	}

	return whole, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// formatTimestamp renders a unix-seconds timestamp, mapping the ledger's
// zero sentinel to the given display text. Epoch zero must never render as a
// date.
func formatTimestamp(ts int64, zeroText string) string {
	if ts == 0 {
		return zeroText
	}

	return time.Unix(ts, 0).UTC().Format(timestampLayout)
}
