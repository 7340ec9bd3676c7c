package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the number of fractional digits between a major and a
// minor currency unit (rupee/paise, dollar/cent).
const MinorUnitDigits = 2

// MaxAmountMinor caps any single price and any order total, in minor units.
// Line and order sums stay far below the int64 range.
const MaxAmountMinor int64 = 1_000_000_000_000_000

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 10_000

var (
	minorPerMajor = decimal.New(1, MinorUnitDigits)
	maxAmount     = decimal.NewFromInt(MaxAmountMinor)
)

// CartItem is a line of the client-held cart as submitted at checkout.
// UnitPrice is a snapshot in major units.
type CartItem struct {
	ProductID string          `json:"productId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// ToMinorUnits converts a major-unit amount into integer minor units.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	minor := amount.Mul(minorPerMajor)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, MinorUnitDigits)
	}
	if minor.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("amount %s exceeds the maximum of %s", amount, FromMinorUnits(MaxAmountMinor))
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts integer minor units back into major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitDigits)
}

// LineItemsFromCart converts cart lines into order lines. It rejects totals
// that are not a whole number of major units, matching what the gateway is
// asked to charge.
func LineItemsFromCart(cart []CartItem) ([]LineItem, error) {
	if len(cart) == 0 {
		return nil, Invalid("items", "at least one item required")
	}
	items := make([]LineItem, 0, len(cart))
	for i, c := range cart {
		minor, err := ToMinorUnits(c.UnitPrice)
		if err != nil {
			return nil, Invalid(itemField(i, "unitPrice"), err.Error())
		}
		items = append(items, LineItem{
			ProductID:      strings.TrimSpace(c.ProductID),
			Quantity:       c.Quantity,
			UnitPriceMinor: minor,
		})
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	if SumItems(items)%minorPerMajor.IntPart() != 0 {
		return nil, Invalid("items", "fractional totals are not accepted")
	}
	return items, nil
}
