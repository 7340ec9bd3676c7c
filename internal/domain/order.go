package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the settlement state of an order.
type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusPaid    OrderStatus = "paid"
	StatusFailed  OrderStatus = "failed"
)

// Terminal reports whether no further status writes are allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// LineItem is an immutable order line priced in minor units.
type LineItem struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unitPriceMinorUnits"`
}

// Total returns the line amount in minor units.
func (l LineItem) Total() int64 {
	return l.UnitPriceMinor * int64(l.Quantity)
}

// Customer holds the contact details captured at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Normalize trims surrounding whitespace and lowercases the email.
func (c Customer) Normalize() Customer {
	return Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Validate requires every contact field.
func (c Customer) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return Invalid("customer.name", "required")
	case strings.TrimSpace(c.Email) == "":
		return Invalid("customer.email", "required")
	case !strings.Contains(c.Email, "@"):
		return Invalid("customer.email", "must be an email address")
	case strings.TrimSpace(c.Phone) == "":
		return Invalid("customer.phone", "required")
	}
	return nil
}

// Order is the persisted settlement aggregate.
type Order struct {
	ID             string      `json:"id"`
	Items          []LineItem  `json:"items"`
	TotalAmount    int64       `json:"totalAmount"`
	Currency       string      `json:"currency"`
	Status         OrderStatus `json:"status"`
	PaymentID      *string     `json:"paymentId"`
	GatewayOrderID *string     `json:"gatewayOrderId,omitempty"`
	Customer       Customer    `json:"customer"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// SumItems returns Σ unitPrice × quantity in minor units. Callers validate
// the lines with ValidateItems first, which bounds the sum.
func SumItems(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Total()
	}
	return total
}

// ValidateItems checks the line rules shared by checkout and persistence.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return Invalid("items", "at least one item required")
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return Invalid(itemField(i, "productId"), "required")
		}
		if item.Quantity < 1 {
			return Invalid(itemField(i, "quantity"), "must be at least 1")
		}
		if item.Quantity > MaxQuantity {
			return Invalid(itemField(i, "quantity"), fmt.Sprintf("must be at most %d", MaxQuantity))
		}
		if item.UnitPriceMinor < 0 {
			return Invalid(itemField(i, "unitPrice"), "must not be negative")
		}
		if item.UnitPriceMinor > MaxAmountMinor {
			return Invalid(itemField(i, "unitPrice"), "exceeds the maximum amount")
		}
	}
	if !withinLimit(items) {
		return Invalid("items", "order total exceeds the maximum amount")
	}
	if SumItems(items) <= 0 {
		return Invalid("items", "order total must be positive")
	}
	return nil
}

// Validate enforces the invariants every stored order must hold.
func (o *Order) Validate() error {
	if err := ValidateItems(o.Items); err != nil {
		return err
	}
	if o.TotalAmount != SumItems(o.Items) {
		return Invalid("totalAmount", "does not match line items")
	}
	if strings.TrimSpace(o.Currency) == "" {
		return Invalid("currency", "required")
	}
	if !o.Status.Valid() {
		return Invalid("status", "unknown status")
	}
	if (o.Status == StatusPaid) != (o.PaymentID != nil) {
		return Invalid("paymentId", "set only on paid orders")
	}
	return o.Customer.Validate()
}

// Clone returns a deep copy safe to hand out of a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	out.Items = append([]LineItem(nil), o.Items...)
	if o.PaymentID != nil {
		v := *o.PaymentID
		out.PaymentID = &v
	}
	if o.GatewayOrderID != nil {
		v := *o.GatewayOrderID
		out.GatewayOrderID = &v
	}
	return &out
}

// withinLimit reports whether Σ unitPrice × quantity stays at or below
// MaxAmountMinor, without overflowing while it adds up. Lines must already
// have non-negative prices and quantities.
func withinLimit(items []LineItem) bool {
	var total int64
	for _, item := range items {
		if item.UnitPriceMinor == 0 {
			continue
		}
		if int64(item.Quantity) > (MaxAmountMinor-total)/item.UnitPriceMinor {
			return false
		}
		total += item.Total()
	}
	return true
}

func itemField(i int, name string) string {
	return fmt.Sprintf("items[%d].%s", i, name)
}
