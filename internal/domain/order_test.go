package domain

import (
	"errors"
	"testing"
)

func validOrder() *Order {
	return &Order{
		ID: "o1",
		Items: []LineItem{
			{ProductID: "p1", Quantity: 2, UnitPriceMinor: 100000},
			{ProductID: "p2", Quantity: 1, UnitPriceMinor: 50000},
		},
		TotalAmount: 250000,
		Currency:    "INR",
		Status:      StatusPending,
		Customer:    Customer{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"},
	}
}

func TestOrderValidate_OK(t *testing.T) {
	if err := validOrder().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrderValidate_TotalMismatch(t *testing.T) {
	o := validOrder()
	o.TotalAmount = 2500
	var vErr *ValidationError
	if err := o.Validate(); !errors.As(err, &vErr) || vErr.Field != "totalAmount" {
		t.Fatalf("expected totalAmount validation error, got %v", err)
	}
}

func TestOrderValidate_PaymentIDOnlyWhenPaid(t *testing.T) {
	o := validOrder()
	pid := "pay_1"
	o.PaymentID = &pid
	if err := o.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("pending order with payment id should fail, got %v", err)
	}
	o.Status = StatusPaid
	if err := o.Validate(); err != nil {
		t.Fatalf("paid order with payment id should pass, got %v", err)
	}
}

func TestOrderValidate_Customer(t *testing.T) {
	o := validOrder()
	o.Customer.Phone = " "
	if err := o.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrderClone_IsDeep(t *testing.T) {
	o := validOrder()
	gid := "order_abc"
	o.GatewayOrderID = &gid
	c := o.Clone()
	c.Items[0].Quantity = 9
	*c.GatewayOrderID = "changed"
	if o.Items[0].Quantity != 2 || *o.GatewayOrderID != "order_abc" {
		t.Fatalf("clone shares memory with original")
	}
}

func TestTransitionError(t *testing.T) {
	dup := &TransitionError{OrderID: "o1", From: StatusPaid, To: StatusPaid}
	if !dup.Duplicate() || dup.Conflict() {
		t.Fatalf("paid->paid should be a duplicate")
	}
	conflict := &TransitionError{OrderID: "o1", From: StatusFailed, To: StatusPaid}
	if conflict.Duplicate() || !conflict.Conflict() {
		t.Fatalf("failed->paid should be a conflict")
	}
	if !errors.Is(conflict, ErrInvalidTransition) {
		t.Fatalf("expected errors.Is to match ErrInvalidTransition")
	}
}

func TestOrderValidate_RejectsWrappedTotal(t *testing.T) {
	// 4611686018427387905 × 100 wraps int64 to 100.
	o := validOrder()
	o.Items = []LineItem{{ProductID: "p1", Quantity: 100, UnitPriceMinor: 4611686018427387905}}
	o.TotalAmount = 100
	if err := o.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateItems_SumOverflow(t *testing.T) {
	items := []LineItem{
		{ProductID: "p1", Quantity: MaxQuantity, UnitPriceMinor: MaxAmountMinor / MaxQuantity},
		{ProductID: "p2", Quantity: MaxQuantity, UnitPriceMinor: MaxAmountMinor / MaxQuantity},
	}
	var vErr *ValidationError
	if err := ValidateItems(items); !errors.As(err, &vErr) || vErr.Field != "items" {
		t.Fatalf("expected items validation error, got %v", err)
	}
	if err := ValidateItems(items[:1]); err != nil {
		t.Fatalf("single line at the cap should pass, got %v", err)
	}
}
