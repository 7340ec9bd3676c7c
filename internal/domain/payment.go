package domain

import "time"

// GatewayIntent is the gateway-side charge record created for an order.
// Only its id is kept on the order.
type GatewayIntent struct {
	ID          string    `json:"id"`
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Receipt     string    `json:"receipt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PaymentCallback is the untrusted payment outcome relayed by the client or
// the gateway webhook.
type PaymentCallback struct {
	GatewayOrderID   string `json:"razorpay_order_id" form:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id" form:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature" form:"razorpay_signature"`
}
