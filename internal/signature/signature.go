// Package signature authenticates payment gateway callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID"
// keyed with secret, the digest the gateway attaches to a callback.
func Sign(gatewayOrderID, gatewayPaymentID, secret string) string {
	return hex.EncodeToString(digest(gatewayOrderID, gatewayPaymentID, secret))
}

// Verify reports whether signature authenticates the order/payment pair.
// Empty arguments and malformed hex are rejected; the comparison is
// constant time.
func Verify(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, digest(gatewayOrderID, gatewayPaymentID, secret))
}

func digest(gatewayOrderID, gatewayPaymentID, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return mac.Sum(nil)
}
