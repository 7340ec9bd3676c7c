package callback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Ledger remembers which payment callbacks have already been acted on, so
// client-side effects such as clearing the cart fire once per callback.
type Ledger interface {
	// FirstSeen records key and reports whether it was new.
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// Key derives the ledger key of one delivered callback. The hex signature is
// case-folded so every spelling that verifies maps to the same key.
func Key(gatewayOrderID, gatewayPaymentID, signature string) string {
	sum := sha256.Sum256([]byte(gatewayOrderID + "|" + gatewayPaymentID + "|" + strings.ToLower(signature)))
	return hex.EncodeToString(sum[:])
}
