package domain

import "time"

// Product is the slice of a catalog entry the settlement core needs when
// re-pricing a cart.
type Product struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"priceMinorUnits"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"createdAt"`
}
