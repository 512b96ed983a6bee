// README: Common money value object used across modules.
package types

// Money holds an amount in the currency's minor unit (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
