package domain

import "fmt"

// FormatMoney renders an amount for display. Amounts are never rounded before
// this point.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
