package domain

const (
	PaymentStatusPaid    = "paid"
	SessionStatusExpired = "expired"
)

// CheckoutSession is the redirect target returned when a payment is created.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutStatus is what the status endpoints report for a payment session.
type CheckoutStatus struct {
	PaymentStatus string  `json:"payment_status"`
	Status        string  `json:"status"`
	AmountTotal   float64 `json:"amount_total,omitempty"`
	Currency      string  `json:"currency,omitempty"`
}

func (s CheckoutStatus) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

func (s CheckoutStatus) IsExpired() bool {
	return s.Status == SessionStatusExpired
}

// IsTerminal reports whether polling can stop. Paid wins over expired.
func (s CheckoutStatus) IsTerminal() bool {
	return s.IsPaid() || s.IsExpired()
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return "payment_status=" + s.PaymentStatus + " status=" + s.Status
}
