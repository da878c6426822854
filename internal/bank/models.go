package bank

import "time"

// Account is the bank account every ship owns. Balance and Loan are never
// negative.
type Account struct {
	ShipID      int        `json:"ship_id"`
	Balance     int64      `json:"balance"`
	Loan        int64      `json:"loan"`
	LoanTakenAt *time.Time `json:"loan_taken_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Net is balance minus outstanding loan.
func (a *Account) Net() int64 {
	return a.Balance - a.Loan
}
