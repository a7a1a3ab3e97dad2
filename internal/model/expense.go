package model

import "time"

// Expense is a reimbursed parliamentary quota expense.
type Expense struct {
	IssuedAt    *time.Time
	DocumentID  string
	Category    string
	Supplier    string
	SupplierDoc string
	DeputyID    int64
	Year        int
	Month       int
	NetValue    float64
}
