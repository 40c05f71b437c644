package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a ledger account of the current profile. Balances are in minor
// units (cents) of Currency.
type Account struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"account_type,omitempty"`
	Currency       string `json:"currency,omitempty"`
	Balance        int64  `json:"balance"`
	ClearedBalance int64  `json:"cleared_balance"`
	Reconcile      bool   `json:"reconcile"`
}

// EffectiveBalance is the cleared balance for reconcilable accounts and the
// plain balance otherwise.
func (a Account) EffectiveBalance() int64 {
	if a.Reconcile {
		return a.ClearedBalance
	}
	return a.Balance
}

// Transaction is a single movement on an account.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id,omitempty"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

// TransactionInput is the create/update payload of a transaction.
type TransactionInput struct {
	AccountID   string          `json:"account_id" validate:"required"`
	Description string          `json:"description" validate:"required,max=255"`
	Category    string          `json:"category,omitempty" validate:"max=100"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date" validate:"required"`
}

// TransactionFilter holds the query parameters of a transaction listing.
type TransactionFilter struct {
	Limit    int
	Order    string // "asc" or "desc"
	Category string
	Search   string
}

// DashboardStats is the summary shown on the dashboard.
type DashboardStats struct {
	TotalBalance    decimal.Decimal `json:"total_balance"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income"`
	MonthlyExpenses decimal.Decimal `json:"monthly_expenses"`
	MonthlySavings  decimal.Decimal `json:"monthly_savings"`
}

// Report kinds served by the backend.
const (
	ReportCashFlow         = "cash_flow"
	ReportProjectedBalance = "projected_balance"
)

// ReportQuery narrows a report. Dates are YYYY-MM-DD; empty fields leave the
// backend default in place.
type ReportQuery struct {
	AccountIDs []string
	StartDate  string
	EndDate    string
	// Merged folds the per-account series into one; nil omits the flag.
	Merged *bool
}

// Report is a backend-computed report. Its body is kept as sent.
type Report struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}
