package ports

import (
	"context"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// FinanceBackend serves the profile-scoped read models of the dependent stores.
// Every call is scoped to the profile current at request time.
type FinanceBackend interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	TransactionStats(ctx context.Context) (*domain.DashboardStats, error)
}

// TransactionBackend edits transactions of the current profile.
type TransactionBackend interface {
	FinanceBackend
	CreateTransaction(ctx context.Context, in domain.TransactionInput) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, in domain.TransactionInput) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// ReportBackend serves the profile-scoped reports.
type ReportBackend interface {
	Report(ctx context.Context, kind string, q domain.ReportQuery) (*domain.Report, error)
}

// AuthBackend exchanges credentials for a session token.
type AuthBackend interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
}
