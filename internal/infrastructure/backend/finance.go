package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

var (
	_ ports.TransactionBackend = (*Client)(nil)
	_ ports.ReportBackend      = (*Client)(nil)
	_ ports.AuthBackend        = (*Client)(nil)
)

func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{op: "list_accounts", method: http.MethodGet, path: "/accounts"}, &raw); err != nil {
		return nil, err
	}
	accounts, err := decodeList[domain.Account](raw, "accounts")
	if err != nil {
		return nil, &domain.NetworkError{Op: "list_accounts", Status: http.StatusOK, Message: "decode response: " + err.Error()}
	}
	return accounts, nil
}

func (c *Client) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "list_transactions",
		method: http.MethodGet,
		path:   "/transactions",
		query:  transactionQuery(filter),
	}, &raw)
	if err != nil {
		return nil, err
	}
	txs, err := decodeList[domain.Transaction](raw, "transactions")
	if err != nil {
		return nil, &domain.NetworkError{Op: "list_transactions", Status: http.StatusOK, Message: "decode response: " + err.Error()}
	}
	return txs, nil
}

func (c *Client) TransactionStats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := c.do(ctx, call{op: "transaction_stats", method: http.MethodGet, path: "/transactions/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Login exchanges credentials for a token. Rejected credentials surface as
// domain.ErrUnauthorized.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	var res domain.LoginResult
	err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/auth/login", body: creds}, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &domain.NetworkError{Op: "login", Status: http.StatusOK, Message: "response carries no token"}
	}
	return &res, nil
}

func transactionQuery(f domain.TransactionFilter) url.Values {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Order != "" {
		q.Set("order", f.Order)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("q", f.Search)
	}
	return q
}

type transactionEnvelope struct {
	Transaction domain.TransactionInput `json:"transaction"`
}

func transactionPath(id string) string {
	return "/transactions/" + url.PathEscape(id)
}

func validTransaction(tx domain.Transaction) bool { return tx.ID != "" }

func (c *Client) CreateTransaction(ctx context.Context, in domain.TransactionInput) (*domain.Transaction, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "create_transaction",
		method: http.MethodPost,
		path:   "/transactions",
		body:   transactionEnvelope{Transaction: in},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeOne("create_transaction", raw, "transaction", validTransaction)
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, in domain.TransactionInput) (*domain.Transaction, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "update_transaction",
		method: http.MethodPut,
		path:   transactionPath(id),
		body:   transactionEnvelope{Transaction: in},
	}, &raw)
	if err != nil {
		return nil, transactionNotFound(err)
	}
	return decodeOne("update_transaction", raw, "transaction", validTransaction)
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	err := c.do(ctx, call{op: "delete_transaction", method: http.MethodDelete, path: transactionPath(id)}, nil)
	return transactionNotFound(err)
}

// Report fetches /reports/{kind}. The body is returned as sent.
func (c *Client) Report(ctx context.Context, kind string, q domain.ReportQuery) (*domain.Report, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "report_" + kind,
		method: http.MethodGet,
		path:   "/reports/" + url.PathEscape(kind),
		query:  reportQuery(q),
	}, &raw)
	if err != nil {
		return nil, err
	}
	return &domain.Report{Kind: kind, Data: raw}, nil
}

func transactionNotFound(err error) error {
	if err != nil && statusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrTransactionNotFound, err)
	}
	return err
}

func reportQuery(q domain.ReportQuery) url.Values {
	v := url.Values{}
	for _, id := range q.AccountIDs {
		v.Add("account_id[]", id)
	}
	if q.StartDate != "" {
		v.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("end_date", q.EndDate)
	}
	if q.Merged != nil {
		v.Set("merged", strconv.FormatBool(*q.Merged))
	}
	return v
}
