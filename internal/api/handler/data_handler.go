package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/service"
)

type DashboardSource interface {
	Snapshot() service.DashboardSnapshot
}

type AccountSource interface {
	Snapshot() service.AccountSnapshot
}

type TransactionSource interface {
	Snapshot() service.TransactionSnapshot
	Categories() []string
}

// DataHandler serves the last loaded state of the profile-scoped stores.
type DataHandler struct {
	dashboard    DashboardSource
	accounts     AccountSource
	transactions TransactionSource
}

func NewDataHandler(dashboard DashboardSource, accounts AccountSource, transactions TransactionSource) *DataHandler {
	return &DataHandler{dashboard: dashboard, accounts: accounts, transactions: transactions}
}

// Dashboard handles GET /dashboard.
//
// @Summary      Dashboard of the current profile
// @Tags         data
// @Produce      json
// @Success      200  {object}  Envelope{data=service.DashboardSnapshot}
// @Failure      409  {object}  Envelope
// @Router       /dashboard [get]
func (h *DataHandler) Dashboard(c echo.Context) error {
	return respond(c, http.StatusOK, h.dashboard.Snapshot())
}

// Accounts handles GET /accounts.
//
// @Summary      Accounts of the current profile
// @Tags         data
// @Produce      json
// @Success      200  {object}  Envelope{data=service.AccountSnapshot}
// @Failure      409  {object}  Envelope
// @Router       /accounts [get]
func (h *DataHandler) Accounts(c echo.Context) error {
	return respond(c, http.StatusOK, h.accounts.Snapshot())
}

// Transactions handles GET /transactions. ?category= and ?q= narrow the
// loaded list without a backend round trip.
//
// @Summary      Transactions of the current profile
// @Tags         transactions
// @Produce      json
// @Param        category  query     string  false  "Exact category"
// @Param        q         query     string  false  "Description contains, case-insensitive"
// @Success      200       {object}  Envelope{data=service.TransactionSnapshot}
// @Failure      409       {object}  Envelope
// @Router       /transactions [get]
func (h *DataHandler) Transactions(c echo.Context) error {
	snap := h.transactions.Snapshot()
	category := c.QueryParam("category")
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	if category == "" && q == "" {
		return respond(c, http.StatusOK, snap)
	}
	filtered := make([]domain.Transaction, 0, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		if category != "" && tx.Category != category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(tx.Description), q) {
			continue
		}
		filtered = append(filtered, tx)
	}
	snap.Transactions = filtered
	return respond(c, http.StatusOK, snap)
}

// Categories handles GET /transactions/categories.
//
// @Summary      Categories of the loaded transactions
// @Tags         transactions
// @Produce      json
// @Success      200  {object}  Envelope
// @Router       /transactions/categories [get]
func (h *DataHandler) Categories(c echo.Context) error {
	return respond(c, http.StatusOK, map[string][]string{"categories": h.transactions.Categories()})
}
