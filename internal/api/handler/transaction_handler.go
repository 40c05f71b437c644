package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/service"
)

// TransactionEditor is the transaction store as seen by the edit endpoints.
type TransactionEditor interface {
	Create(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error)
	Update(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error)
	Delete(ctx context.Context, id string) error
	SetFilter(f domain.TransactionFilter)
	Refresh(ctx context.Context) error
	Snapshot() service.TransactionSnapshot
}

// TransactionHandler edits transactions of the current profile.
type TransactionHandler struct {
	store TransactionEditor
}

func NewTransactionHandler(store TransactionEditor) *TransactionHandler {
	return &TransactionHandler{store: store}
}

// --- Request / Response types ---

type transactionRequest struct {
	AccountID   string          `json:"account_id" validate:"required"`
	Description string          `json:"description" validate:"required,max=255"`
	Category    string          `json:"category" validate:"max=100"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date" validate:"required"`
}

func (r transactionRequest) input() domain.TransactionInput {
	return domain.TransactionInput{
		AccountID:   r.AccountID,
		Description: r.Description,
		Category:    r.Category,
		Amount:      r.Amount,
		Date:        r.Date,
	}
}

type transactionFilterRequest struct {
	Limit    int    `json:"limit" validate:"min=0,max=500"`
	Order    string `json:"order" validate:"omitempty,oneof=asc desc"`
	Category string `json:"category"`
	Search   string `json:"q"`
}

type transactionResponse struct {
	Transaction domain.Transaction `json:"transaction"`
}

// Create handles POST /transactions.
//
// @Summary      Create a transaction
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        body  body      transactionRequest  true  "Transaction"
// @Success      201   {object}  Envelope{data=transactionResponse}
// @Failure      409   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Failure      502   {object}  Envelope
// @Router       /transactions [post]
func (h *TransactionHandler) Create(c echo.Context) error {
	var req transactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	tx, err := h.store.Create(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, transactionResponse{Transaction: tx})
}

// Update handles PUT /transactions/:id.
//
// @Summary      Update a transaction
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Transaction ID"
// @Param        body  body      transactionRequest  true  "Transaction"
// @Success      200   {object}  Envelope{data=transactionResponse}
// @Failure      404   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Router       /transactions/{id} [put]
func (h *TransactionHandler) Update(c echo.Context) error {
	var req transactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	tx, err := h.store.Update(c.Request().Context(), c.Param("id"), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, transactionResponse{Transaction: tx})
}

// Delete handles DELETE /transactions/:id.
//
// @Summary      Delete a transaction
// @Tags         transactions
// @Produce      json
// @Param        id   path      string  true  "Transaction ID"
// @Success      200  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /transactions/{id} [delete]
func (h *TransactionHandler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]bool{"deleted": true})
}

// SetFilter handles PUT /transactions/filter. The list is reloaded with the
// new filter before responding.
//
// @Summary      Change the transaction filter
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        body  body      transactionFilterRequest  true  "Filter"
// @Success      200   {object}  Envelope{data=service.TransactionSnapshot}
// @Failure      422   {object}  Envelope
// @Failure      502   {object}  Envelope
// @Router       /transactions/filter [put]
func (h *TransactionHandler) SetFilter(c echo.Context) error {
	var req transactionFilterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	h.store.SetFilter(domain.TransactionFilter{
		Limit:    req.Limit,
		Order:    req.Order,
		Category: req.Category,
		Search:   req.Search,
	})
	if err := h.store.Refresh(c.Request().Context()); err != nil {
		return err
	}
	return respond(c, http.StatusOK, h.store.Snapshot())
}
