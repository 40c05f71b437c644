package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/service"
)

// ReportSource serves the cached and on-demand reports.
type ReportSource interface {
	Snapshot() service.ReportSnapshot
	Report(ctx context.Context, kind string, q domain.ReportQuery) (*domain.Report, error)
}

type ReportHandler struct {
	reports ReportSource
}

func NewReportHandler(reports ReportSource) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Cached handles GET /reports.
//
// @Summary      Cached reports of the current profile
// @Tags         reports
// @Produce      json
// @Success      200  {object}  Envelope{data=service.ReportSnapshot}
// @Router       /reports [get]
func (h *ReportHandler) Cached(c echo.Context) error {
	return respond(c, http.StatusOK, h.reports.Snapshot())
}

// Get handles GET /reports/:kind.
//
// @Summary      Fetch a report
// @Tags         reports
// @Produce      json
// @Param        kind        path      string    true   "cash_flow or projected_balance"
// @Param        account_id  query     []string  false  "Account IDs"
// @Param        start_date  query     string    false  "YYYY-MM-DD"
// @Param        end_date    query     string    false  "YYYY-MM-DD"
// @Param        merged      query     bool      false  "Merge account series"
// @Success      200         {object}  Envelope{data=domain.Report}
// @Failure      400         {object}  Envelope
// @Failure      404         {object}  Envelope
// @Failure      502         {object}  Envelope
// @Router       /reports/{kind} [get]
func (h *ReportHandler) Get(c echo.Context) error {
	params := c.QueryParams()
	q := domain.ReportQuery{
		AccountIDs: append(params["account_id"], params["account_id[]"]...),
		StartDate:  params.Get("start_date"),
		EndDate:    params.Get("end_date"),
	}
	if raw := params.Get("merged"); raw != "" {
		merged, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "merged must be a boolean")
		}
		q.Merged = &merged
	}
	report, err := h.reports.Report(c.Request().Context(), c.Param("kind"), q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, report)
}
