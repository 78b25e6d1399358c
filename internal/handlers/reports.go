package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/export"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/mauv0809/finboard/internal/query"
	"github.com/mauv0809/finboard/internal/report"
)

const allReportsKey = "reports:all"

type ReportsResponse struct {
	Reports []*models.Report `json:"reports"`
	Total   int              `json:"total"`
}

// ReportDetail is a report with its credit decision.
type ReportDetail struct {
	*models.Report
	ApprovalStatus models.Status `json:"approvalStatus"`
}

func reportFilter(c echo.Context) (report.Filter, error) {
	f := report.Filter{
		Query:     c.QueryParam("q"),
		Industry:  c.QueryParam("industry"),
		RiskLevel: models.RiskLevel(c.QueryParam("risk")),
	}
	if f.RiskLevel != "" && !f.RiskLevel.Valid() {
		return f, apperr.BadInput("unknown risk level %q", f.RiskLevel)
	}
	for name, dst := range map[string]*int{"min_score": &f.MinScore, "year": &f.Year} {
		s := c.QueryParam(name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, apperr.BadInput("%s %q is not a number", name, s)
		}
		*dst = n
	}
	return f, nil
}

// ListReports handles GET /api/reports.
// Query params: q, industry, risk, min_score, year, sort (date|score|company), desc.
func (h *Handler) ListReports(c echo.Context) error {
	if h.reports == nil {
		return notConfigured("report source")
	}
	f, err := reportFilter(c)
	if err != nil {
		return err
	}
	key, err := report.ParseSortKey(c.QueryParam("sort"))
	if err != nil {
		return apperr.BadInput("%v", err)
	}
	desc := c.QueryParam("desc") == "true"

	all, err := query.Fetch(c.Request().Context(), h.query, allReportsKey, func(ctx context.Context) ([]*models.Report, error) {
		return h.reports.FetchAllReports(ctx)
	})
	if err != nil {
		return err
	}

	reports := report.FilterReports(all, f)
	if c.QueryParam("sort") != "" {
		report.Sort(reports, key, desc)
	}
	return c.JSON(http.StatusOK, ReportsResponse{Reports: reports, Total: len(reports)})
}

func (h *Handler) reportByID(c echo.Context) (*models.Report, error) {
	if h.reports == nil {
		return nil, notConfigured("report source")
	}
	id := c.Param("id")
	return query.Fetch(c.Request().Context(), h.query, "report:"+id, func(ctx context.Context) (*models.Report, error) {
		return h.reports.GetReportByID(ctx, id)
	})
}

// GetReport handles GET /api/reports/:id.
func (h *Handler) GetReport(c echo.Context) error {
	r, err := h.reportByID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReportDetail{Report: r, ApprovalStatus: r.ApprovalStatus()})
}

// ExportReport handles GET /api/reports/:id/export.csv.
func (h *Handler) ExportReport(c echo.Context) error {
	r, err := h.reportByID(c)
	if err != nil {
		return err
	}
	attachment(c, export.FileName(r))
	c.Response().WriteHeader(http.StatusOK)
	return export.WriteReportCSV(c.Response(), r)
}
