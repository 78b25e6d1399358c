package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/export"
	"github.com/mauv0809/finboard/internal/financial"
	"github.com/mauv0809/finboard/internal/models"
)

func financialParams(c echo.Context) (financial.Params, error) {
	p := financial.Params{
		CompanyID: c.QueryParam("company_id"),
		Category:  c.QueryParam("category"),
		Metric:    c.QueryParam("metric"),
	}
	if s := c.QueryParam("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return p, apperr.BadInput("year %q is not a number", s)
		}
		p.Year = y
	}
	for name, dst := range map[string]**float64{"min_value": &p.MinValue, "max_value": &p.MaxValue} {
		s := c.QueryParam(name)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, apperr.BadInput("%s %q is not a number", name, s)
		}
		*dst = &f
	}
	return p, nil
}

func ratioFilter(c echo.Context) financial.RatioFilter {
	return financial.RatioFilter{
		Search:   c.QueryParam("search"),
		Category: c.QueryParam("ratio_category"),
	}
}

// FinancialData handles GET /api/financial-data.
// A failed fetch with a fallback answers 200 with stale data and the
// notification; without a fallback the error is returned.
func (h *Handler) FinancialData(c echo.Context) error {
	if h.financial == nil {
		return notConfigured("financial data api")
	}
	params, err := financialParams(c)
	if err != nil {
		return err
	}
	res := h.financial.Fetch(c.Request().Context(), params)
	if res.Err() != nil && res.Data == nil {
		return res.Err()
	}
	return c.JSON(http.StatusOK, res)
}

// RatiosResponse is the flattened ratio table.
type RatiosResponse struct {
	Ratios     []models.FinancialRatio `json:"ratios"`
	Categories []string                `json:"categories"`
	financial.Result
}

// Ratios handles GET /api/financial-data/ratios.
func (h *Handler) Ratios(c echo.Context) error {
	if h.financial == nil {
		return notConfigured("financial data api")
	}
	params, err := financialParams(c)
	if err != nil {
		return err
	}
	all, res := h.financial.Ratios(c.Request().Context(), params, financial.RatioFilter{})
	if res.Err() != nil && res.Data == nil {
		return res.Err()
	}
	return c.JSON(http.StatusOK, RatiosResponse{
		Ratios:     financial.FilterRatios(all, ratioFilter(c)),
		Categories: financial.Categories(all),
		Result:     res,
	})
}

// ExportRatios handles GET /api/financial-data/export.csv.
func (h *Handler) ExportRatios(c echo.Context) error {
	if h.financial == nil {
		return notConfigured("financial data api")
	}
	params, err := financialParams(c)
	if err != nil {
		return err
	}
	ratios, res := h.financial.Ratios(c.Request().Context(), params, ratioFilter(c))
	if res.Err() != nil && res.Data == nil {
		return res.Err()
	}
	attachment(c, "financial-ratios.csv")
	c.Response().WriteHeader(http.StatusOK)
	return export.WriteRatiosCSV(c.Response(), ratios)
}
