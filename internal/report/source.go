// Package report builds normalized Report entities from a configured
// backing source and filters and sorts report collections.
package report

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/models"
)

var (
	// ErrNoReport means a company or upload has no report data.
	ErrNoReport = fmt.Errorf("no report data: %w", apperr.ErrNotFound)
	// ErrMalformedID is returned for report ids that do not split into a
	// company id and a YYYY-MM-DD date.
	ErrMalformedID = apperr.New(apperr.KindBadInput, "malformed report id", nil)
)

// Source is a backing store of reports.
type Source interface {
	// CompanyIDs lists the companies the source knows about.
	CompanyIDs(ctx context.Context) ([]string, error)
	// LatestReport returns the most recent report of a company, or
	// ErrNoReport.
	LatestReport(ctx context.Context, companyID string) (*models.Report, error)
	// Report returns the report of a company for date, or ErrNoReport.
	Report(ctx context.Context, companyID, date string) (*models.Report, error)
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseReportID splits id into company id and report date. The company id
// is everything before the first separator and the date, which itself
// contains separators, is the remainder.
func ParseReportID(id string) (companyID, date string, err error) {
	companyID, date, ok := strings.Cut(id, models.ReportIDSeparator)
	if !ok || date == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	if err := checkCompanyID(companyID); err != nil {
		return "", "", err
	}
	if !datePattern.MatchString(date) {
		return "", "", fmt.Errorf("%w: %q has no YYYY-MM-DD date", ErrMalformedID, id)
	}
	return companyID, date, nil
}

// ReportID builds the id of a company's report. Company ids containing the
// separator cannot be parsed back and are rejected.
func ReportID(companyID, date string) (string, error) {
	if strings.Contains(companyID, models.ReportIDSeparator) {
		return "", fmt.Errorf("%w: company id %q", ErrMalformedID, companyID)
	}
	if err := checkCompanyID(companyID); err != nil {
		return "", err
	}
	if !datePattern.MatchString(date) {
		return "", fmt.Errorf("%w: date %q", ErrMalformedID, date)
	}
	return models.ReportID(companyID, date), nil
}

// checkCompanyID rejects company ids that are empty or would escape their
// folder when used as a storage path segment.
func checkCompanyID(companyID string) error {
	if companyID == "" || companyID == "." || companyID == ".." || strings.ContainsAny(companyID, `/\`) {
		return fmt.Errorf("%w: company id %q", ErrMalformedID, companyID)
	}
	return nil
}

// normalize fills the derived fields of a report built by a source.
func normalize(r *models.Report) {
	if r.Year == 0 && len(r.Date) >= 4 {
		r.Year, _ = strconv.Atoi(r.Date[:4])
	}
	if !r.RiskLevel.Valid() {
		r.RiskLevel = models.RiskLevelForScore(r.CreditScore)
	}
	if r.Ratios == nil {
		r.Ratios = []models.FinancialRatio{}
	}
	for i := range r.Ratios {
		if r.Ratios[i].ID == 0 {
			r.Ratios[i].ID = i + 1
		}
		r.Ratios[i].Assessment = models.ParseAssessment(string(r.Ratios[i].Assessment))
	}
	if r.Insights == nil {
		r.Insights = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	r.ReportID = models.ReportID(r.CompanyID, r.Date)
}
