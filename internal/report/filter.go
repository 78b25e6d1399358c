package report

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/models"
)

// Filter selects reports. Zero fields match everything.
type Filter struct {
	// Query matches company name, id or industry, case-insensitively.
	Query     string
	Industry  string
	RiskLevel models.RiskLevel
	MinScore  int
	Year      int
}

func (f Filter) match(r *models.Report) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" &&
		!strings.Contains(strings.ToLower(r.CompanyName), q) &&
		!strings.Contains(strings.ToLower(r.CompanyID), q) &&
		!strings.Contains(strings.ToLower(r.Industry), q) {
		return false
	}
	if f.Industry != "" && !strings.EqualFold(f.Industry, r.Industry) {
		return false
	}
	if f.RiskLevel != "" && f.RiskLevel != r.RiskLevel {
		return false
	}
	if r.CreditScore < f.MinScore {
		return false
	}
	return f.Year == 0 || f.Year == r.Year
}

// FilterReports returns the reports matching f, in their original order.
func FilterReports(reports []*models.Report, f Filter) []*models.Report {
	out := make([]*models.Report, 0, len(reports))
	for _, r := range reports {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

type SortKey string

const (
	SortByDate    SortKey = "date"
	SortByScore   SortKey = "score"
	SortByCompany SortKey = "company"
)

// ParseSortKey accepts the known keys; empty means by date.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(s)); k {
	case "":
		return SortByDate, nil
	case SortByDate, SortByScore, SortByCompany:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Sort orders reports in place by key. Ties keep their relative order.
func Sort(reports []*models.Report, key SortKey, desc bool) {
	cmp := func(a, b *models.Report) int {
		switch key {
		case SortByScore:
			return a.CreditScore - b.CreditScore
		case SortByCompany:
			return strings.Compare(strings.ToLower(a.CompanyName), strings.ToLower(b.CompanyName))
		default:
			return strings.Compare(a.Date, b.Date)
		}
	}
	slices.SortStableFunc(reports, func(a, b *models.Report) int {
		if desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
}

// Validate checks the invariants of a report. A violation is a malformed
// report.
func Validate(r *models.Report) error {
	var errs []error
	if r.CompanyID == "" {
		errs = append(errs, errors.New("company id is empty"))
	}
	if r.CreditScore < 0 || r.CreditScore > 100 {
		errs = append(errs, fmt.Errorf("credit score %d outside 0..100", r.CreditScore))
	}
	if !r.RiskLevel.Valid() {
		errs = append(errs, fmt.Errorf("unknown risk level %q", r.RiskLevel))
	}
	if !datePattern.MatchString(r.Date) {
		errs = append(errs, fmt.Errorf("date %q is not YYYY-MM-DD", r.Date))
	}
	if r.ReportID != models.ReportID(r.CompanyID, r.Date) {
		errs = append(errs, fmt.Errorf("report id %q does not match company and date", r.ReportID))
	}
	if len(errs) == 0 {
		return nil
	}
	return apperr.New(apperr.KindMalformed, "invalid report "+r.ReportID, errors.Join(errs...))
}
