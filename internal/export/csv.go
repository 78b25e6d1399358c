// Package export renders ratio tables and reports as CSV downloads.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mauv0809/finboard/internal/financial"
	"github.com/mauv0809/finboard/internal/models"
)

// RatiosHeader is the first line of every ratio table.
const RatiosHeader = `Category,Metric,Value,"Explanation"`

// WriteRatiosCSV writes the ratio table. The explanation column is always
// quoted; the other columns are quoted only when needed.
func WriteRatiosCSV(w io.Writer, ratios []models.FinancialRatio) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(RatiosHeader + "\n")
	for _, r := range ratios {
		bw.WriteString(field(financial.FormatCategoryName(r.Category)))
		bw.WriteByte(',')
		bw.WriteString(field(financial.FormatMetricName(r.Metric)))
		bw.WriteByte(',')
		bw.WriteString(field(r.Value.String()))
		bw.WriteByte(',')
		bw.WriteString(quote(r.Explanation))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteReportCSV writes the report metadata as field/value rows, a blank
// line, then the ratio table.
func WriteReportCSV(w io.Writer, r *models.Report) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Report ID", r.ReportID},
		{"Company", r.CompanyName},
		{"Industry", r.Industry},
		{"Date", r.Date},
		{"Credit Score", strconv.Itoa(r.CreditScore)},
		{"Risk Level", string(r.RiskLevel)},
		{"Approval Status", string(r.ApprovalStatus())},
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing report %s: %w", r.ReportID, err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return WriteRatiosCSV(w, r.Ratios)
}

// FileName is the download name for a report export.
func FileName(r *models.Report) string {
	return "financial-report-" + r.ReportID + ".csv"
}

func field(s string) string {
	if s == "" || (!strings.ContainsAny(s, ",\"\r\n") && s[0] != ' ') {
		return s
	}
	return quote(s)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
