package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/mauv0809/finboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRatiosCSV(t *testing.T) {
	ratios := []models.FinancialRatio{
		{Category: "liquidity_ratios", Metric: "current_ratio", Value: models.FloatValue(1.75), Explanation: "Assets, over liabilities"},
		{Category: "profitability_ratios", Metric: "net_margin", Value: models.TextValue("12.5%"), Explanation: `The "bottom line"`},
		{Category: "leverage_ratios", Metric: "debt_to_equity_ratio", Value: models.TextValue("1,2")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRatiosCSV(&buf, ratios))

	want := strings.Join([]string{
		`Category,Metric,Value,"Explanation"`,
		`Liquidity Ratios,Current Ratio,1.75,"Assets, over liabilities"`,
		`Profitability Ratios,Net Margin,12.5%,"The ""bottom line"""`,
		`Leverage Ratios,Debt To Equity Ratio,"1,2",""`,
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, `The "bottom line"`, records[2][3])
}

func TestWriteRatiosCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRatiosCSV(&buf, nil))
	assert.Equal(t, RatiosHeader+"\n", buf.String())
}

func TestWriteReportCSV(t *testing.T) {
	r := &models.Report{
		ReportID:    "ACME-2024-04-15",
		CompanyName: "Acme, Inc.",
		Industry:    "Manufacturing",
		Date:        "2024-04-15",
		CreditScore: 70,
		RiskLevel:   models.RiskLow,
		Ratios: []models.FinancialRatio{
			{Category: "liquidity_ratios", Metric: "quick_ratio", Value: models.FloatValue(1.1), Explanation: "ok"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, r))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Report ID,ACME-2024-04-15\nCompany,\"Acme, Inc.\"\n"))
	assert.Contains(t, out, "Credit Score,70\n")
	assert.Contains(t, out, "Approval Status,approved\n")
	assert.Contains(t, out, "\n\n"+RatiosHeader+"\nLiquidity Ratios,Quick Ratio,1.1,\"ok\"\n")
	assert.Equal(t, "financial-report-ACME-2024-04-15.csv", FileName(r))
}
