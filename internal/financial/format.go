package financial

import (
	"sort"
	"strings"

	"github.com/mauv0809/finboard/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ExtractFinancialRatios flattens the response rows into ratios with 1-based
// ids and a neutral assessment.
func ExtractFinancialRatios(resp *models.FinancialDataResponse) []models.FinancialRatio {
	if resp == nil {
		return []models.FinancialRatio{}
	}
	ratios := make([]models.FinancialRatio, 0, len(resp.Data))
	for i, row := range resp.Data {
		ratios = append(ratios, models.FinancialRatio{
			ID:          i + 1,
			Category:    row.Category,
			Metric:      row.Metric,
			Value:       row.Value,
			Explanation: row.Explanation,
			Assessment:  models.AssessmentNeutral,
		})
	}
	return ratios
}

// FormatCategoryName turns "liquidity_ratios" into "Liquidity Ratios".
func FormatCategoryName(s string) string {
	return formatName(s)
}

// FormatMetricName turns "debt_to_equity_ratio" into "Debt To Equity Ratio".
func FormatMetricName(s string) string {
	return formatName(s)
}

func formatName(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	// NoLower keeps acronyms such as "EBITDA" intact.
	caser := cases.Title(language.English, cases.NoLower)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// Categories returns the distinct categories of ratios in order of first
// appearance.
func Categories(ratios []models.FinancialRatio) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range ratios {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// FilterRatios applies f, keeping the input order.
func FilterRatios(ratios []models.FinancialRatio, f RatioFilter) []models.FinancialRatio {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.FinancialRatio, 0, len(ratios))
	for _, r := range ratios {
		if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
			continue
		}
		if search != "" && !matches(r, search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r models.FinancialRatio, search string) bool {
	for _, field := range []string{r.Category, r.Metric, FormatMetricName(r.Metric), r.Explanation} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// GroupByCategory groups ratios per category, with categories sorted.
func GroupByCategory(ratios []models.FinancialRatio) ([]string, map[string][]models.FinancialRatio) {
	groups := map[string][]models.FinancialRatio{}
	for _, r := range ratios {
		groups[r.Category] = append(groups[r.Category], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}
