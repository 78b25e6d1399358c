package attr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/shopspring/decimal"
)

// FormatFinancialRatios decodes a ratio attribute into FinancialRatios.
// Two layouts are accepted: a list of ratio maps, or a nested
// category -> metric -> {value, explanation} map. Missing explanations
// default to "" and missing assessments to neutral. Ids are 1-based.
func FormatFinancialRatios(av types.AttributeValue) ([]models.FinancialRatio, error) {
	decoded, err := Decode(av)
	if err != nil {
		return nil, fmt.Errorf("decoding ratios: %w", err)
	}

	var ratios []models.FinancialRatio
	switch v := decoded.(type) {
	case nil:
		return []models.FinancialRatio{}, nil
	case []any:
		ratios = make([]models.FinancialRatio, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ratio %d: %w", i, &UnknownShapeError{Path: strconv.Itoa(i), Raw: item})
			}
			ratios = append(ratios, models.FinancialRatio{
				Category:    stringField(m, "category", "Category"),
				Metric:      stringField(m, "metric", "Metric", "name"),
				Value:       ratioValue(firstField(m, "value", "Value")),
				Explanation: stringField(m, "explanation", "Explanation"),
				Assessment:  models.ParseAssessment(stringField(m, "assessment")),
			})
		}
	case map[string]any:
		for _, category := range sortedKeys(v) {
			metrics, ok := v[category].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("category %q: %w", category, &UnknownShapeError{Path: category, Raw: v[category]})
			}
			for _, metric := range sortedKeys(metrics) {
				r := models.FinancialRatio{Category: category, Metric: metric, Assessment: models.AssessmentNeutral}
				if detail, ok := metrics[metric].(map[string]any); ok {
					r.Value = ratioValue(detail["value"])
					r.Explanation = stringField(detail, "explanation")
					r.Assessment = models.ParseAssessment(stringField(detail, "assessment"))
				} else {
					r.Value = ratioValue(metrics[metric])
				}
				ratios = append(ratios, r)
			}
		}
	default:
		return nil, &UnknownShapeError{Path: "ratios", Raw: decoded}
	}

	for i := range ratios {
		ratios[i].ID = i + 1
	}
	return ratios, nil
}

// FormatPerformanceTrends decodes a map of revenue/profit/debt series.
// Each series is cut or zero-padded to exactly five years.
func FormatPerformanceTrends(av types.AttributeValue) (models.Trends, error) {
	var t models.Trends
	decoded, err := Decode(av)
	if err != nil {
		return t, fmt.Errorf("decoding trends: %w", err)
	}
	if decoded == nil {
		return t, nil
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return t, &UnknownShapeError{Path: "trends", Raw: decoded}
	}

	for name, dst := range map[string]*[models.TrendYears]float64{
		"revenue": &t.Revenue,
		"profit":  &t.Profit,
		"debt":    &t.Debt,
	} {
		series, err := floatSeries(m[name])
		if err != nil {
			return t, fmt.Errorf("trend %q: %w", name, err)
		}
		copy(dst[:], series)
	}
	return t, nil
}

// FormatRecommendations decodes a list or string set of recommendations.
// A single string decodes as a one-element list.
func FormatRecommendations(av types.AttributeValue) ([]string, error) {
	decoded, err := Decode(av)
	if err != nil {
		return nil, fmt.Errorf("decoding recommendations: %w", err)
	}
	switch v := decoded.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case map[string]any:
				out = append(out, stringField(s, "text", "recommendation", "title"))
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out, nil
	}
	return nil, &UnknownShapeError{Path: "recommendations", Raw: decoded}
}

// DecodeReport decodes a whole report item.
func DecodeReport(item map[string]types.AttributeValue) (*models.Report, error) {
	r := &models.Report{
		CompanyID:      attrString(item, "companyId"),
		CompanyName:    attrString(item, "companyName"),
		Industry:       attrString(item, "industry"),
		Date:           attrString(item, "date"),
		CompanyProfile: attrString(item, "companyProfile"),
	}
	if r.CompanyID == "" {
		return nil, fmt.Errorf("report item: %w", &UnknownShapeError{Path: "companyId", Raw: item["companyId"]})
	}

	year, err := attrInt(item, "year")
	if err != nil {
		return nil, err
	}
	if year == 0 && len(r.Date) >= 4 {
		year, _ = strconv.Atoi(r.Date[:4])
	}
	r.Year = year

	if r.CreditScore, err = attrInt(item, "creditScore"); err != nil {
		return nil, err
	}

	if av, ok := item["ratios"]; ok {
		if r.Ratios, err = FormatFinancialRatios(av); err != nil {
			return nil, err
		}
	}
	if av, ok := item["trends"]; ok {
		if r.Trends, err = FormatPerformanceTrends(av); err != nil {
			return nil, err
		}
	}
	if av, ok := item["recommendations"]; ok {
		if r.Recommendations, err = FormatRecommendations(av); err != nil {
			return nil, err
		}
	}
	if av, ok := item["insights"]; ok {
		if r.Insights, err = FormatRecommendations(av); err != nil {
			return nil, err
		}
	}
	if r.Ratios == nil {
		r.Ratios = []models.FinancialRatio{}
	}
	if r.Insights == nil {
		r.Insights = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}

	r.RiskLevel = models.RiskLevel(strings.ToLower(attrString(item, "riskLevel")))
	if !r.RiskLevel.Valid() {
		r.RiskLevel = models.RiskLevelForScore(r.CreditScore)
	}
	r.ReportID = models.ReportID(r.CompanyID, r.Date)
	return r, nil
}

func attrString(item map[string]types.AttributeValue, key string) string {
	av, ok := item[key]
	if !ok {
		return ""
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func attrInt(item map[string]types.AttributeValue, key string) (int, error) {
	av, ok := item[key]
	if !ok {
		return 0, nil
	}
	var s string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		s = v.Value
	case *types.AttributeValueMemberS:
		s = v.Value
	case *types.AttributeValueMemberNULL:
		return 0, nil
	default:
		return 0, &UnknownShapeError{Path: key, Raw: av}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return int(d.IntPart()), nil
}

func firstField(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	switch v := firstField(m, keys...).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func ratioValue(v any) models.RatioValue {
	switch x := v.(type) {
	case float64:
		return models.FloatValue(x)
	case string:
		return models.TextValue(x)
	case nil:
		return models.RatioValue{}
	}
	return models.TextValue(fmt.Sprint(v))
}

func floatSeries(v any) ([]float64, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []float64:
		return s, nil
	case []any:
		out := make([]float64, 0, len(s))
		for _, item := range s {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case string:
				f, err := strconv.ParseFloat(n, 64)
				if err != nil {
					return nil, err
				}
				out = append(out, f)
			default:
				return nil, &UnknownShapeError{Raw: item}
			}
		}
		return out, nil
	}
	return nil, &UnknownShapeError{Raw: v}
}
