package report

import (
	"encoding/json"
	"sort"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/models"
)

type uploadedMetric struct {
	Value       models.RatioValue `json:"value"`
	Explanation string            `json:"explanation"`
}

type uploadedDocument struct {
	Report          map[string]map[string]uploadedMetric `json:"report"`
	Insights        []string                             `json:"insights"`
	Recommendations []string                             `json:"recommendations"`
}

// ProcessUploadedData flattens an uploaded report document of the form
// {"report": {category: {metric: {value, explanation}}}} into ratio rows
// sorted by category then metric, tagged with source. A document without a
// report key yields ErrNoReport.
func ProcessUploadedData(raw []byte, source string) (*models.FinancialDataResponse, error) {
	var doc uploadedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.New(apperr.KindMalformed, "uploaded document is not a report", err)
	}
	if doc.Report == nil {
		return nil, ErrNoReport
	}

	resp := &models.FinancialDataResponse{
		Data:            []models.RatioRow{},
		Categories:      make([]string, 0, len(doc.Report)),
		Insights:        doc.Insights,
		Recommendations: doc.Recommendations,
		UploadSource:    source,
	}
	for category := range doc.Report {
		resp.Categories = append(resp.Categories, category)
	}
	sort.Strings(resp.Categories)

	for _, category := range resp.Categories {
		metrics := doc.Report[category]
		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := metrics[name]
			resp.Data = append(resp.Data, models.RatioRow{
				Category:    category,
				Metric:      name,
				Value:       m.Value,
				Explanation: m.Explanation,
			})
		}
	}

	if resp.Insights == nil {
		resp.Insights = []string{}
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []string{}
	}
	return resp, nil
}
