package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mauv0809/finboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// newServer answers each operation with the canned data registered for the
// first matching query fragment.
func newServer(t *testing.T, answers map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		for fragment, data := range answers {
			if strings.Contains(req.Query, fragment) {
				_, _ = w.Write([]byte(data))
				return
			}
		}
		_, _ = w.Write([]byte(`{"errors":[{"message":"unknown operation"}]}`))
	}))
}

func TestGetFinancialReport(t *testing.T) {
	srv := newServer(t, map[string]string{
		"getFinancialReport": `{"data":{"getFinancialReport":{
			"companyId":"ACME","companyName":"Acme Corp","date":"2024-04-15","year":2024,
			"creditScore":82,"riskLevel":"low",
			"ratios":[{"category":"liquidity_ratios","metric":"current_ratio","value":1.8,"explanation":"ok"}],
			"trends":{"revenue":[1,2,3,4,5],"profit":[1,1,1],"debt":[]}
		}}}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", zap.NewNop())
	rep, err := c.GetFinancialReport(context.Background(), "ACME", 2024)
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, "Acme Corp", rep.CompanyName)
	assert.Equal(t, 82, rep.CreditScore)
	require.Len(t, rep.Ratios, 1)
	assert.Equal(t, "1.8", rep.Ratios[0].Value.String())

	trends := rep.Trends.Trends()
	assert.Equal(t, [models.TrendYears]float64{1, 2, 3, 4, 5}, trends.Revenue)
	assert.Equal(t, [models.TrendYears]float64{1, 1, 1, 0, 0}, trends.Profit)
}

func TestGetFinancialReport_None(t *testing.T) {
	srv := newServer(t, map[string]string{
		"getFinancialReport": `{"data":{"getFinancialReport":null}}`,
	})
	defer srv.Close()

	rep, err := NewClient(srv.URL, "secret-key", zap.NewNop()).GetFinancialReport(context.Background(), "NONE", 0)
	require.NoError(t, err)
	assert.Nil(t, rep)
}

func TestListCompaniesAndTrends(t *testing.T) {
	srv := newServer(t, map[string]string{
		"listCompanies": `{"data":{"listCompanies":[{"companyId":"ACME"},{"companyId":"GLOBEX"}]}}`,
		"getTrendData":  `{"data":{"getTrendData":{"revenue":[5,4,3,2,1,0],"profit":[],"debt":[2]}}}`,
	})
	defer srv.Close()
	c := NewClient(srv.URL, "secret-key", zap.NewNop())

	ids, err := c.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "GLOBEX"}, ids)

	trends, err := c.GetTrendData(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, [models.TrendYears]float64{5, 4, 3, 2, 1}, trends.Revenue)
	assert.Equal(t, [models.TrendYears]float64{2, 0, 0, 0, 0}, trends.Debt)
}

func TestUploadFinancialData(t *testing.T) {
	srv := newServer(t, map[string]string{
		"uploadFinancialData": `{"data":{"uploadFinancialData":{"id":"up-1","status":"RECEIVED"}}}`,
	})
	defer srv.Close()

	status, err := NewClient(srv.URL, "secret-key", zap.NewNop()).UploadFinancialData(context.Background(), UploadInput{
		CompanyID: "ACME",
		Year:      2024,
		Data:      []models.RatioRow{{Category: "liquidity_ratios", Metric: "current_ratio", Value: models.FloatValue(1.2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, UploadStatus{ID: "up-1", Status: "RECEIVED"}, status)
}

func TestErrorsPropagate(t *testing.T) {
	srv := newServer(t, map[string]string{})
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret-key", zap.NewNop()).ListCompanies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}
