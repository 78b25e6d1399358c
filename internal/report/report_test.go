package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/config"
	"github.com/mauv0809/finboard/internal/graphql"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/mauv0809/finboard/internal/storage"
	"github.com/mauv0809/finboard/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseReportID(t *testing.T) {
	tests := []struct {
		id      string
		company string
		date    string
		wantErr bool
	}{
		// Splitting on every separator would give date "2024"; the date keeps
		// its own separators.
		{id: "ABC-2024-04-15", company: "ABC", date: "2024-04-15"},
		{id: "ACME-1999-12-31", company: "ACME", date: "1999-12-31"},
		{id: "ABC", wantErr: true},
		{id: "ABC-", wantErr: true},
		{id: "-2024-04-15", wantErr: true},
		{id: "ABC-2024", wantErr: true},
		{id: "A-B-2024-04-15", wantErr: true},
		{id: "..-2024-01-01", wantErr: true},
		{id: ".-2024-01-01", wantErr: true},
		{id: "reports/ACME-2024-01-01", wantErr: true},
		{id: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			company, date, err := ParseReportID(tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedID)
				assert.Equal(t, apperr.KindBadInput, apperr.Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.company, company)
			assert.Equal(t, tt.date, date)
		})
	}
}

func TestReportID(t *testing.T) {
	id, err := ReportID("ACME", "2024-04-15")
	require.NoError(t, err)
	assert.Equal(t, "ACME-2024-04-15", id)

	_, err = ReportID("ACME-EU", "2024-04-15")
	assert.ErrorIs(t, err, ErrMalformedID)
	_, err = ReportID("ACME", "April")
	assert.ErrorIs(t, err, ErrMalformedID)
	_, err = ReportID("..", "2024-04-15")
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestMockSource(t *testing.T) {
	src, err := NewMockSource()
	require.NoError(t, err)
	agg := NewAggregator(src, zap.NewNop())

	reports, err := agg.FetchAllReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, []string{"ACME", "GLOBEX", "INITECH"}, companyIDs(reports))

	for _, r := range reports {
		assert.NoError(t, Validate(r), r.ReportID)
	}
	assert.Equal(t, models.RiskLow, reports[0].RiskLevel)
	assert.Equal(t, 2024, reports[0].Year)
	assert.Equal(t, models.RiskMedium, reports[1].RiskLevel)
	assert.Equal(t, models.StatusDeclined, reports[1].ApprovalStatus())
	assert.Equal(t, models.AssessmentNeutral, reports[1].Ratios[2].Assessment)

	r, err := agg.GetReportByID(context.Background(), "GLOBEX-2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, "Globex Retail", r.CompanyName)

	_, err = agg.GetReportByID(context.Background(), "GLOBEX-2020-01-01")
	assert.ErrorIs(t, err, ErrNoReport)
	assert.Equal(t, apperr.KindNotFound, apperr.Classify(err))

	_, err = agg.GetReportByID(context.Background(), "GLOBEX")
	assert.ErrorIs(t, err, ErrMalformedID)
}

type stubSource struct {
	delay map[string]time.Duration
	errs  map[string]error
}

func (s *stubSource) CompanyIDs(context.Context) ([]string, error) {
	return []string{"A", "B", "C", "D"}, nil
}

func (s *stubSource) LatestReport(ctx context.Context, companyID string) (*models.Report, error) {
	select {
	case <-time.After(s.delay[companyID]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := s.errs[companyID]; err != nil {
		return nil, err
	}
	return &models.Report{CompanyID: companyID, Date: "2024-01-01"}, nil
}

func (s *stubSource) Report(ctx context.Context, companyID, date string) (*models.Report, error) {
	return s.LatestReport(ctx, companyID)
}

func companyIDs(reports []*models.Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.CompanyID)
	}
	return out
}

func TestFetchAllReports_OrderAndGaps(t *testing.T) {
	src := &stubSource{
		delay: map[string]time.Duration{"A": 30 * time.Millisecond, "B": 10 * time.Millisecond},
		errs:  map[string]error{"C": ErrNoReport},
	}
	reports, err := NewAggregator(src, zap.NewNop()).FetchAllReports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, companyIDs(reports))

	t.Run("fixed company ids", func(t *testing.T) {
		reports, err := NewAggregator(src, zap.NewNop(), WithCompanyIDs([]string{"D", "A"}), WithConcurrency(1)).
			FetchAllReports(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "A"}, companyIDs(reports))
	})
}

func TestFetchAllReports_PropagatesErrors(t *testing.T) {
	boom := errors.New("backend down")
	src := &stubSource{errs: map[string]error{"B": boom}}

	_, err := NewAggregator(src, zap.NewNop()).FetchAllReports(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "company B")
}

type memSink struct {
	reports []*models.Report
	err     error
}

func (m *memSink) UpsertReports(_ context.Context, reports []*models.Report) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.reports = append(m.reports, reports...)
	return len(reports), nil
}

func TestSnapshot(t *testing.T) {
	src, err := NewMockSource()
	require.NoError(t, err)
	agg := NewAggregator(src, zap.NewNop())

	sink := &memSink{}
	n, err := agg.Snapshot(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"ACME", "GLOBEX", "INITECH"}, companyIDs(sink.reports))

	t.Run("sink failures are reported", func(t *testing.T) {
		boom := errors.New("db down")
		_, err := agg.Snapshot(context.Background(), &memSink{err: boom})
		assert.ErrorIs(t, err, boom)
	})
}

type stubBackend struct {
	payloads map[string]*graphql.ReportPayload
}

func (b *stubBackend) GetFinancialReport(_ context.Context, companyID string, year int) (*graphql.ReportPayload, error) {
	p := b.payloads[companyID]
	if p == nil || (year != 0 && p.Year != year) {
		return nil, nil
	}
	return p, nil
}

func (b *stubBackend) ListCompanies(context.Context) ([]string, error) {
	return []string{"ACME", "NONE"}, nil
}

func TestGraphQLSource(t *testing.T) {
	src := NewGraphQLSource(&stubBackend{payloads: map[string]*graphql.ReportPayload{
		"ACME": {
			CompanyID: "ACME", CompanyName: "Acme", Date: "2024-04-15", Year: 2024, CreditScore: 55,
			Ratios: []graphql.RatioPayload{{Category: "liquidity_ratios", Metric: "current_ratio", Value: models.FloatValue(1.5), Assessment: "bogus"}},
			Trends: &graphql.TrendPayload{Revenue: []float64{1, 2, 3, 4, 5}},
		},
	}})

	reports, err := NewAggregator(src, zap.NewNop()).FetchAllReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "ACME-2024-04-15", r.ReportID)
	assert.Equal(t, models.RiskMedium, r.RiskLevel)
	assert.Equal(t, 1, r.Ratios[0].ID)
	assert.Equal(t, models.AssessmentNeutral, r.Ratios[0].Assessment)
	assert.Equal(t, []string{}, r.Insights)
	require.NoError(t, Validate(r))

	_, err = src.Report(context.Background(), "ACME", "2024-05-01")
	assert.ErrorIs(t, err, ErrNoReport)

	t.Run("out of range credit score is malformed", func(t *testing.T) {
		src := NewGraphQLSource(&stubBackend{payloads: map[string]*graphql.ReportPayload{
			"HYPE": {CompanyID: "HYPE", Date: "2024-04-15", Year: 2024, CreditScore: 150},
		}})
		_, err := src.Report(context.Background(), "HYPE", "2024-04-15")
		require.Error(t, err)
		assert.Equal(t, apperr.KindMalformed, apperr.Classify(err))
		assert.Contains(t, err.Error(), "credit score 150")
	})
}

func TestStorageSource(t *testing.T) {
	bucket := storagetest.NewBucket()
	objects, err := storage.New(context.Background(), config.StorageConfig{
		Bucket: "fin-docs", Region: "us-east-1", AccessKeyID: "AKIA", SecretAccessKey: "secret",
	}, zap.NewNop(), storage.WithAPI(bucket))
	require.NoError(t, err)

	doc := func(date string, score int) []byte {
		return []byte(fmt.Sprintf(`{
			"companyId": {"S": "ACME"},
			"companyName": {"S": "Acme Corp"},
			"date": {"S": %q},
			"creditScore": {"N": "%d"},
			"ratios": {"M": {"liquidity_ratios": {"M": {"current_ratio": {"M": {"value": {"N": "1.8"}, "explanation": {"S": "ok"}}}}}}}
		}`, date, score))
	}
	bucket.Put("reports/ACME/2023-12-31.json", doc("2023-12-31", 40))
	bucket.Put("reports/ACME/2024-04-15.json", doc("2024-04-15", 75))
	bucket.Put("reports/ACME/notes.txt", []byte("ignored"))
	bucket.Put("reports/EMPTY/", nil)
	bucket.Put("reports/BROKEN/2024-01-01.json", []byte(`{"companyId": {"Q": "x"}}`))
	bucket.Put("reports/HYPE/2024-01-01.json", []byte(`{"companyId": {"S": "HYPE"}, "creditScore": {"N": "150"}}`))
	bucket.Put("2024-01-01.json", doc("2024-01-01", 90))

	src := NewStorageSource(objects, zap.NewNop())
	ids, err := src.CompanyIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "BROKEN", "EMPTY", "HYPE"}, ids)

	r, err := src.LatestReport(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME-2024-04-15", r.ReportID)
	assert.Equal(t, models.RiskLow, r.RiskLevel)
	require.Len(t, r.Ratios, 1)
	assert.Equal(t, "current_ratio", r.Ratios[0].Metric)

	old, err := src.Report(context.Background(), "ACME", "2023-12-31")
	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, old.RiskLevel)

	_, err = src.LatestReport(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, ErrNoReport)
	_, err = src.Report(context.Background(), "ACME", "2020-01-01")
	assert.ErrorIs(t, err, ErrNoReport)

	_, err = src.LatestReport(context.Background(), "BROKEN")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMalformed, apperr.Classify(err))

	_, err = src.Report(context.Background(), "HYPE", "2024-01-01")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMalformed, apperr.Classify(err), "credit score outside 0..100")

	_, err = src.Report(context.Background(), "..", "2024-01-01")
	assert.ErrorIs(t, err, ErrMalformedID, "ids cannot escape the reports folder")

	agg := NewAggregator(src, zap.NewNop(), WithCompanyIDs([]string{"EMPTY", "ACME"}))
	reports, err := agg.FetchAllReports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME"}, companyIDs(reports))
}

func TestProcessUploadedData(t *testing.T) {
	raw := []byte(`{
		"report": {
			"profitability_ratios": {"net_margin": {"value": "12%", "explanation": "Net over revenue"}},
			"liquidity_ratios": {
				"quick_ratio": {"value": 1.1, "explanation": "Quick assets"},
				"current_ratio": {"value": 1.9}
			}
		},
		"insights": ["Healthy"]
	}`)

	resp, err := ProcessUploadedData(raw, "uploads/acme.json")
	require.NoError(t, err)
	assert.Equal(t, "uploads/acme.json", resp.UploadSource)
	assert.Equal(t, []string{"liquidity_ratios", "profitability_ratios"}, resp.Categories)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "current_ratio", resp.Data[0].Metric)
	assert.Equal(t, "", resp.Data[0].Explanation)
	assert.Equal(t, "quick_ratio", resp.Data[1].Metric)
	assert.Equal(t, "12%", resp.Data[2].Value.String())
	assert.Equal(t, []string{"Healthy"}, resp.Insights)
	assert.Equal(t, []string{}, resp.Recommendations)

	_, err = ProcessUploadedData([]byte(`{"data": []}`), "x")
	assert.ErrorIs(t, err, ErrNoReport)

	_, err = ProcessUploadedData([]byte(`not json`), "x")
	assert.Equal(t, apperr.KindMalformed, apperr.Classify(err))
}

func TestFilterAndSort(t *testing.T) {
	src, err := NewMockSource()
	require.NoError(t, err)
	all, err := NewAggregator(src, zap.NewNop()).FetchAllReports(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"GLOBEX"}, companyIDs(FilterReports(all, Filter{Query: "retail"})))
	assert.Equal(t, []string{"ACME", "GLOBEX"}, companyIDs(FilterReports(all, Filter{MinScore: 60})))
	assert.Equal(t, []string{"INITECH"}, companyIDs(FilterReports(all, Filter{RiskLevel: models.RiskHigh})))
	assert.Equal(t, []string{"INITECH"}, companyIDs(FilterReports(all, Filter{Year: 2023})))
	assert.Equal(t, []string{"ACME"}, companyIDs(FilterReports(all, Filter{Industry: "manufacturing"})))

	sorted := append([]*models.Report(nil), all...)
	Sort(sorted, SortByScore, true)
	assert.Equal(t, []string{"ACME", "GLOBEX", "INITECH"}, companyIDs(sorted))
	Sort(sorted, SortByDate, false)
	assert.Equal(t, []string{"INITECH", "GLOBEX", "ACME"}, companyIDs(sorted))
	Sort(sorted, SortByCompany, false)
	assert.Equal(t, []string{"ACME", "GLOBEX", "INITECH"}, companyIDs(sorted))

	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortByDate, key)
	_, err = ParseSortKey("size")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	r := &models.Report{CompanyID: "ACME", Date: "2024-04-15", CreditScore: 101, RiskLevel: "severe", ReportID: "x"}
	err := Validate(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credit score 101")
	assert.Contains(t, err.Error(), "unknown risk level")
	assert.Contains(t, err.Error(), "report id")
	assert.Equal(t, apperr.KindMalformed, apperr.Classify(err))

	r = &models.Report{CompanyID: "ACME", Date: "2024-04-15", CreditScore: 70, RiskLevel: models.RiskLow, ReportID: "ACME-2024-04-15"}
	assert.NoError(t, Validate(r))
}
