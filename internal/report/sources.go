package report

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/attr"
	"github.com/mauv0809/finboard/internal/graphql"
	"github.com/mauv0809/finboard/internal/models"
	"go.uber.org/zap"
)

//go:embed fixtures/reports.json
var fixtures embed.FS

// MockSource serves a fixed set of reports from memory.
type MockSource struct {
	ids     []string
	reports map[string][]*models.Report
}

// NewMockSource loads the embedded fixture reports.
func NewMockSource() (*MockSource, error) {
	data, err := fixtures.ReadFile("fixtures/reports.json")
	if err != nil {
		return nil, err
	}
	var reports []*models.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("parsing report fixtures: %w", err)
	}
	return NewMockSourceFrom(reports), nil
}

// NewMockSourceFrom serves reports in the given order of first appearance.
func NewMockSourceFrom(reports []*models.Report) *MockSource {
	m := &MockSource{reports: map[string][]*models.Report{}}
	for _, r := range reports {
		normalize(r)
		if _, ok := m.reports[r.CompanyID]; !ok {
			m.ids = append(m.ids, r.CompanyID)
		}
		m.reports[r.CompanyID] = append(m.reports[r.CompanyID], r)
	}
	return m
}

func (m *MockSource) CompanyIDs(context.Context) ([]string, error) {
	return append([]string(nil), m.ids...), nil
}

func (m *MockSource) LatestReport(_ context.Context, companyID string) (*models.Report, error) {
	var latest *models.Report
	for _, r := range m.reports[companyID] {
		if latest == nil || r.Date > latest.Date {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNoReport
	}
	return latest, nil
}

func (m *MockSource) Report(_ context.Context, companyID, date string) (*models.Report, error) {
	for _, r := range m.reports[companyID] {
		if r.Date == date {
			return r, nil
		}
	}
	return nil, ErrNoReport
}

// ReportBackend is the part of the GraphQL client used for reports.
type ReportBackend interface {
	GetFinancialReport(ctx context.Context, companyID string, year int) (*graphql.ReportPayload, error)
	ListCompanies(ctx context.Context) ([]string, error)
}

// GraphQLSource reads reports from the managed GraphQL backend.
type GraphQLSource struct {
	backend ReportBackend
}

func NewGraphQLSource(backend ReportBackend) *GraphQLSource {
	return &GraphQLSource{backend: backend}
}

func (s *GraphQLSource) CompanyIDs(ctx context.Context) ([]string, error) {
	return s.backend.ListCompanies(ctx)
}

func (s *GraphQLSource) LatestReport(ctx context.Context, companyID string) (*models.Report, error) {
	return s.fetch(ctx, companyID, 0, "")
}

// Report asks the backend for the report year and checks the date matches.
func (s *GraphQLSource) Report(ctx context.Context, companyID, date string) (*models.Report, error) {
	if !datePattern.MatchString(date) {
		return nil, fmt.Errorf("%w: date %q", ErrMalformedID, date)
	}
	year, _ := strconv.Atoi(date[:4])
	return s.fetch(ctx, companyID, year, date)
}

func (s *GraphQLSource) fetch(ctx context.Context, companyID string, year int, date string) (*models.Report, error) {
	p, err := s.backend.GetFinancialReport(ctx, companyID, year)
	if err != nil {
		return nil, err
	}
	if p == nil || (date != "" && p.Date != date) {
		return nil, ErrNoReport
	}
	r := &models.Report{
		CompanyID:       p.CompanyID,
		CompanyName:     p.CompanyName,
		Industry:        p.Industry,
		Date:            p.Date,
		Year:            p.Year,
		CreditScore:     p.CreditScore,
		Insights:        p.Insights,
		Recommendations: p.Recommendations,
		RiskLevel:       models.RiskLevel(strings.ToLower(p.RiskLevel)),
		Trends:          p.Trends.Trends(),
		CompanyProfile:  p.CompanyProfile,
		Ratios:          make([]models.FinancialRatio, 0, len(p.Ratios)),
	}
	if r.CompanyID == "" {
		r.CompanyID = companyID
	}
	for _, rp := range p.Ratios {
		r.Ratios = append(r.Ratios, models.FinancialRatio{
			Category:    rp.Category,
			Metric:      rp.Metric,
			Value:       rp.Value,
			Explanation: rp.Explanation,
			Assessment:  models.Assessment(rp.Assessment),
		})
	}
	normalize(r)
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Objects is the part of the storage client used for reports.
type Objects interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
	ListFiles(ctx context.Context, folder string) ([]models.StoredFile, error)
	ListFolders(ctx context.Context, parent string) ([]string, error)
}

// ReportsFolder holds one folder per company with one attribute document
// per report date: reports/{companyId}/{date}.json.
const ReportsFolder = "reports"

// StorageSource reads report items stored as DynamoDB-JSON documents.
type StorageSource struct {
	objects Objects
	logger  *zap.Logger
}

func NewStorageSource(objects Objects, logger *zap.Logger) *StorageSource {
	return &StorageSource{objects: objects, logger: logger.Named("report.storage")}
}

func (s *StorageSource) CompanyIDs(ctx context.Context) ([]string, error) {
	folders, err := s.objects.ListFolders(ctx, ReportsFolder)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(folders))
	for _, f := range folders {
		ids = append(ids, path.Base(f))
	}
	return ids, nil
}

func (s *StorageSource) LatestReport(ctx context.Context, companyID string) (*models.Report, error) {
	files, err := s.objects.ListFiles(ctx, path.Join(ReportsFolder, companyID))
	if err != nil {
		return nil, err
	}
	var dates []string
	for _, f := range files {
		if date, ok := strings.CutSuffix(f.Name, ".json"); ok && datePattern.MatchString(date) {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return nil, ErrNoReport
	}
	sort.Strings(dates)
	return s.Report(ctx, companyID, dates[len(dates)-1])
}

func (s *StorageSource) Report(ctx context.Context, companyID, date string) (*models.Report, error) {
	if err := checkCompanyID(companyID); err != nil {
		return nil, err
	}
	key := path.Join(ReportsFolder, companyID, date+".json")
	data, err := s.objects.GetFile(ctx, key)
	if err != nil {
		if apperr.Classify(err) == apperr.KindNotFound {
			return nil, ErrNoReport
		}
		return nil, err
	}

	item, err := attr.UnmarshalJSON(data)
	if err != nil {
		return nil, apperr.New(apperr.KindMalformed, "decoding "+key, err)
	}
	r, err := attr.DecodeReport(item)
	if err != nil {
		if errors.Is(err, attr.ErrUnknownShape) {
			s.logger.Warn("report document has an unknown shape", zap.String("key", key), zap.Error(err))
		}
		return nil, apperr.New(apperr.KindMalformed, "decoding "+key, err)
	}
	if r.Date == "" {
		r.Date = date
	}
	normalize(r)
	if err := Validate(r); err != nil {
		s.logger.Warn("stored report is invalid", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return r, nil
}
