// Package graphql talks to the managed GraphQL backend that serves
// financial reports and trend data.
package graphql

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/machinebox/graphql"
	"github.com/mauv0809/finboard/internal/models"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

const getFinancialReportQuery = `
query GetFinancialReport($companyId: ID!, $year: Int) {
  getFinancialReport(companyId: $companyId, year: $year) {
    companyId
    companyName
    industry
    date
    year
    creditScore
    riskLevel
    companyProfile
    insights
    recommendations
    ratios { category metric value explanation assessment }
    trends { revenue profit debt }
  }
}`

const getTrendDataQuery = `
query GetTrendData($companyId: ID!) {
  getTrendData(companyId: $companyId) { revenue profit debt }
}`

const listCompaniesQuery = `
query ListCompanies {
  listCompanies { companyId }
}`

const uploadFinancialDataMutation = `
mutation UploadFinancialData($input: FinancialDataInput!) {
  uploadFinancialData(input: $input) { id status }
}`

// Client is safe for concurrent use.
type Client struct {
	gql    *graphql.Client
	apiKey string
	logger *zap.Logger
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewClient creates a client for endpoint authenticating with apiKey.
func NewClient(endpoint, apiKey string, logger *zap.Logger, opts ...Option) *Client {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.timeout > 0 {
		o.httpClient.Timeout = o.timeout
	}

	c := &Client{
		gql:    graphql.NewClient(endpoint, graphql.WithHTTPClient(o.httpClient)),
		apiKey: apiKey,
		logger: logger.Named("graphql"),
	}
	c.gql.Log = func(s string) { c.logger.Debug(s) }
	return c
}

func (c *Client) run(ctx context.Context, op string, req *graphql.Request, resp any) error {
	req.Header.Set("x-api-key", c.apiKey)
	if err := c.gql.Run(ctx, req, resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReportPayload is the report shape returned by the backend.
type ReportPayload struct {
	CompanyID       string         `json:"companyId"`
	CompanyName     string         `json:"companyName"`
	Industry        string         `json:"industry"`
	Date            string         `json:"date"`
	Year            int            `json:"year"`
	CreditScore     int            `json:"creditScore"`
	RiskLevel       string         `json:"riskLevel"`
	CompanyProfile  string         `json:"companyProfile"`
	Insights        []string       `json:"insights"`
	Recommendations []string       `json:"recommendations"`
	Ratios          []RatioPayload `json:"ratios"`
	Trends          *TrendPayload  `json:"trends"`
}

type RatioPayload struct {
	Category    string            `json:"category"`
	Metric      string            `json:"metric"`
	Value       models.RatioValue `json:"value"`
	Explanation string            `json:"explanation"`
	Assessment  string            `json:"assessment"`
}

type TrendPayload struct {
	Revenue []float64 `json:"revenue"`
	Profit  []float64 `json:"profit"`
	Debt    []float64 `json:"debt"`
}

// Trends converts the payload into fixed five-year series.
func (t *TrendPayload) Trends() models.Trends {
	var out models.Trends
	if t == nil {
		return out
	}
	copy(out.Revenue[:], t.Revenue)
	copy(out.Profit[:], t.Profit)
	copy(out.Debt[:], t.Debt)
	return out
}

// GetFinancialReport returns the report of a company for year. A zero year
// asks for the latest report. A nil payload means the company has none.
func (c *Client) GetFinancialReport(ctx context.Context, companyID string, year int) (*ReportPayload, error) {
	req := graphql.NewRequest(getFinancialReportQuery)
	req.Var("companyId", companyID)
	if year != 0 {
		req.Var("year", year)
	}

	var resp struct {
		GetFinancialReport *ReportPayload `json:"getFinancialReport"`
	}
	if err := c.run(ctx, "getFinancialReport", req, &resp); err != nil {
		return nil, err
	}
	return resp.GetFinancialReport, nil
}

// GetTrendData returns the five-year trends of a company.
func (c *Client) GetTrendData(ctx context.Context, companyID string) (models.Trends, error) {
	req := graphql.NewRequest(getTrendDataQuery)
	req.Var("companyId", companyID)

	var resp struct {
		GetTrendData *TrendPayload `json:"getTrendData"`
	}
	if err := c.run(ctx, "getTrendData", req, &resp); err != nil {
		return models.Trends{}, err
	}
	return resp.GetTrendData.Trends(), nil
}

// ListCompanies returns the ids of every company with reports.
func (c *Client) ListCompanies(ctx context.Context) ([]string, error) {
	req := graphql.NewRequest(listCompaniesQuery)

	var resp struct {
		ListCompanies []struct {
			CompanyID string `json:"companyId"`
		} `json:"listCompanies"`
	}
	if err := c.run(ctx, "listCompanies", req, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.ListCompanies))
	for _, co := range resp.ListCompanies {
		ids = append(ids, co.CompanyID)
	}
	return ids, nil
}

// UploadInput is the payload of uploadFinancialData.
type UploadInput struct {
	CompanyID string            `json:"companyId"`
	Year      int               `json:"year"`
	Source    string            `json:"source"`
	Data      []models.RatioRow `json:"data"`
}

type UploadStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// UploadFinancialData sends processed ratio rows to the backend.
func (c *Client) UploadFinancialData(ctx context.Context, input UploadInput) (UploadStatus, error) {
	req := graphql.NewRequest(uploadFinancialDataMutation)
	req.Var("input", input)

	var resp struct {
		UploadFinancialData UploadStatus `json:"uploadFinancialData"`
	}
	if err := c.run(ctx, "uploadFinancialData", req, &resp); err != nil {
		return UploadStatus{}, err
	}
	c.logger.Info("uploaded financial data",
		zap.String("company", input.CompanyID), zap.Int("rows", len(input.Data)),
		zap.String("status", resp.UploadFinancialData.Status))
	return resp.UploadFinancialData, nil
}
