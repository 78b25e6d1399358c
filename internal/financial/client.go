// Package financial fetches financial ratio datasets from the REST API and
// shapes them for ratio tables.
package financial

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/models"
	"go.uber.org/zap"
)

const (
	ratiosPath     = "/prod/finalfuctionpoc"
	defaultTimeout = 30 * time.Second
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// Client fetches financial ratio datasets from the REST endpoint.
// It issues exactly one request per call; retries belong to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger.Named("financial"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Values encodes the filters that are set. Unset filters are not sent.
func (p Params) Values() url.Values {
	q := url.Values{}
	if p.CompanyID != "" {
		q.Set("company_id", p.CompanyID)
	}
	if p.Year != 0 {
		q.Set("year", strconv.Itoa(p.Year))
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Metric != "" {
		q.Set("metric", p.Metric)
	}
	if p.MinValue != nil {
		q.Set("min_value", strconv.FormatFloat(*p.MinValue, 'f', -1, 64))
	}
	if p.MaxValue != nil {
		q.Set("max_value", strconv.FormatFloat(*p.MaxValue, 'f', -1, 64))
	}
	return q
}

// FetchFinancialData issues one GET with params and derives the ratio status
// of the response.
func (c *Client) FetchFinancialData(ctx context.Context, params Params) (*models.FinancialDataResponse, error) {
	u, err := url.Parse(c.baseURL + ratiosPath)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	u.RawQuery = params.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &apperr.StatusError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	var resp models.FinancialDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.New(apperr.KindMalformed, "parsing response", err)
	}
	normalize(&resp)

	c.logger.Debug("fetched financial data",
		zap.String("query", u.RawQuery),
		zap.Int("rows", len(resp.Data)),
		zap.Duration("elapsed", time.Since(start)))
	return &resp, nil
}

func normalize(resp *models.FinancialDataResponse) {
	if resp.Data == nil {
		resp.Data = []models.RatioRow{}
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.Insights == nil {
		resp.Insights = []string{}
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []string{}
	}
	status := DeriveRatioStatus(resp)
	resp.RatioStatus = &status
}

// DeriveRatioStatus is a presentation heuristic over the response shape:
// more than 15 rows declines the total, more than 3 categories approves the
// category view.
func DeriveRatioStatus(resp *models.FinancialDataResponse) models.RatioStatus {
	s := models.RatioStatus{
		TotalStatus:    models.StatusApproved,
		CategoryStatus: models.StatusDeclined,
	}
	if len(resp.Data) > maxApprovedRows {
		s.TotalStatus = models.StatusDeclined
	}
	if len(resp.Categories) > minApprovedCategories {
		s.CategoryStatus = models.StatusApproved
	}
	return s
}
