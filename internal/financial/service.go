package financial

import (
	"context"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/mauv0809/finboard/internal/query"
	"go.uber.org/zap"
)

// Fetcher is the single-request data source behind a Service.
type Fetcher interface {
	FetchFinancialData(ctx context.Context, params Params) (*models.FinancialDataResponse, error)
}

// Result is what the dashboard gets for a query. When the fetch failed,
// Data holds the last good response for the same query (if any), Stale is
// set and Notification describes the failure.
type Result struct {
	Data         *models.FinancialDataResponse `json:"data"`
	Stale        bool                          `json:"stale"`
	Notification *apperr.Notification          `json:"notification,omitempty"`
	err          error
}

// Err is the fetch error, if any.
func (r Result) Err() error { return r.err }

// Service applies the shared query policy to a Fetcher and falls back to the
// last good response for the same query when a fetch fails.
type Service struct {
	fetcher Fetcher
	query   *query.Client
	logger  *zap.Logger
}

func NewService(fetcher Fetcher, q *query.Client, logger *zap.Logger) *Service {
	return &Service{fetcher: fetcher, query: q, logger: logger.Named("financial")}
}

// Fetch returns fresh data, or the fallback and a notification on failure.
func (s *Service) Fetch(ctx context.Context, params Params) Result {
	resp, err := query.Fetch(ctx, s.query, params.Key(), func(ctx context.Context) (*models.FinancialDataResponse, error) {
		return s.fetcher.FetchFinancialData(ctx, params)
	})
	if err != nil {
		n := apperr.Notify(err)
		s.logger.Warn("financial data fetch failed", zap.String("kind", n.Kind), zap.Error(err))
		return Result{Data: s.fallback(params), Stale: true, Notification: &n, err: err}
	}
	return Result{Data: resp}
}

// fallback is the cached response for the same query, fresh or stale.
// Responses of other queries are never substituted.
func (s *Service) fallback(params Params) *models.FinancialDataResponse {
	v, ok := s.query.Peek(params.Key())
	if !ok {
		return nil
	}
	resp, _ := v.(*models.FinancialDataResponse)
	return resp
}

// Ratios fetches and flattens the ratio table, filtered by f.
func (s *Service) Ratios(ctx context.Context, params Params, f RatioFilter) ([]models.FinancialRatio, Result) {
	res := s.Fetch(ctx, params)
	return FilterRatios(ExtractFinancialRatios(res.Data), f), res
}
