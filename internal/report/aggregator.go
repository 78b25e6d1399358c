package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/mauv0809/finboard/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Aggregator composes reports from a Source.
type Aggregator struct {
	source      Source
	companyIDs  []string
	concurrency int
	logger      *zap.Logger
}

type Option func(*Aggregator)

// WithCompanyIDs fixes the companies to aggregate instead of asking the
// source.
func WithCompanyIDs(ids []string) Option {
	return func(a *Aggregator) { a.companyIDs = ids }
}

func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func NewAggregator(source Source, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      source,
		concurrency: defaultConcurrency,
		logger:      logger.Named("report"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchAllReports fetches the latest report of every company. The result
// follows company id order; companies without data are left out. Any other
// failure fails the whole call.
func (a *Aggregator) FetchAllReports(ctx context.Context) ([]*models.Report, error) {
	ids := a.companyIDs
	if len(ids) == 0 {
		var err error
		if ids, err = a.source.CompanyIDs(ctx); err != nil {
			return nil, fmt.Errorf("listing companies: %w", err)
		}
	}

	slots := make([]*models.Report, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			r, err := a.source.LatestReport(ctx, id)
			if errors.Is(err, ErrNoReport) {
				a.logger.Debug("no report for company", zap.String("company", id))
				return nil
			}
			if err != nil {
				return fmt.Errorf("company %s: %w", id, err)
			}
			slots[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reports := make([]*models.Report, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// GetReportByID resolves a composite report id. Malformed ids fail with
// ErrMalformedID and unknown reports with ErrNoReport.
func (a *Aggregator) GetReportByID(ctx context.Context, id string) (*models.Report, error) {
	companyID, date, err := ParseReportID(id)
	if err != nil {
		return nil, err
	}
	r, err := a.source.Report(ctx, companyID, date)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", id, err)
	}
	return r, nil
}

// Sink stores report snapshots.
type Sink interface {
	UpsertReports(ctx context.Context, reports []*models.Report) (int, error)
}

// Snapshot copies the latest report of every company into sink and returns
// the number of rows written.
func (a *Aggregator) Snapshot(ctx context.Context, sink Sink) (int, error) {
	reports, err := a.FetchAllReports(ctx)
	if err != nil {
		return 0, err
	}
	n, err := sink.UpsertReports(ctx, reports)
	if err != nil {
		return n, fmt.Errorf("storing snapshots: %w", err)
	}
	a.logger.Info("stored report snapshots", zap.Int("reports", n))
	return n, nil
}
