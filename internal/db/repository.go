package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/mauv0809/finboard/internal/report"
)

const dateLayout = "2006-01-02"

// Repository stores report snapshots and upload records. It implements
// report.Source.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ report.Source = (*Repository)(nil)

// UpsertReports inserts or replaces report snapshots keyed by company and
// date. Returns the number of rows written.
func (r *Repository) UpsertReports(ctx context.Context, reports []*models.Report) (int, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rep := range reports {
		date, err := time.Parse(dateLayout, rep.Date)
		if err != nil {
			return 0, fmt.Errorf("report %s: %w", rep.ReportID, err)
		}
		batch.Queue(`
			INSERT INTO reports (
				company_id, report_date, company_name, industry,
				credit_score, risk_level, company_profile,
				ratios, insights, recommendations, trends, updated_at
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7,
				$8, $9, $10, $11, NOW()
			)
			ON CONFLICT (company_id, report_date) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				industry = EXCLUDED.industry,
				credit_score = EXCLUDED.credit_score,
				risk_level = EXCLUDED.risk_level,
				company_profile = EXCLUDED.company_profile,
				ratios = EXCLUDED.ratios,
				insights = EXCLUDED.insights,
				recommendations = EXCLUDED.recommendations,
				trends = EXCLUDED.trends,
				updated_at = NOW()
		`,
			rep.CompanyID, date, rep.CompanyName, rep.Industry,
			rep.CreditScore, string(rep.RiskLevel), rep.CompanyProfile,
			rep.Ratios, rep.Insights, rep.Recommendations, rep.Trends,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	count := 0
	for range reports {
		if _, err := br.Exec(); err != nil {
			return count, fmt.Errorf("upserting report: %w", err)
		}
		count++
	}
	return count, nil
}

const reportColumns = `
	company_id, report_date, company_name, industry,
	credit_score, risk_level, company_profile,
	ratios, insights, recommendations, trends`

func scanReport(row pgx.Row) (*models.Report, error) {
	var (
		rep  models.Report
		date time.Time
		risk string
	)
	err := row.Scan(
		&rep.CompanyID, &date, &rep.CompanyName, &rep.Industry,
		&rep.CreditScore, &risk, &rep.CompanyProfile,
		&rep.Ratios, &rep.Insights, &rep.Recommendations, &rep.Trends,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, report.ErrNoReport
	}
	if err != nil {
		return nil, err
	}
	return snapshotReport(&rep, date, risk), nil
}

// snapshotReport fills the fields derived from the stored columns.
func snapshotReport(rep *models.Report, date time.Time, risk string) *models.Report {
	rep.Date = date.Format(dateLayout)
	rep.Year = date.Year()
	rep.RiskLevel = models.RiskLevel(risk)
	if !rep.RiskLevel.Valid() {
		rep.RiskLevel = models.RiskLevelForScore(rep.CreditScore)
	}
	if rep.Ratios == nil {
		rep.Ratios = []models.FinancialRatio{}
	}
	if rep.Insights == nil {
		rep.Insights = []string{}
	}
	if rep.Recommendations == nil {
		rep.Recommendations = []string{}
	}
	rep.ReportID = models.ReportID(rep.CompanyID, rep.Date)
	return rep
}

// Report returns the snapshot of a company for date.
func (r *Repository) Report(ctx context.Context, companyID, date string) (*models.Report, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", report.ErrMalformedID, date)
	}
	return scanReport(r.pool.QueryRow(ctx,
		"SELECT"+reportColumns+" FROM reports WHERE company_id = $1 AND report_date = $2",
		companyID, d))
}

// LatestReport returns the most recent snapshot of a company.
func (r *Repository) LatestReport(ctx context.Context, companyID string) (*models.Report, error) {
	return scanReport(r.pool.QueryRow(ctx,
		"SELECT"+reportColumns+" FROM reports WHERE company_id = $1 ORDER BY report_date DESC LIMIT 1",
		companyID))
}

// CompanyIDs returns every company with at least one snapshot.
func (r *Repository) CompanyIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT company_id FROM reports ORDER BY company_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetReportCount returns the number of stored snapshots.
func (r *Repository) GetReportCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// NewUpload builds an upload record for a processed document.
func NewUpload(key string, resp *models.FinancialDataResponse) models.Upload {
	u := models.Upload{
		ID:        uuid.NewString(),
		Key:       key,
		Response:  resp,
		CreatedAt: time.Now().UTC(),
	}
	if resp != nil {
		u.Source = resp.UploadSource
		u.RatioCount = len(resp.Data)
	}
	return u
}

// InsertUpload records a processed upload.
func (r *Repository) InsertUpload(ctx context.Context, u models.Upload) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO uploads (id, object_key, source, response, ratio_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Key, u.Source, u.Response, u.RatioCount, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting upload %s: %w", u.ID, err)
	}
	return nil
}

// ListUploads returns the most recent uploads first.
func (r *Repository) ListUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, object_key, source, response, ratio_count, created_at
		FROM uploads ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []models.Upload{}
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.ID, &u.Key, &u.Source, &u.Response, &u.RatioCount, &u.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
