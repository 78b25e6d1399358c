// Package handlers exposes the data-access layer over HTTP.
package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/financial"
	"github.com/mauv0809/finboard/internal/graphql"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/mauv0809/finboard/internal/query"
	"github.com/mauv0809/finboard/internal/report"
	"github.com/mauv0809/finboard/internal/storage"
	"go.uber.org/zap"
)

// UploadStore records processed uploads.
type UploadStore interface {
	InsertUpload(ctx context.Context, u models.Upload) error
	ListUploads(ctx context.Context, limit int) ([]models.Upload, error)
}

// SnapshotStore keeps report snapshots.
type SnapshotStore interface {
	report.Sink
	GetReportCount(ctx context.Context) (int, error)
}

// Forwarder sends processed ratio rows to the GraphQL backend.
type Forwarder interface {
	UploadFinancialData(ctx context.Context, input graphql.UploadInput) (graphql.UploadStatus, error)
}

// Deps are the collaborators of the handlers. Storage, Uploads, Snapshots and
// Forwarder are optional; their endpoints answer 503 when unset.
// SnapshotFrom is the aggregator snapshots are copied from.
type Deps struct {
	Financial      *financial.Service
	Reports        *report.Aggregator
	SnapshotFrom   *report.Aggregator
	Snapshots      SnapshotStore
	Storage        *storage.Client
	Uploads        UploadStore
	Forwarder      Forwarder
	Query          *query.Client
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type Handler struct {
	financial      *financial.Service
	reports        *report.Aggregator
	snapshotFrom   *report.Aggregator
	snapshots      SnapshotStore
	storage        *storage.Client
	uploads        UploadStore
	forwarder      Forwarder
	query          *query.Client
	maxUploadBytes int64
	logger         *zap.Logger
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	q := d.Query
	if q == nil {
		q = query.New(logger)
	}
	return &Handler{
		financial:      d.Financial,
		reports:        d.Reports,
		snapshotFrom:   d.SnapshotFrom,
		snapshots:      d.Snapshots,
		storage:        d.Storage,
		uploads:        d.Uploads,
		forwarder:      d.Forwarder,
		query:          q,
		maxUploadBytes: d.MaxUploadBytes,
		logger:         logger.Named("http"),
	}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)

	api := e.Group("/api")
	api.GET("/financial-data", h.FinancialData)
	api.GET("/financial-data/ratios", h.Ratios)
	api.GET("/financial-data/export.csv", h.ExportRatios)

	api.GET("/reports", h.ListReports)
	api.GET("/reports/status", h.SnapshotStatus)
	api.POST("/reports/snapshot", h.Snapshot)
	api.GET("/reports/:id", h.GetReport)
	api.GET("/reports/:id/export.csv", h.ExportReport)

	api.GET("/files", h.ListFiles)
	api.POST("/files", h.UploadFile)
	api.DELETE("/files", h.DeleteFile)
	api.POST("/folders", h.CreateFolder)
	api.DELETE("/folders", h.DeleteFolder)

	api.POST("/uploads/process", h.ProcessUpload)
	api.GET("/uploads", h.ListUploads)
}

// Health returns application health status
// @Summary Health check
// @Description Returns the health status of the application
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func notConfigured(what string) error {
	return apperr.New(apperr.KindConfig, what+" is not configured", nil)
}

func (h *Handler) requireStorage() error {
	if h.storage == nil {
		return apperr.New(apperr.KindConfig, "object storage is not configured", apperr.ErrMissingCredentials)
	}
	return nil
}

func attachment(c echo.Context, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
}
