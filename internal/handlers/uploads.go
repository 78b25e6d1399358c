package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/db"
	"github.com/mauv0809/finboard/internal/graphql"
	"github.com/mauv0809/finboard/internal/models"
	"github.com/mauv0809/finboard/internal/report"
	"go.uber.org/zap"
)

// uploadsFolder holds the raw documents behind processed uploads.
const uploadsFolder = "uploads"

// UploadResponse is the JSON response for upload processing.
type UploadResponse struct {
	Success bool                          `json:"success"`
	Message string                        `json:"message"`
	Count   int                           `json:"count"`
	Elapsed string                        `json:"elapsed,omitempty"`
	Data    *models.FinancialDataResponse `json:"data,omitempty"`
	Stored  *models.UploadResult          `json:"stored,omitempty"`
	Upload  *models.Upload                `json:"upload,omitempty"`
}

// readUpload returns the uploaded document and its file name. It accepts a
// multipart "file" field or a raw JSON body named by ?name=.
func (h *Handler) readUpload(c echo.Context) ([]byte, string, error) {
	limit := h.maxUploadBytes
	tooLarge := echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("upload exceeds the %d byte limit", limit))

	var (
		r    io.Reader
		name string
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", apperr.BadInput("multipart field \"file\" is required")
		}
		if limit > 0 && fh.Size > limit {
			return nil, "", tooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", fmt.Errorf("opening upload: %w", err)
		}
		defer f.Close()
		r, name = f, fh.Filename
	} else {
		r, name = c.Request().Body, c.QueryParam("name")
	}
	if name = path.Base(strings.TrimSpace(name)); name == "" || name == "." || name == "/" {
		name = "upload-" + time.Now().UTC().Format("20060102T150405") + ".json"
	}

	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, "", tooLarge
	}
	return data, name, nil
}

// ProcessUpload handles POST /api/uploads/process
// Flattens an uploaded report document into ratio rows. When configured, the
// raw document is stored under uploads/, the upload is recorded in the
// database and the rows are forwarded to the GraphQL backend.
// Query params:
// - name: file name for raw JSON bodies
// - company_id, year: forwarded with the rows
func (h *Handler) ProcessUpload(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	raw, name, err := h.readUpload(c)
	if err != nil {
		return err
	}

	resp, err := report.ProcessUploadedData(raw, name)
	if err != nil {
		if apperr.Classify(err) == apperr.KindNotFound {
			return apperr.New(apperr.KindBadInput, `uploaded document has no "report" section`, err)
		}
		return err
	}
	h.logger.Info("processed upload", zap.String("name", name), zap.Int("rows", len(resp.Data)))

	out := UploadResponse{Success: true, Count: len(resp.Data), Data: resp}

	key := name
	if h.storage != nil {
		stored, err := h.storage.UploadFile(ctx, name, bytes.NewReader(raw), echo.MIMEApplicationJSON, uploadsFolder, nil)
		if err != nil {
			return err
		}
		key = stored.Key
		resp.UploadSource = stored.Key
		out.Stored = &stored
	}

	if h.uploads != nil {
		u := db.NewUpload(key, resp)
		if err := h.uploads.InsertUpload(ctx, u); err != nil {
			return err
		}
		out.Upload = &u
	}

	if h.forwarder != nil {
		year, _ := strconv.Atoi(c.QueryParam("year"))
		status, err := h.forwarder.UploadFinancialData(ctx, graphql.UploadInput{
			CompanyID: c.QueryParam("company_id"),
			Year:      year,
			Source:    resp.UploadSource,
			Data:      resp.Data,
		})
		if err != nil {
			h.logger.Warn("forwarding upload failed", zap.String("name", name), zap.Error(err))
		} else {
			h.logger.Debug("forwarded upload", zap.String("id", status.ID), zap.String("status", status.Status))
		}
	}

	elapsed := time.Since(start)
	out.Elapsed = elapsed.String()
	out.Message = fmt.Sprintf("Successfully processed %d ratios", out.Count)
	return c.JSON(http.StatusOK, out)
}

// ListUploads handles GET /api/uploads?limit=
func (h *Handler) ListUploads(c echo.Context) error {
	if h.uploads == nil {
		return notConfigured("database")
	}
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return apperr.BadInput("limit %q must be a positive number", s)
		}
		limit = n
	}
	uploads, err := h.uploads.ListUploads(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"uploads": uploads,
		"count":   len(uploads),
	})
}
