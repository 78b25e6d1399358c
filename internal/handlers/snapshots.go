package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SnapshotResponse is the JSON response for snapshot runs.
type SnapshotResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	Elapsed string `json:"elapsed,omitempty"`
}

// Snapshot handles POST /api/reports/snapshot
// Copies the latest report of every company from the upstream source into
// the database so the db report source can serve it.
func (h *Handler) Snapshot(c echo.Context) error {
	if h.snapshots == nil || h.snapshotFrom == nil {
		return notConfigured("report snapshots")
	}
	start := time.Now()

	count, err := h.snapshotFrom.Snapshot(c.Request().Context(), h.snapshots)
	if err != nil {
		return err
	}
	h.query.Invalidate(allReportsKey)

	elapsed := time.Since(start)
	h.logger.Info("report snapshot complete", zap.Int("count", count), zap.Duration("elapsed", elapsed))

	return c.JSON(http.StatusOK, SnapshotResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully stored %d report snapshots", count),
		Count:   count,
		Elapsed: elapsed.String(),
	})
}

// SnapshotStatus handles GET /api/reports/status
// Returns the number of stored report snapshots.
func (h *Handler) SnapshotStatus(c echo.Context) error {
	if h.snapshots == nil {
		return notConfigured("report snapshots")
	}
	count, err := h.snapshots.GetReportCount(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reports": count,
	})
}
