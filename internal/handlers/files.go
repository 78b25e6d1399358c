package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/finboard/internal/apperr"
	"go.uber.org/zap"
)

// ListFiles handles GET /api/files?folder=
func (h *Handler) ListFiles(c echo.Context) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	res, err := h.storage.ListFilesPage(c.Request().Context(), c.QueryParam("folder"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// UploadFile handles POST /api/files with a multipart "file" field and an
// optional "folder" field.
func (h *Handler) UploadFile(c echo.Context) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.BadInput("multipart field \"file\" is required")
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	contentType := fh.Header.Get(echo.HeaderContentType)
	res, err := h.storage.UploadFile(c.Request().Context(), fh.Filename, f, contentType, c.FormValue("folder"), func(p int) {
		h.logger.Debug("upload progress", zap.String("file", fh.Filename), zap.Int("percent", p))
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// DeleteFile handles DELETE /api/files?key=
func (h *Handler) DeleteFile(c echo.Context) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	if err := h.storage.DeleteFile(c.Request().Context(), c.QueryParam("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type folderRequest struct {
	Name string `json:"name" form:"name"`
}

type FolderResponse struct {
	Key     string `json:"key,omitempty"`
	Deleted int    `json:"deleted,omitempty"`
}

// CreateFolder handles POST /api/folders with {"name": "..."}.
func (h *Handler) CreateFolder(c echo.Context) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	var req folderRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadInput("invalid folder request")
	}
	key, err := h.storage.CreateFolder(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, FolderResponse{Key: key})
}

// DeleteFolder handles DELETE /api/folders?prefix= and removes everything
// under the prefix. Nested prefixes like "a/b" are allowed.
func (h *Handler) DeleteFolder(c echo.Context) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	n, err := h.storage.DeleteFolder(c.Request().Context(), c.QueryParam("prefix"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FolderResponse{Deleted: n})
}
