package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pawvault/pawvault/internal/platform/auth"
	"github.com/pawvault/pawvault/internal/platform/docai"
	"github.com/pawvault/pawvault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/pets/:petId/documents", h.Upload)
	api.GET("/pets/:petId/documents", h.List)
	api.GET("/pets/:petId/documents/:id", h.Get)
	api.GET("/pets/:petId/documents/:id/file", h.DownloadFile)
	api.POST("/pets/:petId/documents/:id/classify", h.Classify)
	api.POST("/pets/:petId/documents/:id/process", h.Process)
	api.DELETE("/pets/:petId/documents/:id", h.Delete)
}

func (h *Handler) Upload(c echo.Context) error {
	petID, err := uuid.Parse(c.Param("petId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pet id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "uploaded file could not be read")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "uploaded file could not be read")
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}

	u, err := h.svc.Upload(c.Request().Context(), petID, auth.UserIDFromContext(c.Request().Context()), fh.Filename, mimeType, content)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) List(c echo.Context) error {
	petID, err := uuid.Parse(c.Param("petId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pet id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), petID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list documents")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	petID, id, err := pathIDs(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), petID, id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DownloadFile(c echo.Context) error {
	petID, id, err := pathIDs(c)
	if err != nil {
		return err
	}
	rc, u, err := h.svc.OpenFile(c.Request().Context(), petID, id)
	if err != nil {
		return toHTTPError(err)
	}
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", u.OriginalFilename))
	return c.Stream(http.StatusOK, u.MimeType, rc)
}

func (h *Handler) Classify(c echo.Context) error {
	petID, id, err := pathIDs(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Classify(c.Request().Context(), petID, id)
	if err != nil {
		return toHTTPError(err)
	}
	if res.Classification == nil && res.Upload.Status == StatusClassifying {
		return c.JSON(http.StatusAccepted, res)
	}
	return c.JSON(http.StatusOK, res)
}

type processRequest struct {
	DocumentType *docai.DocumentType `json:"document_type,omitempty"`
}

func (h *Handler) Process(c echo.Context) error {
	petID, id, err := pathIDs(c)
	if err != nil {
		return err
	}
	var req processRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	res, err := h.svc.Process(c.Request().Context(), petID, id, req.DocumentType)
	if err != nil {
		return toHTTPError(err)
	}
	if res.Records == nil && res.Upload.Status == StatusProcessing {
		return c.JSON(http.StatusAccepted, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c echo.Context) error {
	petID, id, err := pathIDs(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), petID, id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func pathIDs(c echo.Context) (petID, id uuid.UUID, err error) {
	petID, err = uuid.Parse(c.Param("petId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid pet id")
	}
	id, err = uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	return petID, id, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyInProgress):
		return echo.NewHTTPError(http.StatusConflict, "an operation is already in progress for this document")
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
