package review

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pawvault/pawvault/internal/platform/auth"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/pets/:petId/documents/:id/candidates", h.ListCandidates)
	api.POST("/pets/:petId/documents/:id/approve", h.Approve)
}

type approveRequest struct {
	Decisions []RecordDecision `json:"decisions"`
}

func (h *Handler) Approve(c echo.Context) error {
	petID, uploadID, err := pathIDs(c)
	if err != nil {
		return err
	}

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	userID := auth.UserIDFromContext(c.Request().Context())
	result, err := h.engine.Approve(c.Request().Context(), petID, uploadID, req.Decisions, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "no candidates found for this document")
		case errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to commit approval")
		}
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListCandidates(c echo.Context) error {
	petID, uploadID, err := pathIDs(c)
	if err != nil {
		return err
	}
	items, err := h.engine.ListCandidates(c.Request().Context(), petID, uploadID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list candidates")
	}
	return c.JSON(http.StatusOK, items)
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
