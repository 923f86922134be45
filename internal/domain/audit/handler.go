package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pawvault/pawvault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/pets/:petId/audit-log", h.ListByPet)
}

func (h *Handler) ListByPet(c echo.Context) error {
	petID, err := uuid.Parse(c.Param("petId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pet id")
	}

	filter := ListFilter{
		EntityType: c.QueryParam("entity_type"),
		Action:     Action(c.QueryParam("action")),
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action filter")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPet(c.Request().Context(), petID, filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list audit log")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
