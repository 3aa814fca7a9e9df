package fees

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/dentpm/dentpm/internal/platform/auth"
	"github.com/dentpm/dentpm/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "billing", "front-desk"))
	readGroup.GET("/procedures", h.ListProcedures)
	readGroup.GET("/procedures/:code", h.GetProcedure)
	readGroup.GET("/procedures/:code/fee", h.ResolveFee)
	readGroup.GET("/fee-schedule", h.ListScheduleEntries)

	// Catalog and schedule maintenance is admin-only
	writeGroup := api.Group("", auth.RequireRole("admin"))
	writeGroup.POST("/procedures", h.CreateProcedure)
	writeGroup.PUT("/procedures/:code", h.UpdateProcedure)
	writeGroup.DELETE("/procedures/:id", h.DeleteProcedure)
	writeGroup.POST("/fee-schedule", h.AddScheduleEntry)
	writeGroup.DELETE("/fee-schedule/:id", h.DeleteScheduleEntry)
}

func (h *Handler) CreateProcedure(c echo.Context) error {
	var p Procedure
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProcedure(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProcedure(c echo.Context) error {
	p, err := h.svc.GetProcedure(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "procedure not found")
	}
	return c.JSON(http.StatusOK, p)
}

// ResolveFee answers "what would this procedure cost" for an optional plan
// and manual override, without creating a charge.
func (h *Handler) ResolveFee(c echo.Context) error {
	code := c.Param("code")
	plan := c.QueryParam("plan")

	var override *decimal.Decimal
	if raw := c.QueryParam("override"); raw != "" {
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid override amount")
		}
		override = &amt
	}

	fee, err := h.svc.ResolveFee(c.Request().Context(), code, plan, override)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"procedure_code": code,
		"plan":           plan,
		"fee":            fee,
	})
}

func (h *Handler) UpdateProcedure(c echo.Context) error {
	existing, err := h.svc.GetProcedure(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "procedure not found")
	}

	var p Procedure
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = existing.ID
	p.Code = existing.Code

	if err := h.svc.UpdateProcedure(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProcedure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteProcedure(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListProcedures(c echo.Context) error {
	pg := pagination.FromContext(c)
	procs, total, err := h.svc.ListProcedures(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(procs, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddScheduleEntry(c echo.Context) error {
	var e FeeScheduleEntry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddScheduleEntry(c.Request().Context(), &e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) DeleteScheduleEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteScheduleEntry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListScheduleEntries(c echo.Context) error {
	plan := c.QueryParam("plan")
	if plan == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan query parameter is required")
	}
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.ListScheduleEntries(c.Request().Context(), plan, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}
