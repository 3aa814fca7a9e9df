package claims

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	readGroup.GET("/accounts/:id/claims", h.ListClaims)
	readGroup.GET("/claims", h.ListByStatus)
	readGroup.GET("/claims/:id", h.GetClaim)
	readGroup.GET("/claims/:id/payments", h.ListClaimPayments)

	writeGroup := api.Group("", auth.RequireRole("admin", "billing"))
	writeGroup.POST("/accounts/:id/claims", h.CreateClaim)
	writeGroup.POST("/claims/:id/send", h.SendClaim)
	writeGroup.POST("/claims/:id/deny", h.MarkDenied)
	writeGroup.POST("/claims/:id/payments", h.RecordClaimPayment)
}

func claimID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	return id, nil
}

func (h *Handler) CreateClaim(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}
	var req ClaimInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	claim, err := h.svc.CreateClaim(c.Request().Context(), accountID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, claim)
}

func (h *Handler) GetClaim(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	claim, err := h.svc.GetClaim(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) ListClaims(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}
	params := pagination.FromContext(c)
	claims, total, err := h.svc.ListClaims(c.Request().Context(), accountID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(claims, total, params.Limit, params.Offset))
}

func (h *Handler) ListByStatus(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = StatusSent
	}
	params := pagination.FromContext(c)
	claims, total, err := h.svc.ListByStatus(c.Request().Context(), status, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(claims, total, params.Limit, params.Offset))
}

func (h *Handler) SendClaim(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	claim, err := h.svc.SendClaim(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) MarkDenied(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	claim, err := h.svc.MarkDenied(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) RecordClaimPayment(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	var req ClaimPaymentInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	eob, err := h.svc.RecordClaimPayment(c.Request().Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, eob)
}

func (h *Handler) ListClaimPayments(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	payments, err := h.svc.ListClaimPayments(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, payments)
}
