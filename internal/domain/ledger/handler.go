package ledger

import (
	"net/http"
	"time"

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
	readGroup.GET("/accounts/:id", h.GetAccount)
	readGroup.GET("/accounts/:id/lines", h.LinesByServiceDate)
	readGroup.GET("/accounts/:id/payments", h.ListPayments)
	readGroup.GET("/accounts/:id/payment-methods", h.ListPaymentMethods)
	readGroup.GET("/accounts/:id/adjustments", h.ListAdjustments)

	writeGroup := api.Group("", auth.RequireRole("admin", "billing"))
	writeGroup.POST("/accounts/:id/lines", h.AddLines)
	writeGroup.PATCH("/accounts/:id/lines/:lineId/status", h.SetLineStatus)
	writeGroup.POST("/accounts/:id/payments", h.RecordPayment)
	writeGroup.POST("/accounts/:id/payment-methods", h.AddPaymentMethod)
	writeGroup.DELETE("/accounts/:id/payment-methods/:methodId", h.DeletePaymentMethod)
	writeGroup.POST("/accounts/:id/adjustments", h.ApplyAdjustment)
	writeGroup.POST("/accounts/:id/recompute-balance", h.RecomputeBalance)
}

func accountID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}
	return id, nil
}

func (h *Handler) GetAccount(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	account, err := h.svc.GetAccount(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, account)
}

type addLinesRequest struct {
	ServiceDate    time.Time   `json:"service_date"`
	PlanIdentifier string      `json:"plan_identifier,omitempty"`
	Lines          []LineInput `json:"lines"`
}

func (h *Handler) AddLines(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var req addLinesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lines, err := h.svc.AddLines(c.Request().Context(), id, req.ServiceDate, req.PlanIdentifier, req.Lines)
	if err != nil {
		if err == ErrAccountNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, lines)
}

type setLineStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetLineStatus(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}
	var req setLineStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetLineStatus(c.Request().Context(), id, lineID, req.Status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) LinesByServiceDate(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	groups, err := h.svc.LinesByServiceDate(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	payment, err := h.svc.RecordPayment(c.Request().Context(), id, in)
	if err != nil {
		if err == ErrAccountNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, payment)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	payments, total, err := h.svc.ListPayments(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(payments, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddPaymentMethod(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var in MethodInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	method, err := h.svc.AddPaymentMethod(c.Request().Context(), id, in)
	if err != nil {
		if err == ErrAccountNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, method)
}

func (h *Handler) ListPaymentMethods(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	methods, err := h.svc.ListPaymentMethods(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, methods)
}

func (h *Handler) DeletePaymentMethod(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	methodID, err := uuid.Parse(c.Param("methodId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid method id")
	}
	if err := h.svc.DeletePaymentMethod(c.Request().Context(), id, methodID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type adjustmentRequest struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *Handler) ApplyAdjustment(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var req adjustmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	adj, err := h.svc.ApplyAdjustment(c.Request().Context(), id, req.Type, req.Amount, req.Reason)
	if err != nil {
		if err == ErrAccountNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, adj)
}

func (h *Handler) ListAdjustments(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	adjs, total, err := h.svc.ListAdjustments(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(adjs, total, pg.Limit, pg.Offset))
}

func (h *Handler) RecomputeBalance(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	balance, err := h.svc.RecomputeBalance(c.Request().Context(), id)
	if err != nil {
		if err == ErrAccountNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"account_id":  id,
		"balance_due": balance,
	})
}
