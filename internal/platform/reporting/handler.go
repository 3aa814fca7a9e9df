package reporting

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentpm/dentpm/internal/domain/ledger"
	"github.com/dentpm/dentpm/internal/platform/auth"
)

// LineSource supplies the open invoice lines the report aggregates.
type LineSource interface {
	ListUnpaid(ctx context.Context) ([]*ledger.InvoiceLine, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.InvoiceLine, error)
}

type Handler struct {
	lines LineSource
}

func NewHandler(lines LineSource) *Handler {
	return &Handler{lines: lines}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("admin", "billing"))
	group.GET("/reports/aging", h.AgingReport)
	group.GET("/reports/aging/accounts/:id", h.AccountAgingReport)
}

func asOf(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("as_of")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD")
	}
	return t, nil
}

// AgingReport snapshots every open line in the practice. Read-only; line
// statuses are never touched.
func (h *Handler) AgingReport(c echo.Context) error {
	at, err := asOf(c)
	if err != nil {
		return err
	}
	lines, err := h.lines.ListUnpaid(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, BuildAgingReport(lines, at))
}

func (h *Handler) AccountAgingReport(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}
	at, err := asOf(c)
	if err != nil {
		return err
	}
	lines, err := h.lines.ListByAccount(c.Request().Context(), accountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, AccountAgingReport{
		AccountID:   accountID,
		AgingReport: BuildAgingReport(lines, at),
	})
}
