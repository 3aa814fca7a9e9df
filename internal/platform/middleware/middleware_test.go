package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// invoke runs a single request through mw wrapped around h. prep, when
// non-nil, mutates the context before the middleware sees it.
func invoke(mw echo.MiddlewareFunc, h echo.HandlerFunc, prep func(echo.Context)) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if prep != nil {
		prep(c)
	}
	return rec, mw(h)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr)
}

func TestRequestID_GeneratesNew(t *testing.T) {
	var seen string
	rec, err := invoke(RequestID(), func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return okHandler(c)
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == "" {
		t.Error("expected a generated request_id on the context")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header %q does not match context id %q",
			rec.Header().Get(RequestIDHeader), seen)
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	rec, err := invoke(RequestID(), func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id on context, got %q", rid)
		}
		return okHandler(c)
	}, func(c echo.Context) {
		c.Request().Header.Set(RequestIDHeader, "my-custom-id")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "my-custom-id" {
		t.Errorf("expected my-custom-id echoed back, got %q", got)
	}
}

func TestLogger_PassesThroughHandlerResult(t *testing.T) {
	if _, err := invoke(Logger(testLogger()), okHandler, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := invoke(Logger(testLogger()), func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad input")
	}, nil)
	if err == nil {
		t.Fatal("expected handler error to propagate through the logger")
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	_, err := invoke(Recovery(testLogger()), func(c echo.Context) error {
		panic("boom")
	}, nil)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	if _, err := invoke(Recovery(testLogger()), okHandler, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
