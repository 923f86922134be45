package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequestTimeoutReturnsGatewayTimeout(t *testing.T) {
	e := echo.New()
	e.Use(RequestTimeout(50 * time.Millisecond))

	handlerDone := make(chan struct{})
	e.GET("/slow", func(c echo.Context) error {
		defer close(handlerDone)
		time.Sleep(200 * time.Millisecond)
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGatewayTimeout)
	}
	<-handlerDone
}

func TestRequestTimeoutPassesFastRequests(t *testing.T) {
	e := echo.New()
	e.Use(RequestTimeout(time.Second))

	e.GET("/fast", func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("handler context has no deadline")
		}
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
