package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/v1/products/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", Handler())

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/products/:id", "200"))
	for i := 0; i < 3; i++ {
		if _, err := app.Test(httptest.NewRequest("GET", "/api/v1/products/1", nil)); err != nil {
			t.Fatalf("request failed: %v", err)
		}
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/products/:id", "200"))
	if after-before != 3 {
		t.Fatalf("expected 3 counted requests, got %v", after-before)
	}

	res, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), "http_requests_total") {
		t.Fatalf("metrics output missing counter")
	}
}
