package cart

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/lock"
	"github.com/wichananm65/marketplace-backend/internal/product"
)

func makeAppWithCartHandler(cHandler *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	cHandler.RegisterProtectedRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, url, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestCartRoutes(t *testing.T) {
	catalog := product.NewInMemoryRepository([]product.Product{
		{ID: 1, Name: "Trail Sneakers", Price: decimal.NewFromInt(1000), Stock: 4},
	})
	svc := NewService(NewInMemoryRepository(), catalog, lock.NewLocal(), time.Second)
	app := makeAppWithCartHandler(NewHandler(svc))

	// unauthorized access should be blocked
	res, _ := app.Test(httptest.NewRequest("GET", "/api/v1/cart", nil))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated GET, got %d", res.StatusCode)
	}

	status, body := doJSON(t, app, "GET", "/api/v1/cart", "")
	if status != fiber.StatusOK || !strings.Contains(body, `"items":[]`) {
		t.Fatalf("expected empty cart, got %d %s", status, body)
	}

	status, body = doJSON(t, app, "POST", "/api/v1/cart", `{"productId":1,"quantity":2}`)
	if status != fiber.StatusOK || !strings.Contains(body, `"itemCount":2`) || !strings.Contains(body, `"name":"Trail Sneakers"`) {
		t.Fatalf("add failed: %d %s", status, body)
	}

	status, body = doJSON(t, app, "POST", "/api/v1/cart", `{"productId":1,"quantity":3}`)
	if status != fiber.StatusConflict || !strings.Contains(body, "out of stock") {
		t.Fatalf("expected 409 out of stock, got %d %s", status, body)
	}

	status, _ = doJSON(t, app, "POST", "/api/v1/cart", `{"productId":99}`)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", status)
	}

	status, _ = doJSON(t, app, "PATCH", "/api/v1/cart/1", `{"delta":-2}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for quantity below 1, got %d", status)
	}
	status, body = doJSON(t, app, "PATCH", "/api/v1/cart/1", `{"delta":1}`)
	if status != fiber.StatusOK || !strings.Contains(body, `"quantity":3`) {
		t.Fatalf("delta failed: %d %s", status, body)
	}

	status, body = doJSON(t, app, "DELETE", "/api/v1/cart/1", "")
	if status != fiber.StatusOK || !strings.Contains(body, `"items":[]`) {
		t.Fatalf("remove failed: %d %s", status, body)
	}
	status, _ = doJSON(t, app, "DELETE", "/api/v1/cart/1", "")
	if status != fiber.StatusOK {
		t.Fatalf("second remove should succeed, got %d", status)
	}

	status, _ = doJSON(t, app, "DELETE", "/api/v1/cart", "")
	if status != fiber.StatusNoContent {
		t.Fatalf("expected 204 on clear, got %d", status)
	}
}
