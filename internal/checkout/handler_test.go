package checkout

import (
	"context"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/product"
)

func makeAppWithCheckoutHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"user_id": id}})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func post(t *testing.T, app *fiber.App, url, body, userID, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestCheckoutRoute(t *testing.T) {
	f := newFixture(product.Product{ID: 1, Name: "Trail Sneakers", Price: decimal.NewFromInt(1000), Stock: 10})
	app := makeAppWithCheckoutHandler(NewHandler(f.checkout))
	body := `{"shippingDetails":{"address":"99 Rama IV Rd","phone":"021234567"}}`

	if status, _ := post(t, app, "/api/v1/orders/checkout", body, "", ""); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if status, _ := post(t, app, "/api/v1/orders/checkout", body, "7", ""); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", status)
	}
	if _, err := f.carts.AddItem(context.Background(), 7, 1, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if status, _ := post(t, app, "/api/v1/orders/checkout", `{"shippingDetails":{"city":"Bangkok"}}`, "7", ""); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without address, got %d", status)
	}

	status, first := post(t, app, "/api/v1/orders", body, "7", "abc")
	if status != fiber.StatusCreated || !strings.Contains(first, `"status":"pending"`) || !strings.Contains(first, `"Trail Sneakers"`) {
		t.Fatalf("checkout: %d %s", status, first)
	}
	status, again := post(t, app, "/api/v1/orders", body, "7", "abc")
	if status != fiber.StatusOK || again != first {
		t.Fatalf("expected replayed order, got %d %s", status, again)
	}

	if _, err := f.carts.AddItem(context.Background(), 7, 1, 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	stock := 1
	if _, err := f.products.Update(context.Background(), 1, product.Patch{Stock: &stock}); err != nil {
		t.Fatalf("update: %v", err)
	}
	status, msg := post(t, app, "/api/v1/orders/checkout", body, "7", "")
	if status != fiber.StatusConflict || !strings.Contains(msg, "Trail Sneakers") {
		t.Fatalf("expected 409 naming the product, got %d %s", status, msg)
	}
}
