package product

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/user"
)

type stubUsers map[int]string

func (s stubUsers) GetByID(_ context.Context, id int) (user.User, error) {
	if name, ok := s[id]; ok {
		return user.User{ID: id, Name: name}, nil
	}
	return user.User{}, user.ErrNotFound
}

func makeAppWithProductHandler(h *Handler) *fiber.App {
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"user_id": id, "role": c.Get("X-User-Role")}})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func newProductApp(allowSeed bool) (*fiber.App, *InMemoryRepository) {
	repo := NewInMemoryRepository([]Product{
		{ID: 1, Name: "Trail Sneakers", Category: "Shoes", Price: decimal.NewFromInt(3200), Stock: 12},
		{ID: 2, Name: "Canvas Tote", Category: "Accessories", Price: decimal.NewFromInt(450), Stock: 40},
	})
	h := NewHandler(NewService(repo), stubUsers{7: "Jenny"}, allowSeed)
	return makeAppWithProductHandler(h), repo
}

func send(t *testing.T, app *fiber.App, method, url, body, userID, role string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Role", role)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestGetProducts_QueryParams(t *testing.T) {
	app, _ := newProductApp(false)

	status, body := send(t, app, "GET", "/api/v1/products?category=shoes", "", "", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var got []Product
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected products %s", body)
	}

	status, body = send(t, app, "GET", "/api/v1/products/categories", "", "", "")
	if status != fiber.StatusOK || !strings.Contains(body, `"Accessories"`) {
		t.Fatalf("categories: %d %s", status, body)
	}

	status, _ = send(t, app, "GET", "/api/v1/products/99", "", "", "")
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	app, _ := newProductApp(false)

	status, _ := send(t, app, "PATCH", "/api/v1/products/1", `{"stock":5}`, "7", "user")
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin patch, got %d", status)
	}
	status, _ = send(t, app, "POST", "/api/v1/products", `{"name":"x","price":1}`, "", "")
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestPatchProduct(t *testing.T) {
	app, repo := newProductApp(false)

	status, body := send(t, app, "PATCH", "/api/v1/products/1", `{"stock":5,"price":2999.5}`, "1", "admin")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d %s", status, body)
	}
	p, _ := repo.GetByID(context.Background(), 1)
	if p.Stock != 5 || !p.Price.Equal(decimal.RequireFromString("2999.5")) {
		t.Fatalf("patch not applied: %+v", p)
	}

	status, body = send(t, app, "PATCH", "/api/v1/products/1", `{"rating":5}`, "1", "admin")
	if status != fiber.StatusBadRequest || !strings.Contains(body, "rating") {
		t.Fatalf("expected 400 for unknown field, got %d %s", status, body)
	}

	status, _ = send(t, app, "PATCH", "/api/v1/products/1", `{"stock":-3}`, "1", "admin")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for negative stock, got %d", status)
	}
	p, _ = repo.GetByID(context.Background(), 1)
	if p.Stock != 5 {
		t.Fatalf("rejected patch changed stock to %d", p.Stock)
	}
}

func TestCreateProduct(t *testing.T) {
	app, _ := newProductApp(false)

	status, body := send(t, app, "POST", "/api/v1/products", `{"name":"Wool Beanie","price":390,"stock":3,"category":"Accessories"}`, "1", "admin")
	if status != fiber.StatusCreated || !strings.Contains(body, `"id":3`) {
		t.Fatalf("expected 201 with new id, got %d %s", status, body)
	}

	status, _ = send(t, app, "POST", "/api/v1/products", `{"name":"Cheat","price":1,"numReviews":50}`, "1", "admin")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 when setting system fields, got %d", status)
	}
	status, _ = send(t, app, "POST", "/api/v1/products", `{"name":"Free","price":-1}`, "1", "admin")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for negative price, got %d", status)
	}
}

func TestAddReview(t *testing.T) {
	app, _ := newProductApp(false)

	status, body := send(t, app, "POST", "/api/v1/products/2/reviews", `{"rating":4,"comment":"sturdy"}`, "7", "user")
	if status != fiber.StatusCreated || !strings.Contains(body, `"name":"Jenny"`) || !strings.Contains(body, `"numReviews":1`) {
		t.Fatalf("unexpected review response %d %s", status, body)
	}
	status, _ = send(t, app, "POST", "/api/v1/products/2/reviews", `{"rating":5}`, "7", "user")
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for second review, got %d", status)
	}
	status, _ = send(t, app, "POST", "/api/v1/products/2/reviews", `{"rating":9}`, "8", "user")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for rating out of range, got %d", status)
	}
}

func TestSeedProducts_Gated(t *testing.T) {
	app, _ := newProductApp(false)
	status, _ := send(t, app, "POST", "/dev/seed-products", "", "", "")
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 when seeding disabled, got %d", status)
	}

	app, repo := newProductApp(true)
	status, body := send(t, app, "POST", "/dev/seed-products", "", "", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d %s", status, body)
	}
	all, _ := repo.List(context.Background(), Filter{})
	if len(all) != len(SampleCatalog()) {
		t.Fatalf("expected sample catalog, got %d products", len(all))
	}

	status, _ = send(t, app, "POST", "/dev/seed-products", `[]`, "", "")
	all, _ = repo.List(context.Background(), Filter{})
	if status != fiber.StatusOK || len(all) != 0 {
		t.Fatalf("empty array should clear catalog, got %d products", len(all))
	}
}
