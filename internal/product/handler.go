package product

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/user"
	"github.com/wichananm65/marketplace-backend/internal/validation"
)

// UserReader resolves the reviewer's display name.
type UserReader interface {
	GetByID(ctx context.Context, id int) (user.User, error)
}

type Handler struct {
	service   *Service
	users     UserReader
	allowSeed bool
}

type createRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
	Images      []string        `json:"images"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func NewHandler(service *Service, users UserReader, allowSeed bool) *Handler {
	return &Handler{service: service, users: users, allowSeed: allowSeed}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/products", h.getProducts)
	app.Get("/api/v1/products/categories", h.getCategories)
	app.Get("/api/v1/products/:id<int>", h.getProduct)

	// dev-only catalog reset, enabled by app.allow_seed
	app.Post("/dev/seed-products", h.seedProducts)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/products", h.createProduct)
	app.Patch("/api/v1/products/:id<int>", h.updateProduct)
	app.Delete("/api/v1/products/:id<int>", h.deleteProduct)
	app.Post("/api/v1/products/:id<int>/reviews", h.addReview)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return apperr.Respond(c, logging.From(c), err)
}

func (h *Handler) getProducts(c *fiber.Ctx) error {
	f := Filter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Sort:     c.Query("sort"),
		Limit:    c.QueryInt("limit", 0),
		Offset:   c.QueryInt("offset", 0),
	}
	products, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(products)
}

func (h *Handler) getCategories(c *fiber.Ctx) error {
	cats, err := h.service.Categories(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cats)
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	p, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) createProduct(c *fiber.Ctx) error {
	if _, err := user.RequireAdmin(c); err != nil {
		return h.fail(c, err)
	}
	var payload createRequest
	if err := validation.DecodeStrict(c.Body(), &payload); err != nil {
		return h.fail(c, err)
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	created, err := h.service.Create(c.UserContext(), Product{
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Category:    payload.Category,
		Sizes:       payload.Sizes,
		Colors:      payload.Colors,
		Images:      payload.Images,
		Stock:       payload.Stock,
	})
	if err != nil {
		return h.fail(c, err)
	}
	logging.From(c).Info("product created", "product_id", created.ID)
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) updateProduct(c *fiber.Ctx) error {
	if _, err := user.RequireAdmin(c); err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	var patch Patch
	if err := validation.DecodeStrict(c.Body(), &patch); err != nil {
		return h.fail(c, err)
	}
	updated, err := h.service.Update(c.UserContext(), id, patch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) deleteProduct(c *fiber.Ctx) error {
	if _, err := user.RequireAdmin(c); err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) addReview(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	var payload reviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	name := ""
	if h.users != nil {
		if u, err := h.users.GetByID(c.UserContext(), p.UserID); err == nil {
			name = u.Name
		}
	}
	updated, err := h.service.AddReview(c.UserContext(), id, Review{
		UserID:  p.UserID,
		Name:    name,
		Rating:  payload.Rating,
		Comment: payload.Comment,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(updated)
}

// seedProducts replaces the catalog with the posted list, or with a small
// sample catalog when the body is empty. An empty array clears the catalog.
func (h *Handler) seedProducts(c *fiber.Ctx) error {
	if !h.allowSeed {
		return h.fail(c, apperr.New(apperr.ErrForbidden, "seeding is disabled"))
	}

	products := SampleCatalog()
	if body := c.Body(); len(body) > 0 {
		products = nil
		if err := json.Unmarshal(body, &products); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
	}

	if err := h.service.ResetProducts(c.UserContext(), products); err != nil {
		return h.fail(c, err)
	}
	logging.From(c).Warn("catalog reset", "products", len(products))
	return c.JSON(fiber.Map{"seeded": len(products)})
}

// SampleCatalog is the default dev catalog.
func SampleCatalog() []Product {
	return []Product{
		{ID: 1, Name: "Linen Shirt", Description: "Relaxed fit linen shirt", Price: decimal.NewFromInt(1290), Category: "Clothing",
			Sizes: []string{"S", "M", "L"}, Colors: []string{"white", "sand"}, Images: []string{"/img/linen-shirt.jpg"}, Stock: 25},
		{ID: 2, Name: "Canvas Tote", Description: "Heavy canvas tote bag", Price: decimal.NewFromInt(450), Category: "Accessories",
			Colors: []string{"natural"}, Images: []string{"/img/canvas-tote.jpg"}, Stock: 40},
		{ID: 3, Name: "Trail Sneakers", Description: "Lightweight trail running shoes", Price: decimal.NewFromInt(3200), Category: "Shoes",
			Sizes: []string{"40", "41", "42", "43"}, Images: []string{"/img/trail-sneakers.jpg"}, Stock: 12},
		{ID: 4, Name: "Wool Beanie", Description: "Merino wool beanie", Price: decimal.NewFromInt(390), Category: "Accessories",
			Colors: []string{"black", "olive"}, Images: []string{"/img/wool-beanie.jpg"}, Stock: 3},
	}
}
