package cart

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/user"
	"github.com/wichananm65/marketplace-backend/internal/validation"
)

// Handler delegates cart operations to the cart service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Post("/api/v1/cart", h.addToCart)
	app.Delete("/api/v1/cart", h.clearCart)
	app.Patch("/api/v1/cart/:productId<int>", h.updateQuantity)
	app.Delete("/api/v1/cart/:productId<int>", h.removeItem)
}

type addRequest struct {
	ProductID int `json:"productId" validate:"required,gte=1"`
	Quantity  int `json:"quantity"`
}

type deltaRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return apperr.Respond(c, logging.From(c), err)
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	cart, err := h.service.GetCart(c.UserContext(), p.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) addToCart(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	payload := new(addRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	cart, err := h.service.AddItem(c.UserContext(), p.UserID, payload.ProductID, payload.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) updateQuantity(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	productID, err := strconv.Atoi(c.Params("productId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	payload := new(deltaRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	cart, err := h.service.SetQuantityDelta(c.UserContext(), p.UserID, productID, payload.Delta)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	productID, err := strconv.Atoi(c.Params("productId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	cart, err := h.service.RemoveItem(c.UserContext(), p.UserID, productID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.service.Clear(c.UserContext(), p.UserID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
