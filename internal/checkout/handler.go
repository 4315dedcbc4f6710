package checkout

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/order"
	"github.com/wichananm65/marketplace-backend/internal/user"
	"github.com/wichananm65/marketplace-backend/internal/validation"
)

const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type checkoutRequest struct {
	ShippingDetails *order.ShippingDetails `json:"shippingDetails" validate:"-"`
	AddressID       int                    `json:"addressId" validate:"gte=0"`
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/orders/checkout", h.checkout)
	app.Post("/api/v1/orders", h.checkout)
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return apperr.Respond(c, logging.From(c), err)
	}

	payload := new(checkoutRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}
	if payload.AddressID == 0 && payload.ShippingDetails != nil {
		if ves := validation.Struct(payload.ShippingDetails); ves != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
		}
	}

	rc, err := h.service.Checkout(c.UserContext(), p.UserID, Request{
		Shipping:       payload.ShippingDetails,
		AddressID:      payload.AddressID,
		IdempotencyKey: c.Get(IdempotencyHeader),
	})
	if err != nil {
		return apperr.Respond(c, logging.From(c), err)
	}
	if rc.Replayed {
		return c.JSON(rc.Order)
	}
	return c.Status(fiber.StatusCreated).JSON(rc.Order)
}
