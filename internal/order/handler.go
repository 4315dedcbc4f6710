package order

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/user"
	"github.com/wichananm65/marketplace-backend/internal/validation"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// RegisterProtectedRoutes wires the read and admin routes. Checkout routes
// live with the checkout handler.
func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/orders/my", h.getMyOrders)
	app.Get("/api/v1/orders/:id<int>", h.getOrder)

	// admin
	app.Get("/api/v1/orders", h.getOrders)
	app.Patch("/api/v1/orders/:id<int>/status", h.updateStatus)
	app.Patch("/api/v1/orders/:id<int>", h.updateStatus)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return apperr.Respond(c, logging.From(c), err)
}

func (h *Handler) getMyOrders(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	orders, err := h.service.ListByUser(c.UserContext(), p.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	o, err := h.service.Get(c.UserContext(), id, p.UserID, p.IsAdmin())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	if _, err := user.RequireAdmin(c); err != nil {
		return h.fail(c, err)
	}
	orders, err := h.service.List(c.UserContext(), Filter{Status: c.Query("status")})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	admin, err := user.RequireAdmin(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	updated, err := h.service.UpdateStatus(c.UserContext(), id, payload.Status)
	if err != nil {
		return h.fail(c, err)
	}
	logging.From(c).Info("order status changed", "order_id", id, "status", updated.Status, "admin_id", admin.UserID)
	return c.JSON(updated)
}
