package address

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/user"
	"github.com/wichananm65/marketplace-backend/internal/validation"
)

// Handler delegates address operations to the address service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/addresses", h.getAddresses)
	app.Post("/api/v1/addresses", h.addAddress)
	app.Put("/api/v1/addresses/:id<int>", h.updateAddress)
	app.Delete("/api/v1/addresses/:id<int>", h.deleteAddress)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return apperr.Respond(c, logging.From(c), err)
}

func (h *Handler) getAddresses(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	addrs, err := h.service.List(c.UserContext(), p.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(addrs)
}

func (h *Handler) addAddress(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	addr, err := h.service.Create(c.UserContext(), p.UserID, *payload)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(addr)
}

func (h *Handler) updateAddress(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	addr, err := h.service.Update(c.UserContext(), p.UserID, id, *payload)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(addr)
}

func (h *Handler) deleteAddress(c *fiber.Ctx) error {
	p, err := user.PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if err := h.service.Delete(c.UserContext(), p.UserID, id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
