package user

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/validation"
)

type Handler struct {
	service   *Service
	jwtSecret string
	tokenTTL  time.Duration
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func NewHandler(service *Service, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{service: service, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Post("/api/v1/auth/login", h.login)
	app.Post("/api/v1/auth/register", h.register)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/users/me", h.getMe)
	app.Patch("/api/v1/users/me", h.updateMe)
	app.Delete("/api/v1/users/me", h.deleteMe)

	// admin
	app.Get("/api/v1/users", h.getUsers)
	app.Get("/api/v1/users/:id<int>", h.getUser)
	app.Delete("/api/v1/users/:id<int>", h.deleteUser)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return apperr.Respond(c, logging.From(c), err)
}

func (h *Handler) login(c *fiber.Ctx) error {
	payload := new(loginRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	u, err := h.service.Authenticate(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid email or password"})
	}

	signed, err := IssueToken(h.jwtSecret, u, h.tokenTTL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    sanitizeUser(u),
		"token":   signed,
	})
}

func (h *Handler) register(c *fiber.Ctx) error {
	payload := new(registerRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	created, err := h.service.Register(c.UserContext(), User{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     RoleUser,
	})
	if err != nil {
		return h.fail(c, err)
	}

	logging.From(c).Info("user registered", "user_id", created.ID)
	return c.Status(fiber.StatusCreated).JSON(sanitizeUser(created))
}

func (h *Handler) getMe(c *fiber.Ctx) error {
	p, err := PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	u, err := h.service.GetByID(c.UserContext(), p.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(sanitizeUser(u))
}

func (h *Handler) updateMe(c *fiber.Ctx) error {
	p, err := PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	var payload ProfileUpdate
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if ves := validation.Struct(payload); ves != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ves})
	}

	updated, err := h.service.UpdateProfile(c.UserContext(), p.UserID, payload)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(sanitizeUser(updated))
}

func (h *Handler) deleteMe(c *fiber.Ctx) error {
	p, err := PrincipalFromCtx(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.service.Delete(c.UserContext(), p.UserID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getUsers(c *fiber.Ctx) error {
	if _, err := RequireAdmin(c); err != nil {
		return h.fail(c, err)
	}
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	response := make([]User, 0, len(users))
	for _, u := range users {
		response = append(response, sanitizeUser(u))
	}
	return c.JSON(response)
}

func (h *Handler) getUser(c *fiber.Ctx) error {
	if _, err := RequireAdmin(c); err != nil {
		return h.fail(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	u, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(sanitizeUser(u))
}

func (h *Handler) deleteUser(c *fiber.Ctx) error {
	if _, err := RequireAdmin(c); err != nil {
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
