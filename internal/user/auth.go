package user

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var (
	ErrUnauthorized = apperr.New(apperr.ErrUnauthorized, "unauthorized")
	ErrAdminOnly    = apperr.New(apperr.ErrForbidden, "admin access required")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// PrincipalFromCtx reads the JWT that jwtware stored in c.Locals("user").
// Both "user_id" and "id" claims are accepted, as a number or a string.
func PrincipalFromCtx(c *fiber.Ctx) (Principal, error) {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok || tok == nil {
		return Principal{}, ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	raw, ok := claims["user_id"]
	if !ok {
		raw, ok = claims["id"]
	}
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	id, err := claimInt(raw)
	if err != nil || id <= 0 {
		return Principal{}, ErrUnauthorized
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}
	return Principal{UserID: id, Role: role}, nil
}

func claimInt(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, ErrUnauthorized
	}
}

// RequireAdmin returns the principal when the caller is an admin.
func RequireAdmin(c *fiber.Ctx) (Principal, error) {
	p, err := PrincipalFromCtx(c)
	if err != nil {
		return Principal{}, err
	}
	if !p.IsAdmin() {
		return Principal{}, ErrAdminOnly
	}
	return p, nil
}

// IssueToken signs an HS256 token for u.
func IssueToken(secret string, u User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": u.ID,
		"role":    u.Role,
		"email":   u.Email,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
