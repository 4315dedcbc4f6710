// Package apperr defines the business error kinds shared by every domain
// package and maps them onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Kind sentinels. Domain packages wrap these with New so callers can test
// with errors.Is against either the package sentinel or the kind.
var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAlreadyReviewed         = errors.New("already reviewed")
	ErrConflict                = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with message msg that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Newf is New with a formatted message.
func Newf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// StockError reports that a product cannot cover a requested quantity.
type StockError struct {
	ProductID   int
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("%s is out of stock (requested %d, available %d)", name, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrAlreadyReviewed),
		errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidInput):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes err as a JSON message. Unclassified errors are logged and
// reported as a generic internal error.
func Respond(c *fiber.Ctx, log *slog.Logger, err error) error {
	status := Status(err)
	if status == fiber.StatusInternalServerError {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
		return c.Status(status).JSON(fiber.Map{"message": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"message": err.Error()})
}
