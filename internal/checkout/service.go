// Package checkout turns a user's cart into an order.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wichananm65/marketplace-backend/internal/address"
	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/cart"
	"github.com/wichananm65/marketplace-backend/internal/idempotency"
	"github.com/wichananm65/marketplace-backend/internal/inventory"
	"github.com/wichananm65/marketplace-backend/internal/lock"
	"github.com/wichananm65/marketplace-backend/internal/metrics"
	"github.com/wichananm65/marketplace-backend/internal/order"
)

var (
	ErrEmptyCart       = apperr.New(apperr.ErrEmptyCart, "cart is empty")
	ErrNoShipping      = apperr.New(apperr.ErrInvalidInput, "shipping address is required")
	ErrCheckoutRunning = apperr.New(apperr.ErrConflict, "a checkout with this idempotency key is already in progress")
)

type CartReader interface {
	Lines(ctx context.Context, userID int) ([]cart.Line, error)
}

type AddressReader interface {
	Get(ctx context.Context, userID, id int) (address.Address, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, id int) (order.Order, error)
}

type Pricer interface {
	Reconcile(ctx context.Context, lines []cart.Line) (inventory.Quote, error)
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Carts       CartReader
	Addresses   AddressReader
	Orders      OrderReader
	Pricer      Pricer
	UnitOfWork  UnitOfWork
	Locker      lock.Locker
	Idempotency idempotency.Store
	LockTimeout time.Duration
	Logger      *slog.Logger
}

type Service struct {
	carts       CartReader
	addresses   AddressReader
	orders      OrderReader
	pricer      Pricer
	uow         UnitOfWork
	locker      lock.Locker
	idem        idempotency.Store
	lockTimeout time.Duration
	logger      *slog.Logger
}

func NewService(d Deps) *Service {
	if d.LockTimeout <= 0 {
		d.LockTimeout = 5 * time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		carts:       d.Carts,
		addresses:   d.Addresses,
		orders:      d.Orders,
		pricer:      d.Pricer,
		uow:         d.UnitOfWork,
		locker:      d.Locker,
		idem:        d.Idempotency,
		lockTimeout: d.LockTimeout,
		logger:      d.Logger,
	}
}

// Request is one checkout attempt. AddressID, when set, wins over Shipping.
type Request struct {
	Shipping       *order.ShippingDetails
	AddressID      int
	IdempotencyKey string
}

// Receipt is the placed order. Replayed is set when the order came from an
// earlier request with the same idempotency key.
type Receipt struct {
	Order    order.Order
	Replayed bool
}

func (s *Service) Checkout(ctx context.Context, userID int, req Request) (rc Receipt, err error) {
	defer func() { s.record(userID, rc, err) }()

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" && s.idem != nil {
		scope := strconv.Itoa(userID)
		var found, claimed bool
		if rc, found, err = s.replay(ctx, scope, key); err != nil || found {
			return rc, err
		}
		if claimed, err = s.idem.TryLock(ctx, scope, key); err != nil {
			return Receipt{}, err
		}
		if !claimed {
			// the holder may have finished between Recall and TryLock
			if rc, found, err = s.replay(ctx, scope, key); err != nil || found {
				return rc, err
			}
			return Receipt{}, ErrCheckoutRunning
		}
		defer func() { s.settle(ctx, scope, key, rc, err) }()
	}

	shipping, err := s.shipping(ctx, userID, req)
	if err != nil {
		return Receipt{}, err
	}

	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locker.Lock(lctx, cart.LockKey(userID))
	cancel()
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return Receipt{}, err
	}
	if len(lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}

	quote, err := s.pricer.Reconcile(ctx, lines)
	if err != nil {
		return Receipt{}, err
	}

	placed, err := s.uow.Place(ctx, order.New(userID, quote.Lines, shipping))
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Order: placed}, nil
}

func (s *Service) shipping(ctx context.Context, userID int, req Request) (order.ShippingDetails, error) {
	if req.AddressID > 0 {
		a, err := s.addresses.Get(ctx, userID, req.AddressID)
		if err != nil {
			return order.ShippingDetails{}, err
		}
		return order.ShippingDetails{Address: a.Address, City: a.City, ZipCode: a.ZipCode, Phone: a.Phone}, nil
	}
	if req.Shipping == nil || strings.TrimSpace(req.Shipping.Address) == "" {
		return order.ShippingDetails{}, ErrNoShipping
	}
	return *req.Shipping, nil
}

// settle stores the order id under a claimed key, or frees the key so the
// client can retry after a failure.
func (s *Service) settle(ctx context.Context, scope, key string, rc Receipt, err error) {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if rerr := s.idem.Release(ctx, scope, key); rerr != nil {
			s.logger.Warn("idempotency release failed", "scope", scope, "err", rerr)
		}
		return
	}
	if rerr := s.idem.Remember(ctx, scope, key, strconv.Itoa(rc.Order.ID)); rerr != nil {
		s.logger.Warn("idempotency remember failed", "scope", scope, "order_id", rc.Order.ID, "err", rerr)
	}
}

func (s *Service) replay(ctx context.Context, scope, key string) (Receipt, bool, error) {
	val, ok, err := s.idem.Recall(ctx, scope, key)
	if err != nil || !ok {
		return Receipt{}, false, err
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return Receipt{}, false, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return Receipt{}, false, err
	}
	return Receipt{Order: o, Replayed: true}, true, nil
}

func (s *Service) record(userID int, rc Receipt, err error) {
	result := resultOf(rc, err)
	metrics.CheckoutAttempts.WithLabelValues(result).Inc()

	switch result {
	case metrics.ResultSuccess:
		s.logger.Info("checkout committed",
			"order_id", rc.Order.ID, "user_id", userID, "total", rc.Order.TotalAmount.String(), "lines", len(rc.Order.Items))
	case metrics.ResultDuplicate:
		s.logger.Info("checkout replayed", "order_id", rc.Order.ID, "user_id", userID, "err", err)
	case metrics.ResultError:
		s.logger.Error("checkout failed", "user_id", userID, "err", err)
	default:
		s.logger.Info("checkout rejected", "user_id", userID, "reason", result, "err", err)
	}
}

func resultOf(rc Receipt, err error) string {
	switch {
	case err == nil && rc.Replayed:
		return metrics.ResultDuplicate
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrCheckoutRunning):
		return metrics.ResultDuplicate
	case errors.Is(err, apperr.ErrEmptyCart):
		return metrics.ResultEmptyCart
	case errors.Is(err, apperr.ErrInsufficientStock):
		return metrics.ResultOutOfStock
	case apperr.Status(err) < 500:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
