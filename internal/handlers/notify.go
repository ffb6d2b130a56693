package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/logging"
	"github.com/skillbay/marketplace/internal/models"
	"github.com/skillbay/marketplace/internal/mykafka"
	"github.com/skillbay/marketplace/internal/payfast"
	"github.com/skillbay/marketplace/internal/store"
)

// Gateway payment_status values we act on.
const (
	paymentStatusComplete  = "COMPLETE"
	paymentStatusFailed    = "FAILED"
	paymentStatusCancelled = "CANCELLED"
)

type NotifyHandler struct {
	DB       *gorm.DB
	Orders   *store.OrderStore
	Producer *mykafka.Producer
	PayFast  payfast.Config
}

// HandleNotify processes the gateway's server-to-server callback. Delivery is
// at-least-once and unauthenticated at the transport level, so nothing is
// trusted before the signature verifies and nothing is applied twice: the
// store's conditional status update decides the winner.
func (h *NotifyHandler) HandleNotify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payfast_notify")

	params, err := c.FormParams()
	if err != nil {
		l.Warn("notify_rejected", "status", 400, "reason", "bad_form", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	payload := make(map[string]string, len(params))
	for k, v := range params {
		if len(v) > 0 {
			payload[k] = v[0]
		} else {
			payload[k] = ""
		}
	}

	if !payfast.Verify(payload, h.PayFast.Passphrase) {
		l.Warn("notify_rejected", "status", 400, "reason", "invalid_signature",
			"order_id", payload["m_payment_id"])
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	orderID := payload["m_payment_id"]
	order, err := h.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			l.Warn("notify_rejected", "status", 404, "reason", "order_not_found", "order_id", orderID)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("notify_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	// Redelivery of an already-settled order is acknowledged without
	// touching anything.
	if order.IsFinal() {
		l.Info("notify_duplicate", "order_id", orderID, "order_status", order.Status)
		return c.JSON(http.StatusOK, echo.Map{"message": "notification processed"})
	}

	paymentRef := payload["pf_payment_id"]

	switch payload["payment_status"] {
	case paymentStatusComplete:
		err = h.Orders.CompleteOrder(ctx, order, paymentRef)
		if err == nil {
			h.publish(c, map[string]any{
				"type":       "payment_completed",
				"orderID":    orderID,
				"userID":     order.UserID,
				"amount":     order.Amount,
				"paymentRef": paymentRef,
			})
			l.Info("payment_completed", "order_id", orderID, "payment_ref", paymentRef)
		}
	case paymentStatusFailed, paymentStatusCancelled:
		err = h.Orders.FailOrder(ctx, orderID, paymentRef)
		if err == nil {
			h.publish(c, map[string]any{
				"type":       "payment_failed",
				"orderID":    orderID,
				"userID":     order.UserID,
				"paymentRef": paymentRef,
			})
			l.Info("payment_failed", "order_id", orderID, "payment_ref", paymentRef)
		}
	default:
		// Unknown status: acknowledge so the gateway stops retrying, keep
		// the order pending, leave a trace for operators.
		l.Warn("notify_unrecognized_status", "order_id", orderID,
			"payment_status", payload["payment_status"])
		return c.JSON(http.StatusOK, echo.Map{"message": "notification processed"})
	}

	if err != nil {
		if errors.Is(err, models.ErrAlreadyFinal) {
			// A concurrent delivery won the conditional update.
			l.Info("notify_duplicate", "order_id", orderID)
			return c.JSON(http.StatusOK, echo.Map{"message": "notification processed"})
		}
		// 5xx tells the gateway to redeliver; the terminal-state guard makes
		// that safe.
		l.Error("notify_failed", "status", 500, "reason", "db_error", "order_id", orderID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process notification")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "notification processed"})
}

func (h *NotifyHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "payment_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
