package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/logging"
	"github.com/skillbay/marketplace/internal/models"
	"github.com/skillbay/marketplace/internal/mykafka"
	"github.com/skillbay/marketplace/internal/payfast"
	"github.com/skillbay/marketplace/internal/store"
)

type CheckoutHandler struct {
	DB        *gorm.DB
	Orders    *store.OrderStore
	Producer  *mykafka.Producer
	JWTSecret []byte
	PayFast   payfast.Config
}

type checkoutSeller struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type checkoutItem struct {
	ID     uint           `json:"id"`
	Title  string         `json:"title"`
	Price  float64        `json:"price"`
	Seller checkoutSeller `json:"seller"`
}

type checkoutRequest struct {
	Items []checkoutItem `json:"items"`
	Total float64        `json:"total"`
}

type checkoutResponse struct {
	URL      string            `json:"url"`
	FormData map[string]string `json:"formData"`
}

// Checkout turns the buyer's cart into a pending order and the signed field
// set for the hosted payment form. The server never talks to the gateway
// here, the browser submits the form.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout")

	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_failed", "status", 400, "reason", "bad_body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if len(req.Items) == 0 {
		l.Warn("checkout_failed", "status", 400, "reason", "empty_cart")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cart items")
	}
	for _, it := range req.Items {
		if it.ID == 0 || it.Price <= 0 || it.Seller.ID == 0 || strings.TrimSpace(it.Seller.Name) == "" {
			l.Warn("checkout_failed", "status", 400, "reason", "bad_item", "product_id", it.ID)
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cart items")
		}
	}

	// The client-declared total is only trusted after it matches what the
	// items actually add up to.
	var calculated float64
	for _, it := range req.Items {
		calculated += it.Price
	}
	if math.Abs(calculated-req.Total) > store.AmountEpsilon {
		l.Warn("checkout_failed", "status", 400, "reason", "total_mismatch",
			"declared", req.Total, "calculated", calculated)
		return echo.NewHTTPError(http.StatusBadRequest, "cart total does not match item prices")
	}

	ids := make([]uint, 0, len(req.Items))
	seen := make(map[uint]bool, len(req.Items))
	for _, it := range req.Items {
		if !seen[it.ID] {
			seen[it.ID] = true
			ids = append(ids, it.ID)
		}
	}
	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		l.Error("checkout_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if len(products) != len(ids) {
		l.Warn("checkout_failed", "status", 400, "reason", "products_unavailable",
			"requested", len(ids), "found", len(products))
		return echo.NewHTTPError(http.StatusBadRequest, "some items are no longer available")
	}

	var buyer models.User
	if err := h.DB.WithContext(ctx).First(&buyer, userID).Error; err != nil {
		l.Error("checkout_failed", "status", 500, "reason", "buyer_lookup", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	now := time.Now()
	orderID := newOrderID(now)
	token := newPaymentToken(userID, orderID, now)

	order := models.Order{
		OrderID:      orderID,
		UserID:       userID,
		Amount:       req.Total,
		PaymentToken: token,
		Status:       models.OrderStatusPending,
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:   orderID,
			ProductID: it.ID,
			SellerID:  it.Seller.ID,
			Price:     it.Price,
		})
	}

	if err := h.Orders.Create(ctx, &order); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateOrder):
			l.Warn("checkout_failed", "status", 409, "reason", "duplicate_order_id", "order_id", orderID)
			return echo.NewHTTPError(http.StatusConflict, "order id collision, please retry")
		case errors.Is(err, models.ErrEmptyOrder), errors.Is(err, models.ErrAmountMismatch):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			l.Error("checkout_failed", "status", 500, "reason", "db_error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	titles := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		titles = append(titles, it.Title)
	}
	formData := h.PayFast.BuildForm(payfast.PaymentRequest{
		OrderID:    orderID,
		Token:      token,
		Amount:     req.Total,
		ItemName:   payfast.ItemName(titles),
		BuyerID:    userID,
		BuyerName:  buyer.Name,
		BuyerEmail: buyer.Email,
		ProductIDs: ids,
	})

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": orderID,
		"amount":  req.Total,
		"items":   len(order.Items),
	})

	l.Info("checkout_success", "order_id", orderID, "amount", req.Total, "items", len(order.Items))
	return c.JSON(http.StatusOK, checkoutResponse{
		URL:      h.PayFast.ProcessURL(),
		FormData: formData,
	})
}

func (h *CheckoutHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// newOrderID mints an identifier unique enough to embed in the return URL
// before the row exists: wall clock plus a random uuid fragment. The store's
// uniqueness check is the real arbiter.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("ORDER-%d-%s", now.UnixMilli(), strings.Split(uuid.NewString(), "-")[0])
}

// newPaymentToken derives the opaque order credential. It never feeds the
// gateway signature, it only rides the return URL and the order-detail fetch.
func newPaymentToken(userID uint, orderID string, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d", userID, orderID, now.UnixNano())))
	return hex.EncodeToString(sum[:])
}
