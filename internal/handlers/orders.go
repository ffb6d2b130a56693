package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/logging"
	"github.com/skillbay/marketplace/internal/models"
	"github.com/skillbay/marketplace/internal/store"
)

const paymentTokenLength = 64

type OrderHandler struct {
	DB        *gorm.DB
	Orders    *store.OrderStore
	JWTSecret []byte
}

type orderItemDetail struct {
	ProductID  uint    `json:"product_id"`
	Title      string  `json:"title"`
	FileURL    string  `json:"file_url"`
	Price      float64 `json:"price"`
	SellerID   uint    `json:"seller_id"`
	SellerName string  `json:"seller_name"`
}

type orderDetail struct {
	OrderID    string            `json:"order_id"`
	Status     string            `json:"status"`
	Amount     float64           `json:"amount"`
	PaymentRef string            `json:"payment_ref,omitempty"`
	CreatedAt  string            `json:"created_at"`
	Items      []orderItemDetail `json:"items"`
}

// GetOrder is the buyer-facing detail fetch behind the post-payment landing
// page. A wrong token, a foreign session and a missing order all come back as
// the same 404 so order existence can not be probed.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_detail")

	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	orderID := c.Param("id")
	if !strings.HasPrefix(orderID, "ORDER-") {
		l.Warn("order_fetch_rejected", "status", 400, "reason", "bad_order_id")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id format")
	}
	token := c.QueryParam("token")
	if len(token) != paymentTokenLength {
		l.Warn("order_fetch_rejected", "status", 400, "reason", "bad_token")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment token format")
	}

	order, err := h.Orders.FindByIDTokenUser(ctx, orderID, token, userID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			l.Warn("order_fetch_rejected", "status", 404, "order_id", orderID)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("order_fetch_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	detail, err := h.resolveOrder(c, order)
	if err != nil {
		l.Error("order_fetch_failed", "status", 500, "reason", "resolve", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, detail)
}

// ListOrders returns the session user's purchases, or their sales when the
// user is a freelancer.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	userID, role, err := GetIdentity(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var orders []models.Order
	switch c.QueryParam("type") {
	case "purchases":
		orders, err = h.Orders.FindByUser(ctx, userID)
	case "sales":
		if role != models.RoleFreelancer {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request type")
		}
		orders, err = h.Orders.FindBySeller(ctx, userID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request type")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	details := make([]orderDetail, 0, len(orders))
	for i := range orders {
		d, err := h.resolveOrder(c, &orders[i])
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		details = append(details, *d)
	}
	return c.JSON(http.StatusOK, details)
}

// CheckPurchase reports whether the session user has a completed order
// containing the product. Used to unlock downloads on the product page.
func (h *OrderHandler) CheckPurchase(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	purchased, err := h.Orders.HasCompletedPurchase(ctx, userID, uint(productID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"purchased": purchased})
}

func (h *OrderHandler) resolveOrder(c echo.Context, order *models.Order) (*orderDetail, error) {
	ctx := c.Request().Context()

	productIDs := make([]uint, 0, len(order.Items))
	sellerIDs := make([]uint, 0, len(order.Items))
	for _, it := range order.Items {
		productIDs = append(productIDs, it.ProductID)
		sellerIDs = append(sellerIDs, it.SellerID)
	}

	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, err
	}
	productByID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	var sellers []models.User
	if err := h.DB.WithContext(ctx).Where("id IN ?", sellerIDs).Find(&sellers).Error; err != nil {
		return nil, err
	}
	sellerByID := make(map[uint]models.User, len(sellers))
	for _, s := range sellers {
		sellerByID[s.ID] = s
	}

	detail := orderDetail{
		OrderID:    order.OrderID,
		Status:     order.Status,
		Amount:     order.Amount,
		PaymentRef: order.PaymentRef,
		CreatedAt:  order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, it := range order.Items {
		d := orderItemDetail{
			ProductID: it.ProductID,
			Price:     it.Price,
			SellerID:  it.SellerID,
		}
		if p, ok := productByID[it.ProductID]; ok {
			d.Title = p.Title
			// Files stay locked until the payment settles.
			if order.Status == models.OrderStatusCompleted {
				d.FileURL = p.FileURL
			}
		}
		if s, ok := sellerByID[it.SellerID]; ok {
			d.SellerName = s.Name
		}
		detail.Items = append(detail.Items, d)
	}
	return &detail, nil
}
