package store

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/models"
)

// AmountEpsilon is the tolerance for the amount-equals-sum-of-items check.
const AmountEpsilon = 0.01

// OrderStore is the single mutation path for orders. Handlers never assign
// order fields directly so the invariants stay enforced in one place.
type OrderStore struct {
	DB *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{DB: db}
}

// Create persists a new order after checking its invariants: at least one
// item, amount within AmountEpsilon of the item prices, unique order id.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return models.ErrEmptyOrder
	}
	var sum float64
	for _, it := range order.Items {
		sum += it.Price
	}
	if math.Abs(sum-order.Amount) > AmountEpsilon {
		return models.ErrAmountMismatch
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	var existing models.Order
	err := s.DB.WithContext(ctx).Where("order_id = ?", order.OrderID).First(&existing).Error
	if err == nil {
		return models.ErrDuplicateOrder
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.DB.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// FindByID returns the order with its items.
func (s *OrderStore) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDTokenUser fetches an order only when the id, the access token and
// the owning user all match exactly. Every miss looks the same to the caller
// so a valid id can not be probed with a bad token or a foreign session.
func (s *OrderStore) FindByIDTokenUser(ctx context.Context, orderID, token string, userID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("order_id = ? AND payment_token = ? AND user_id = ?", orderID, token, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByUser returns the user's orders, newest first.
func (s *OrderStore) FindByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FindBySeller returns orders that contain at least one item sold by the
// given seller, newest first.
func (s *OrderStore) FindBySeller(ctx context.Context, sellerID uint) ([]models.Order, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Distinct("order_id").
		Where("seller_id = ?", sellerID).
		Pluck("order_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Order{}, nil
	}

	var orders []models.Order
	err = s.DB.WithContext(ctx).Preload("Items").
		Where("order_id IN ?", ids).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// HasCompletedPurchase reports whether the user has a completed order
// containing the product.
func (s *OrderStore) HasCompletedPurchase(ctx context.Context, userID, productID uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.order_id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?",
			userID, models.OrderStatusCompleted, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus moves a pending order to a terminal status and stores the
// gateway payment reference. The WHERE clause on the current status is the
// concurrency guard: two racing notifications can not both win, and a
// terminal order can never be re-pointed at a different terminal status.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID, newStatus, paymentRef string) error {
	return s.updateStatus(s.DB.WithContext(ctx), orderID, newStatus, paymentRef)
}

func (s *OrderStore) updateStatus(tx *gorm.DB, orderID, newStatus, paymentRef string) error {
	if newStatus != models.OrderStatusCompleted && newStatus != models.OrderStatusFailed {
		return models.ErrInvalidStatus
	}

	res := tx.Model(&models.Order{}).
		Where("order_id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]any{"status": newStatus, "payment_ref": paymentRef})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrOrderNotFound
		}
		return models.ErrAlreadyFinal
	}
	return nil
}

// CompleteOrder transitions a pending order to completed and credits every
// seller referenced by its items in the same transaction. A seller with
// several items in the order is credited the sum of those prices but counted
// as one sale. Losing the status race returns ErrAlreadyFinal and applies
// nothing, which makes at-least-once notification delivery safe.
func (s *OrderStore) CompleteOrder(ctx context.Context, order *models.Order, paymentRef string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.updateStatus(tx, order.OrderID, models.OrderStatusCompleted, paymentRef); err != nil {
			return err
		}
		for sellerID, amount := range sellerTotals(order.Items) {
			res := tx.Model(&models.User{}).
				Where("id = ?", sellerID).
				Updates(map[string]any{
					"total_earnings": gorm.Expr("total_earnings + ?", amount),
					"total_sales":    gorm.Expr("total_sales + ?", 1),
				})
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
}

// FailOrder transitions a pending order to failed. No seller side effects.
func (s *OrderStore) FailOrder(ctx context.Context, orderID, paymentRef string) error {
	return s.UpdateStatus(ctx, orderID, models.OrderStatusFailed, paymentRef)
}

func sellerTotals(items []models.OrderItem) map[uint]float64 {
	totals := make(map[uint]float64, len(items))
	for _, it := range items {
		totals[it.SellerID] += it.Price
	}
	return totals
}
