package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{},
	))
	return db
}

func pendingOrder(orderID string, userID uint, amount float64, items ...models.OrderItem) *models.Order {
	return &models.Order{
		OrderID:      orderID,
		UserID:       userID,
		Amount:       amount,
		PaymentToken: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Status:       models.OrderStatusPending,
		Items:        items,
	}
}

func TestCreateEnforcesInvariants(t *testing.T) {
	s := NewOrderStore(newTestDB(t))
	ctx := context.Background()

	err := s.Create(ctx, pendingOrder("ORDER-1", 1, 100))
	require.ErrorIs(t, err, models.ErrEmptyOrder)

	err = s.Create(ctx, pendingOrder("ORDER-1", 1, 100.50,
		models.OrderItem{ProductID: 1, SellerID: 2, Price: 100.00},
	))
	require.ErrorIs(t, err, models.ErrAmountMismatch)

	// Within epsilon is fine.
	err = s.Create(ctx, pendingOrder("ORDER-1", 1, 100.009,
		models.OrderItem{ProductID: 1, SellerID: 2, Price: 100.00},
	))
	require.NoError(t, err)

	got, err := s.FindByID(ctx, "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, got.Status)
	require.Len(t, got.Items, 1)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := NewOrderStore(newTestDB(t))
	ctx := context.Background()

	item := models.OrderItem{ProductID: 1, SellerID: 2, Price: 50}
	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-dup", 1, 50, item)))

	err := s.Create(ctx, pendingOrder("ORDER-dup", 1, 50, models.OrderItem{ProductID: 3, SellerID: 2, Price: 50}))
	require.ErrorIs(t, err, models.ErrDuplicateOrder)
}

func TestFindByIDTokenUserExactMatchOnly(t *testing.T) {
	s := NewOrderStore(newTestDB(t))
	ctx := context.Background()

	order := pendingOrder("ORDER-42", 7, 10, models.OrderItem{ProductID: 1, SellerID: 2, Price: 10})
	require.NoError(t, s.Create(ctx, order))

	got, err := s.FindByIDTokenUser(ctx, "ORDER-42", order.PaymentToken, 7)
	require.NoError(t, err)
	require.Equal(t, "ORDER-42", got.OrderID)

	_, err = s.FindByIDTokenUser(ctx, "ORDER-42", order.PaymentToken[:63]+"X", 7)
	require.ErrorIs(t, err, models.ErrOrderNotFound)

	// Prefix of the real token must not match either.
	_, err = s.FindByIDTokenUser(ctx, "ORDER-42", order.PaymentToken[:32], 7)
	require.ErrorIs(t, err, models.ErrOrderNotFound)

	_, err = s.FindByIDTokenUser(ctx, "ORDER-42", order.PaymentToken, 8)
	require.ErrorIs(t, err, models.ErrOrderNotFound)

	_, err = s.FindByIDTokenUser(ctx, "ORDER-missing", order.PaymentToken, 7)
	require.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestUpdateStatusTerminalGuard(t *testing.T) {
	s := NewOrderStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-9", 1, 20,
		models.OrderItem{ProductID: 1, SellerID: 2, Price: 20})))

	require.ErrorIs(t, s.UpdateStatus(ctx, "ORDER-9", models.OrderStatusPending, ""), models.ErrInvalidStatus)
	require.ErrorIs(t, s.UpdateStatus(ctx, "ORDER-missing", models.OrderStatusFailed, ""), models.ErrOrderNotFound)

	require.NoError(t, s.UpdateStatus(ctx, "ORDER-9", models.OrderStatusCompleted, "pf-1"))

	// A terminal order can not be moved again, to any terminal status.
	require.ErrorIs(t, s.UpdateStatus(ctx, "ORDER-9", models.OrderStatusFailed, "pf-2"), models.ErrAlreadyFinal)
	require.ErrorIs(t, s.UpdateStatus(ctx, "ORDER-9", models.OrderStatusCompleted, "pf-2"), models.ErrAlreadyFinal)

	got, err := s.FindByID(ctx, "ORDER-9")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, got.Status)
	require.Equal(t, "pf-1", got.PaymentRef)
}

func TestCompleteOrderCreditsSellersOnce(t *testing.T) {
	db := newTestDB(t)
	s := NewOrderStore(db)
	ctx := context.Background()

	sellerA := models.User{Email: "a@x.com", Name: "A", PasswordHash: "h", Role: models.RoleFreelancer}
	sellerB := models.User{Email: "b@x.com", Name: "B", PasswordHash: "h", Role: models.RoleFreelancer}
	require.NoError(t, db.Create(&sellerA).Error)
	require.NoError(t, db.Create(&sellerB).Error)

	order := pendingOrder("ORDER-multi", 1, 300,
		models.OrderItem{ProductID: 1, SellerID: sellerA.ID, Price: 100},
		models.OrderItem{ProductID: 2, SellerID: sellerA.ID, Price: 50},
		models.OrderItem{ProductID: 3, SellerID: sellerB.ID, Price: 150},
	)
	require.NoError(t, s.Create(ctx, order))

	require.NoError(t, s.CompleteOrder(ctx, order, "pf-77"))

	// Redelivery loses the conditional update and applies nothing.
	require.ErrorIs(t, s.CompleteOrder(ctx, order, "pf-77"), models.ErrAlreadyFinal)

	var a, b models.User
	require.NoError(t, db.First(&a, sellerA.ID).Error)
	require.NoError(t, db.First(&b, sellerB.ID).Error)

	// Seller with two items in the order: summed earnings, one sale.
	require.InDelta(t, 150.0, a.TotalEarnings, 0.001)
	require.Equal(t, uint(1), a.TotalSales)
	require.InDelta(t, 150.0, b.TotalEarnings, 0.001)
	require.Equal(t, uint(1), b.TotalSales)

	got, err := s.FindByID(ctx, "ORDER-multi")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, got.Status)
	require.Equal(t, "pf-77", got.PaymentRef)
}

func TestFailOrderNoSellerSideEffects(t *testing.T) {
	db := newTestDB(t)
	s := NewOrderStore(db)
	ctx := context.Background()

	seller := models.User{Email: "s@x.com", Name: "S", PasswordHash: "h", Role: models.RoleFreelancer}
	require.NoError(t, db.Create(&seller).Error)

	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-f", 1, 60,
		models.OrderItem{ProductID: 1, SellerID: seller.ID, Price: 60})))

	require.NoError(t, s.FailOrder(ctx, "ORDER-f", "pf-f"))

	var got models.User
	require.NoError(t, db.First(&got, seller.ID).Error)
	require.Zero(t, got.TotalEarnings)
	require.Zero(t, got.TotalSales)

	order, err := s.FindByID(ctx, "ORDER-f")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFailed, order.Status)
}

func TestFindByUserAndSeller(t *testing.T) {
	db := newTestDB(t)
	s := NewOrderStore(db)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-u1", 1, 10,
		models.OrderItem{ProductID: 1, SellerID: 9, Price: 10})))
	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-u2", 1, 20,
		models.OrderItem{ProductID: 2, SellerID: 8, Price: 20})))
	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-other", 2, 30,
		models.OrderItem{ProductID: 3, SellerID: 9, Price: 30})))

	mine, err := s.FindByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	sold, err := s.FindBySeller(ctx, 9)
	require.NoError(t, err)
	require.Len(t, sold, 2)

	none, err := s.FindBySeller(ctx, 999)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestHasCompletedPurchase(t *testing.T) {
	db := newTestDB(t)
	s := NewOrderStore(db)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, pendingOrder("ORDER-p", 5, 40,
		models.OrderItem{ProductID: 11, SellerID: 2, Price: 40})))

	purchased, err := s.HasCompletedPurchase(ctx, 5, 11)
	require.NoError(t, err)
	require.False(t, purchased, "pending order does not unlock the product")

	require.NoError(t, s.UpdateStatus(ctx, "ORDER-p", models.OrderStatusCompleted, "pf"))

	purchased, err = s.HasCompletedPurchase(ctx, 5, 11)
	require.NoError(t, err)
	require.True(t, purchased)

	purchased, err = s.HasCompletedPurchase(ctx, 6, 11)
	require.NoError(t, err)
	require.False(t, purchased)
}
