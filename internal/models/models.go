package models

import (
	"time"
)

// Order lifecycle. An order is created as pending at checkout and moves to
// exactly one terminal state when the payment gateway reports the outcome.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

const (
	RoleUser       = "user"
	RoleFreelancer = "freelancer"
)

type User struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Email         string    `gorm:"unique;not null"           json:"email"`
	Name          string    `gorm:"not null"                  json:"name"`
	PasswordHash  string    `gorm:"not null"                  json:"-"`
	Role          string    `gorm:"not null"                  json:"role"`
	TotalEarnings float64   `gorm:"not null;default:0"        json:"total_earnings"`
	TotalSales    uint      `gorm:"not null;default:0"        json:"total_sales"`
	CreatedAt     time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	Role      string `json:"role"`
	JTI       string `json:"jti"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Title       string    `gorm:"not null"                  json:"title"`
	Description string    `gorm:"not null"                  json:"description"`
	Price       float64   `gorm:"not null"                  json:"price"`
	FileURL     string    `gorm:"not null"                  json:"file_url"`
	Category    string    `gorm:"index"                     json:"category"`
	SellerID    uint      `gorm:"index;not null"            json:"seller_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order is the buyer-owned purchase record. OrderID is minted by the checkout
// handler (not the database) so it can be embedded in the gateway return URL
// before the row exists. PaymentToken is an opaque credential required, on top
// of the session, to read the order back.
type Order struct {
	OrderID      string      `gorm:"primaryKey;size:64"  json:"order_id"`
	UserID       uint        `gorm:"index;not null"      json:"user_id"`
	Amount       float64     `gorm:"not null"            json:"amount"`
	PaymentToken string      `gorm:"not null"            json:"-"`
	PaymentRef   string      `json:"payment_ref,omitempty"`
	Status       string      `gorm:"index;not null"      json:"status"`
	Items        []OrderItem `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// OrderItem is a purchase-time snapshot: the price stays as it was at
// checkout no matter what happens to the product afterwards.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"       json:"id"`
	OrderID   string  `gorm:"index;size:64"    json:"order_id"`
	ProductID uint    `gorm:"index;not null"   json:"product_id"`
	SellerID  uint    `gorm:"index;not null"   json:"seller_id"`
	Price     float64 `gorm:"not null"         json:"price"`
}

// IsFinal reports whether the order reached a terminal state.
func (o *Order) IsFinal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusFailed
}
