package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// Order tracks a checkout from creation until the payment webhook marks
// it paid. The claim token stays the source of truth for ticket data; the
// row exists for reconciliation and the order log.
type Order struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderID     string     `gorm:"type:varchar(64);uniqueIndex" json:"order_id" validate:"required,max=64"`
	CheckoutID  string     `gorm:"type:varchar(191);index" json:"checkout_id"`
	Mode        string     `gorm:"type:varchar(10);default:'live'" json:"mode" validate:"oneof=test live"`
	Status      string     `gorm:"type:varchar(20);default:'pending';index" json:"status" validate:"oneof=pending paid"`
	AmountCents int64      `gorm:"not null" json:"amount_cents" validate:"min=0"`
	BuyerEmail  string     `gorm:"type:varchar(200)" json:"buyer_email" validate:"omitempty,email"`
	ItemsJSON   string     `gorm:"type:text" json:"items_json"`
	PaidAt      *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Order) Validate() error {
	v := validator.New()

	return v.Struct(o)
}

// CreateOrder persists a new pending order.
func CreateOrder(db *gorm.DB, order *Order) error {
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	if err := order.Validate(); err != nil {
		return err
	}
	return db.Create(order).Error
}

// FindOrderByCheckoutID looks an order up by the provider checkout id.
func FindOrderByCheckoutID(db *gorm.DB, checkoutID string) (*Order, error) {
	if checkoutID == "" {
		return nil, errors.New("checkout id is required")
	}
	var order Order
	if err := db.Where("checkout_id = ?", checkoutID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrderPaid transitions an order to paid, keeping the first paid
// timestamp when a webhook is redelivered.
func MarkOrderPaid(db *gorm.DB, order *Order) error {
	if order.Status == OrderStatusPaid {
		return nil
	}
	now := time.Now()
	order.Status = OrderStatusPaid
	order.PaidAt = &now
	return db.Model(order).Updates(map[string]interface{}{
		"status":  OrderStatusPaid,
		"paid_at": now,
	}).Error
}
