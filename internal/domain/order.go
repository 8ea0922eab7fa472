package domain

import "time"

// Order status values. The DB layer does not enforce an ordering between
// them; any status may follow any other.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	// OrderStatusBackorder marks an order whose items could not be
	// fulfilled from current inventory.
	OrderStatusBackorder = "backorder"
)

// Order represents a persisted checkout, created once per completed
// conversation or bulk request.
type Order struct {
	ID                  int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID          int64       `gorm:"index;not null" json:"customer_id"`
	ShippingAddress     string      `gorm:"size:255" json:"shipping_address"`
	TotalAmount         float64     `json:"total_amount"`
	Status              string      `gorm:"size:32;default:pending" json:"status"`
	SpecialInstructions string      `gorm:"size:500" json:"special_instructions"`
	Items               []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// OrderItem is a single order line. UnitPrice is a snapshot of the product
// price at order time, not the live price.
type OrderItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64     `gorm:"index;not null" json:"order_id"`
	ProductID int64     `gorm:"index;not null" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice float64   `gorm:"not null" json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}
