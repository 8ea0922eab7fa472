package domain

import "time"

// Product represents a sellable catalog item. InventoryCount is mutated only
// at order commit time; it must never drop below MinStockLevel as the result
// of a successful order.
type Product struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"size:100;index;not null" json:"name"`
	Description    string    `gorm:"size:500" json:"description"`
	Price          float64   `gorm:"not null" json:"price"`
	InventoryCount int       `gorm:"default:0" json:"inventory_count"`
	MinStockLevel  int       `gorm:"default:5" json:"min_stock_level"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
