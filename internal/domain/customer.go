package domain

import "time"

// Customer represents a buyer known to the system. Customers are created on
// first contact and read-mostly afterwards.
type Customer struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                   string    `gorm:"size:100;not null" json:"name"`
	Email                  string    `gorm:"size:255;uniqueIndex" json:"email"`
	DefaultShippingAddress string    `gorm:"size:255" json:"default_shipping_address"`
	Phone                  string    `gorm:"size:20" json:"phone"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
