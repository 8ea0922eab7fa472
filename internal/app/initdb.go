package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ordermind/ordermind/internal/domain"
)

// checkProducts initializes a small demo catalog so a fresh install can
// take orders immediately.
func (a *Application) checkProducts() {
	defaultProducts := []domain.Product{
		{Name: "widget", Description: "Standard widget", Price: 10.00, InventoryCount: 50, MinStockLevel: 5},
		{Name: "widget-pro", Description: "Heavy duty widget", Price: 24.50, InventoryCount: 30, MinStockLevel: 5},
		{Name: "gadget", Description: "Entry level gadget", Price: 9.99, InventoryCount: 100, MinStockLevel: 10},
		{Name: "gizmo", Description: "Limited run gizmo", Price: 49.95, InventoryCount: 10, MinStockLevel: 2},
	}

	for _, p := range defaultProducts {
		var count int64
		a.gormDB.Model(&domain.Product{}).Where("name = ?", p.Name).Count(&count)
		if count == 0 {
			p.CreatedAt = time.Now()
			p.UpdatedAt = time.Now()
			if err := a.gormDB.Create(&p).Error; err != nil {
				zap.L().Error("failed to create default product", zap.String("name", p.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default product", zap.String("name", p.Name))
			}
		}
	}
}

// checkCustomers seeds a demo customer account.
func (a *Application) checkCustomers() {
	var count int64
	a.gormDB.Model(&domain.Customer{}).Where("email = ?", "demo@example.com").Count(&count)
	if count > 0 {
		return
	}
	customer := domain.Customer{
		Name:                   "Demo Customer",
		Email:                  "demo@example.com",
		DefaultShippingAddress: "1 Demo Street, Springfield",
		Phone:                  "0000",
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}
	if err := a.gormDB.Create(&customer).Error; err != nil {
		zap.L().Error("failed to create demo customer", zap.Error(err))
	} else {
		zap.L().Info("initialized demo customer", zap.Int64("id", customer.ID))
	}
}
