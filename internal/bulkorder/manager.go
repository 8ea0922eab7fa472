package bulkorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ordermind/ordermind/internal/domain"
	"github.com/ordermind/ordermind/internal/store"
)

// EventOrderBackordered is published with the order id when a backorder is
// created.
const EventOrderBackordered = "order.backordered"

// Item is one requested line of a bulk order.
type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// InventoryValidation is the per-line outcome of a bulk validation pass.
// AvailableQuantity is the quantity sellable right now without breaching
// the minimum stock level.
type InventoryValidation struct {
	ProductID         int64   `json:"product_id"`
	ProductName       string  `json:"product_name"`
	Valid             bool    `json:"valid"`
	Message           string  `json:"message,omitempty"`
	AvailableQuantity int     `json:"available_quantity"`
	MinStockLevel     int     `json:"min_stock_level"`
	CurrentPrice      float64 `json:"current_price"`
}

// SummaryLine is one display row of an order summary.
type SummaryLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// Summary is a display-ready join of an order, its items and product names.
type Summary struct {
	OrderID         int64         `json:"order_id"`
	CustomerID      int64         `json:"customer_id"`
	Status          string        `json:"status"`
	ShippingAddress string        `json:"shipping_address"`
	Lines           []SummaryLine `json:"lines"`
	TotalAmount     float64       `json:"total_amount"`
	CreatedAt       time.Time     `json:"created_at"`
}

// StatusEntry is one row of a batch status check.
type StatusEntry struct {
	OrderID     int64     `json:"order_id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// SplitResult holds the outcome of splitting a bulk order into what ships
// now and what waits on stock. Either order may be nil.
type SplitResult struct {
	Available *domain.Order `json:"available,omitempty"`
	Backorder *domain.Order `json:"backorder,omitempty"`
}

// Manager validates and creates multi-line orders.
type Manager struct {
	products store.ProductRepository
	orders   store.OrderRepository
	bus      EventBus.Bus
}

func NewManager(products store.ProductRepository, orders store.OrderRepository, bus EventBus.Bus) *Manager {
	return &Manager{products: products, orders: orders, bus: bus}
}

// ValidateBulkOrder checks every line against inventory and reports a
// per-line result. Unknown product ids come back as a distinct not-found
// entry, not an error.
func (m *Manager) ValidateBulkOrder(ctx context.Context, items []Item) ([]InventoryValidation, error) {
	results := make([]InventoryValidation, 0, len(items))
	for _, item := range items {
		product, err := m.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				results = append(results, InventoryValidation{
					ProductID: item.ProductID,
					Message:   fmt.Sprintf("product %d not found", item.ProductID),
				})
				continue
			}
			return nil, err
		}
		entry := InventoryValidation{
			ProductID:         product.ID,
			ProductName:       product.Name,
			AvailableQuantity: sellable(product),
			MinStockLevel:     product.MinStockLevel,
			CurrentPrice:      product.Price,
		}
		if _, err := m.products.ValidateInventory(ctx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, store.ErrInsufficientInventory) || errors.Is(err, store.ErrBelowMinStock) {
				entry.Message = err.Error()
			} else {
				return nil, err
			}
		} else {
			entry.Valid = true
		}
		results = append(results, entry)
	}
	return results, nil
}

// CreateBulkOrder creates one order covering all lines. Validation is
// all-or-nothing: any invalid line aborts the batch with a combined error
// message and nothing is written.
func (m *Manager) CreateBulkOrder(ctx context.Context, customerID int64, items []Item, shippingAddress, instructions string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, store.ErrEmptyOrder
	}
	validations, err := m.ValidateBulkOrder(ctx, items)
	if err != nil {
		return nil, err
	}
	var failures []string
	for _, v := range validations {
		if !v.Valid {
			failures = append(failures, v.Message)
		}
	}
	if len(failures) > 0 {
		return nil, errors.Errorf("bulk order validation failed: %s", strings.Join(failures, "; "))
	}

	order := &domain.Order{
		CustomerID:          customerID,
		ShippingAddress:     shippingAddress,
		SpecialInstructions: instructions,
	}
	if err := m.orders.Create(ctx, order, toLines(items)); err != nil {
		return nil, err
	}
	zap.L().Info("bulk order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customerID),
		zap.Int("lines", len(items)))
	return order, nil
}

// CreateBackorder creates an order in backorder status. Inventory is not
// decremented; the recheck job promotes it once stock allows.
func (m *Manager) CreateBackorder(ctx context.Context, customerID int64, items []Item, shippingAddress, instructions string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, store.ErrEmptyOrder
	}
	order := &domain.Order{
		CustomerID:          customerID,
		ShippingAddress:     shippingAddress,
		SpecialInstructions: instructions,
	}
	if err := m.orders.CreateBackorder(ctx, order, toLines(items)); err != nil {
		return nil, err
	}
	if m.bus != nil {
		m.bus.Publish(EventOrderBackordered, order.ID)
	}
	return order, nil
}

// SplitBulkOrder partitions the lines by current availability. Fully
// available lines ship now; partially available lines are split into an
// available sub-quantity and a backordered remainder; lines with nothing
// sellable go entirely to backorder. Unknown product ids abort the split.
func (m *Manager) SplitBulkOrder(ctx context.Context, customerID int64, items []Item, shippingAddress, instructions string) (*SplitResult, error) {
	if len(items) == 0 {
		return nil, store.ErrEmptyOrder
	}
	var availableItems, backorderItems []Item
	for _, item := range items {
		product, err := m.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		avail := sellable(product)
		switch {
		case item.Quantity <= avail:
			availableItems = append(availableItems, item)
		case avail > 0:
			availableItems = append(availableItems, Item{ProductID: item.ProductID, Quantity: avail})
			backorderItems = append(backorderItems, Item{ProductID: item.ProductID, Quantity: item.Quantity - avail})
		default:
			backorderItems = append(backorderItems, item)
		}
	}

	result := &SplitResult{}
	if len(availableItems) > 0 {
		order, err := m.CreateBulkOrder(ctx, customerID, availableItems, shippingAddress, instructions)
		if err != nil {
			return nil, err
		}
		result.Available = order
	}
	if len(backorderItems) > 0 {
		order, err := m.CreateBackorder(ctx, customerID, backorderItems, shippingAddress, instructions)
		if err != nil {
			return nil, err
		}
		result.Backorder = order
	}
	return result, nil
}

// OrderSummary joins an order with product names into a display structure.
func (m *Manager) OrderSummary(ctx context.Context, orderID int64) (*Summary, error) {
	order, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		TotalAmount:     order.TotalAmount,
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		line := SummaryLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.UnitPrice * float64(item.Quantity),
		}
		if product, err := m.products.GetByID(ctx, item.ProductID); err == nil {
			line.ProductName = product.Name
		}
		summary.Lines = append(summary.Lines, line)
	}
	return summary, nil
}

// CheckStatuses fetches status, total and creation time for a set of order
// ids in one query.
func (m *Manager) CheckStatuses(ctx context.Context, ids []int64) ([]StatusEntry, error) {
	rows, err := m.orders.BatchStatus(ctx, ids)
	if err != nil {
		return nil, err
	}
	entries := make([]StatusEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, StatusEntry{
			OrderID:     row.ID,
			Status:      row.Status,
			TotalAmount: row.TotalAmount,
			CreatedAt:   row.CreatedAt,
		})
	}
	return entries, nil
}

// UpdateStatus sets the status of an order.
func (m *Manager) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	return m.orders.UpdateStatus(ctx, orderID, status)
}

// RecheckBackorders re-validates backorders against current inventory and
// promotes the fully satisfiable ones to pending, reserving their stock the
// same way a fresh order would. Returns the number promoted.
func (m *Manager) RecheckBackorders(ctx context.Context, limit int) (int, error) {
	orders, err := m.orders.ListByStatus(ctx, domain.OrderStatusBackorder, limit)
	if err != nil {
		return 0, err
	}
	var promoted int
	for _, order := range orders {
		if err := m.orders.PromoteBackorder(ctx, order.ID); err != nil {
			if isInventoryShortage(err) {
				continue
			}
			return promoted, err
		}
		zap.L().Info("backorder promoted", zap.Int64("order_id", order.ID))
		promoted++
	}
	return promoted, nil
}

// isInventoryShortage reports whether promotion failed only because stock is
// still short. A backorder on a deleted product stays parked too.
func isInventoryShortage(err error) bool {
	return errors.Is(err, store.ErrInsufficientInventory) ||
		errors.Is(err, store.ErrBelowMinStock) ||
		errors.Is(err, store.ErrProductNotFound)
}

// sellable is the quantity that can ship without breaching the minimum
// stock level.
func sellable(product *domain.Product) int {
	avail := product.InventoryCount - product.MinStockLevel
	if avail < 0 {
		return 0
	}
	return avail
}

func toLines(items []Item) []store.OrderLine {
	lines := make([]store.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, store.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
