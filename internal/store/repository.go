package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/ordermind/ordermind/internal/domain"
)

// CustomerRepository handles database operations for customers
type CustomerRepository interface {
	// GetByID retrieves a customer by ID
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)

	// GetByEmail retrieves a customer by email address
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)

	// Create inserts a new customer
	Create(ctx context.Context, customer *domain.Customer) error
}

// ProductRepository handles database operations for catalog products
type ProductRepository interface {
	// GetByID retrieves a product by ID
	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// GetByName retrieves a product by exact name
	GetByName(ctx context.Context, name string) (*domain.Product, error)

	// List retrieves all products ordered by name
	List(ctx context.Context) ([]*domain.Product, error)

	// ValidateInventory checks whether quantity units of a product can be
	// sold without breaching the minimum stock level. On success it
	// returns the product; on failure the error matches one of
	// ErrProductNotFound, ErrInsufficientInventory or ErrBelowMinStock.
	ValidateInventory(ctx context.Context, productID int64, quantity int) (*domain.Product, error)
}

// OrderLine is one requested product and quantity, used as input to order
// creation before any IDs or prices exist.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

// OrderRepository handles database operations for orders
type OrderRepository interface {
	// Create atomically verifies the customer, validates every line,
	// decrements inventory, snapshots unit prices and inserts the order
	// with its items. If anything fails nothing is written.
	Create(ctx context.Context, order *domain.Order, lines []OrderLine) error

	// CreateBackorder inserts an order in backorder status without
	// touching inventory. The customer is still verified and prices are
	// still snapshotted from the catalog.
	CreateBackorder(ctx context.Context, order *domain.Order, lines []OrderLine) error

	// PromoteBackorder atomically re-validates a backorder against current
	// inventory, decrements stock for every item and flips the status to
	// pending. Inventory shortfalls leave the order untouched.
	PromoteBackorder(ctx context.Context, id int64) error

	// GetByID retrieves an order with its items
	GetByID(ctx context.Context, id int64) (*domain.Order, error)

	// UpdateStatus sets the status of an order
	UpdateStatus(ctx context.Context, id int64, status string) error

	// HistoryByCustomer retrieves a customer's orders, newest first
	HistoryByCustomer(ctx context.Context, customerID int64, limit int) ([]*domain.Order, error)

	// ListByStatus retrieves orders in a given status, oldest first
	ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Order, error)

	// BatchStatus retrieves id, status, total and creation time for several
	// orders in one query. Missing IDs are simply absent from the result.
	BatchStatus(ctx context.Context, ids []int64) ([]domain.Order, error)
}

// ChatLogRepository handles database operations for conversation history
type ChatLogRepository interface {
	// Append inserts one conversation turn
	Append(ctx context.Context, log *domain.ChatLog) error

	// History retrieves the most recent turns of a session, oldest first
	History(ctx context.Context, sessionID string, limit int) ([]*domain.ChatLog, error)

	// DeleteOlderThan removes turns older than N days
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// GormCustomerRepository is the GORM implementation of CustomerRepository
type GormCustomerRepository struct {
	db *gorm.DB
}

func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrCustomerNotFound, "id %d", id)
	}
	return &customer, err
}

func (r *GormCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrCustomerNotFound, "email %s", email)
	}
	return &customer, err
}

func (r *GormCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// GormProductRepository is the GORM implementation of ProductRepository
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrProductNotFound, "id %d", id)
	}
	return &product, err
}

func (r *GormProductRepository) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrProductNotFound, "name %s", name)
	}
	return &product, err
}

func (r *GormProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	var products []*domain.Product
	err := r.db.WithContext(ctx).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *GormProductRepository) ValidateInventory(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	return validateInventory(r.db.WithContext(ctx), productID, quantity)
}

// validateInventory runs the stock checks against the given handle so the
// order transaction can re-run them on its own tx.
func validateInventory(db *gorm.DB, productID int64, quantity int) (*domain.Product, error) {
	var product domain.Product
	if err := db.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrProductNotFound, "id %d", productID)
		}
		return nil, err
	}
	if quantity > product.InventoryCount {
		return nil, errors.Wrapf(ErrInsufficientInventory,
			"%s: only %d units available", product.Name, product.InventoryCount)
	}
	if product.InventoryCount-quantity < product.MinStockLevel {
		return nil, errors.Wrapf(ErrBelowMinStock,
			"%s: %d in stock, minimum level %d", product.Name, product.InventoryCount, product.MinStockLevel)
	}
	return &product, nil
}

// verifyCustomer checks that the customer an order references exists, on
// whatever handle the caller's transaction runs.
func verifyCustomer(db *gorm.DB, customerID int64) error {
	var customer domain.Customer
	if err := db.First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrapf(ErrCustomerNotFound, "id %d", customerID)
		}
		return err
	}
	return nil
}

// GormOrderRepository is the GORM implementation of OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order, lines []OrderLine) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := verifyCustomer(tx, order.CustomerID); err != nil {
			return err
		}
		var total float64
		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, err := validateInventory(tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if err := tx.Model(&domain.Product{}).
				Where("id = ?", product.ID).
				Update("inventory_count", gorm.Expr("inventory_count - ?", line.Quantity)).Error; err != nil {
				return err
			}
			items = append(items, domain.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
			total += product.Price * float64(line.Quantity)
		}
		if order.Status == "" {
			order.Status = domain.OrderStatusPending
		}
		order.TotalAmount = total
		order.Items = items
		return tx.Create(order).Error
	})
}

func (r *GormOrderRepository) CreateBackorder(ctx context.Context, order *domain.Order, lines []OrderLine) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := verifyCustomer(tx, order.CustomerID); err != nil {
			return err
		}
		var total float64
		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			var product domain.Product
			if err := tx.First(&product, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errors.Wrapf(ErrProductNotFound, "id %d", line.ProductID)
				}
				return err
			}
			items = append(items, domain.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
			total += product.Price * float64(line.Quantity)
		}
		order.Status = domain.OrderStatusBackorder
		order.TotalAmount = total
		order.Items = items
		return tx.Create(order).Error
	})
}

func (r *GormOrderRepository) PromoteBackorder(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order domain.Order
		if err := tx.Preload("Items").First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrOrderNotFound, "id %d", id)
			}
			return err
		}
		if order.Status != domain.OrderStatusBackorder {
			return errors.Errorf("order %d is not in backorder status", id)
		}
		// promotion reserves stock the same way Create does
		for _, item := range order.Items {
			if _, err := validateInventory(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			if err := tx.Model(&domain.Product{}).
				Where("id = ?", item.ProductID).
				Update("inventory_count", gorm.Expr("inventory_count - ?", item.Quantity)).Error; err != nil {
				return err
			}
		}
		return tx.Model(&domain.Order{}).
			Where("id = ?", id).
			Update("status", domain.OrderStatusPending).Error
	})
}

func (r *GormOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrOrderNotFound, "id %d", id)
	}
	return &order, err
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrOrderNotFound, "id %d", id)
	}
	return nil
}

func (r *GormOrderRepository) HistoryByCustomer(ctx context.Context, customerID int64, limit int) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&orders).Error
	return orders, err
}

func (r *GormOrderRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&orders).Error
	return orders, err
}

func (r *GormOrderRepository) BatchStatus(ctx context.Context, ids []int64) ([]domain.Order, error) {
	var rows []domain.Order
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Select("id", "status", "total_amount", "created_at").
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

// GormChatLogRepository is the GORM implementation of ChatLogRepository
type GormChatLogRepository struct {
	db *gorm.DB
}

func NewGormChatLogRepository(db *gorm.DB) *GormChatLogRepository {
	return &GormChatLogRepository{db: db}
}

func (r *GormChatLogRepository) Append(ctx context.Context, log *domain.ChatLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *GormChatLogRepository) History(ctx context.Context, sessionID string, limit int) ([]*domain.ChatLog, error) {
	var logs []*domain.ChatLog
	query := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	// reverse to chronological order
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

func (r *GormChatLogRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.ChatLog{})
	return result.RowsAffected, result.Error
}

var _ CustomerRepository = (*GormCustomerRepository)(nil)
var _ ProductRepository = (*GormProductRepository)(nil)
var _ OrderRepository = (*GormOrderRepository)(nil)
var _ ChatLogRepository = (*GormChatLogRepository)(nil)
