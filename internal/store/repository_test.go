package store_test

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ordermind/ordermind/internal/domain"
	"github.com/ordermind/ordermind/internal/store"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, inventory, minStock int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: price, InventoryCount: inventory, MinStockLevel: minStock}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func seedCustomer(t *testing.T, db *gorm.DB, name, email string) *domain.Customer {
	t.Helper()
	c := &domain.Customer{Name: name, Email: email, DefaultShippingAddress: "1 Main St"}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func TestValidateInventoryBoundaries(t *testing.T) {
	db := setupDB(t)
	repo := store.NewGormProductRepository(db)
	ctx := context.Background()

	p := seedProduct(t, db, "widget", 10.00, 10, 5)

	// exactly down to the minimum stock level is fine
	if _, err := repo.ValidateInventory(ctx, p.ID, 5); err != nil {
		t.Fatalf("quantity 5 should pass: %v", err)
	}

	// one more would breach the minimum
	_, err := repo.ValidateInventory(ctx, p.ID, 6)
	if !errors.Is(err, store.ErrBelowMinStock) {
		t.Fatalf("quantity 6 should fail with ErrBelowMinStock, got %v", err)
	}

	// more than on hand
	_, err = repo.ValidateInventory(ctx, p.ID, 11)
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("quantity 11 should fail with ErrInsufficientInventory, got %v", err)
	}

	_, err = repo.ValidateInventory(ctx, 9999, 1)
	if !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("unknown product should fail with ErrProductNotFound, got %v", err)
	}
}

func TestValidateInventoryIdempotent(t *testing.T) {
	db := setupDB(t)
	repo := store.NewGormProductRepository(db)
	ctx := context.Background()

	p := seedProduct(t, db, "widget", 10.00, 10, 5)

	first, err := repo.ValidateInventory(ctx, p.ID, 5)
	if err != nil {
		t.Fatalf("first validation: %v", err)
	}
	second, err := repo.ValidateInventory(ctx, p.ID, 5)
	if err != nil {
		t.Fatalf("second validation: %v", err)
	}
	if first.InventoryCount != second.InventoryCount {
		t.Fatalf("validation mutated inventory: %d != %d", first.InventoryCount, second.InventoryCount)
	}
}

func TestCreateOrderDecrementsInventory(t *testing.T) {
	db := setupDB(t)
	products := store.NewGormProductRepository(db)
	orders := store.NewGormOrderRepository(db)
	ctx := context.Background()

	customer := seedCustomer(t, db, "Ana", "ana@example.com")
	widget := seedProduct(t, db, "widget", 9.99, 50, 5)
	gadget := seedProduct(t, db, "gadget", 5.00, 20, 5)

	order := &domain.Order{CustomerID: customer.ID, ShippingAddress: "1 Main St"}
	lines := []store.OrderLine{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: gadget.ID, Quantity: 1},
	}
	if err := orders.Create(ctx, order, lines); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID == 0 {
		t.Fatal("order id not assigned")
	}
	if math.Abs(order.TotalAmount-24.98) > 1e-9 {
		t.Fatalf("total = %v, want 24.98", order.TotalAmount)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}

	got, err := orders.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(got.Items))
	}
	if got.Items[0].UnitPrice != 9.99 {
		t.Fatalf("unit price snapshot = %v, want 9.99", got.Items[0].UnitPrice)
	}

	w, _ := products.GetByID(ctx, widget.ID)
	if w.InventoryCount != 48 {
		t.Fatalf("widget inventory = %d, want 48", w.InventoryCount)
	}
	g, _ := products.GetByID(ctx, gadget.ID)
	if g.InventoryCount != 19 {
		t.Fatalf("gadget inventory = %d, want 19", g.InventoryCount)
	}
}

func TestCreateOrderRollsBackOnFailure(t *testing.T) {
	db := setupDB(t)
	products := store.NewGormProductRepository(db)
	orders := store.NewGormOrderRepository(db)
	ctx := context.Background()

	customer := seedCustomer(t, db, "Ana", "ana@example.com")
	widget := seedProduct(t, db, "widget", 9.99, 50, 5)
	scarce := seedProduct(t, db, "gizmo", 49.95, 3, 2)

	order := &domain.Order{CustomerID: customer.ID, ShippingAddress: "1 Main St"}
	lines := []store.OrderLine{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: scarce.ID, Quantity: 10},
	}
	err := orders.Create(ctx, order, lines)
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("want ErrInsufficientInventory, got %v", err)
	}

	// nothing written, nothing decremented
	var orderCount, itemCount int64
	db.Model(&domain.Order{}).Count(&orderCount)
	db.Model(&domain.OrderItem{}).Count(&itemCount)
	if orderCount != 0 || itemCount != 0 {
		t.Fatalf("rows leaked: orders=%d items=%d", orderCount, itemCount)
	}
	w, _ := products.GetByID(ctx, widget.ID)
	if w.InventoryCount != 50 {
		t.Fatalf("widget inventory = %d, want 50 after rollback", w.InventoryCount)
	}
}

func TestCreateOrderRequiresCustomer(t *testing.T) {
	db := setupDB(t)
	products := store.NewGormProductRepository(db)
	orders := store.NewGormOrderRepository(db)
	ctx := context.Background()

	widget := seedProduct(t, db, "widget", 10.00, 50, 5)

	order := &domain.Order{CustomerID: 9999, ShippingAddress: "1 Main St"}
	err := orders.Create(ctx, order, []store.OrderLine{{ProductID: widget.ID, Quantity: 2}})
	if !errors.Is(err, store.ErrCustomerNotFound) {
		t.Fatalf("want ErrCustomerNotFound, got %v", err)
	}

	var count int64
	db.Model(&domain.Order{}).Count(&count)
	if count != 0 {
		t.Fatalf("order persisted for unknown customer: %d rows", count)
	}
	w, _ := products.GetByID(ctx, widget.ID)
	if w.InventoryCount != 50 {
		t.Fatalf("inventory = %d, want 50 untouched", w.InventoryCount)
	}

	err = orders.CreateBackorder(ctx, order, []store.OrderLine{{ProductID: widget.ID, Quantity: 2}})
	if !errors.Is(err, store.ErrCustomerNotFound) {
		t.Fatalf("backorder: want ErrCustomerNotFound, got %v", err)
	}
}

func TestPromoteBackorderReservesStock(t *testing.T) {
	db := setupDB(t)
	products := store.NewGormProductRepository(db)
	orders := store.NewGormOrderRepository(db)
	ctx := context.Background()

	customer := seedCustomer(t, db, "Ana", "ana@example.com")
	widget := seedProduct(t, db, "widget", 10.00, 2, 2)

	order := &domain.Order{CustomerID: customer.ID, ShippingAddress: "1 Main St"}
	if err := orders.CreateBackorder(ctx, order, []store.OrderLine{{ProductID: widget.ID, Quantity: 10}}); err != nil {
		t.Fatalf("create backorder: %v", err)
	}

	// not enough stock yet, nothing changes
	err := orders.PromoteBackorder(ctx, order.ID)
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("want ErrInsufficientInventory, got %v", err)
	}
	got, _ := orders.GetByID(ctx, order.ID)
	if got.Status != domain.OrderStatusBackorder {
		t.Fatalf("status = %q, want backorder after failed promotion", got.Status)
	}

	db.Model(&domain.Product{}).Where("id = ?", widget.ID).Update("inventory_count", 20)
	if err := orders.PromoteBackorder(ctx, order.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}
	got, _ = orders.GetByID(ctx, order.ID)
	if got.Status != domain.OrderStatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	// promotion holds the same reservation a fresh order would
	w, _ := products.GetByID(ctx, widget.ID)
	if w.InventoryCount != 10 {
		t.Fatalf("inventory = %d, want 10 after promotion", w.InventoryCount)
	}

	if err := orders.PromoteBackorder(ctx, got.ID); err == nil {
		t.Fatal("promoting a pending order should fail")
	}
}

func TestCreateBackorderKeepsInventory(t *testing.T) {
	db := setupDB(t)
	products := store.NewGormProductRepository(db)
	orders := store.NewGormOrderRepository(db)
	ctx := context.Background()

	customer := seedCustomer(t, db, "Ana", "ana@example.com")
	widget := seedProduct(t, db, "widget", 10.00, 2, 2)

	order := &domain.Order{CustomerID: customer.ID, ShippingAddress: "1 Main St"}
	err := orders.CreateBackorder(ctx, order, []store.OrderLine{{ProductID: widget.ID, Quantity: 7}})
	if err != nil {
		t.Fatalf("create backorder: %v", err)
	}
	if order.Status != domain.OrderStatusBackorder {
		t.Fatalf("status = %q, want backorder", order.Status)
	}
	if math.Abs(order.TotalAmount-70.00) > 1e-9 {
		t.Fatalf("total = %v, want 70.00", order.TotalAmount)
	}
	w, _ := products.GetByID(ctx, widget.ID)
	if w.InventoryCount != 2 {
		t.Fatalf("inventory = %d, want 2 (untouched)", w.InventoryCount)
	}
}

func TestOrderStatusAndHistory(t *testing.T) {
	db := setupDB(t)
	orders := store.NewGormOrderRepository(db)
	ctx := context.Background()

	customer := seedCustomer(t, db, "Ana", "ana@example.com")
	widget := seedProduct(t, db, "widget", 10.00, 50, 5)

	var ids []int64
	for i := 0; i < 3; i++ {
		order := &domain.Order{CustomerID: customer.ID, ShippingAddress: "1 Main St"}
		if err := orders.Create(ctx, order, []store.OrderLine{{ProductID: widget.ID, Quantity: 1}}); err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		ids = append(ids, order.ID)
	}

	if err := orders.UpdateStatus(ctx, ids[0], domain.OrderStatusShipped); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := orders.UpdateStatus(ctx, 9999, domain.OrderStatusShipped); !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}

	history, err := orders.HistoryByCustomer(ctx, customer.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d orders, want 3", len(history))
	}

	rows, err := orders.BatchStatus(ctx, append(ids, 9999))
	if err != nil {
		t.Fatalf("batch status: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("batch status = %d rows, want 3", len(rows))
	}
	statuses := make(map[int64]string)
	for _, row := range rows {
		statuses[row.ID] = row.Status
	}
	if statuses[ids[0]] != domain.OrderStatusShipped {
		t.Fatalf("order %d status = %q, want shipped", ids[0], statuses[ids[0]])
	}
}

func TestChatLogHistory(t *testing.T) {
	db := setupDB(t)
	logs := store.NewGormChatLogRepository(db)
	ctx := context.Background()

	turns := []string{"hi", "hello!", "2 widgets", "added"}
	roles := []string{"user", "assistant", "user", "assistant"}
	for i := range turns {
		err := logs.Append(ctx, &domain.ChatLog{SessionID: "s1", Role: roles[i], Content: turns[i]})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = logs.Append(ctx, &domain.ChatLog{SessionID: "s2", Role: "user", Content: "other session"})

	history, err := logs.History(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d turns, want 3", len(history))
	}
	// chronological order, most recent three turns
	if history[0].Content != "hello!" || history[2].Content != "added" {
		t.Fatalf("unexpected history order: %q ... %q", history[0].Content, history[2].Content)
	}
}
