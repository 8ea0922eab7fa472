package chat

import (
	"math"
	"testing"
)

func TestOrderContextTotalRecompute(t *testing.T) {
	ctx := NewOrderContext()
	ctx.AddItem(1, "gadget", 9.99, 2)
	ctx.AddItem(2, "sticker", 5.00, 1)

	if math.Abs(ctx.TotalAmount-24.98) > 1e-9 {
		t.Fatalf("total = %v, want 24.98", ctx.TotalAmount)
	}

	ctx.SetLastQuantity(3)
	if math.Abs(ctx.TotalAmount-34.98) > 1e-9 {
		t.Fatalf("total after requantify = %v, want 34.98", ctx.TotalAmount)
	}

	ctx.DropLastItem()
	if math.Abs(ctx.TotalAmount-19.98) > 1e-9 {
		t.Fatalf("total after drop = %v, want 19.98", ctx.TotalAmount)
	}
}

func TestOrderContextResetKeepsCustomer(t *testing.T) {
	ctx := NewOrderContext()
	ctx.CustomerID = 7
	ctx.CustomerName = "Ana"
	ctx.AddItem(1, "gadget", 9.99, 2)
	ctx.ShippingAddress = "1 Main St"

	ctx.Reset()

	if ctx.CustomerID != 7 || ctx.CustomerName != "Ana" {
		t.Fatalf("customer lost on reset: %d %q", ctx.CustomerID, ctx.CustomerName)
	}
	if len(ctx.Items) != 0 || ctx.TotalAmount != 0 || ctx.ShippingAddress != "" {
		t.Fatalf("cart not cleared: %+v", ctx)
	}
}

func TestOrderContextEmpty(t *testing.T) {
	ctx := NewOrderContext()
	if !ctx.Empty() {
		t.Fatal("new context should be empty")
	}
	ctx.AddItem(1, "gadget", 9.99, 0)
	if !ctx.Empty() {
		t.Fatal("zero-quantity placeholder should still count as empty")
	}
	ctx.SetLastQuantity(2)
	if ctx.Empty() {
		t.Fatal("context with a real quantity should not be empty")
	}
}
