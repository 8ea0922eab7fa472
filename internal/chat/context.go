package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/ordermind/ordermind/pkg/common"
)

// ItemLine is one cart line in an in-progress order. UnitPrice is snapshotted
// when the product is resolved, Quantity starts at 0 until the customer
// states one.
type ItemLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

// OrderContext is the mutable cart for one conversation. It lives in memory
// only; nothing is persisted until the order is finalized. TotalAmount is
// derived and recomputed after every item mutation.
type OrderContext struct {
	CustomerID          int64      `json:"customer_id"`
	CustomerName        string     `json:"customer_name"`
	Items               []ItemLine `json:"items"`
	ShippingAddress     string     `json:"shipping_address"`
	SpecialInstructions string     `json:"special_instructions"`
	TotalAmount         float64    `json:"total_amount"`
	CreatedAt           time.Time  `json:"created_at"`
}

func NewOrderContext() *OrderContext {
	return &OrderContext{CreatedAt: time.Now()}
}

// AddItem appends a cart line and recomputes the total.
func (c *OrderContext) AddItem(productID int64, name string, price float64, quantity int) {
	c.Items = append(c.Items, ItemLine{
		ProductID:   productID,
		ProductName: name,
		UnitPrice:   price,
		Quantity:    quantity,
	})
	c.recomputeTotal()
}

// LastItem returns the most recently added line, or nil for an empty cart.
func (c *OrderContext) LastItem() *ItemLine {
	if len(c.Items) == 0 {
		return nil
	}
	return &c.Items[len(c.Items)-1]
}

// SetLastQuantity sets the quantity of the most recent line and recomputes
// the total.
func (c *OrderContext) SetLastQuantity(quantity int) {
	if last := c.LastItem(); last != nil {
		last.Quantity = quantity
		c.recomputeTotal()
	}
}

// DropLastItem removes the most recent line, used when a quantity turn is
// abandoned.
func (c *OrderContext) DropLastItem() {
	if len(c.Items) > 0 {
		c.Items = c.Items[:len(c.Items)-1]
		c.recomputeTotal()
	}
}

func (c *OrderContext) recomputeTotal() {
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	c.TotalAmount = total
}

// Empty reports whether the cart has no lines with a positive quantity.
func (c *OrderContext) Empty() bool {
	for _, item := range c.Items {
		if item.Quantity > 0 {
			return false
		}
	}
	return true
}

// Reset discards the cart but keeps the identified customer so a follow-up
// order does not repeat identification.
func (c *OrderContext) Reset() {
	customerID, customerName := c.CustomerID, c.CustomerName
	*c = OrderContext{CustomerID: customerID, CustomerName: customerName, CreatedAt: time.Now()}
}

// Summary renders the cart for display: customer, address, itemized lines
// with subtotals, total and instructions.
func (c *OrderContext) Summary() string {
	var sb strings.Builder
	sb.WriteString("Order summary\n")
	if c.CustomerName != "" {
		fmt.Fprintf(&sb, "Customer: %s\n", c.CustomerName)
	}
	if c.ShippingAddress != "" {
		fmt.Fprintf(&sb, "Ship to: %s\n", c.ShippingAddress)
	}
	for _, item := range c.Items {
		fmt.Fprintf(&sb, "- %s x%d @ %s = %s\n",
			item.ProductName, item.Quantity,
			common.FmtMoney(item.UnitPrice),
			common.FmtMoney(item.UnitPrice*float64(item.Quantity)))
	}
	fmt.Fprintf(&sb, "Total: %s", common.FmtMoney(c.TotalAmount))
	if c.SpecialInstructions != "" {
		fmt.Fprintf(&sb, "\nInstructions: %s", c.SpecialInstructions)
	}
	return sb.String()
}
