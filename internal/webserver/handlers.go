package webserver

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ordermind/ordermind/internal/bulkorder"
	"github.com/ordermind/ordermind/internal/domain"
	"github.com/ordermind/ordermind/internal/store"
)

func (ws *WebServer) registerRoutes() {
	ws.root.GET("/health", ws.getHealth)
	ws.root.POST("/chat", ws.postChat)
	ws.root.GET("/chat/sessions/:id", ws.getChatSession)
	ws.root.PUT("/chat/sessions/:id", ws.putChatSession)
	ws.root.POST("/orders", ws.postOrder)
	ws.root.GET("/orders/status", ws.getOrderStatuses)
	ws.root.GET("/orders/:id", ws.getOrder)
	ws.root.GET("/orders/:id/summary", ws.getOrderSummary)
	ws.root.PUT("/orders/:id/status", ws.putOrderStatus)
	ws.root.POST("/orders/bulk", ws.postBulkOrder)
	ws.root.POST("/orders/bulk/validate", ws.postBulkValidate)
	ws.root.POST("/orders/bulk/split", ws.postBulkSplit)
	ws.root.GET("/customers/:id/orders", ws.getCustomerOrders)
}

func (ws *WebServer) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"version": ws.cfg.System.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

type chatPayload struct {
	Message   string `json:"message"`
	ContextID string `json:"context_id"`
}

func (ws *WebServer) postChat(c echo.Context) error {
	var payload chatPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse chat message", err.Error())
	}
	payload.Message = strings.TrimSpace(payload.Message)
	if payload.Message == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Message is required", nil)
	}
	reply := ws.chats.ProcessMessage(c.Request().Context(), payload.ContextID, payload.Message)
	return c.JSON(http.StatusOK, reply)
}

// getChatSession exports a session snapshot so a conversation can be resumed
// after a restart or handed to another node.
func (ws *WebServer) getChatSession(c echo.Context) error {
	data, err := ws.chats.Snapshot(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to snapshot session", err.Error())
	}
	return c.JSONBlob(http.StatusOK, data)
}

// putChatSession restores a previously exported session snapshot under the
// given context id.
func (ws *WebServer) putChatSession(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read snapshot", err.Error())
	}
	if err := ws.chats.Restore(c.Param("id"), body); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to restore session", err.Error())
	}
	return ok(c, echo.Map{"context_id": c.Param("id")})
}

type orderPayload struct {
	CustomerID          int64            `json:"customer_id"`
	Items               []bulkorder.Item `json:"items"`
	ShippingAddress     string           `json:"shipping_address"`
	SpecialInstructions string           `json:"special_instructions"`
}

func (p *orderPayload) validate() (string, bool) {
	if p.CustomerID <= 0 {
		return "customer_id is required", false
	}
	if len(p.Items) == 0 {
		return "at least one item is required", false
	}
	for _, item := range p.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return "every item needs a product_id and a positive quantity", false
		}
	}
	return "", true
}

func (ws *WebServer) bindOrderPayload(c echo.Context) (*orderPayload, error) {
	var payload orderPayload
	if err := c.Bind(&payload); err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	if msg, valid := payload.validate(); !valid {
		return nil, fail(c, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
	}
	if _, err := ws.customers.GetByID(c.Request().Context(), payload.CustomerID); err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Customer not found", nil)
		}
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to look up customer", err.Error())
	}
	return &payload, nil
}

func (ws *WebServer) postOrder(c echo.Context) error {
	payload, errResp := ws.bindOrderPayload(c)
	if payload == nil {
		return errResp
	}
	order, err := ws.bulk.CreateBulkOrder(c.Request().Context(),
		payload.CustomerID, payload.Items, payload.ShippingAddress, payload.SpecialInstructions)
	if err != nil {
		return orderError(c, err)
	}
	return ok(c, order)
}

func (ws *WebServer) getOrder(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	order, err := ws.orders.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order", err.Error())
	}
	return ok(c, order)
}

func (ws *WebServer) getOrderSummary(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	summary, err := ws.bulk.OrderSummary(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to build summary", err.Error())
	}
	return ok(c, summary)
}

type statusPayload struct {
	Status string `json:"status"`
}

var allowedStatuses = map[string]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusProcessing: {},
	domain.OrderStatusConfirmed:  {},
	domain.OrderStatusShipped:    {},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCancelled:  {},
	domain.OrderStatusBackorder:  {},
}

func (ws *WebServer) putOrderStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload statusPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse status", err.Error())
	}
	if _, known := allowedStatuses[payload.Status]; !known {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unknown order status", payload.Status)
	}
	if err := ws.bulk.UpdateStatus(c.Request().Context(), id, payload.Status); err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update status", err.Error())
	}
	return ok(c, echo.Map{"id": id, "status": payload.Status})
}

func (ws *WebServer) postBulkOrder(c echo.Context) error {
	return ws.postOrder(c)
}

func (ws *WebServer) postBulkValidate(c echo.Context) error {
	var payload orderPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	if len(payload.Items) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "at least one item is required", nil)
	}
	validations, err := ws.bulk.ValidateBulkOrder(c.Request().Context(), payload.Items)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to validate order", err.Error())
	}
	return ok(c, validations)
}

func (ws *WebServer) postBulkSplit(c echo.Context) error {
	payload, errResp := ws.bindOrderPayload(c)
	if payload == nil {
		return errResp
	}
	result, err := ws.bulk.SplitBulkOrder(c.Request().Context(),
		payload.CustomerID, payload.Items, payload.ShippingAddress, payload.SpecialInstructions)
	if err != nil {
		return orderError(c, err)
	}
	return ok(c, result)
}

func (ws *WebServer) getOrderStatuses(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("ids"))
	if raw == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "ids query parameter is required", nil)
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID in ids", part)
		}
		ids = append(ids, id)
	}
	entries, err := ws.bulk.CheckStatuses(c.Request().Context(), ids)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query statuses", err.Error())
	}
	return ok(c, entries)
}

func (ws *WebServer) getCustomerOrders(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid customer ID", nil)
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	orders, err := ws.orders.HistoryByCustomer(c.Request().Context(), id, limit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	return paged(c, orders, int64(len(orders)), 1, limit)
}

// orderError maps creation failures onto HTTP responses: inventory and
// validation problems are client errors, the rest are database errors.
func orderError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", err.Error())
	case errors.Is(err, store.ErrInsufficientInventory), errors.Is(err, store.ErrBelowMinStock):
		return fail(c, http.StatusUnprocessableEntity, "INSUFFICIENT_INVENTORY", "Inventory validation failed", err.Error())
	case errors.Is(err, store.ErrEmptyOrder):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Order has no items", nil)
	case strings.Contains(err.Error(), "bulk order validation failed"):
		return fail(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Bulk order validation failed", err.Error())
	default:
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create order", err.Error())
	}
}
