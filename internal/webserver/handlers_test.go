package webserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ordermind/ordermind/config"
	"github.com/ordermind/ordermind/internal/bulkorder"
	"github.com/ordermind/ordermind/internal/chat"
	"github.com/ordermind/ordermind/internal/domain"
	"github.com/ordermind/ordermind/internal/llm"
	"github.com/ordermind/ordermind/internal/store"
	"github.com/ordermind/ordermind/internal/webserver"
)

// emptyCompleter always returns an empty extraction, keeping handler tests
// off the network.
type emptyCompleter struct{}

func (emptyCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return "{}", nil
}

type fixture struct {
	db     *gorm.DB
	server *webserver.WebServer
	cfg    *config.AppConfig
}

func setup(t *testing.T, mode string) *fixture {
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

	cfg := *config.DefaultAppConfig
	cfg.System.Mode = mode
	cfg.Web.Secret = "test-secret"

	customers := store.NewGormCustomerRepository(db)
	products := store.NewGormProductRepository(db)
	orders := store.NewGormOrderRepository(db)
	chatlogs := store.NewGormChatLogRepository(db)
	bus := EventBus.New()

	chats := chat.NewManager(
		llm.NewExtractor(emptyCompleter{}),
		customers, products, orders, chatlogs,
		chat.NewSessionRegistry(time.Hour), bus)
	bulk := bulkorder.NewManager(products, orders, bus)

	server := webserver.NewWebServer(&cfg, chats, bulk, customers, orders)
	return &fixture{db: db, server: server, cfg: &cfg}
}

func (f *fixture) seed(t *testing.T) (*domain.Customer, *domain.Product) {
	t.Helper()
	c := &domain.Customer{Name: "Ana", Email: "ana@example.com", DefaultShippingAddress: "1 Main St"}
	if err := f.db.Create(c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	p := &domain.Product{Name: "widget", Price: 10.00, InventoryCount: 50, MinStockLevel: 5}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return c, p
}

func (f *fixture) request(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := setup(t, "production")
	rec := f.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %v", body["status"])
	}
}

func TestApiKeyEnforcedInProduction(t *testing.T) {
	f := setup(t, "production")
	f.seed(t)

	rec := f.request(t, http.MethodGet, "/orders/1", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key = %d, want 401", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/orders/1", "", map[string]string{"X-API-Key": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key = %d, want 401", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/orders/999", "", map[string]string{"X-API-Key": "test-secret"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("right key = %d, want 404 for unknown order", rec.Code)
	}
}

func TestApiKeySkippedInDevelopment(t *testing.T) {
	f := setup(t, "development")
	rec := f.request(t, http.MethodGet, "/orders/999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("dev mode without key = %d, want 404", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	f := setup(t, "development")

	rec := f.request(t, http.MethodPost, "/chat", `{"message":"hello"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d, body %s", rec.Code, rec.Body.String())
	}
	var reply struct {
		Response  string `json:"response"`
		ContextID string `json:"context_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Response == "" || reply.ContextID == "" {
		t.Fatalf("incomplete reply: %+v", reply)
	}

	// empty message rejected
	rec = f.request(t, http.MethodPost, "/chat", `{"message":"  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message = %d, want 400", rec.Code)
	}
}

func TestChatSessionSnapshotRoundTrip(t *testing.T) {
	f := setup(t, "development")

	snapshot := `{"state":"price_confirmation","order":{"items":[{"product_id":1,"product_name":"widget","unit_price":10,"quantity":2}],"total_amount":20}}`
	rec := f.request(t, http.MethodPut, "/chat/sessions/resume-1", snapshot, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodGet, "/chat/sessions/resume-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"price_confirmation"`) ||
		!strings.Contains(rec.Body.String(), `"product_name":"widget"`) {
		t.Fatalf("snapshot body: %s", rec.Body.String())
	}

	// a bad state name is rejected
	rec = f.request(t, http.MethodPut, "/chat/sessions/resume-2", `{"state":"nonsense","order":{}}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad snapshot = %d, want 400", rec.Code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	f := setup(t, "development")
	f.seed(t)

	body := `{"customer_id":1,"items":[{"product_id":1,"quantity":2}],"shipping_address":"1 Main St"}`
	rec := f.request(t, http.MethodPost, "/orders", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodGet, "/orders/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total_amount":20`) {
		t.Fatalf("order body missing total: %s", rec.Body.String())
	}

	rec = f.request(t, http.MethodGet, "/orders/1/summary", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "widget") {
		t.Fatalf("summary = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodPut, "/orders/1/status", `{"status":"shipped"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/orders/status?ids=1,999", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "shipped") {
		t.Fatalf("batch status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodGet, "/customers/1/orders", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"customer_id":1`) {
		t.Fatalf("history = %d, body %s", rec.Code, rec.Body.String())
	}

	// oversubscribed order is rejected with 422
	body = `{"customer_id":1,"items":[{"product_id":1,"quantity":100}],"shipping_address":"1 Main St"}`
	rec = f.request(t, http.MethodPost, "/orders", body, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("oversubscribed = %d, want 422", rec.Code)
	}
}

func TestBulkSplitOverHTTP(t *testing.T) {
	f := setup(t, "development")
	f.seed(t)
	// widget sellable = 45; ask for 50
	body := `{"customer_id":1,"items":[{"product_id":1,"quantity":50}],"shipping_address":"1 Main St"}`
	rec := f.request(t, http.MethodPost, "/orders/bulk/split", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("split = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"backorder"`) || !strings.Contains(rec.Body.String(), `"available"`) {
		t.Fatalf("split body: %s", rec.Body.String())
	}
}
