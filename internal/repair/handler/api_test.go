package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/repair/sse"
	"github.com/bitfantasy/nimo-repair/internal/repair/testutil"
	"github.com/bitfantasy/nimo-repair/internal/shared/mailer"
)

type apiEnv struct {
	db     *gorm.DB
	router *gin.Engine
	cat    *testutil.Catalog
	svcs   *service.Services
	hub    *sse.Hub
	token  string
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cat := testutil.SeedCatalog(t, db)

	svcs, err := service.NewServices(context.Background(), service.Deps{
		Repos:  repository.NewRepositories(db),
		Config: testutil.TestConfig(),
		Mailer: &mailer.Recorder{},
	})
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	hub := sse.NewHub(zap.NewNop())
	h := NewHandlers(svcs, hub)

	router := testutil.SetupRouter()
	h.RegisterPublicRoutes(router)
	h.RegisterRoutes(testutil.AuthGroup(router, "/api/v1"))

	return &apiEnv{db: db, router: router, cat: cat, svcs: svcs, hub: hub, token: testutil.DefaultTestToken()}
}

func (e *apiEnv) createOrder(t *testing.T, serial string) map[string]interface{} {
	t.Helper()
	item := testutil.SeedItem(t, e.db, e.cat, serial, nil)
	w := testutil.DoRequest(e.router, "POST", "/api/v1/orders", map[string]interface{}{
		"customer_id": e.cat.Customer.ID,
		"device_lines": []map[string]interface{}{
			{"inventory_item_id": item.ID, "aesthetic_condition": "good"},
		},
	}, e.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

// tokenOf reads the public token, which the API never serialises.
func (e *apiEnv) tokenOf(t *testing.T, order map[string]interface{}) string {
	t.Helper()
	var o entity.RepairOrder
	if err := e.db.Select("token").First(&o, "id = ?", order["id"]).Error; err != nil {
		t.Fatalf("load token: %v", err)
	}
	return o.Token
}

func TestAPI_Unauthorized(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "GET", "/api/v1/orders", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	w = testutil.DoRequest(env.router, "GET", "/api/v1/orders", nil, "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", w.Code)
	}
}

func TestAPI_CreateGetAndList(t *testing.T) {
	env := setupAPI(t)
	order := env.createOrder(t, "SN-001")

	if order["number"] != "RIP00001" {
		t.Errorf("Expected RIP00001, got %v", order["number"])
	}
	if order["assigned_to_id"] != testutil.TestUserID {
		t.Errorf("Expected the token user as assignee, got %v", order["assigned_to_id"])
	}

	id := order["id"].(string)
	w := testutil.DoRequest(env.router, "GET", "/api/v1/orders/"+id, nil, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/orders/by-number/RIP00001", nil, env.token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 by number, got %d", w.Code)
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/orders?keyword=SN-001", nil, env.token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if int(data["pagination"].(map[string]interface{})["total"].(float64)) != 1 {
		t.Errorf("Expected one order in list, got %v", data["pagination"])
	}
}

func TestAPI_CreateWithoutDevice(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "POST", "/api/v1/orders", map[string]interface{}{
		"customer_id": env.cat.Customer.ID,
	}, env.token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPI_UpdateChecksCollectionRows(t *testing.T) {
	env := setupAPI(t)
	id := env.createOrder(t, "SN-001")["id"].(string)

	w := testutil.DoRequest(env.router, "PATCH", "/api/v1/orders/"+id, map[string]interface{}{
		"credentials": []map[string]interface{}{{"service_type": "gmail"}},
	}, env.token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if int(resp["code"].(float64)) != 40001 || !strings.Contains(resp["message"].(string), "Username") {
		t.Errorf("Expected the missing username to be named, got %v", resp)
	}

	w = testutil.DoRequest(env.router, "PATCH", "/api/v1/orders/"+id, map[string]interface{}{
		"device_lines": []map[string]interface{}{{"aesthetic_condition": "good"}},
	}, env.token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a device line without item, got %d", w.Code)
	}
}

func TestAPI_DeleteIsForbidden(t *testing.T) {
	env := setupAPI(t)
	id := env.createOrder(t, "SN-001")["id"].(string)

	w := testutil.DoRequest(env.router, "DELETE", "/api/v1/orders/"+id, nil, env.token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", w.Code)
	}
	if msg := testutil.ParseResponse(w)["message"]; !strings.Contains(msg.(string), "archive") {
		t.Errorf("Expected archive hint, got %v", msg)
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/orders/"+id+"/archive", nil, env.token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected archive to succeed, got %d", w.Code)
	}
}

func TestAPI_UnknownOrder(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "GET", "/api/v1/orders/00000000-0000-0000-0000-000000000000", nil, env.token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestAPI_QRCode(t *testing.T) {
	env := setupAPI(t)
	id := env.createOrder(t, "SN-001")["id"].(string)

	w := testutil.DoRequest(env.router, "GET", "/api/v1/orders/"+id+"/qrcode?size=128", nil, env.token)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("Expected PNG, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Error("Expected PNG signature")
	}
}

func TestAPI_CatalogConflict(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "POST", "/api/v1/catalog/brands", map[string]interface{}{"name": "Apple"}, env.token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected duplicate brand to be rejected with 400, got %d", w.Code)
	}
	w = testutil.DoRequest(env.router, "DELETE", "/api/v1/catalog/brands/"+env.cat.Brand.ID, nil, env.token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected brand in use to give 409, got %d", w.Code)
	}
}

func TestPublic_UnknownTokenShowsPlaceholders(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "GET", "/repairstatus/no-such-token", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Status not yet available") || !strings.Contains(body, "Date not available") {
		t.Errorf("Expected placeholders in page")
	}
}

func TestPublic_StatusAndMessage(t *testing.T) {
	env := setupAPI(t)
	token := env.tokenOf(t, env.createOrder(t, "SN-001"))

	w := testutil.DoRequest(env.router, "GET", "/repairstatus/"+token, nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "RIP00001") {
		t.Fatalf("Expected status page for RIP00001, got %d", w.Code)
	}

	form := url.Values{"token": {token}, "customer_message": {"<b>When</b> is it ready?"}}
	req := httptest.NewRequest("POST", "/repairstatus/send_message", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/repairstatus/"+token {
		t.Fatalf("Expected 303 back to the status page, got %d %s", w.Code, w.Header().Get("Location"))
	}

	w = testutil.DoRequest(env.router, "GET", "/repairstatus/"+token, nil, "")
	body := w.Body.String()
	if !strings.Contains(body, "is it ready?") || strings.Contains(body, "<b>When</b>") {
		t.Errorf("Expected the message escaped on the page")
	}
}

func TestPublic_PDFUnknownToken(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "GET", "/repairstatus/pdf/no-such-token", nil, "")
	if w.Code != http.StatusNotFound || w.Body.String() != "Error: Repair not found." {
		t.Errorf("Expected 404 text, got %d %q", w.Code, w.Body.String())
	}
}

func TestPublic_PDFWithoutRenderer(t *testing.T) {
	env := setupAPI(t)
	token := env.tokenOf(t, env.createOrder(t, "SN-001"))
	w := testutil.DoRequest(env.router, "GET", "/repairstatus/pdf/"+token, nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "Error: Report does not exist." {
		t.Errorf("Expected report placeholder, got %d %q", w.Code, w.Body.String())
	}
}

// nextEvent reads frames until the next named event and returns its name and
// data.
func nextEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEvents_OrderFilter(t *testing.T) {
	env := setupAPI(t)
	id := env.createOrder(t, "SN-001")["id"].(string)

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/events?order_id="+id, nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	r := bufio.NewReader(resp.Body)
	if name, data := nextEvent(t, r); name != "connected" || !strings.Contains(data, id) {
		t.Fatalf("Expected connected frame for %s, got %s %s", id, name, data)
	}

	env.hub.Broadcast(sse.Event{EventType: "inventory_changed", Data: `{"type":"inventory_changed"}`})
	env.hub.Broadcast(sse.Event{EventType: "order_updated", Data: `{"order_id":"other"}`, OrderID: "other"})
	env.hub.Broadcast(sse.Event{EventType: "order_updated", Data: `{"order_id":"` + id + `"}`, OrderID: id})

	name, data := nextEvent(t, r)
	if name != "order_updated" || !strings.Contains(data, id) {
		t.Errorf("Expected only the watched order's event, got %s %s", name, data)
	}
}

func TestEvents_UnknownOrder(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "GET", "/api/v1/events?order_id=00000000-0000-0000-0000-000000000000", nil, env.token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
