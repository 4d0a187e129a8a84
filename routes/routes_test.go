package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitsofe/pos-terminal/auth"
	"github.com/sitsofe/pos-terminal/config"
	"github.com/sitsofe/pos-terminal/database"
	"github.com/sitsofe/pos-terminal/terminal"
)

const apiKey = "till-key"

type backend struct {
	sales    atomic.Int32
	lastSale atomic.Value
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/products/subsidiary_products":
		_, _ = io.WriteString(w, `[
			{"_id":"P1","name":"Paracetamol","price":5,"stock":10,"barcode":"6001"},
			{"_id":"P2","name":"Ibuprofen","price":"7","stock":4,"barcode":"null"},
			{"_id":"P3","name":"Vitamin C","price":9,"stock":2,"barcode":"6003"}
		]`)
	case "/api/customers":
		_, _ = io.WriteString(w, `[{"_id":"C1","name":"Ama","phone":"0244111222"}]`)
	case "/api/sales":
		body, _ := io.ReadAll(r.Body)
		b.lastSale.Store(string(body))
		n := b.sales.Add(1)
		_, _ = fmt.Fprintf(w, `{"id":"S%d"}`, n)
	default:
		http.NotFound(w, r)
	}
}

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	term    *terminal.Terminal
	backend *backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &backend{}
	remote := httptest.NewServer(b)
	t.Cleanup(remote.Close)

	cfg := &config.Configuration{
		APIBaseURL:  remote.URL + "/api",
		APITimeout:  5 * time.Second,
		LocalAPIKey: apiKey,
		CacheDriver: "sqlite",
		CacheDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
	db, err := database.Open(cfg, nil)
	require.NoError(t, err)
	term, err := terminal.New(cfg, db)
	require.NoError(t, err)
	t.Cleanup(term.Close)

	r := gin.New()
	SetupRoutes(r, term)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{t: t, srv: srv, term: term, backend: b}
}

func (h *harness) do(method, path string, body interface{}) (int, map[string]interface{}) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (h *harness) login(role string) int {
	token, err := auth.IssueToken(auth.Session{TenantID: "t1", SubsidiaryID: "s1", UserID: "u1", Role: role}, []byte("secret"), time.Hour)
	require.NoError(h.t, err)
	status, _ := h.do(http.MethodPost, "/session", gin.H{"token": token})
	return status
}

func (h *harness) loginAndSeed() {
	require.Equal(h.t, http.StatusOK, h.login("pharmacist"))
	require.Eventually(h.t, func() bool {
		_, body := h.do(http.MethodGet, "/catalog/state", nil)
		return body["count"] == float64(3)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAPIKeyRequired(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.srv.URL + "/cart")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRoles(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusForbidden, h.login("cashier"))
	assert.Equal(t, http.StatusOK, h.login("subsidiary_admin"))

	status, body := h.do(http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "s1", body["subsidiary_id"])
	assert.Nil(t, body["token"])

	status, _ = h.do(http.MethodDelete, "/session", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = h.do(http.MethodPost, "/checkout", gin.H{"internal": true})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBrowseAndBarcode(t *testing.T) {
	h := newHarness(t)
	h.loginAndSeed()

	status, body := h.do(http.MethodGet, "/products?search=vit", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "P3", items[0].(map[string]interface{})["id"])

	status, body = h.do(http.MethodGet, "/products/barcode/6001", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Paracetamol", body["name"])

	status, _ = h.do(http.MethodGet, "/products/barcode/null", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCartAndCheckout(t *testing.T) {
	h := newHarness(t)
	h.loginAndSeed()

	status, _ := h.do(http.MethodPost, "/cart", gin.H{"product_id": "P1", "quantity": 2})
	require.Equal(t, http.StatusOK, status)
	status, body := h.do(http.MethodPost, "/cart/scan", gin.H{"code": "6003\r\n"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "added", body["result"])

	status, _ = h.do(http.MethodPost, "/cart", gin.H{"product_id": "NOPE", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = h.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, "19", body["total"])

	// no recipient
	status, body = h.do(http.MethodPost, "/checkout", gin.H{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "no_recipient", body["code"])

	status, body = h.do(http.MethodPost, "/checkout", gin.H{"customer_id": "C1", "notes": "twice daily"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "S1", body["sale_id"])
	assert.Equal(t, "Sale completed", body["message"])

	sent := h.backend.lastSale.Load().(string)
	assert.Contains(t, sent, `"customer_phone":"0244111222"`)
	assert.Contains(t, sent, `"customer_type":"regular"`)
	assert.Contains(t, sent, `"condition":"twice daily"`)

	_, body = h.do(http.MethodGet, "/cart", nil)
	assert.Equal(t, float64(0), body["count"])

	status, body = h.do(http.MethodPost, "/checkout", gin.H{"internal": true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "empty_cart", body["code"])
}

func TestCustomersSearch(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.login("pharmacist"))

	status, body := h.do(http.MethodGet, "/customers?q=1222", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["customers"], 1)

	_, body = h.do(http.MethodGet, "/customers?q=9999", nil)
	assert.Len(t, body["customers"], 0)
}

func TestExportExcel(t *testing.T) {
	h := newHarness(t)
	h.loginAndSeed()

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/catalog/export-excel", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-KEY", apiKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "products.xlsx")
	raw, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")))
}

func TestLiveFeed(t *testing.T) {
	h := newHarness(t)
	h.loginAndSeed()

	header := http.Header{}
	header.Set("X-API-KEY", apiKey)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(gin.H{"type": "scan", "code": "6001"}))
	require.NoError(t, conn.WriteJSON(gin.H{"type": "search", "text": "ibu"}))

	sawCart, sawSearch := false, false
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(sawCart && sawSearch) {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case "cart":
			var view struct {
				Count int `json:"count"`
			}
			require.NoError(t, json.Unmarshal(msg.Data, &view))
			if view.Count == 1 {
				sawCart = true
			}
		case "products":
			var page struct {
				Search string `json:"search"`
				Items  []struct {
					ID string `json:"id"`
				} `json:"items"`
			}
			require.NoError(t, json.Unmarshal(msg.Data, &page))
			if page.Search == "ibu" {
				require.Len(t, page.Items, 1)
				assert.Equal(t, "P2", page.Items[0].ID)
				sawSearch = true
			}
		}
	}
}
