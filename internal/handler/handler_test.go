package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/tableside/internal/domain/auth"
	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/receipt"
	"github.com/xenking/tableside/internal/repository/memory"
)

type keyRepo struct{ keys map[string]*auth.Key }

func (k *keyRepo) FindByHash(_ context.Context, hash string) (*auth.Key, error) {
	if key, ok := k.keys[hash]; ok {
		return key, nil
	}
	return nil, auth.ErrNotFound
}

func (k *keyRepo) Create(_ context.Context, key *auth.Key) error {
	k.keys[key.KeyHash] = key
	return nil
}

type testServer struct {
	mux   *http.ServeMux
	store *memory.Store
}

func newTestServer(t *testing.T, staff *auth.Authenticator) *testServer {
	t.Helper()
	store := memory.New()
	orders, err := order.NewService(order.Config{}, store.Orders(), store.Tables(), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	h := NewHandler(Config{}, Deps{
		Menu:     store.Menu(),
		MenuSvc:  menu.NewService(store.Menu()),
		Tables:   store.Tables(),
		TableSvc: table.NewService(table.ServiceConfig{}, store.Tables()),
		Orders:   orders,
		Receipts: receipt.NewFormatter(receipt.DefaultConfig()),
		Staff:    staff,
	})
	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{mux: mux, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

// object decodes a JSON object into its raw fields.
func object(t *testing.T, data []byte) map[string]jx.Raw {
	t.Helper()
	out := map[string]jx.Raw{}
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		raw, err := d.Raw()
		out[string(key)] = raw
		return err
	})
	require.NoError(t, err, string(data))
	return out
}

func array(t *testing.T, data []byte) []jx.Raw {
	t.Helper()
	var out []jx.Raw
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		out = append(out, raw)
		return err
	})
	require.NoError(t, err, string(data))
	return out
}

func str(t *testing.T, raw jx.Raw) string {
	t.Helper()
	s, err := jx.DecodeBytes(raw).Str()
	require.NoError(t, err, raw.String())
	return s
}

func field(t *testing.T, w *httptest.ResponseRecorder, key string) string {
	t.Helper()
	return str(t, object(t, w.Body.Bytes())[key])
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
	body := object(t, w.Body.Bytes())
	n, err := jx.DecodeBytes(body["code"]).Int()
	require.NoError(t, err)
	assert.Equal(t, code, n)
	assert.NotEmpty(t, str(t, body["message"]))
}

// seed creates table A1 and an available Edamame at 380.
func (s *testServer) seed(t *testing.T) (tableID, menuID string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/tables", `{"tableNumber":"A1","capacity":4}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tableID = field(t, w, "id")
	assert.Equal(t, "AVAILABLE", field(t, w, "status"))
	assert.Equal(t, table.DefaultQRBaseURL+"A1", field(t, w, "qrCode"))

	w = s.do(t, http.MethodPost, "/api/menu",
		`{"name":"Edamame","description":"Salted soybeans","price":380,"category":"APPETIZER","preparationMinutes":3}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	menuID = field(t, w, "id")
	assert.Equal(t, "380.00", object(t, w.Body.Bytes())["price"].String())
	return tableID, menuID
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	tableID, menuID := s.seed(t)

	w := s.do(t, http.MethodPost, "/api/orders", `{"tableNumber":"A1","customerNotes":"no wasabi"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := field(t, w, "id")
	assert.Equal(t, tableID, field(t, w, "tableId"))
	assert.Equal(t, "PENDING", field(t, w, "status"))
	assert.Equal(t, "0.00", object(t, w.Body.Bytes())["totalAmount"].String())

	w = s.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		`{"menuItemId":"`+menuID+`","quantity":2,"specialInstructions":"extra salt"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := object(t, w.Body.Bytes())
	assert.Equal(t, "760.00", body["totalAmount"].String())
	items := array(t, body["items"])
	require.Len(t, items, 1)
	itemID := str(t, object(t, items[0])["id"])

	w = s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/items/"+itemID, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1140.00", object(t, w.Body.Bytes())["totalAmount"].String())

	w = s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CONFIRMED", field(t, w, "status"))
	assert.Equal(t, "OCCUPIED", field(t, s.do(t, http.MethodGet, "/api/tables/"+tableID, ""), "status"))

	w = s.do(t, http.MethodGet, "/api/orders/kitchen", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, array(t, w.Body.Bytes()), 1)

	w = s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/items/"+itemID+"/status", `{"status":"READY"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/status", `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEqual(t, "null", object(t, w.Body.Bytes())["completedAt"].String())
	assert.Equal(t, "AVAILABLE", field(t, s.do(t, http.MethodGet, "/api/tables/"+tableID, ""), "status"))

	w = s.do(t, http.MethodGet, "/api/orders/"+orderID+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	history := array(t, w.Body.Bytes())
	require.Len(t, history, 2)
	assert.Equal(t, "PENDING", str(t, object(t, history[0])["from"]))
	assert.Equal(t, "COMPLETED", str(t, object(t, history[1])["to"]))

	w = s.do(t, http.MethodGet, "/api/tables/"+tableID+"/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, array(t, w.Body.Bytes()), 1)

	w = s.do(t, http.MethodGet, "/api/orders/active", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, array(t, w.Body.Bytes()))
}

func TestErrors(t *testing.T) {
	s := newTestServer(t, nil)
	tableID, menuID := s.seed(t)

	w := s.do(t, http.MethodPost, "/api/orders", `{"tableId":"`+tableID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := field(t, w, "id")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"unknown order", http.MethodGet, "/api/orders/missing", "", http.StatusNotFound},
		{"unknown table for order", http.MethodPost, "/api/orders", `{"tableId":"missing"}`, http.StatusNotFound},
		{"order without table", http.MethodPost, "/api/orders", `{}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/orders", `{"tableId":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/orders/" + orderID + "/items", "", http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/api/orders/" + orderID + "/items", `{"menuItemId":"` + menuID + `","quantity":0}`, http.StatusBadRequest},
		{"quantity over limit", http.MethodPost, "/api/orders/" + orderID + "/items", `{"menuItemId":"` + menuID + `","quantity":3000000000}`, http.StatusBadRequest},
		{"long instructions", http.MethodPost, "/api/orders/" + orderID + "/items", `{"menuItemId":"` + menuID + `","specialInstructions":"` + strings.Repeat("x", 201) + `"}`, http.StatusBadRequest},
		{"sub-cent price", http.MethodPost, "/api/menu", `{"name":"Soup","price":"4.005","category":"RICE"}`, http.StatusBadRequest},
		{"unknown menu item", http.MethodPost, "/api/orders/" + orderID + "/items", `{"menuItemId":"missing"}`, http.StatusNotFound},
		{"unknown line", http.MethodDelete, "/api/orders/" + orderID + "/items/missing", "", http.StatusNotFound},
		{"unknown status", http.MethodPatch, "/api/orders/" + orderID + "/status", `{"status":"EATEN"}`, http.StatusBadRequest},
		{"unknown item status", http.MethodPatch, "/api/orders/" + orderID + "/items/x/status", `{"status":"BURNT"}`, http.StatusBadRequest},
		{"duplicate table", http.MethodPost, "/api/tables", `{"tableNumber":"A1","capacity":2}`, http.StatusUnprocessableEntity},
		{"invalid table", http.MethodPost, "/api/tables", `{"tableNumber":"","capacity":2}`, http.StatusBadRequest},
		{"invalid menu item", http.MethodPost, "/api/menu", `{"name":"Soup","price":-1,"category":"RICE"}`, http.StatusBadRequest},
		{"unknown category", http.MethodGet, "/api/menu/category/PIZZA", "", http.StatusBadRequest},
		{"bad price range", http.MethodGet, "/api/menu/price-range?min=10&max=1", "", http.StatusBadRequest},
		{"bad time zone", http.MethodGet, "/api/orders/today?tz=Mars/Olympus", "", http.StatusBadRequest},
		{"bad range", http.MethodGet, "/api/orders?from=yesterday&to=today", "", http.StatusBadRequest},
		{"table in use", http.MethodDelete, "/api/tables/" + tableID, "", http.StatusUnprocessableEntity},
		{"menu item in use", http.MethodDelete, "/api/menu/" + menuID, "", http.StatusUnprocessableEntity},
		{"unknown receipt", http.MethodGet, "/api/receipts/missing/text", "", http.StatusNotFound},
	}

	w = s.do(t, http.MethodPost, "/api/orders/"+orderID+"/items", `{"menuItemId":"`+menuID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, s.do(t, tt.method, tt.path, tt.body), tt.code)
		})
	}
}

func TestTransitionErrors(t *testing.T) {
	s := newTestServer(t, nil)
	tableID, menuID := s.seed(t)

	w := s.do(t, http.MethodPost, "/api/orders", `{"tableId":"`+tableID+`"}`)
	orderID := field(t, w, "id")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/ready", "").Code)
	requireError(t, s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", ""), http.StatusUnprocessableEntity)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/cancel", "").Code)
	requireError(t, s.do(t, http.MethodPost, "/api/orders/"+orderID+"/items", `{"menuItemId":"`+menuID+`"}`),
		http.StatusUnprocessableEntity)

	w = s.do(t, http.MethodPatch, "/api/menu/"+menuID+"/toggle-availability", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", object(t, w.Body.Bytes())["available"].String())

	w = s.do(t, http.MethodPost, "/api/orders", `{"tableId":"`+tableID+`"}`)
	other := field(t, w, "id")
	requireError(t, s.do(t, http.MethodPost, "/api/orders/"+other+"/items", `{"menuItemId":"`+menuID+`"}`),
		http.StatusUnprocessableEntity)
}

func TestMenuQueries(t *testing.T) {
	s := newTestServer(t, nil)
	s.seed(t)
	w := s.do(t, http.MethodPost, "/api/menu", `{"name":"Sapporo Draft","price":"650.50","category":"BEER"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tests := []struct {
		path string
		want int
	}{
		{"/api/menu", 2},
		{"/api/menu/available", 2},
		{"/api/menu/category/BEER", 1},
		{"/api/menu/search?name=eda", 1},
		{"/api/menu/price-range?min=500&max=700", 1},
		{"/api/menu/categories", len(menu.Categories)},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Len(t, array(t, w.Body.Bytes()), tt.want)
		})
	}
}

func TestTableQueries(t *testing.T) {
	s := newTestServer(t, nil)
	tableID, _ := s.seed(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/tables", `{"tableNumber":"B2","capacity":2}`).Code)

	w := s.do(t, http.MethodGet, "/api/tables/available?capacity=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	avail := array(t, w.Body.Bytes())
	require.Len(t, avail, 1)
	assert.Equal(t, "A1", str(t, object(t, avail[0])["tableNumber"]))

	w = s.do(t, http.MethodGet, "/api/tables/lookup?qr="+url.QueryEscape(table.DefaultQRBaseURL+"B2"), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "B2", field(t, w, "tableNumber"))

	w = s.do(t, http.MethodPatch, "/api/tables/"+tableID+"/status", `{"status":"CLEANING"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, "/api/tables?status=CLEANING", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, array(t, w.Body.Bytes()), 1)

	w = s.do(t, http.MethodPut, "/api/tables/"+tableID, `{"tableNumber":"A9","capacity":6}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CLEANING", field(t, w, "status"))
	assert.Equal(t, table.DefaultQRBaseURL+"A9", field(t, w, "qrCode"))

	w = s.do(t, http.MethodGet, "/api/tables/"+tableID+"/qr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, table.DefaultQRBaseURL+"A9", field(t, w, "qrCode"))
}

func TestTableQRImage(t *testing.T) {
	s := newTestServer(t, nil)
	tableID, _ := s.seed(t)
	pngMagic := []byte("\x89PNG\r\n\x1a\n")

	w := s.do(t, http.MethodGet, "/api/tables/"+tableID+"/qr-image", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "A1", field(t, w, "tableNumber"))
	img, err := base64.StdEncoding.DecodeString(field(t, w, "qrCodeImage"))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(img, pngMagic))
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, table.QRImageSize, cfg.Width)

	w = s.do(t, http.MethodGet, "/api/tables/"+tableID+"/qr-image?format=png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), pngMagic))

	requireError(t, s.do(t, http.MethodGet, "/api/tables/"+tableID+"/qr-image?format=gif", ""), http.StatusBadRequest)
	requireError(t, s.do(t, http.MethodGet, "/api/tables/missing/qr-image", ""), http.StatusNotFound)
}

func TestReceipts(t *testing.T) {
	s := newTestServer(t, nil)
	tableID, menuID := s.seed(t)
	orderID := field(t, s.do(t, http.MethodPost, "/api/orders", `{"tableId":"`+tableID+`"}`), "id")
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, "/api/orders/"+orderID+"/items", `{"menuItemId":"`+menuID+`","quantity":2}`).Code)

	w := s.do(t, http.MethodGet, "/api/receipts/"+orderID+"/text", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	text := field(t, w, "receiptText")
	assert.Contains(t, text, "Edamame")
	assert.Contains(t, text, "Table: A1")

	w = s.do(t, http.MethodGet, "/api/receipts/"+orderID+"/html", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Edamame")

	w = s.do(t, http.MethodGet, "/api/receipts/"+orderID+"/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	zr, err := pgzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, text, string(plain))
}

func TestStaffKeys(t *testing.T) {
	ctx := context.Background()
	staff := auth.NewAuthenticator(&keyRepo{keys: map[string]*auth.Key{}}, []byte("pepper"))
	_, err := staff.Register(ctx, "k1", "kitchen display", "kitchen-key", []string{auth.ScopeKitchen})
	require.NoError(t, err)
	_, err = staff.Register(ctx, "k2", "manager", "admin-key", []string{auth.ScopeAdmin})
	require.NoError(t, err)

	s := newTestServer(t, staff)

	requireError(t, s.do(t, http.MethodPost, "/api/tables", `{"tableNumber":"A1","capacity":4}`), http.StatusUnauthorized)
	requireError(t, s.do(t, http.MethodPost, "/api/tables", `{"tableNumber":"A1","capacity":4}`,
		HeaderAPIKey, "kitchen-key"), http.StatusForbidden)

	w := s.do(t, http.MethodPost, "/api/tables", `{"tableNumber":"A1","capacity":4}`, HeaderAPIKey, "admin-key")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Guests open orders without a key; staff move them along.
	w = s.do(t, http.MethodPost, "/api/orders", `{"tableNumber":"A1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := field(t, w, "id")

	requireError(t, s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", ""), http.StatusUnauthorized)
	requireError(t, s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", "", HeaderAPIKey, "guess"),
		http.StatusUnauthorized)
	w = s.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", "", HeaderAPIKey, "kitchen-key")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, "/api/orders/kitchen", "", HeaderAPIKey, "admin-key")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&order.NotFoundError{OrderID: "o"}, http.StatusNotFound},
		{&order.NotFoundError{OrderID: "o", ItemID: "i"}, http.StatusNotFound},
		{&order.InvalidQuantityError{Quantity: 0}, http.StatusBadRequest},
		{errors.Wrap(order.ErrInvalidInput, "instructions"), http.StatusBadRequest},
		{&order.UnavailableError{MenuItemID: "m"}, http.StatusUnprocessableEntity},
		{&order.TransitionError{From: order.StatusReady, To: order.StatusPending}, http.StatusUnprocessableEntity},
		{order.ErrOrderClosed, http.StatusUnprocessableEntity},
		{order.ErrConflict, http.StatusConflict},
		{table.ErrDuplicateNumber, http.StatusUnprocessableEntity},
		{menu.ErrInUse, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
