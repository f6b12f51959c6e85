package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"merch_ledger/internal/bank"
	"merch_ledger/internal/sales"
)

const (
	artist = "artist"
	buyerB = "buyer-b"
	buyerC = "buyer-c"
)

func InitRoutesTests(t *testing.T) (*gin.Engine, *bank.Local) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	balances := bank.NewLocal(map[sales.Identity]uint64{buyerB: 120, "custody": 1000})
	logger := zaptest.NewLogger(t)
	svc := sales.NewService(sales.NewLocalStorage(), balances, sales.Config{
		Owner:   artist,
		Custody: "custody",
		Clock:   sales.FixedClock(1700000000),
	}, logger)
	InitRoutes(router, svc, logger)
	return router, balances
}

func doRequest(router *gin.Engine, method, path, caller string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// TestSalesHappyPath_FullFlow walks register -> add -> purchase -> offline sale -> scan.
func TestSalesHappyPath_FullFlow(t *testing.T) {
	router, balances := InitRoutesTests(t)

	t.Run("POST_RegisterArtist", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/artists", artist, gin.H{"name": "A", "min_payment": 100})
		assert.Equal(t, http.StatusCreated, w.Code)
		p := decode[sales.ArtistProfile](t, w)
		assert.Equal(t, "A", p.Name)
		assert.True(t, p.AcceptsOfflinePayments)
		assert.False(t, p.MerchandiseAvailable)
		assert.Equal(t, uint64(100), p.MinPayment)
	})

	t.Run("POST_AddMerchandise", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/merchandise", artist, gin.H{"name": "Shirt", "price": 50, "quantity": 2})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, uint64(0), decode[struct{ ID uint64 }](t, w).ID)
	})

	t.Run("POST_Purchase", func(t *testing.T) {
		for want := uint64(0); want < 2; want++ {
			w := doRequest(router, http.MethodPost, "/merchandise/0/purchases", buyerB, nil)
			assert.Equal(t, http.StatusCreated, w.Code)
			assert.Equal(t, want, decode[struct {
				SaleID uint64 `json:"sale_id"`
			}](t, w).SaleID)
		}

		w := doRequest(router, http.MethodPost, "/merchandise/0/purchases", buyerB, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "inventory_exhausted", decode[errorBody](t, w).Code)

		w = doRequest(router, http.MethodGet, "/merchandise/0", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint64(0), decode[sales.MerchandiseItem](t, w).Inventory)

		b, _ := balances.BalanceOf(context.Background(), buyerB)
		assert.Equal(t, uint64(20), b)
		a, _ := balances.BalanceOf(context.Background(), artist)
		assert.Equal(t, uint64(100), a)
	})

	t.Run("POST_RecordOfflineSale", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/merchandise", artist, gin.H{"name": "Poster", "price": 30, "quantity": 1})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(router, http.MethodPost, "/merchandise/1/offline-sales", buyerB, gin.H{"buyer": buyerC, "amount": 30})
		assert.Equal(t, http.StatusNotFound, w.Code, "caller without a profile")

		w = doRequest(router, http.MethodPost, "/merchandise/1/offline-sales", artist, gin.H{"buyer": buyerC, "amount": 30})
		assert.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(router, http.MethodGet, "/sales/2", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		sale := decode[sales.Sale](t, w)
		assert.Equal(t, sales.Sale{ID: 2, Buyer: buyerC, ItemID: 1, PaymentAmount: 30, Timestamp: 1700000000, IsOffline: true}, sale)
	})

	t.Run("GET_ScanSales", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/sales?start_id=0&end_id=10", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Results  []sales.Sale        `json:"results"`
			Metadata sales.SalesMetadata `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Results, 3)
		for i, s := range response.Results {
			assert.Equal(t, uint64(i), s.ID)
		}
		assert.Equal(t, sales.SalesMetadata{Quantity: 3, Online: 2, Offline: 1, TotalAmount: 130}, response.Metadata)

		w = doRequest(router, http.MethodGet, "/sales?start_time=1700000001", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Empty(t, response.Results)
		assert.Zero(t, response.Metadata.Quantity)
	})

	t.Run("GET_SaleInPeriod", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/sales/0?start_time=1700000000&end_time=1700000000", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[struct {
			InPeriod bool `json:"in_period"`
		}](t, w).InPeriod)

		w = doRequest(router, http.MethodGet, "/sales/0?end_time=10", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[struct {
			InPeriod bool `json:"in_period"`
		}](t, w).InPeriod)
	})

	t.Run("GET_Stats", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/stats", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, struct {
			SaleCount uint64 `json:"sale_count"`
			ItemCount uint64 `json:"item_count"`
		}{3, 2}, decode[struct {
			SaleCount uint64 `json:"sale_count"`
			ItemCount uint64 `json:"item_count"`
		}](t, w))
	})
}

func TestProfileEndpoints(t *testing.T) {
	router, _ := InitRoutesTests(t)

	w := doRequest(router, http.MethodGet, "/artists/"+artist, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, "/artists", buyerB, gin.H{"name": "B"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, w).Code)

	w = doRequest(router, http.MethodPost, "/artists", artist, gin.H{"name": "A", "min_payment": 5})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPatch, "/artists/me/offline-payments", artist, gin.H{"enabled": false})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, http.MethodPatch, "/artists/me/merchandise-availability", artist, gin.H{"available": true})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, http.MethodPatch, "/artists/me/merchandise-availability", artist, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/artists/"+artist, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	p := decode[sales.ArtistProfile](t, w)
	assert.False(t, p.AcceptsOfflinePayments)
	assert.True(t, p.MerchandiseAvailable)
	assert.Equal(t, uint64(5), p.MinPayment)
}

func TestTipsAndWithdrawals(t *testing.T) {
	router, balances := InitRoutesTests(t)

	w := doRequest(router, http.MethodPost, "/tips", buyerB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, "/artists", artist, gin.H{"name": "A", "min_payment": 200})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPost, "/tips", buyerB, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "below_minimum", decode[errorBody](t, w).Code)

	w = doRequest(router, http.MethodPost, "/withdrawals", buyerB, gin.H{"amount": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodPost, "/withdrawals", artist, gin.H{"amount": 400})
	assert.Equal(t, http.StatusOK, w.Code)
	a, _ := balances.BalanceOf(context.Background(), artist)
	assert.Equal(t, uint64(400), a)

	w = doRequest(router, http.MethodPost, "/withdrawals", artist, gin.H{"amount": 601})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = doRequest(router, http.MethodPost, "/artists", artist, gin.H{"name": "A", "min_payment": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doRequest(router, http.MethodPost, "/tips", buyerB, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(120), decode[struct{ Amount uint64 }](t, w).Amount)
}

func TestRequestValidation(t *testing.T) {
	router, _ := InitRoutesTests(t)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		want   int
	}{
		{"missing caller", http.MethodPost, "/merchandise", "", gin.H{"name": "Shirt"}, http.StatusUnauthorized},
		{"missing name", http.MethodPost, "/merchandise", artist, gin.H{"price": 1}, http.StatusBadRequest},
		{"name too long", http.MethodPost, "/merchandise", artist, gin.H{"name": string(make([]byte, sales.MaxNameLength+1))}, http.StatusBadRequest},
		{"bad item id", http.MethodPost, "/merchandise/abc/purchases", buyerB, nil, http.StatusBadRequest},
		{"unknown item", http.MethodGet, "/merchandise/9", "", nil, http.StatusNotFound},
		{"unknown sale", http.MethodGet, "/sales/9", "", nil, http.StatusNotFound},
		{"bad scan bound", http.MethodGet, "/sales?start_id=-1", "", nil, http.StatusBadRequest},
		{"negative price", http.MethodPost, "/merchandise", artist, gin.H{"name": "Shirt", "price": -1}, http.StatusBadRequest},
		{"offline sale without buyer", http.MethodPost, "/merchandise/0/offline-sales", artist, gin.H{"amount": 1}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, tc.method, tc.path, tc.caller, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestRequestID(t *testing.T) {
	router, _ := InitRoutesTests(t)

	w := doRequest(router, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "trace-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "trace-1", w.Header().Get(RequestIDHeader))
}

func TestScanCapacity(t *testing.T) {
	router, _ := InitRoutesTests(t)
	w := doRequest(router, http.MethodPost, "/artists", artist, gin.H{"name": "A"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doRequest(router, http.MethodPost, "/merchandise", artist, gin.H{"name": "Sticker", "price": 1, "quantity": sales.MaxScanResults + 1})
	require.Equal(t, http.StatusCreated, w.Code)
	for i := 0; i <= sales.MaxScanResults; i++ {
		w = doRequest(router, http.MethodPost, "/merchandise/0/offline-sales", artist, gin.H{"buyer": fmt.Sprintf("fan-%d", i), "amount": 1})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = doRequest(router, http.MethodGet, "/sales", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "capacity_exceeded", decode[errorBody](t, w).Code)

	w = doRequest(router, http.MethodGet, fmt.Sprintf("/sales?end_id=%d", sales.MaxScanResults-1), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
