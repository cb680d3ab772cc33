package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/adapter/storage"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/metrics"
)

func newTestService(t *testing.T) *service.AllocationService {
	t.Helper()
	svc := service.NewAllocationService(
		storage.NewMemoryAdapter(),
		storage.NewLocalCache(time.Hour),
		zap.NewNop(),
		metrics.NewRegistry(),
		service.DefaultOptions(),
	)
	t.Cleanup(svc.Close)
	return svc
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHTTPHandler(newTestService(t)).Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) HTTPResponse {
	t.Helper()
	var resp HTTPResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHTTP_HealthCheck(t *testing.T) {
	rec := do(t, newTestMux(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTP_AllocateFlow(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/batches", AddBatchHTTPRequest{Reference: "ship", SKU: "LAMP", Quantity: 10, ETA: "2030-01-02"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, mux, http.MethodPost, "/api/batches", AddBatchHTTPRequest{Reference: "stock", SKU: "LAMP", Quantity: 10})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/allocate", AllocateHTTPRequest{RequestID: "r1", OrderID: "o1", SKU: "LAMP", Quantity: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "stock", resp.BatchRef)

	rec = do(t, mux, http.MethodGet, "/api/batches?sku=LAMP", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []BatchView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&views))
	assert.Equal(t, []BatchView{
		{Reference: "stock", SKU: "LAMP", PurchasedQuantity: 10, AvailableQuantity: 6},
		{Reference: "ship", SKU: "LAMP", PurchasedQuantity: 10, AvailableQuantity: 10, ETA: "2030-01-02"},
	}, views)

	rec = do(t, mux, http.MethodPost, "/api/deallocate", DeallocateHTTPRequest{BatchRef: "stock", OrderID: "o1", SKU: "LAMP", Quantity: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	mux := newTestMux(t)
	require.Equal(t, http.StatusCreated,
		do(t, mux, http.MethodPost, "/api/batches", AddBatchHTTPRequest{Reference: "b1", SKU: "FORK", Quantity: 5}).Code)

	tests := []struct {
		name    string
		path    string
		body    any
		code    int
		message string
	}{
		{"sold out", "/api/allocate", AllocateHTTPRequest{RequestID: "r1", OrderID: "o1", SKU: "FORK", Quantity: 6}, http.StatusGone, "sold out"},
		{"batch exists", "/api/batches", AddBatchHTTPRequest{Reference: "b1", SKU: "FORK", Quantity: 5}, http.StatusConflict, "batch already exists"},
		{"invalid batch", "/api/batches", AddBatchHTTPRequest{Reference: "b2", SKU: "FORK"}, http.StatusBadRequest, ""},
		{"bad eta", "/api/batches", AddBatchHTTPRequest{Reference: "b3", SKU: "FORK", Quantity: 1, ETA: "tomorrow"}, http.StatusBadRequest, "eta must be YYYY-MM-DD"},
		{"invalid line", "/api/allocate", AllocateHTTPRequest{RequestID: "r2", OrderID: "o2", SKU: "FORK"}, http.StatusBadRequest, ""},
		{"unknown batch", "/api/deallocate", DeallocateHTTPRequest{BatchRef: "nope", OrderID: "o1", SKU: "FORK", Quantity: 1}, http.StatusNotFound, "batch not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
		})
	}
}

func TestHTTP_DuplicateRequest(t *testing.T) {
	mux := newTestMux(t)
	do(t, mux, http.MethodPost, "/api/batches", AddBatchHTTPRequest{Reference: "b1", SKU: "CUP", Quantity: 5})

	req := AllocateHTTPRequest{RequestID: "same", OrderID: "o1", SKU: "CUP", Quantity: 1}
	require.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/api/allocate", req).Code)

	rec := do(t, mux, http.MethodPost, "/api/allocate", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate request", decodeResponse(t, rec).Message)
}

func TestHTTP_BadRequests(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/allocate", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/batches", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/allocate", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodDelete, "/api/batches", nil).Code)
}
