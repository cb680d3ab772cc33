package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/port"
)

const etaLayout = time.DateOnly

type HTTPHandler struct {
	allocationService *service.AllocationService
}

type AddBatchHTTPRequest struct {
	Reference string `json:"reference"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	ETA       string `json:"eta,omitempty"`
}

type AllocateHTTPRequest struct {
	RequestID string `json:"request_id"`
	OrderID   string `json:"order_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}

type DeallocateHTTPRequest struct {
	BatchRef string `json:"batch_ref"`
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type HTTPResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	BatchRef string `json:"batch_ref,omitempty"`
}

type BatchView struct {
	Reference         string `json:"reference"`
	SKU               string `json:"sku"`
	PurchasedQuantity int    `json:"purchased_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
	ETA               string `json:"eta,omitempty"`
}

func NewHTTPHandler(allocationService *service.AllocationService) *HTTPHandler {
	return &HTTPHandler{allocationService: allocationService}
}

// Register mounts the API routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/batches", h.Batches)
	mux.HandleFunc("/api/allocate", h.Allocate)
	mux.HandleFunc("/api/deallocate", h.Deallocate)
}

func (h *HTTPHandler) Batches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBatches(w, r)
	case http.MethodPost:
		h.addBatch(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) addBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, HTTPResponse{Message: "invalid request body"})
		return
	}

	var eta *time.Time
	if req.ETA != "" {
		t, err := time.Parse(etaLayout, req.ETA)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, HTTPResponse{Message: "eta must be YYYY-MM-DD"})
			return
		}
		eta = &t
	}

	batch, err := h.allocationService.AddBatch(r.Context(), req.Reference, req.SKU, req.Quantity, eta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, HTTPResponse{
		Success:  true,
		Message:  "batch created",
		BatchRef: batch.Reference,
	})
}

func (h *HTTPHandler) listBatches(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")
	if sku == "" {
		writeJSON(w, http.StatusBadRequest, HTTPResponse{Message: "missing sku"})
		return
	}

	batches, err := h.allocationService.ListBatches(r.Context(), sku)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		v := BatchView{
			Reference:         b.Reference,
			SKU:               b.SKU,
			PurchasedQuantity: b.PurchasedQuantity,
			AvailableQuantity: b.AvailableQuantity(),
		}
		if b.ETA != nil {
			v.ETA = b.ETA.Format(etaLayout)
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AllocateHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, HTTPResponse{Message: "invalid request body"})
		return
	}

	ref, err := h.allocationService.Allocate(r.Context(), req.RequestID, req.OrderID, req.SKU, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HTTPResponse{
		Success:  true,
		Message:  "order line allocated",
		BatchRef: ref,
	})
}

func (h *HTTPHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DeallocateHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, HTTPResponse{Message: "invalid request body"})
		return
	}

	if err := h.allocationService.Deallocate(r.Context(), req.BatchRef, req.OrderID, req.SKU, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HTTPResponse{
		Success:  true,
		Message:  "order line deallocated",
		BatchRef: req.BatchRef,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		status = http.StatusGone
		message = "sold out"
	case errors.Is(err, service.ErrDuplicateRequest):
		status = http.StatusConflict
		message = "duplicate request"
	case errors.Is(err, port.ErrBatchExists):
		status = http.StatusConflict
		message = "batch already exists"
	case errors.Is(err, port.ErrBatchNotFound):
		status = http.StatusNotFound
		message = "batch not found"
	case errors.Is(err, service.ErrSKUBusy):
		status = http.StatusServiceUnavailable
		message = "sku busy, retry later"
	case errors.Is(err, domain.ErrInvalidOrderLine), errors.Is(err, domain.ErrInvalidBatch):
		status = http.StatusBadRequest
		message = err.Error()
	}

	writeJSON(w, status, HTTPResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
