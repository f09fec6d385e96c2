package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/core/service"
)

type HTTPHandler struct {
	allocations *service.AllocationService
	inventory   *service.InventoryService
	logger      *zap.Logger
}

func NewHTTPHandler(allocations *service.AllocationService, inventory *service.InventoryService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		allocations: allocations,
		inventory:   inventory,
		logger:      logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type stockResponse struct {
	Failed []domain.ItemRequest `json:"failed"`
}

type collectResponse struct {
	Failed []domain.CollectItem `json:"failed"`
}

// Allocate decides a batch of allocation requests. Business rejections and
// transient storage failures are reported in the 200 body; only malformed
// requests and duplicate request tokens produce a non-200.
func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.allocations.AllocateBatch(r.Context(), req)
	if err != nil {
		var invalid *domain.ValidationError
		switch {
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
		case errors.Is(err, service.ErrDuplicateRequest):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "duplicate request"})
		default:
			h.logger.Error("allocate request failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	failed, err := h.inventory.AddStock(r.Context(), req)
	if err != nil {
		var invalid *domain.ValidationError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
			return
		}
		h.logger.Error("add stock request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, stockResponse{Failed: failed})
}

func (h *HTTPHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	locationID := r.URL.Query().Get("locationId")

	lots, err := h.inventory.GetLocation(r.Context(), locationID)
	if err != nil {
		var invalid *domain.ValidationError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
			return
		}
		h.logger.Error("get location request failed",
			zap.String("location_id", locationID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if lots == nil {
		lots = []domain.Lot{}
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *HTTPHandler) Collect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	failed, err := h.inventory.Collect(r.Context(), req)
	if err != nil {
		var invalid *domain.ValidationError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
			return
		}
		h.logger.Error("collect request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, collectResponse{Failed: failed})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
