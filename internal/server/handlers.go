package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tsu-payments-go/internal/api"
	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type balanceResponse struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := s.purchases.ProcessPurchase(r.Context(), UserIDFromContext(r.Context()), req)
	if err != nil {
		var rejection *api.Rejection
		if errors.As(err, &rejection) {
			writeError(w, rejection.Status, rejection.Message, rejection.Reason)
			return
		}
		zap.L().Error("Unexpected purchase error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process purchase", "")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.purchases.GetUserBalance(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve balance", "")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Asset: store.AssetTSU, Balance: balance})
}

type transactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset", err.Error())
		return
	}

	transactions, err := s.purchases.GetTransactionHistory(r.Context(), UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve transactions", "")
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: transactions, Limit: limit, Offset: offset})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.purchases.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unhealthy", "")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message, reason string) {
	writeJSON(w, status, errorResponse{Message: message, Error: reason})
}
