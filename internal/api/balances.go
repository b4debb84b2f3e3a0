package api

import (
	"context"
	"fmt"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetUserBalance returns the caller's TSU balance
func (s *PurchaseService) GetUserBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	if userId == "" {
		return decimal.Zero, fmt.Errorf("user_id is required")
	}

	balance, err := s.deps.Ledger.GetUserBalance(ctx, userId, store.AssetTSU)
	if err != nil {
		zap.L().Error("Failed to get user balance",
			zap.String("user_id", userId),
			zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to retrieve balance")
	}

	return balance, nil
}

// GetTransactionHistory returns paginated TSU purchases for a user
func (s *PurchaseService) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.deps.Ledger.GetTransactionHistory(ctx, userId, store.AssetTSU, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}

	return transactions, nil
}
