package formance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetUserBalance reads the users:{userId} account volumes.
func (s *Service) GetUserBalance(ctx context.Context, userId, asset string) (decimal.Decimal, error) {
	zap.L().Debug("Getting user balance from Formance",
		zap.String("user_id", userId), zap.String("asset", asset))
	return s.accountBalance(ctx, userId, asset)
}

// ReconcileUserBalance compares the account volume against the sum of the
// user's purchase postings.
func (s *Service) ReconcileUserBalance(ctx context.Context, userId, asset string) error {
	balance, err := s.accountBalance(ctx, userId, asset)
	if err != nil {
		return err
	}

	history, err := s.GetTransactionHistory(ctx, userId, asset, reconcilePageSize, 0)
	if err != nil {
		return err
	}
	sum := decimal.Zero
	for _, tx := range history {
		sum = sum.Add(tx.Amount)
	}

	if len(history) < reconcilePageSize && !sum.Equal(balance) {
		zap.L().Error("Balance mismatch in Formance ledger",
			zap.String("user_id", userId),
			zap.String("asset", asset),
			zap.String("account_balance", balance.String()),
			zap.String("purchase_sum", sum.String()))
		return fmt.Errorf("balance mismatch for %s: account=%s purchases=%s", userId, balance.String(), sum.String())
	}

	zap.L().Info("Formance balance reconciled",
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.String("balance", balance.String()),
		zap.Int("purchases", len(history)))
	return nil
}

const reconcilePageSize = 1000

func (s *Service) accountBalance(ctx context.Context, userId, asset string) (decimal.Decimal, error) {
	vols, err := s.getAccountVolumes(ctx, userAccount(userId))
	if err != nil {
		return decimal.Zero, err
	}
	if bal := volumeBalance(vols, formanceAsset(asset)); bal != nil {
		return bigIntToDecimal(bal, asset), nil
	}
	return decimal.Zero, nil
}

func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		zap.L().Warn("Failed to get account volumes", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for one asset, falling back to input minus output.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts smallest units to a decimal amount.
func bigIntToDecimal(raw *big.Int, symbol string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(symbol)))
}

// assetSymbol strips the precision suffix, "TSU/8" -> "TSU".
func assetSymbol(fAsset string) string {
	if i := strings.IndexByte(fAsset, '/'); i >= 0 {
		return fAsset[:i]
	}
	return fAsset
}
