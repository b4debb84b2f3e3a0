package formance

import (
	"context"
	"fmt"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// numscriptPurchase mints TSU into the buyer's account. All purchase details
// travel as transaction metadata so the ledger entry is self-describing.
const numscriptPurchase = `vars {
  asset $asset
  number $amount
  account $user_id
  string $payment_reference
  string $payment_method
  string $fiat_amount
  string $currency
  string $verification_data
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "tsu_purchase")
set_tx_meta("payment_reference", $payment_reference)
set_tx_meta("payment_method", $payment_method)
set_tx_meta("fiat_amount", $fiat_amount)
set_tx_meta("currency", $currency)
set_tx_meta("verification_data", $verification_data)
`

const purchaseEventType = "tsu_purchase"

// purchaseVars builds the Numscript variables for a purchase credit.
func purchaseVars(params store.CommitPurchaseParams) map[string]string {
	verification := "{}"
	if len(params.VerificationData) > 0 {
		verification = string(params.VerificationData)
	}
	return map[string]string{
		"asset":             formanceAsset(store.AssetTSU),
		"amount":            params.TsuAmount.Shift(int32(precisionFor(store.AssetTSU))).BigInt().String(),
		"user_id":           params.UserId,
		"payment_reference": params.PaymentReference,
		"payment_method":    string(params.PaymentMethod),
		"fiat_amount":       params.FiatAmount.String(),
		"currency":          params.Currency,
		"verification_data": verification,
	}
}

// IsPaymentProcessed looks the reference up in transaction metadata.
func (s *Service) IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error) {
	tx, err := s.findPurchase(ctx, paymentReference)
	if err != nil {
		return false, err
	}
	return tx != nil, nil
}

// CommitPurchase posts the credit with the payment reference as the Formance
// transaction reference. A reference conflict maps to
// store.ErrPaymentAlreadyProcessed.
func (s *Service) CommitPurchase(ctx context.Context, params store.CommitPurchaseParams) (*models.Transaction, error) {
	if !params.TsuAmount.IsPositive() {
		return nil, fmt.Errorf("tsu amount must be positive, got %s", params.TsuAmount.String())
	}

	before, err := s.accountBalance(ctx, params.UserId, store.AssetTSU)
	if err != nil {
		return nil, err
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(params.PaymentReference),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptPurchase,
				Vars:  purchaseVars(params),
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrPaymentAlreadyProcessed, params.PaymentReference)
		}
		return nil, fmt.Errorf("error recording purchase: %w", err)
	}

	posted, err := s.findPurchase(ctx, params.PaymentReference)
	if err != nil {
		return nil, err
	}
	if posted == nil {
		return nil, fmt.Errorf("purchase %s not visible after commit", params.PaymentReference)
	}

	result := transactionFromLedger(*posted, params.UserId)
	result.BalanceBefore = before
	result.BalanceAfter = before.Add(params.TsuAmount)

	zap.L().Info("Purchase recorded in Formance",
		zap.String("user_id", params.UserId),
		zap.String("payment_reference", params.PaymentReference),
		zap.String("tsu_amount", params.TsuAmount.String()),
		zap.String("ledger_tx_id", result.Id))
	return &result, nil
}

func (s *Service) findPurchase(ctx context.Context, paymentReference string) (*shared.V2Transaction, error) {
	pageSize := int64(1)
	resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   s.ledger,
		PageSize: &pageSize,
		RequestBody: map[string]any{
			"$match": map[string]any{
				"metadata[payment_reference]": paymentReference,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment reference: %w", err)
	}
	if len(resp.V2TransactionsCursorResponse.Cursor.Data) == 0 {
		return nil, nil
	}
	tx := resp.V2TransactionsCursorResponse.Cursor.Data[0]
	return &tx, nil
}

// GetTransactionHistory returns the user's purchases, newest first.
func (s *Service) GetTransactionHistory(ctx context.Context, userId, asset string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	pageSize := int64(limit + offset)

	resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   s.ledger,
		PageSize: &pageSize,
		RequestBody: map[string]any{
			"$match": map[string]any{"destination": userAccount(userId)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var result []models.Transaction
	skipped := 0
	for _, tx := range resp.V2TransactionsCursorResponse.Cursor.Data {
		if tx.Metadata["event_type"] != purchaseEventType {
			continue
		}
		row := transactionFromLedger(tx, userId)
		if row.Asset != asset {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, row)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// transactionFromLedger maps a Formance purchase transaction to the journal shape.
func transactionFromLedger(tx shared.V2Transaction, userId string) models.Transaction {
	row := models.Transaction{
		Id:               fmt.Sprintf("%d", tx.ID),
		UserId:           userId,
		Asset:            store.AssetTSU,
		TransactionType:  "purchase",
		PaymentReference: tx.Metadata["payment_reference"],
		PaymentMethod:    tx.Metadata["payment_method"],
		Currency:         tx.Metadata["currency"],
		Status:           "confirmed",
		CreatedAt:        tx.Timestamp,
		ProcessedAt:      tx.Timestamp,
	}
	if tx.Reference != nil && row.PaymentReference == "" {
		row.PaymentReference = *tx.Reference
	}
	if fiat, err := decimal.NewFromString(tx.Metadata["fiat_amount"]); err == nil {
		row.FiatAmount = fiat
	}

	destination := userAccount(userId)
	for _, p := range tx.Postings {
		if p.Destination != destination {
			continue
		}
		symbol := assetSymbol(p.Asset)
		row.Asset = symbol
		row.Amount = row.Amount.Add(bigIntToDecimal(p.Amount, symbol))
	}
	return row
}
