package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/shopspring/decimal"
)

func purchaseParams(userId, reference string, tsu string) store.CommitPurchaseParams {
	return store.CommitPurchaseParams{
		UserId:           userId,
		PaymentReference: reference,
		PaymentMethod:    models.PaymentMethodEthereum,
		FiatAmount:       decimal.RequireFromString("100"),
		Currency:         "USD",
		TsuAmount:        decimal.RequireFromString(tsu),
		VerificationData: json.RawMessage(`{"confirmations":5}`),
	}
}

func TestCommitPurchase_CreditsBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "user1@example.com")

	tx, err := service.CommitPurchase(ctx, purchaseParams("user1", "0xabc", "97.5"))
	if err != nil {
		t.Fatalf("CommitPurchase failed: %v", err)
	}

	if tx.TransactionType != "purchase" {
		t.Errorf("Expected type purchase, got %s", tx.TransactionType)
	}
	if tx.Asset != store.AssetTSU {
		t.Errorf("Expected asset %s, got %s", store.AssetTSU, tx.Asset)
	}
	if !tx.BalanceAfter.Equal(decimal.RequireFromString("97.5")) {
		t.Errorf("Expected balance after 97.5, got %s", tx.BalanceAfter.String())
	}

	balance, err := service.GetUserBalance(ctx, "user1", store.AssetTSU)
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("97.5")) {
		t.Errorf("Expected balance 97.5, got %s", balance.String())
	}

	processed, err := service.IsPaymentProcessed(ctx, "0xabc")
	if err != nil {
		t.Fatalf("IsPaymentProcessed failed: %v", err)
	}
	if !processed {
		t.Error("Expected reference to be marked processed")
	}

	payment, err := service.GetProcessedPayment(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetProcessedPayment failed: %v", err)
	}
	if payment.PaymentMethod != models.PaymentMethodEthereum {
		t.Errorf("Expected method ethereum, got %s", payment.PaymentMethod)
	}
	if !payment.TsuCredited.Equal(decimal.RequireFromString("97.5")) {
		t.Errorf("Expected tsu credited 97.5, got %s", payment.TsuCredited.String())
	}
	if string(payment.VerificationData) != `{"confirmations":5}` {
		t.Errorf("Unexpected verification data: %s", payment.VerificationData)
	}
}

func TestCommitPurchase_ReplayRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "user1@example.com")
	createTestUser(t, service, "user2", "user2@example.com")

	if _, err := service.CommitPurchase(ctx, purchaseParams("user1", "0xabc", "10")); err != nil {
		t.Fatalf("First CommitPurchase failed: %v", err)
	}

	// Same reference from a different user must not credit anyone
	_, err := service.CommitPurchase(ctx, purchaseParams("user2", "0xabc", "10"))
	if !errors.Is(err, store.ErrPaymentAlreadyProcessed) {
		t.Fatalf("Expected ErrPaymentAlreadyProcessed, got %v", err)
	}

	balance1, _ := service.GetUserBalance(ctx, "user1", store.AssetTSU)
	balance2, _ := service.GetUserBalance(ctx, "user2", store.AssetTSU)
	if !balance1.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected user1 balance 10, got %s", balance1.String())
	}
	if !balance2.IsZero() {
		t.Errorf("Expected user2 balance 0, got %s", balance2.String())
	}

	history, err := service.GetTransactionHistory(ctx, "user2", store.AssetTSU, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no transactions for user2, got %d", len(history))
	}
}

func TestCommitPurchase_ConcurrentSameReference(t *testing.T) {
	service, cleanup := setupFileTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "user1@example.com")

	const attempts = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := service.CommitPurchase(ctx, purchaseParams("user1", "0xrace", "5"))
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var successes, replays int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrPaymentAlreadyProcessed):
			replays++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("Expected exactly 1 successful commit, got %d", successes)
	}
	if replays != attempts-1 {
		t.Errorf("Expected %d replays, got %d", attempts-1, replays)
	}

	balance, _ := service.GetUserBalance(ctx, "user1", store.AssetTSU)
	if !balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected balance 5, got %s", balance.String())
	}
}

func TestCommitPurchase_ConcurrentDistinctReferences(t *testing.T) {
	service, cleanup := setupFileTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "user1@example.com")

	const attempts = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := service.CommitPurchase(ctx, purchaseParams("user1", fmt.Sprintf("0xparallel-%d", i), "5"))
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	balance, _ := service.GetUserBalance(ctx, "user1", store.AssetTSU)
	if !balance.Equal(decimal.NewFromInt(5 * attempts)) {
		t.Errorf("Expected balance %d, got %s", 5*attempts, balance.String())
	}

	history, err := service.GetTransactionHistory(ctx, "user1", store.AssetTSU, 100, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != attempts {
		t.Errorf("Expected %d transactions, got %d", attempts, len(history))
	}
}

func TestCommitPurchase_InvalidParams(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.CommitPurchase(ctx, purchaseParams("user1", "", "5")); err == nil {
		t.Error("Expected error for empty reference")
	}
	if _, err := service.CommitPurchase(ctx, purchaseParams("user1", "0xzero", "0")); err == nil {
		t.Error("Expected error for zero tsu amount")
	}

	processed, _ := service.IsPaymentProcessed(ctx, "0xzero")
	if processed {
		t.Error("Rejected commit must not mark the reference processed")
	}
}

func TestIsPaymentProcessed_Unknown(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	processed, err := service.IsPaymentProcessed(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("IsPaymentProcessed failed: %v", err)
	}
	if processed {
		t.Error("Expected unknown reference to be unprocessed")
	}
}
