package database

import (
	"context"
	"testing"

	"tsu-payments-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestGetUserBalance_NoBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	balance, err := service.GetUserBalance(context.Background(), "user1", store.AssetTSU)
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}

	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0, got %s", balance.String())
	}
}

func TestGetAllUserBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "user1@example.com")

	if _, err := service.CommitPurchase(ctx, purchaseParams("user1", "r1", "12.5")); err != nil {
		t.Fatalf("CommitPurchase failed: %v", err)
	}

	balances, err := service.GetAllUserBalances(ctx, "user1")
	if err != nil {
		t.Fatalf("GetAllUserBalances failed: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("Expected 1 balance, got %d", len(balances))
	}
	if balances[0].Asset != store.AssetTSU || !balances[0].Balance.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Unexpected balance row: %+v", balances[0])
	}
	if balances[0].Version != 2 {
		t.Errorf("Expected version 2 after one credit, got %d", balances[0].Version)
	}
}

func TestReconcileUserBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "user1@example.com")

	for _, ref := range []string{"r1", "r2", "r3"} {
		if _, err := service.CommitPurchase(ctx, purchaseParams("user1", ref, "0.33333333")); err != nil {
			t.Fatalf("CommitPurchase %s failed: %v", ref, err)
		}
	}

	if err := service.ReconcileUserBalance(ctx, "user1", store.AssetTSU); err != nil {
		t.Fatalf("Expected balances to reconcile, got %v", err)
	}

	// Tamper with the hot balance and expect a mismatch
	if _, err := service.db.Exec("UPDATE account_balances SET balance = '1' WHERE user_id = 'user1'"); err != nil {
		t.Fatalf("Failed to tamper balance: %v", err)
	}
	if err := service.ReconcileUserBalance(ctx, "user1", store.AssetTSU); err == nil {
		t.Error("Expected reconciliation mismatch after tampering")
	}
}
