/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tsu-payments-go/internal/database"
	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"
	"tsu-payments-go/internal/verifier"

	"github.com/shopspring/decimal"
)

const (
	testTreasuryEth = "0xABCD000000000000000000000000000000000001"
	testTreasuryBtc = "bc1qtreasury"
	testSenderEth   = "0x1111111111111111111111111111111111111111"
	testSenderBtc   = "bc1qsender"
	testEthHash     = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
)

type fakeEthVerifier struct {
	configured bool
	result     *verifier.Result
	err        error
	calls      []verifier.EthereumParams
}

func (f *fakeEthVerifier) Configured() bool { return f.configured }

func (f *fakeEthVerifier) Verify(_ context.Context, params verifier.EthereumParams) (*verifier.Result, error) {
	f.calls = append(f.calls, params)
	return f.result, f.err
}

type fakeBtcVerifier struct {
	configured bool
	result     *verifier.Result
	calls      []verifier.BitcoinParams
}

func (f *fakeBtcVerifier) Configured() bool { return f.configured }

func (f *fakeBtcVerifier) Verify(_ context.Context, params verifier.BitcoinParams) (*verifier.Result, error) {
	f.calls = append(f.calls, params)
	return f.result, nil
}

type countingRecorder struct {
	outcomes map[string]int
}

func (c *countingRecorder) ObservePurchase(method, stage, outcome string) {
	c.outcomes[method+"/"+stage+"/"+outcome]++
}

type testEnv struct {
	service  *PurchaseService
	db       *database.Service
	eth      *fakeEthVerifier
	btc      *fakeBtcVerifier
	recorder *countingRecorder
}

func setupPurchaseService(t *testing.T, settings PurchaseSettings) (*testEnv, func()) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "purchases.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetTreasuryOverrides(models.TreasuryConfig{EthAddress: testTreasuryEth, BtcAddress: testTreasuryBtc})

	if _, err := db.SetTsuRates(ctx, decimal.NewFromFloat(0.5), map[string]decimal.Decimal{
		"ETH": decimal.NewFromInt(2500),
		"BTC": decimal.NewFromInt(40000),
	}); err != nil {
		t.Fatalf("SetTsuRates failed: %v", err)
	}

	env := &testEnv{
		db:       db,
		eth:      &fakeEthVerifier{configured: true, result: &verifier.Result{Verified: true, Confirmations: 5}},
		btc:      &fakeBtcVerifier{configured: true, result: &verifier.Result{Verified: true, Confirmations: 4}},
		recorder: &countingRecorder{outcomes: make(map[string]int)},
	}
	env.service, err = NewPurchaseService(Dependencies{
		Users:    db,
		Rates:    db,
		Treasury: db,
		Ledger:   db,
		Ethereum: env.eth,
		Bitcoin:  env.btc,
		Health:   db,
		Recorder: env.recorder,
	}, settings)
	if err != nil {
		t.Fatalf("NewPurchaseService failed: %v", err)
	}

	return env, db.Close
}

func createVerifiedUser(t *testing.T, db *database.Service, id string, eth, btc string) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.CreateUser(ctx, id, "Buyer "+id, id+"@example.com"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if eth != "" {
		if err := db.SetVerifiedAddress(ctx, id, models.PaymentMethodEthereum, eth); err != nil {
			t.Fatalf("SetVerifiedAddress failed: %v", err)
		}
	}
	if btc != "" {
		if err := db.SetVerifiedAddress(ctx, id, models.PaymentMethodBitcoin, btc); err != nil {
			t.Fatalf("SetVerifiedAddress failed: %v", err)
		}
	}
}

func ethRequest(amount, reference string) models.PurchaseRequest {
	return models.PurchaseRequest{
		Amount:           amount,
		Currency:         "USD",
		PaymentMethod:    "ethereum",
		PaymentReference: reference,
	}
}

func expectRejection(t *testing.T, err error, status int, stage Stage) *Rejection {
	t.Helper()
	var rejection *Rejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *Rejection, got %v", err)
	}
	if rejection.Status != status {
		t.Errorf("expected status %d, got %d (%s)", status, rejection.Status, rejection.Error())
	}
	if rejection.Stage != stage {
		t.Errorf("expected stage %s, got %s", stage, rejection.Stage)
	}
	return rejection
}

func TestProcessPurchase_EthereumCredits(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, "")

	result, err := env.service.ProcessPurchase(context.Background(), "user-1", ethRequest("100", testEthHash))
	if err != nil {
		t.Fatalf("ProcessPurchase failed: %v", err)
	}

	// 100 USD less 2.5% at 0.5 USD per TSU
	if !result.TsuAmount.Equal(decimal.NewFromInt(195)) {
		t.Errorf("expected 195 TSU, got %s", result.TsuAmount)
	}
	if !result.NewBalance.Equal(decimal.NewFromInt(195)) {
		t.Errorf("expected new balance 195, got %s", result.NewBalance)
	}
	if result.Transaction.PaymentReference != testEthHash {
		t.Errorf("expected reference on transaction, got %q", result.Transaction.PaymentReference)
	}

	if len(env.eth.calls) != 1 {
		t.Fatalf("expected one verification, got %d", len(env.eth.calls))
	}
	call := env.eth.calls[0]
	if call.ExpectedAmountWei != "40000000000000000" {
		t.Errorf("expected 0.04 ETH in wei, got %s", call.ExpectedAmountWei)
	}
	if call.ExpectedSender != testSenderEth || call.ExpectedRecipient != testTreasuryEth {
		t.Errorf("unexpected verification params: %+v", call)
	}
	if call.MinConfirmations != verifier.DefaultMinConfirmations {
		t.Errorf("expected default min confirmations, got %d", call.MinConfirmations)
	}

	processed, err := env.db.GetProcessedPayment(context.Background(), testEthHash)
	if err != nil {
		t.Fatalf("GetProcessedPayment failed: %v", err)
	}
	if processed.UserId != "user-1" || !processed.TsuCredited.Equal(decimal.NewFromInt(195)) {
		t.Errorf("unexpected processed payment: %+v", processed)
	}
	if env.recorder.outcomes["ethereum/credit/credited"] != 1 {
		t.Errorf("expected credited outcome to be recorded, got %v", env.recorder.outcomes)
	}
}

func TestProcessPurchase_ReplayIsRejected(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	ctx := context.Background()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, "")
	createVerifiedUser(t, env.db, "user-2", testSenderEth, "")

	if _, err := env.service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash)); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	_, err := env.service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash))
	expectRejection(t, err, http.StatusConflict, StageReplayCheck)

	// Another account cannot claim the same payment
	_, err = env.service.ProcessPurchase(ctx, "user-2", ethRequest("100", testEthHash))
	expectRejection(t, err, http.StatusConflict, StageReplayCheck)

	// The replay check runs before method validation
	req := ethRequest("100", testEthHash)
	req.PaymentMethod = "dogecoin"
	_, err = env.service.ProcessPurchase(ctx, "user-1", req)
	expectRejection(t, err, http.StatusConflict, StageReplayCheck)

	if len(env.eth.calls) != 1 {
		t.Errorf("expected a single verification, got %d", len(env.eth.calls))
	}
	balance, _ := env.service.GetUserBalance(ctx, "user-1")
	if !balance.Equal(decimal.NewFromInt(195)) {
		t.Errorf("expected balance 195 after replays, got %s", balance)
	}
	balance, _ = env.service.GetUserBalance(ctx, "user-2")
	if !balance.IsZero() {
		t.Errorf("expected user-2 balance 0, got %s", balance)
	}
}

func TestProcessPurchase_UnverifiedWalletMakesNoChainCall(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	createVerifiedUser(t, env.db, "user-1", "", testSenderBtc)

	_, err := env.service.ProcessPurchase(context.Background(), "user-1", ethRequest("100", testEthHash))
	rejection := expectRejection(t, err, http.StatusBadRequest, StageMethodDispatch)
	if rejection.Message != "Wallet not verified" {
		t.Errorf("unexpected message %q", rejection.Message)
	}
	if len(env.eth.calls) != 0 {
		t.Errorf("expected no chain calls, got %d", len(env.eth.calls))
	}
}

func TestProcessPurchase_UnsupportedMethodListsSupported(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, "")

	req := ethRequest("100", "")
	req.PaymentMethod = "dogecoin"
	_, err := env.service.ProcessPurchase(context.Background(), "user-1", req)
	rejection := expectRejection(t, err, http.StatusBadRequest, StageValidate)
	if !strings.Contains(rejection.Reason, "ethereum, bitcoin, paypal") {
		t.Errorf("expected supported methods in reason, got %q", rejection.Reason)
	}
}

func TestProcessPurchase_InputErrors(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, "")
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.PurchaseRequest)
		status int
		stage  Stage
	}{
		{"zero amount", func(r *models.PurchaseRequest) { r.Amount = "0" }, http.StatusBadRequest, StageValidate},
		{"malformed amount", func(r *models.PurchaseRequest) { r.Amount = "ten" }, http.StatusBadRequest, StageValidate},
		{"other currency", func(r *models.PurchaseRequest) { r.Currency = "EUR" }, http.StatusBadRequest, StageValidate},
		{"missing reference", func(r *models.PurchaseRequest) { r.PaymentReference = "" }, http.StatusBadRequest, StageMethodDispatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ethRequest("100", testEthHash)
			tt.mutate(&req)
			_, err := env.service.ProcessPurchase(ctx, "user-1", req)
			expectRejection(t, err, tt.status, tt.stage)
		})
	}

	_, err := env.service.ProcessPurchase(ctx, "missing-user", ethRequest("100", testEthHash))
	expectRejection(t, err, http.StatusNotFound, StageValidate)

	if len(env.eth.calls) != 0 {
		t.Errorf("expected no chain calls for input errors, got %d", len(env.eth.calls))
	}
}

func TestProcessPurchase_VerificationFailure(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	ctx := context.Background()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, "")
	env.eth.result = &verifier.Result{Code: verifier.CodeInsufficientConfirmations, Error: "Insufficient confirmations (2/3)", Confirmations: 2}

	_, err := env.service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash))
	rejection := expectRejection(t, err, http.StatusBadRequest, StageVerify)
	if rejection.Reason != "Insufficient confirmations (2/3)" {
		t.Errorf("expected verifier reason to be surfaced, got %q", rejection.Reason)
	}

	processed, err := env.db.IsPaymentProcessed(ctx, testEthHash)
	if err != nil || processed {
		t.Errorf("expected reference to stay unconsumed, got processed=%v err=%v", processed, err)
	}

	// The same reference succeeds once the transaction is deep enough
	env.eth.result = &verifier.Result{Verified: true, Confirmations: 3}
	if _, err := env.service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash)); err != nil {
		t.Errorf("expected resubmission to succeed, got %v", err)
	}
}

func TestProcessPurchase_ProviderPreconditions(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	ctx := context.Background()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, testSenderBtc)

	env.eth.configured = false
	_, err := env.service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash))
	expectRejection(t, err, http.StatusServiceUnavailable, StageMethodDispatch)
	if len(env.eth.calls) != 0 {
		t.Errorf("expected no chain calls, got %d", len(env.eth.calls))
	}

	env.eth.configured = true
	env.eth.err = verifier.ErrNotConfigured
	_, err = env.service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash))
	expectRejection(t, err, http.StatusServiceUnavailable, StageMethodDispatch)
}

func TestProcessPurchase_BitcoinExpectedSats(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{BtcMinConfirmations: 6})
	defer cleanup()
	createVerifiedUser(t, env.db, "user-1", "", testSenderBtc)

	req := models.PurchaseRequest{Amount: "100", Currency: "usd", PaymentMethod: "Bitcoin", PaymentReference: "btc-tx-1"}
	if _, err := env.service.ProcessPurchase(context.Background(), "user-1", req); err != nil {
		t.Fatalf("ProcessPurchase failed: %v", err)
	}

	if len(env.btc.calls) != 1 {
		t.Fatalf("expected one verification, got %d", len(env.btc.calls))
	}
	call := env.btc.calls[0]
	if call.ExpectedSats != 250000 {
		t.Errorf("expected 250000 sats, got %d", call.ExpectedSats)
	}
	if call.ExpectedSender != testSenderBtc || call.ExpectedRecipient != testTreasuryBtc {
		t.Errorf("unexpected verification params: %+v", call)
	}
	if call.MinConfirmations != 6 {
		t.Errorf("expected configured min confirmations, got %d", call.MinConfirmations)
	}
}

func TestProcessPurchase_BitcoinAmountOutOfRange(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	ctx := context.Background()
	createVerifiedUser(t, env.db, "user-1", "", testSenderBtc)

	req := models.PurchaseRequest{Amount: "7378697629483860.6464", PaymentMethod: "bitcoin", PaymentReference: "btc-tx-huge"}
	_, err := env.service.ProcessPurchase(ctx, "user-1", req)
	rejection := expectRejection(t, err, http.StatusBadRequest, StageValidate)
	if rejection.Message != "Invalid amount" {
		t.Errorf("expected Invalid amount, got %q", rejection.Message)
	}

	if _, err := env.db.SetTsuRates(ctx, decimal.NewFromInt(1), map[string]decimal.Decimal{
		"BTC": decimal.RequireFromString("0.000000001"),
	}); err != nil {
		t.Fatalf("SetTsuRates failed: %v", err)
	}
	req = models.PurchaseRequest{Amount: "1000000", PaymentMethod: "bitcoin", PaymentReference: "btc-tx-cheap"}
	_, err = env.service.ProcessPurchase(ctx, "user-1", req)
	rejection = expectRejection(t, err, http.StatusBadRequest, StageValidate)
	if rejection.Message != "Invalid amount" {
		t.Errorf("expected Invalid amount, got %q", rejection.Message)
	}

	if len(env.btc.calls) != 0 {
		t.Errorf("expected no verification, got %d", len(env.btc.calls))
	}
	balance, _ := env.service.GetUserBalance(ctx, "user-1")
	if !balance.IsZero() {
		t.Errorf("expected balance 0, got %s", balance)
	}
}

func TestProcessPurchase_FallbackPrice(t *testing.T) {
	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	ctx := context.Background()
	createVerifiedUser(t, env.db, "user-1", testSenderEth, "")

	if _, err := env.db.SetTsuRates(ctx, decimal.NewFromInt(1), map[string]decimal.Decimal{}); err != nil {
		t.Fatalf("SetTsuRates failed: %v", err)
	}

	if _, err := env.service.ProcessPurchase(ctx, "user-1", ethRequest("50", testEthHash)); err != nil {
		t.Fatalf("ProcessPurchase failed: %v", err)
	}
	// 50 USD at the 2000 USD fallback
	if got := env.eth.calls[0].ExpectedAmountWei; got != "25000000000000000" {
		t.Errorf("expected 0.025 ETH in wei, got %s", got)
	}
}

func TestProcessPurchase_PayPal(t *testing.T) {
	ctx := context.Background()

	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	createVerifiedUser(t, env.db, "user-1", "", "")
	req := models.PurchaseRequest{Amount: "20", Currency: "USD", PaymentMethod: "paypal", PaymentReference: "PAYPAL-ORDER-1"}
	_, err := env.service.ProcessPurchase(ctx, "user-1", req)
	expectRejection(t, err, http.StatusServiceUnavailable, StageMethodDispatch)
	cleanup()

	env, cleanup = setupPurchaseService(t, PurchaseSettings{PayPalConfigured: true})
	defer cleanup()
	createVerifiedUser(t, env.db, "user-1", "", "")

	noRef := req
	noRef.PaymentReference = ""
	_, err = env.service.ProcessPurchase(ctx, "user-1", noRef)
	expectRejection(t, err, http.StatusBadRequest, StageMethodDispatch)

	result, err := env.service.ProcessPurchase(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("ProcessPurchase failed: %v", err)
	}
	if !result.TsuAmount.Equal(decimal.NewFromInt(39)) {
		t.Errorf("expected 39 TSU, got %s", result.TsuAmount)
	}
	if len(env.eth.calls)+len(env.btc.calls) != 0 {
		t.Error("expected no chain verification for paypal")
	}
}

func TestProcessPurchase_RatesUnavailable(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "norates.db"),
		MaxOpenConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()
	createVerifiedUser(t, db, "user-1", testSenderEth, "")

	service, err := NewPurchaseService(Dependencies{
		Users:    db,
		Rates:    db,
		Treasury: db,
		Ledger:   db,
		Ethereum: &fakeEthVerifier{configured: true},
		Bitcoin:  &fakeBtcVerifier{configured: true},
	}, PurchaseSettings{})
	if err != nil {
		t.Fatalf("NewPurchaseService failed: %v", err)
	}

	_, err = service.ProcessPurchase(ctx, "user-1", ethRequest("100", testEthHash))
	expectRejection(t, err, http.StatusServiceUnavailable, StageRateLookup)
}

func TestNewPurchaseService_Validation(t *testing.T) {
	if _, err := NewPurchaseService(Dependencies{}, PurchaseSettings{}); err == nil {
		t.Error("expected error for missing dependencies")
	}

	env, cleanup := setupPurchaseService(t, PurchaseSettings{})
	defer cleanup()
	deps := env.service.deps
	if _, err := NewPurchaseService(deps, PurchaseSettings{FeeRate: decimal.NewFromInt(1)}); err == nil {
		t.Error("expected error for a 100% fee")
	}
	if err := env.service.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestRejectionUnwrap(t *testing.T) {
	cause := store.ErrConcurrentModification
	rejection := internalError(StageCredit, cause)
	if !errors.Is(rejection, store.ErrConcurrentModification) {
		t.Error("expected rejection to unwrap to its cause")
	}
	if rejection.Status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rejection.Status)
	}
}
