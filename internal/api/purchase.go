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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"
	"tsu-payments-go/internal/verifier"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// purchase carries the validated request through the stages
type purchase struct {
	userId    string
	method    models.PaymentMethod
	amount    decimal.Decimal
	currency  string
	reference string
	user      *models.User
	rate      *models.TsuRate
}

// ProcessPurchase verifies a payment and credits TSU exactly once. Every
// failure is returned as a *Rejection and leaves balances untouched.
func (s *PurchaseService) ProcessPurchase(ctx context.Context, userId string, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))

	zap.L().Info("Processing purchase",
		zap.String("user_id", userId),
		zap.String("payment_method", method),
		zap.String("amount", req.Amount),
		zap.String("payment_reference", req.PaymentReference))

	result, rejection := s.processPurchase(ctx, userId, req)
	if rejection != nil {
		s.deps.Recorder.ObservePurchase(method, string(rejection.Stage), "rejected")
		if rejection.Status >= http.StatusInternalServerError {
			zap.L().Error("Purchase failed",
				zap.String("user_id", userId),
				zap.String("stage", string(rejection.Stage)),
				zap.String("message", rejection.Message),
				zap.Error(rejection.Err))
		} else {
			zap.L().Warn("Purchase rejected",
				zap.String("user_id", userId),
				zap.String("stage", string(rejection.Stage)),
				zap.Int("status", rejection.Status),
				zap.String("message", rejection.Message),
				zap.String("reason", rejection.Reason))
		}
		return nil, rejection
	}

	s.deps.Recorder.ObservePurchase(method, string(StageCredit), "credited")
	zap.L().Info("Purchase credited",
		zap.String("user_id", userId),
		zap.String("payment_method", method),
		zap.String("payment_reference", result.Transaction.PaymentReference),
		zap.String("tsu_amount", result.TsuAmount.String()),
		zap.String("new_balance", result.NewBalance.String()))
	return result, nil
}

func (s *PurchaseService) processPurchase(ctx context.Context, userId string, req models.PurchaseRequest) (*models.PurchaseResult, *Rejection) {
	reference := strings.TrimSpace(req.PaymentReference)

	// Replay check runs before any validation so a resubmitted reference is
	// always answered with 409.
	if reference != "" {
		processed, err := s.deps.Ledger.IsPaymentProcessed(ctx, reference)
		if err != nil {
			return nil, internalError(StageReplayCheck, fmt.Errorf("replay check: %w", err))
		}
		if processed {
			return nil, alreadyProcessed(StageReplayCheck, reference)
		}
	}

	p, rejection := s.validate(ctx, userId, req, reference)
	if rejection != nil {
		return nil, rejection
	}

	rate, err := s.deps.Rates.GetTsuRates(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRatesUnavailable) {
			return nil, reject(StageRateLookup, http.StatusServiceUnavailable, "Exchange rates unavailable", "")
		}
		return nil, internalError(StageRateLookup, fmt.Errorf("rate lookup: %w", err))
	}
	if !rate.TsuPrice.IsPositive() {
		return nil, reject(StageRateLookup, http.StatusServiceUnavailable, "Exchange rates unavailable", "")
	}
	p.rate = rate

	verificationData, rejection := s.dispatch(ctx, p)
	if rejection != nil {
		return nil, rejection
	}

	tsuAmount := tsuForAmount(p.amount, s.settings.FeeRate, rate.TsuPrice)
	tx, err := s.deps.Ledger.CommitPurchase(ctx, store.CommitPurchaseParams{
		UserId:           p.userId,
		PaymentReference: p.reference,
		PaymentMethod:    p.method,
		FiatAmount:       p.amount,
		Currency:         p.currency,
		TsuAmount:        tsuAmount,
		VerificationData: verificationData,
	})
	if err != nil {
		if errors.Is(err, store.ErrPaymentAlreadyProcessed) {
			return nil, alreadyProcessed(StageCredit, p.reference)
		}
		return nil, internalError(StageCredit, fmt.Errorf("commit purchase: %w", err))
	}

	return &models.PurchaseResult{
		Transaction: tx,
		NewBalance:  tx.BalanceAfter,
		TsuAmount:   tsuAmount,
	}, nil
}

func (s *PurchaseService) validate(ctx context.Context, userId string, req models.PurchaseRequest, reference string) (*purchase, *Rejection) {
	method := models.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !isSupported(method) {
		return nil, reject(StageValidate, http.StatusBadRequest, "Unsupported payment method",
			"supported methods: "+joinMethods(models.SupportedPaymentMethods))
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return nil, reject(StageValidate, http.StatusBadRequest, "Invalid amount",
			fmt.Sprintf("amount must be a positive decimal, got %q", req.Amount))
	}
	if amount.GreaterThan(maxPurchaseAmount) {
		return nil, reject(StageValidate, http.StatusBadRequest, "Invalid amount",
			fmt.Sprintf("amount must not exceed %s", maxPurchaseAmount.String()))
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.settings.Currency
	}
	if currency != s.settings.Currency {
		return nil, reject(StageValidate, http.StatusBadRequest, "Unsupported currency",
			"supported currency: "+s.settings.Currency)
	}

	if userId == "" {
		return nil, reject(StageValidate, http.StatusUnauthorized, "Authentication required", "")
	}
	user, err := s.deps.Users.GetUserById(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, reject(StageValidate, http.StatusNotFound, "User not found", "")
		}
		return nil, internalError(StageValidate, fmt.Errorf("user lookup: %w", err))
	}

	return &purchase{
		userId:    user.Id,
		method:    method,
		amount:    amount,
		currency:  currency,
		reference: reference,
		user:      user,
	}, nil
}

// dispatch proves payment for the method and returns the verification
// snapshot to persist alongside the credit.
func (s *PurchaseService) dispatch(ctx context.Context, p *purchase) (json.RawMessage, *Rejection) {
	if p.method == models.PaymentMethodPayPal {
		return s.confirmPayPal(p)
	}

	if p.reference == "" {
		return nil, reject(StageMethodDispatch, http.StatusBadRequest, "Payment reference required",
			"submit the transaction hash of your payment")
	}

	sender := p.user.VerifiedAddress(p.method)
	if sender == "" {
		return nil, reject(StageMethodDispatch, http.StatusBadRequest, "Wallet not verified",
			fmt.Sprintf("verify your %s wallet before purchasing", p.method))
	}

	if !s.chainConfigured(p.method) {
		return nil, notConfigured(p.method)
	}

	recipient, err := s.deps.Treasury.GetTreasuryAddress(ctx, p.method)
	if err != nil {
		if errors.Is(err, store.ErrTreasuryNotConfigured) {
			return nil, notConfigured(p.method)
		}
		return nil, internalError(StageMethodDispatch, fmt.Errorf("treasury lookup: %w", err))
	}

	price, _ := cryptoPrice(p.rate, p.method)

	var result *verifier.Result
	switch p.method {
	case models.PaymentMethodEthereum:
		result, err = s.deps.Ethereum.Verify(ctx, verifier.EthereumParams{
			TxHash:            p.reference,
			ExpectedRecipient: recipient,
			ExpectedAmountWei: expectedWei(p.amount, price),
			ExpectedSender:    sender,
			MinConfirmations:  s.settings.EthMinConfirmations,
		})
	case models.PaymentMethodBitcoin:
		sats, ok := expectedSats(p.amount, price)
		if !ok {
			return nil, reject(StageValidate, http.StatusBadRequest, "Invalid amount",
				"amount is too large to pay in bitcoin")
		}
		result, err = s.deps.Bitcoin.Verify(ctx, verifier.BitcoinParams{
			TxID:              p.reference,
			ExpectedRecipient: recipient,
			ExpectedSats:      sats,
			ExpectedSender:    sender,
			MinConfirmations:  s.settings.BtcMinConfirmations,
		})
	}
	if err != nil {
		switch {
		case errors.Is(err, verifier.ErrNotConfigured):
			return nil, notConfigured(p.method)
		case errors.Is(err, verifier.ErrInvalidParams):
			return nil, reject(StageVerify, http.StatusBadRequest, "Invalid amount", err.Error())
		default:
			return nil, internalError(StageVerify, err)
		}
	}

	if !result.Verified {
		return nil, reject(StageVerify, http.StatusBadRequest, "Payment verification failed", result.Error)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, internalError(StageVerify, fmt.Errorf("encode verification result: %w", err))
	}
	return data, nil
}

// confirmPayPal trusts a non-empty order id; capture happens upstream.
func (s *PurchaseService) confirmPayPal(p *purchase) (json.RawMessage, *Rejection) {
	if !s.settings.PayPalConfigured {
		return nil, reject(StageMethodDispatch, http.StatusServiceUnavailable, "PayPal is not configured", "")
	}
	if p.reference == "" {
		return nil, reject(StageMethodDispatch, http.StatusBadRequest, "Payment reference required",
			"submit the PayPal order id of your payment")
	}

	data, err := json.Marshal(map[string]string{
		"provider": string(models.PaymentMethodPayPal),
		"orderId":  p.reference,
	})
	if err != nil {
		return nil, internalError(StageMethodDispatch, fmt.Errorf("encode paypal confirmation: %w", err))
	}
	return data, nil
}

func (s *PurchaseService) chainConfigured(method models.PaymentMethod) bool {
	switch method {
	case models.PaymentMethodEthereum:
		return s.deps.Ethereum.Configured()
	case models.PaymentMethodBitcoin:
		return s.deps.Bitcoin.Configured()
	}
	return false
}

func alreadyProcessed(stage Stage, reference string) *Rejection {
	return reject(stage, http.StatusConflict, "Payment already processed",
		fmt.Sprintf("payment reference %s has already been credited", reference))
}

func notConfigured(method models.PaymentMethod) *Rejection {
	return reject(StageMethodDispatch, http.StatusServiceUnavailable,
		fmt.Sprintf("%s payments are not available", method.Symbol()), "")
}

func isSupported(method models.PaymentMethod) bool {
	for _, m := range models.SupportedPaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

func joinMethods(methods []models.PaymentMethod) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
