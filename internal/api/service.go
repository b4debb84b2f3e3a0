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
	"fmt"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"
	"tsu-payments-go/internal/verifier"

	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the processing fee withheld from every purchase
var DefaultFeeRate = decimal.RequireFromString("0.025")

// EthereumVerifier checks an Ethereum payment on chain
type EthereumVerifier interface {
	Configured() bool
	Verify(ctx context.Context, params verifier.EthereumParams) (*verifier.Result, error)
}

// BitcoinVerifier checks a Bitcoin payment on chain
type BitcoinVerifier interface {
	Configured() bool
	Verify(ctx context.Context, params verifier.BitcoinParams) (*verifier.Result, error)
}

// PurchaseRecorder counts finished purchases
type PurchaseRecorder interface {
	ObservePurchase(method, stage, outcome string)
}

// Pinger reports store liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// PurchaseSettings tunes the purchase flow
type PurchaseSettings struct {
	FeeRate             decimal.Decimal
	Currency            string
	EthMinConfirmations int64
	BtcMinConfirmations int64
	PayPalConfigured    bool
}

// Dependencies are the collaborators of PurchaseService. Recorder may be nil.
type Dependencies struct {
	Users    store.UserStore
	Rates    store.RateStore
	Treasury store.TreasuryStore
	Ledger   store.PurchaseLedger
	Ethereum EthereumVerifier
	Bitcoin  BitcoinVerifier
	Health   Pinger
	Recorder PurchaseRecorder
}

// PurchaseService sequences replay check, verification and credit
type PurchaseService struct {
	deps     Dependencies
	settings PurchaseSettings
}

func NewPurchaseService(deps Dependencies, settings PurchaseSettings) (*PurchaseService, error) {
	if deps.Users == nil || deps.Rates == nil || deps.Treasury == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("users, rates, treasury and ledger stores are required")
	}
	if deps.Ethereum == nil || deps.Bitcoin == nil {
		return nil, fmt.Errorf("ethereum and bitcoin verifiers are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if !settings.FeeRate.IsPositive() {
		settings.FeeRate = DefaultFeeRate
	}
	if settings.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fee rate must be below 1, got %s", settings.FeeRate)
	}
	if settings.Currency == "" {
		settings.Currency = defaultCurrency
	}
	if settings.EthMinConfirmations <= 0 {
		settings.EthMinConfirmations = verifier.DefaultMinConfirmations
	}
	if settings.BtcMinConfirmations <= 0 {
		settings.BtcMinConfirmations = verifier.DefaultMinConfirmations
	}
	return &PurchaseService{deps: deps, settings: settings}, nil
}

func (s *PurchaseService) HealthCheck(ctx context.Context) error {
	if s.deps.Health == nil {
		return nil
	}
	if err := s.deps.Health.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// SupportedMethods lists payment methods in request order
func (s *PurchaseService) SupportedMethods() []models.PaymentMethod {
	return models.SupportedPaymentMethods
}

type noopRecorder struct{}

func (noopRecorder) ObservePurchase(string, string, string) {}
