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

package store

import (
	"context"
	"encoding/json"
	"errors"

	"tsu-payments-go/internal/models"

	"github.com/shopspring/decimal"
)

// AssetTSU is the ledger asset credited by purchases.
const AssetTSU = "TSU"

// Sentinel errors shared by every backend.
var (
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrDuplicateTransaction    = errors.New("duplicate transaction")
	ErrConcurrentModification  = errors.New("concurrent modification detected")
	ErrUserNotFound            = errors.New("user not found")
	ErrRatesUnavailable        = errors.New("no active tsu rates")
	ErrTreasuryNotConfigured   = errors.New("treasury address not configured")
)

// CommitPurchaseParams carries everything needed to credit a verified purchase.
type CommitPurchaseParams struct {
	UserId           string
	PaymentReference string
	PaymentMethod    models.PaymentMethod
	FiatAmount       decimal.Decimal
	Currency         string
	TsuAmount        decimal.Decimal
	VerificationData json.RawMessage
}

// UserStore reads users and their verified chain addresses.
type UserStore interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
}

// RateStore reads the latest active rate snapshot.
type RateStore interface {
	GetTsuRates(ctx context.Context) (*models.TsuRate, error)
}

// TreasuryStore resolves the platform recipient address per payment method.
type TreasuryStore interface {
	GetTreasuryAddress(ctx context.Context, method models.PaymentMethod) (string, error)
}

// PurchaseLedger is the replay guard and balance ledger. CommitPurchase must
// record the processed payment, the balance credit and the transaction as one
// atomic unit, returning ErrPaymentAlreadyProcessed when the reference exists.
type PurchaseLedger interface {
	IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error)
	CommitPurchase(ctx context.Context, params CommitPurchaseParams) (*models.Transaction, error)
	GetUserBalance(ctx context.Context, userId, asset string) (decimal.Decimal, error)
	GetTransactionHistory(ctx context.Context, userId, asset string, limit, offset int) ([]models.Transaction, error)
	ReconcileUserBalance(ctx context.Context, userId, asset string) error
	Close()
}
