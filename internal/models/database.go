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

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system
type User struct {
	Id                 string    `db:"id"`
	Name               string    `db:"name"`
	Email              string    `db:"email"`
	VerifiedEthAddress string    `db:"verified_eth_address"`
	VerifiedBtcAddress string    `db:"verified_btc_address"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// VerifiedAddress returns the proven-owned address for a chain method, or ""
func (u *User) VerifiedAddress(method PaymentMethod) string {
	switch method {
	case PaymentMethodEthereum:
		return u.VerifiedEthAddress
	case PaymentMethodBitcoin:
		return u.VerifiedBtcAddress
	}
	return ""
}

// TsuRate is a row of the tsu_rates table
type TsuRate struct {
	Id          string                     `db:"id"`
	TsuPrice    decimal.Decimal            `db:"tsu_price"`
	CryptoRates map[string]decimal.Decimal `db:"crypto_rates"`
	Active      bool                       `db:"active"`
	CreatedAt   time.Time                  `db:"created_at"`
}

// TreasuryAddress is the platform-owned recipient for a payment method
type TreasuryAddress struct {
	Method    PaymentMethod `db:"method"`
	Address   string        `db:"address"`
	WalletId  string        `db:"wallet_id"`
	CreatedAt time.Time     `db:"created_at"`
}

// ProcessedPayment is the immutable replay-guard record of a credited purchase
type ProcessedPayment struct {
	PaymentReference string          `db:"payment_reference"`
	PaymentMethod    PaymentMethod   `db:"payment_method"`
	UserId           string          `db:"user_id"`
	AmountProcessed  decimal.Decimal `db:"amount_processed"`
	TsuCredited      decimal.Decimal `db:"tsu_credited"`
	VerificationData json.RawMessage `db:"verification_data"`
	CreatedAt        time.Time       `db:"created_at"`
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Asset             string          `db:"asset"`
	Balance           decimal.Decimal `db:"balance"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Transaction represents immutable transaction history (cold data)
type Transaction struct {
	Id               string          `db:"id" json:"id"`
	UserId           string          `db:"user_id" json:"userId"`
	Asset            string          `db:"asset" json:"asset"`
	TransactionType  string          `db:"transaction_type" json:"type"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore    decimal.Decimal `db:"balance_before" json:"balanceBefore"`
	BalanceAfter     decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	PaymentReference string          `db:"payment_reference" json:"paymentReference,omitempty"`
	PaymentMethod    string          `db:"payment_method" json:"paymentMethod,omitempty"`
	FiatAmount       decimal.Decimal `db:"fiat_amount" json:"fiatAmount"`
	Currency         string          `db:"currency" json:"currency,omitempty"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	ProcessedAt      time.Time       `db:"processed_at" json:"processedAt"`
}
