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
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a purchase is paid for
type PaymentMethod string

const (
	PaymentMethodEthereum PaymentMethod = "ethereum"
	PaymentMethodBitcoin  PaymentMethod = "bitcoin"
	PaymentMethodPayPal   PaymentMethod = "paypal"
)

// SupportedPaymentMethods lists every method accepted by the purchase endpoint
var SupportedPaymentMethods = []PaymentMethod{
	PaymentMethodEthereum,
	PaymentMethodBitcoin,
	PaymentMethodPayPal,
}

// IsChain reports whether the method settles on a blockchain
func (m PaymentMethod) IsChain() bool {
	return m == PaymentMethodEthereum || m == PaymentMethodBitcoin
}

// Symbol returns the crypto rate key for a chain method
func (m PaymentMethod) Symbol() string {
	switch m {
	case PaymentMethodEthereum:
		return "ETH"
	case PaymentMethodBitcoin:
		return "BTC"
	}
	return ""
}

// PurchaseRequest is the body of POST /api/tsu/purchase
type PurchaseRequest struct {
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	PaymentMethod    string `json:"paymentMethod"`
	PaymentReference string `json:"paymentReference,omitempty"`
}

// PurchaseResult is returned on a successful purchase
type PurchaseResult struct {
	Transaction *Transaction    `json:"transaction"`
	NewBalance  decimal.Decimal `json:"newBalance"`
	TsuAmount   decimal.Decimal `json:"tsuAmount"`
}

// UserBalance represents a user's balance for a specific asset
type UserBalance struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}
