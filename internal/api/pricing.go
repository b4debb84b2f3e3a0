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
	"tsu-payments-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultCurrency = "USD"
	weiDecimals     = 18
	satsDecimals    = 8
	tsuDecimals     = 8
)

// maxPurchaseAmount bounds a single purchase in fiat units.
var maxPurchaseAmount = decimal.NewFromInt(1_000_000)

// Fallback USD prices used when the active snapshot lacks a crypto rate.
// These can drift far from market; see DESIGN.md open questions.
var fallbackPrices = map[models.PaymentMethod]decimal.Decimal{
	models.PaymentMethodEthereum: decimal.NewFromInt(2000),
	models.PaymentMethodBitcoin:  decimal.NewFromInt(50000),
}

// cryptoPrice returns the USD price of the method's native coin and whether
// the fallback was used.
func cryptoPrice(rate *models.TsuRate, method models.PaymentMethod) (decimal.Decimal, bool) {
	symbol := method.Symbol()
	if price, ok := rate.CryptoRates[symbol]; ok && price.IsPositive() {
		return price, false
	}

	fallback := fallbackPrices[method]
	zap.L().Warn("Crypto rate missing from active snapshot, using fallback price",
		zap.String("symbol", symbol),
		zap.String("rate_id", rate.Id),
		zap.String("fallback_usd", fallback.String()))
	return fallback, true
}

// expectedWei converts a fiat amount into an exact integer wei string
func expectedWei(amount, ethPrice decimal.Decimal) string {
	return amount.DivRound(ethPrice, weiDecimals).Shift(weiDecimals).Truncate(0).String()
}

// expectedSats converts a fiat amount into satoshis, rounded to the nearest
// unit. ok is false when the result does not fit in an int64.
func expectedSats(amount, btcPrice decimal.Decimal) (sats int64, ok bool) {
	exact := amount.Div(btcPrice).Shift(satsDecimals).Round(0).BigInt()
	if !exact.IsInt64() {
		return 0, false
	}
	return exact.Int64(), true
}

// tsuForAmount applies the processing fee and converts at the TSU price
func tsuForAmount(amount, feeRate, tsuPrice decimal.Decimal) decimal.Decimal {
	net := amount.Mul(decimal.NewFromInt(1).Sub(feeRate))
	return net.DivRound(tsuPrice, tsuDecimals)
}
