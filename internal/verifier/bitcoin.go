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

package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tsu-payments-go/internal/chain"

	"go.uber.org/zap"
)

// BitcoinParams describes the payment a purchase expects to find on chain.
// ExpectedSender is mandatory.
type BitcoinParams struct {
	TxID              string
	ExpectedRecipient string
	ExpectedSats      int64
	ExpectedSender    string
	MinConfirmations  int64
}

type BitcoinVerifier struct {
	backend   chain.BitcoinBackend
	tolerance int64
	recorder  Recorder
}

// NewBitcoinVerifier builds a verifier accepting outputs within tolerance
// satoshis of the expected amount. A non-positive tolerance selects
// DefaultSatoshiTolerance.
func NewBitcoinVerifier(backend chain.BitcoinBackend, tolerance int64, recorder Recorder) *BitcoinVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSatoshiTolerance
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &BitcoinVerifier{backend: backend, tolerance: tolerance, recorder: recorder}
}

func (v *BitcoinVerifier) Configured() bool {
	_, ok := v.backend.Provider()
	return ok
}

func (v *BitcoinVerifier) Tolerance() int64 {
	return v.tolerance
}

// Verify checks depth first, then scans outputs for the recipient and
// amount, then requires an input spent from the expected sender.
func (v *BitcoinVerifier) Verify(ctx context.Context, params BitcoinParams) (*Result, error) {
	if strings.TrimSpace(params.ExpectedSender) == "" {
		result := failed(CodeSenderRequired, "Sender verification required")
		v.recorder.ObserveVerification(chainBitcoin, result)
		return result, nil
	}

	provider, ok := v.backend.Provider()
	if !ok {
		return nil, ErrNotConfigured
	}
	if params.ExpectedSats <= 0 {
		return nil, fmt.Errorf("%w: expected amount %d sats", ErrInvalidParams, params.ExpectedSats)
	}
	if params.MinConfirmations <= 0 {
		params.MinConfirmations = DefaultMinConfirmations
	}

	result := v.verify(ctx, provider, params)
	v.recorder.ObserveVerification(chainBitcoin, result)
	return result, nil
}

func (v *BitcoinVerifier) verify(ctx context.Context, provider chain.BitcoinProvider, params BitcoinParams) *Result {
	tx, err := timed(ctx, v.recorder, chainBitcoin, "get_transaction", func(ctx context.Context) (*chain.BitcoinTransaction, error) {
		return provider.GetTransaction(ctx, params.TxID)
	})
	if err != nil {
		var apiErr *chain.APIError
		switch {
		case errors.Is(err, chain.ErrTransactionNotFound):
			return failed(CodeNotFound, "Transaction not found")
		case errors.As(err, &apiErr):
			zap.L().Warn("Bitcoin explorer returned an error",
				zap.String("txid", params.TxID),
				zap.Int("status", apiErr.StatusCode))
			return failed(CodeAPIError, apiErr.Error())
		default:
			return v.providerFailure(params.TxID, "get_transaction", err)
		}
	}

	if !tx.Status.Confirmed || tx.Status.BlockHeight == nil {
		result := failed(CodeNotConfirmed, "Transaction not yet confirmed")
		result.Transaction = tx
		return result
	}

	tip, err := timed(ctx, v.recorder, chainBitcoin, "get_tip_height", provider.GetTipHeight)
	if err != nil {
		result := v.providerFailure(params.TxID, "get_tip_height", err)
		result.Transaction = tx
		return result
	}

	confirmations := tip - *tx.Status.BlockHeight + 1
	if confirmations < 0 {
		confirmations = 0
	}

	checks := []check{
		{
			code:   CodeInsufficientConfirmations,
			passed: func() bool { return confirmations >= params.MinConfirmations },
			message: func() string {
				return fmt.Sprintf("Insufficient confirmations (%d/%d)", confirmations, params.MinConfirmations)
			},
		},
		{
			code:   CodeNoMatchingOutput,
			passed: func() bool { return matchOutput(tx.Vout, params.ExpectedRecipient, params.ExpectedSats, v.tolerance) >= 0 },
			message: func() string {
				return fmt.Sprintf("No output pays %d sats to %s (outputs: %s)",
					params.ExpectedSats, params.ExpectedRecipient, describeOutputs(tx.Vout))
			},
		},
		{
			code:    CodeInvalidSender,
			passed:  func() bool { return spentFrom(tx.Vin, params.ExpectedSender) },
			message: staticMessage("Invalid sender address"),
		},
	}

	result := &Result{Transaction: tx, Confirmations: confirmations}
	if code, message, failedCheck := firstFailure(checks); failedCheck {
		result.Code = code
		result.Error = message
		return result
	}
	result.Verified = true
	return result
}

func (v *BitcoinVerifier) providerFailure(txid, call string, err error) *Result {
	zap.L().Warn("Bitcoin provider call failed",
		zap.String("txid", txid),
		zap.String("call", call),
		zap.Error(err))
	return failed(CodeProviderError, fmt.Sprintf("Bitcoin provider error: %v", err))
}

// matchOutput returns the index of the first output paying recipient within
// tolerance of expected, or -1.
func matchOutput(outputs []chain.BitcoinOutput, recipient string, expected, tolerance int64) int {
	for i, out := range outputs {
		if out.ScriptPubKeyAddress != recipient {
			continue
		}
		diff := out.Value - expected
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return i
		}
	}
	return -1
}

func spentFrom(inputs []chain.BitcoinInput, sender string) bool {
	for _, in := range inputs {
		if in.Prevout != nil && in.Prevout.ScriptPubKeyAddress == sender {
			return true
		}
	}
	return false
}

func describeOutputs(outputs []chain.BitcoinOutput) string {
	if len(outputs) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(outputs))
	for _, out := range outputs {
		address := out.ScriptPubKeyAddress
		if address == "" {
			address = "unknown"
		}
		parts = append(parts, fmt.Sprintf("%s: %d sats", address, out.Value))
	}
	return strings.Join(parts, ", ")
}
