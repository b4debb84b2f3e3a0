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
	"fmt"
	"math/big"
	"strings"

	"tsu-payments-go/internal/chain"

	"github.com/holiman/uint256"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// MainnetChainID is the only network purchases are accepted on.
var MainnetChainID = big.NewInt(1)

// EthereumParams describes the transfer a purchase expects to find on chain.
type EthereumParams struct {
	TxHash            string
	ExpectedRecipient string
	ExpectedAmountWei string
	ExpectedSender    string
	MinConfirmations  int64
}

// EthTransactionSnapshot is attached to results for support and auditing.
type EthTransactionSnapshot struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber uint64 `json:"blockNumber"`
	Status      uint64 `json:"status"`
	ChainID     string `json:"chainId"`
}

type EthereumVerifier struct {
	backend  chain.EthereumBackend
	recorder Recorder
}

func NewEthereumVerifier(backend chain.EthereumBackend, recorder Recorder) *EthereumVerifier {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &EthereumVerifier{backend: backend, recorder: recorder}
}

// Configured reports whether an RPC provider is available
func (v *EthereumVerifier) Configured() bool {
	_, ok := v.backend.Provider()
	return ok
}

// Verify fetches the transaction and checks recipient, amount, sender and
// depth in that order. Provider failures produce a failed Result, not an
// error; the error return is reserved for ErrNotConfigured and ErrInvalidParams.
func (v *EthereumVerifier) Verify(ctx context.Context, params EthereumParams) (*Result, error) {
	provider, ok := v.backend.Provider()
	if !ok {
		return nil, ErrNotConfigured
	}

	expected, err := uint256.FromDecimal(strings.TrimSpace(params.ExpectedAmountWei))
	if err != nil {
		return nil, fmt.Errorf("%w: expected amount %q: %v", ErrInvalidParams, params.ExpectedAmountWei, err)
	}
	if params.MinConfirmations <= 0 {
		params.MinConfirmations = DefaultMinConfirmations
	}

	result := v.verify(ctx, provider, params, expected)
	v.recorder.ObserveVerification(chainEthereum, result)
	return result, nil
}

func (v *EthereumVerifier) verify(ctx context.Context, provider chain.EthereumProvider, params EthereumParams, expected *uint256.Int) *Result {
	tx, err := timed(ctx, v.recorder, chainEthereum, "get_transaction", func(ctx context.Context) (*chain.EthTransaction, error) {
		return provider.GetTransaction(ctx, params.TxHash)
	})
	if err != nil {
		return v.providerFailure(params.TxHash, "get_transaction", err)
	}
	if tx == nil {
		return failed(CodeNotFound, "Transaction not found")
	}

	receipt, err := timed(ctx, v.recorder, chainEthereum, "get_receipt", func(ctx context.Context) (*chain.EthReceipt, error) {
		return provider.GetReceipt(ctx, params.TxHash)
	})
	if err != nil {
		return v.providerFailure(params.TxHash, "get_receipt", err)
	}
	if receipt == nil {
		return failed(CodeReceiptNotFound, "Transaction receipt not found")
	}

	snapshot := &EthTransactionSnapshot{
		Hash:        tx.Hash,
		From:        tx.From,
		To:          tx.To,
		BlockNumber: receipt.BlockNumber,
		Status:      receipt.Status,
	}
	if tx.Value != nil {
		snapshot.Value = tx.Value.String()
	}

	if !receipt.Succeeded() {
		result := failed(CodeReverted, "Transaction failed or reverted")
		result.Transaction = snapshot
		return result
	}

	// Network id and head height are independent reads.
	var (
		chainID *big.Int
		head    uint64
		netErr  error
		headErr error
		wg      conc.WaitGroup
	)
	wg.Go(func() {
		chainID, netErr = timed(ctx, v.recorder, chainEthereum, "get_network", provider.GetNetwork)
	})
	wg.Go(func() {
		head, headErr = timed(ctx, v.recorder, chainEthereum, "get_block_number", provider.GetBlockNumber)
	})
	wg.Wait()

	if netErr != nil {
		return v.providerFailure(params.TxHash, "get_network", netErr)
	}
	if chainID != nil {
		snapshot.ChainID = chainID.String()
	}
	if chainID == nil || chainID.Cmp(MainnetChainID) != 0 {
		result := failed(CodeWrongNetwork, "Wrong network")
		result.Transaction = snapshot
		return result
	}
	if headErr != nil {
		return v.providerFailure(params.TxHash, "get_block_number", headErr)
	}

	confirmations := ethConfirmations(tx, receipt, head)

	checks := []check{
		{
			code:    CodeInvalidRecipient,
			passed:  func() bool { return chain.SameEthereumAddress(tx.To, params.ExpectedRecipient) },
			message: staticMessage("Invalid recipient address"),
		},
		{
			code:    CodeInvalidAmount,
			passed:  func() bool { return sameWei(tx.Value, expected) },
			message: staticMessage("Invalid amount"),
		},
		{
			code: CodeInvalidSender,
			passed: func() bool {
				return params.ExpectedSender == "" || chain.SameEthereumAddress(tx.From, params.ExpectedSender)
			},
			message: staticMessage("Invalid sender address"),
		},
		{
			code:   CodeInsufficientConfirmations,
			passed: func() bool { return confirmations >= params.MinConfirmations },
			message: func() string {
				return fmt.Sprintf("Insufficient confirmations (%d/%d)", confirmations, params.MinConfirmations)
			},
		},
	}

	result := &Result{Transaction: snapshot, Confirmations: confirmations}
	if code, message, failedCheck := firstFailure(checks); failedCheck {
		result.Code = code
		result.Error = message
		return result
	}
	result.Verified = true
	return result
}

func (v *EthereumVerifier) providerFailure(hash, call string, err error) *Result {
	zap.L().Warn("Ethereum provider call failed",
		zap.String("tx_hash", hash),
		zap.String("call", call),
		zap.Error(err))
	return failed(CodeProviderError, fmt.Sprintf("Ethereum provider error: %v", err))
}

func ethConfirmations(tx *chain.EthTransaction, receipt *chain.EthReceipt, head uint64) int64 {
	if tx.Pending || receipt.BlockNumber == 0 || head < receipt.BlockNumber {
		return 0
	}
	return int64(head-receipt.BlockNumber) + 1
}

func sameWei(actual *big.Int, expected *uint256.Int) bool {
	if actual == nil || actual.Sign() < 0 {
		return false
	}
	value, overflow := uint256.FromBig(actual)
	if overflow {
		return false
	}
	return value.Eq(expected)
}
