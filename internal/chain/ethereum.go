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

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthTransaction is the subset of an Ethereum transaction the verifier reads.
type EthTransaction struct {
	Hash    string   `json:"hash"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Value   *big.Int `json:"value"`
	Pending bool     `json:"pending"`
}

// EthReceipt is the subset of a transaction receipt the verifier reads.
type EthReceipt struct {
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Succeeded reports whether the transaction executed without reverting
func (r *EthReceipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// EthereumProvider queries an Ethereum node. Lookups of unknown hashes return
// (nil, nil); any error is a transport or node failure. No call retries.
type EthereumProvider interface {
	GetTransaction(ctx context.Context, hash string) (*EthTransaction, error)
	GetReceipt(ctx context.Context, hash string) (*EthReceipt, error)
	GetNetwork(ctx context.Context) (*big.Int, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
}

// EthereumBackend is either a configured provider or the disabled variant.
// Call sites must branch on Provider.
type EthereumBackend struct {
	provider EthereumProvider
}

// ConfiguredEthereum wraps a live provider
func ConfiguredEthereum(p EthereumProvider) EthereumBackend {
	return EthereumBackend{provider: p}
}

// UnconfiguredEthereum is the backend used when no RPC endpoint is set
func UnconfiguredEthereum() EthereumBackend {
	return EthereumBackend{}
}

// Provider returns the provider and whether Ethereum is enabled
func (b EthereumBackend) Provider() (EthereumProvider, bool) {
	return b.provider, b.provider != nil
}

// RPCClient is the subset of ethclient.Client used by RPCEthereumProvider.
type RPCClient interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// RPCEthereumProvider implements EthereumProvider over JSON-RPC.
type RPCEthereumProvider struct {
	client  RPCClient
	timeout time.Duration
}

// DialEthereum connects to a JSON-RPC endpoint
func DialEthereum(endpoint string, timeout time.Duration) (*RPCEthereumProvider, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("ethereum rpc endpoint required")
	}
	client, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, fmt.Errorf("unable to dial ethereum rpc: %w", err)
	}
	return NewRPCEthereumProvider(client, timeout), nil
}

func NewRPCEthereumProvider(client RPCClient, timeout time.Duration) *RPCEthereumProvider {
	return &RPCEthereumProvider{client: client, timeout: timeout}
}

func (p *RPCEthereumProvider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *RPCEthereumProvider) GetTransaction(ctx context.Context, hash string) (*EthTransaction, error) {
	if !isHexHash(hash) {
		return nil, nil
	}
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	tx, pending, err := p.client.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}

	result := &EthTransaction{
		Hash:    tx.Hash().Hex(),
		From:    from.Hex(),
		Value:   tx.Value(),
		Pending: pending,
	}
	if to := tx.To(); to != nil {
		result.To = to.Hex()
	}
	return result, nil
}

func (p *RPCEthereumProvider) GetReceipt(ctx context.Context, hash string) (*EthReceipt, error) {
	if !isHexHash(hash) {
		return nil, nil
	}
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	receipt, err := p.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil {
		return nil, nil
	}

	result := &EthReceipt{Status: receipt.Status}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

func (p *RPCEthereumProvider) GetNetwork(ctx context.Context) (*big.Int, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return chainID, nil
}

func (p *RPCEthereumProvider) GetBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	height, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch block number: %w", err)
	}
	return height, nil
}

// isHexHash accepts 0x-prefixed 32-byte hashes only. HexToHash silently
// truncates or pads anything else, which would query the wrong transaction.
func isHexHash(hash string) bool {
	if !strings.HasPrefix(hash, "0x") && !strings.HasPrefix(hash, "0X") {
		return false
	}
	body := hash[2:]
	if len(body) != 2*common.HashLength {
		return false
	}
	for _, c := range body {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
