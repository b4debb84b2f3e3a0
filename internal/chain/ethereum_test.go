package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeRPC struct {
	tx      *types.Transaction
	receipt *types.Receipt
	chainID *big.Int
	head    uint64
	err     error
}

func (f *fakeRPC) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.tx == nil || f.tx.Hash() != hash {
		return nil, false, ethereum.NotFound
	}
	return f.tx, false, nil
}

func (f *fakeRPC) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeRPC) ChainID(_ context.Context) (*big.Int, error) {
	return f.chainID, f.err
}

func (f *fakeRPC) BlockNumber(_ context.Context) (uint64, error) {
	return f.head, f.err
}

func signedTransfer(t *testing.T, to common.Address, value *big.Int) (*types.Transaction, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	chainID := big.NewInt(1)
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     value,
	}), types.LatestSignerForChainID(chainID), key)
	if err != nil {
		t.Fatalf("SignTx failed: %v", err)
	}
	return tx, crypto.PubkeyToAddress(key.PublicKey)
}

func TestRPCEthereumProvider_GetTransaction(t *testing.T) {
	to := common.HexToAddress("0xABCD000000000000000000000000000000000001")
	value := big.NewInt(50000000000000000)
	tx, sender := signedTransfer(t, to, value)

	provider := NewRPCEthereumProvider(&fakeRPC{tx: tx}, time.Second)
	got, err := provider.GetTransaction(context.Background(), tx.Hash().Hex())
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected transaction, got nil")
	}
	if got.From != sender.Hex() {
		t.Errorf("expected sender %s, got %s", sender.Hex(), got.From)
	}
	if got.To != to.Hex() {
		t.Errorf("expected recipient %s, got %s", to.Hex(), got.To)
	}
	if got.Value.Cmp(value) != 0 {
		t.Errorf("expected value %s, got %s", value, got.Value)
	}
}

func TestRPCEthereumProvider_NotFoundIsNil(t *testing.T) {
	provider := NewRPCEthereumProvider(&fakeRPC{}, time.Second)
	hash := "0x" + strings.Repeat("11", 32)

	tx, err := provider.GetTransaction(context.Background(), hash)
	if err != nil || tx != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", tx, err)
	}
	receipt, err := provider.GetReceipt(context.Background(), hash)
	if err != nil || receipt != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", receipt, err)
	}

	// Malformed hashes never reach the node
	tx, err = provider.GetTransaction(context.Background(), "0x1234")
	if err != nil || tx != nil {
		t.Errorf("expected (nil, nil) for malformed hash, got (%v, %v)", tx, err)
	}
}

func TestRPCEthereumProvider_TransportError(t *testing.T) {
	provider := NewRPCEthereumProvider(&fakeRPC{err: errors.New("connection refused")}, time.Second)
	hash := "0x" + strings.Repeat("22", 32)

	if _, err := provider.GetTransaction(context.Background(), hash); err == nil {
		t.Error("expected transport error from GetTransaction")
	}
	if _, err := provider.GetNetwork(context.Background()); err == nil {
		t.Error("expected transport error from GetNetwork")
	}
	if _, err := provider.GetBlockNumber(context.Background()); err == nil {
		t.Error("expected transport error from GetBlockNumber")
	}
}

func TestRPCEthereumProvider_Receipt(t *testing.T) {
	rpc := &fakeRPC{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)}}
	provider := NewRPCEthereumProvider(rpc, 0)
	hash := "0x" + strings.Repeat("33", 32)

	receipt, err := provider.GetReceipt(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if receipt.Succeeded() {
		t.Error("failed receipt must not report success")
	}
	if receipt.BlockNumber != 100 {
		t.Errorf("expected block 100, got %d", receipt.BlockNumber)
	}
}

func TestEthereumBackend(t *testing.T) {
	if _, ok := UnconfiguredEthereum().Provider(); ok {
		t.Error("unconfigured backend must report disabled")
	}
	if _, ok := ConfiguredEthereum(NewRPCEthereumProvider(&fakeRPC{}, 0)).Provider(); !ok {
		t.Error("configured backend must report enabled")
	}
}

func TestDialEthereum_EmptyEndpoint(t *testing.T) {
	if _, err := DialEthereum("  ", time.Second); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
