package verifier

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMinConfirmations = 3

	// DefaultSatoshiTolerance absorbs rounding in fiat-derived BTC targets.
	// Ethereum amounts are exact and get no tolerance.
	DefaultSatoshiTolerance int64 = 1000
)

const (
	chainEthereum = "ethereum"
	chainBitcoin  = "bitcoin"
)

// Failure codes carried in Result.Code
const (
	CodeNotFound                  = "not_found"
	CodeReceiptNotFound           = "receipt_not_found"
	CodeReverted                  = "reverted"
	CodeWrongNetwork              = "wrong_network"
	CodeInvalidRecipient          = "invalid_recipient"
	CodeInvalidAmount             = "invalid_amount"
	CodeInvalidSender             = "invalid_sender"
	CodeInsufficientConfirmations = "insufficient_confirmations"
	CodeNotConfirmed              = "not_confirmed"
	CodeNoMatchingOutput          = "no_matching_output"
	CodeSenderRequired            = "sender_required"
	CodeAPIError                  = "api_error"
	CodeProviderError             = "provider_error"
)

var (
	// ErrNotConfigured is returned when the chain backend has no provider.
	ErrNotConfigured = errors.New("chain provider not configured")
	// ErrInvalidParams is returned for malformed expectations; no I/O is done.
	ErrInvalidParams = errors.New("invalid verification parameters")
)

// Result is the outcome of a single verification attempt. It is never persisted.
type Result struct {
	Verified      bool   `json:"verified"`
	Transaction   any    `json:"transaction,omitempty"`
	Confirmations int64  `json:"confirmations"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Recorder receives provider latency and verification outcomes.
type Recorder interface {
	ObserveProviderCall(chain, call string, duration time.Duration, err error)
	ObserveVerification(chain string, result *Result)
}

type noopRecorder struct{}

func (noopRecorder) ObserveProviderCall(string, string, time.Duration, error) {}
func (noopRecorder) ObserveVerification(string, *Result)                      {}

// check is one named condition. Checks run in order and stop at the first
// failure; message is only built for that failure.
type check struct {
	code    string
	passed  func() bool
	message func() string
}

func firstFailure(checks []check) (string, string, bool) {
	for _, c := range checks {
		if !c.passed() {
			return c.code, c.message(), true
		}
	}
	return "", "", false
}

func failed(code, message string) *Result {
	return &Result{Code: code, Error: message}
}

func timed[T any](ctx context.Context, r Recorder, chainName, call string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	r.ObserveProviderCall(chainName, call, time.Since(start), err)
	return out, err
}

func staticMessage(s string) func() string {
	return func() string { return s }
}
