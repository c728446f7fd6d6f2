package domain

import (
	"context"
	"errors"
	"math/big"
)

// USDC uses 6 decimal places on Solana.
const USDCDecimals = 6

// Payment failure taxonomy. Each maps to one user-facing message state;
// none is retried automatically.
var (
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrInvalidRecipient    = errors.New("invalid recipient address in configuration")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrSubmissionFailed    = errors.New("transaction submission failed")
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// WalletBalances holds the connected address balances in smallest units.
type WalletBalances struct {
	Address       string
	Lamports      uint64
	TokenAmount   *big.Int
	TokenDecimals int
}

// TokenUI is the token balance in display units.
func (b *WalletBalances) TokenUI() float64 {
	if b.TokenAmount == nil {
		return 0
	}
	f := new(big.Float).SetInt(b.TokenAmount)
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(b.TokenDecimals)), nil))
	ui, _ := new(big.Float).Quo(f, div).Float64()
	return ui
}

// TransferResult is what the chain reports back for a submitted transfer.
type TransferResult struct {
	Signature string
	Slot      uint64
}

// WalletGateway is the narrow seam to the wallet/chain SDK. The application
// never handles key material; signing lives behind this interface.
type WalletGateway interface {
	// Address returns the connected wallet address, empty when disconnected.
	Address() string

	// GetBalances fetches native and token balances for the connected address.
	GetBalances(ctx context.Context) (*WalletBalances, error)

	// ValidateAddress checks that an address parses for this chain.
	ValidateAddress(address string) error

	// TransferToken moves amount (smallest units) of the configured token to
	// the recipient, creating the recipient token account when absent, and
	// waits for network confirmation.
	TransferToken(ctx context.Context, recipient string, amount uint64) (*TransferResult, error)
}

// PaymentResult is constructed after a transfer attempt. It is meant to be
// relayed to the marketplace backend; this module only builds and keeps it.
type PaymentResult struct {
	Success   bool    `json:"success"`
	Reference string  `json:"reference"`
	TxHash    string  `json:"txHash,omitempty"`
	Amount    float64 `json:"amount"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Timestamp int64   `json:"timestamp"`
	Error     string  `json:"error,omitempty"`
}
