package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"securedeal-client/internal/domain"
)

const testRecipient = "3E4kKNEfZVvhh8yAUjJa4brtWCQ7UUCoFePDbKHLb4Eq"

type fakeWallet struct {
	address      string
	tokenAmount  *big.Int
	balancesErr  error
	addressErr   error
	transferErr  error
	transfer     *domain.TransferResult
	transferCall int
}

func (f *fakeWallet) Address() string { return f.address }

func (f *fakeWallet) GetBalances(_ context.Context) (*domain.WalletBalances, error) {
	if f.balancesErr != nil {
		return nil, f.balancesErr
	}
	return &domain.WalletBalances{
		Address:       f.address,
		Lamports:      1_000_000_000,
		TokenAmount:   f.tokenAmount,
		TokenDecimals: domain.USDCDecimals,
	}, nil
}

func (f *fakeWallet) ValidateAddress(_ string) error { return f.addressErr }

func (f *fakeWallet) TransferToken(_ context.Context, _ string, _ uint64) (*domain.TransferResult, error) {
	f.transferCall++
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transfer, nil
}

func connectedWallet(usdc int64) *fakeWallet {
	return &fakeWallet{
		address:     "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		tokenAmount: big.NewInt(usdc),
		transfer:    &domain.TransferResult{Signature: "5sig", Slot: 12345},
	}
}

func TestPayRequiresConnectedWallet(t *testing.T) {
	wallet := connectedWallet(2_000_000)
	wallet.address = ""
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	_, err := o.Pay(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrWalletNotConnected)
	assert.Zero(t, wallet.transferCall)
}

func TestPayRejectsMisconfiguredRecipient(t *testing.T) {
	wallet := connectedWallet(2_000_000)
	wallet.addressErr = errors.New("bad address")
	o := NewOrchestrator(wallet, "not-an-address", 1.0, zap.NewNop())

	result, err := o.Pay(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Zero(t, wallet.transferCall)
}

func TestPayInsufficientBalanceNeverTransfers(t *testing.T) {
	// 0.5 USDC on hand, 1 USDC required.
	wallet := connectedWallet(500_000)
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	result, err := o.Pay(context.Background(), "d1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "need 1.00 but have 0.50 USDC")
	assert.Zero(t, wallet.transferCall)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Reference)
	assert.Empty(t, result.TxHash)
	assert.Equal(t, o.LastResult(), result)
}

func TestPayExactBalanceSucceeds(t *testing.T) {
	wallet := connectedWallet(1_000_000)
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	result, err := o.Pay(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, wallet.transferCall)
	assert.True(t, result.Success)
	assert.Equal(t, "5sig", result.TxHash)
	assert.Equal(t, wallet.address, result.Sender)
	assert.Equal(t, testRecipient, result.Recipient)
	assert.Equal(t, 1.0, result.Amount)
	assert.NotEmpty(t, result.Reference)
	assert.NotZero(t, result.Timestamp)
}

func TestPayMapsSubmissionFailure(t *testing.T) {
	wallet := connectedWallet(5_000_000)
	wallet.transferErr = errors.New("blockhash not found")
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	result, err := o.Pay(context.Background(), "d1")
	require.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.Contains(t, err.Error(), "blockhash not found")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestPayPassesThroughConfirmationTimeout(t *testing.T) {
	wallet := connectedWallet(5_000_000)
	wallet.transferErr = fmt.Errorf("poll: %w", domain.ErrConfirmationTimeout)
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	_, err := o.Pay(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
	assert.NotErrorIs(t, err, domain.ErrSubmissionFailed)
}

func TestPayBalanceFetchFailureProducesNoRecord(t *testing.T) {
	wallet := connectedWallet(5_000_000)
	wallet.balancesErr = errors.New("rpc unreachable")
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	result, err := o.Pay(context.Background(), "d1")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Nil(t, o.LastResult())
	assert.Zero(t, wallet.transferCall)
}

func TestRefreshBalances(t *testing.T) {
	wallet := connectedWallet(2_500_000)
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	balances, err := o.RefreshBalances(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.5, balances.TokenUI(), 1e-9)
	assert.Equal(t, uint64(1_000_000_000), balances.Lamports)
}

func TestPayNilTokenAmountReadsAsZero(t *testing.T) {
	wallet := connectedWallet(0)
	wallet.tokenAmount = nil
	o := NewOrchestrator(wallet, testRecipient, 1.0, zap.NewNop())

	result, err := o.Pay(context.Background(), "d1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Zero(t, wallet.transferCall)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestAmountInSmallestUnit(t *testing.T) {
	assert.Equal(t, uint64(1_000_000), amountInSmallestUnit(1.0, domain.USDCDecimals))
	assert.Equal(t, uint64(250_000), amountInSmallestUnit(0.25, domain.USDCDecimals))
	// 0.29 has no exact binary representation; rounding keeps the unit count exact.
	assert.Equal(t, uint64(290_000), amountInSmallestUnit(0.29, domain.USDCDecimals))
	assert.Equal(t, uint64(0), amountInSmallestUnit(0, domain.USDCDecimals))
}
