// Package payment orchestrates the fixed-amount USDC escrow payment: guard
// checks, the transfer through the wallet gateway, and the result record
// meant for relay to the marketplace backend. No failure is retried
// automatically; the user re-triggers the action.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"securedeal-client/internal/domain"
)

type Orchestrator struct {
	mu         sync.Mutex
	wallet     domain.WalletGateway
	recipient  string
	amount     float64
	balances   *domain.WalletBalances
	lastResult *domain.PaymentResult
	logger     *zap.Logger
}

func NewOrchestrator(wallet domain.WalletGateway, recipient string, amount float64, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		wallet:    wallet,
		recipient: recipient,
		amount:    amount,
		logger:    logger,
	}
}

// Amount is the configured payment amount in display units.
func (o *Orchestrator) Amount() float64 {
	return o.amount
}

// RefreshBalances re-reads native and token balances for display.
func (o *Orchestrator) RefreshBalances(ctx context.Context) (*domain.WalletBalances, error) {
	balances, err := o.wallet.GetBalances(ctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.balances = balances
	o.mu.Unlock()
	return balances, nil
}

// LastResult returns the record of the most recent payment attempt.
func (o *Orchestrator) LastResult() *domain.PaymentResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult
}

// Pay runs the full payment flow for a deal. Guards fire in order: connected
// wallet, valid recipient configuration, sufficient token balance. Only then
// is a transfer built and submitted. The returned PaymentResult is recorded
// for both success and failure.
func (o *Orchestrator) Pay(ctx context.Context, dealID string) (*domain.PaymentResult, error) {
	sender := o.wallet.Address()
	if sender == "" {
		return nil, domain.ErrWalletNotConnected
	}

	if err := o.wallet.ValidateAddress(o.recipient); err != nil {
		o.logger.Error("recipient misconfigured", zap.String("recipient", o.recipient), zap.Error(err))
		return o.record(sender, "", domain.ErrInvalidRecipient), domain.ErrInvalidRecipient
	}

	balances, err := o.wallet.GetBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	required := amountInSmallestUnit(o.amount, balances.TokenDecimals)
	held := balances.TokenAmount
	if held == nil {
		held = big.NewInt(0)
	}
	if held.Cmp(new(big.Int).SetUint64(required)) < 0 {
		insufficient := fmt.Errorf("%w: need %.2f but have %.2f USDC",
			domain.ErrInsufficientBalance, o.amount, balances.TokenUI())
		return o.record(sender, "", insufficient), insufficient
	}

	o.logger.Info("submitting escrow payment",
		zap.String("dealId", dealID),
		zap.String("sender", sender),
		zap.String("recipient", o.recipient),
		zap.Uint64("amount", required))

	transfer, err := o.wallet.TransferToken(ctx, o.recipient, required)
	if err != nil {
		mapped := mapTransferError(err)
		o.logger.Error("escrow payment failed", zap.String("dealId", dealID), zap.Error(err))
		return o.record(sender, "", mapped), mapped
	}

	result := o.record(sender, transfer.Signature, nil)
	o.logger.Info("escrow payment confirmed",
		zap.String("dealId", dealID),
		zap.String("signature", transfer.Signature),
		zap.Uint64("slot", transfer.Slot))

	// Best effort display refresh; the payment already succeeded.
	if _, err := o.RefreshBalances(ctx); err != nil {
		o.logger.Warn("balance refresh after payment failed", zap.Error(err))
	}
	return result, nil
}

func (o *Orchestrator) record(sender, txHash string, failure error) *domain.PaymentResult {
	result := &domain.PaymentResult{
		Success:   failure == nil,
		Reference: uuid.NewString(),
		TxHash:    txHash,
		Amount:    o.amount,
		Sender:    sender,
		Recipient: o.recipient,
		Timestamp: time.Now().UnixMilli(),
	}
	if failure != nil {
		result.Error = failure.Error()
	}
	o.mu.Lock()
	o.lastResult = result
	o.mu.Unlock()
	return result
}

func mapTransferError(err error) error {
	if errors.Is(err, domain.ErrConfirmationTimeout) {
		return domain.ErrConfirmationTimeout
	}
	return fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
}

func amountInSmallestUnit(amount float64, decimals int) uint64 {
	return uint64(math.Round(amount * math.Pow10(decimals)))
}
