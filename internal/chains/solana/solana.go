// Package solana implements domain.WalletGateway against the Solana JSON-RPC
// API. Key custody and signing stay inside this package; the rest of the
// application only sees the narrow gateway interface.
package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"securedeal-client/internal/domain"
)

const confirmPollInterval = 2 * time.Second

type Gateway struct {
	client         *rpc.Client
	mint           solana.PublicKey
	signer         solana.PrivateKey
	connected      bool
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// New builds the gateway. An empty secretKey leaves the wallet disconnected;
// balance and transfer calls then fail with ErrWalletNotConnected until a
// key is configured.
func New(rpcURL, mintAddress, secretKey string, confirmTimeout time.Duration, logger *zap.Logger) (*Gateway, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("parse mint address: %w", err)
	}

	g := &Gateway{
		client:         rpc.New(rpcURL),
		mint:           mint,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}

	if secretKey != "" {
		signer, err := solana.PrivateKeyFromBase58(secretKey)
		if err != nil {
			return nil, fmt.Errorf("parse wallet secret key: %w", err)
		}
		g.signer = signer
		g.connected = true
	}
	return g, nil
}

func (g *Gateway) Address() string {
	if !g.connected {
		return ""
	}
	return g.signer.PublicKey().String()
}

func (g *Gateway) ValidateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("parse address %q: %w", address, err)
	}
	return nil
}

// GetBalances fetches the SOL balance and the token balance of the owner's
// associated token account. A missing token account reads as zero.
func (g *Gateway) GetBalances(ctx context.Context) (*domain.WalletBalances, error) {
	if !g.connected {
		return nil, domain.ErrWalletNotConnected
	}
	owner := g.signer.PublicKey()

	sol, err := g.client.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}

	balances := &domain.WalletBalances{
		Address:       owner.String(),
		Lamports:      sol.Value,
		TokenAmount:   big.NewInt(0),
		TokenDecimals: domain.USDCDecimals,
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, g.mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	tokenBal, err := g.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		// The token account may simply not exist yet.
		g.logger.Debug("token account balance unavailable",
			zap.String("account", ata.String()),
			zap.Error(err))
		return balances, nil
	}
	if tokenBal.Value != nil {
		amount, ok := new(big.Int).SetString(tokenBal.Value.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("parse token amount %q", tokenBal.Value.Amount)
		}
		balances.TokenAmount = amount
		balances.TokenDecimals = int(tokenBal.Value.Decimals)
	}
	return balances, nil
}

// TransferToken builds a transaction that creates the recipient's associated
// token account when it does not exist, appends the SPL transfer, signs,
// submits and waits for confirmation.
func (g *Gateway) TransferToken(ctx context.Context, recipient string, amount uint64) (*domain.TransferResult, error) {
	if !g.connected {
		return nil, domain.ErrWalletNotConnected
	}
	owner := g.signer.PublicKey()

	recipientKey, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return nil, fmt.Errorf("parse recipient: %w", err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(owner, g.mint)
	if err != nil {
		return nil, fmt.Errorf("derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipientKey, g.mint)
	if err != nil {
		return nil, fmt.Errorf("derive destination token account: %w", err)
	}

	instructions := []solana.Instruction{}

	if _, err := g.client.GetAccountInfo(ctx, destATA); err != nil {
		if !errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("check destination token account: %w", err)
		}
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(owner, recipientKey, g.mint).Build())
	}

	instructions = append(instructions,
		token.NewTransferInstruction(amount, sourceATA, destATA, owner, nil).Build())

	blockhash, err := g.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &g.signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := g.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	g.logger.Info("token transfer submitted",
		zap.String("signature", sig.String()),
		zap.String("recipient", recipient),
		zap.Uint64("amount", amount))

	slot, err := g.awaitConfirmation(ctx, sig)
	if err != nil {
		return nil, err
	}
	return &domain.TransferResult{Signature: sig.String(), Slot: slot}, nil
}

// awaitConfirmation polls signature status until the cluster reports the
// transaction confirmed or the configured deadline passes.
func (g *Gateway) awaitConfirmation(ctx context.Context, sig solana.Signature) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, domain.ErrConfirmationTimeout
		case <-ticker.C:
			statuses, err := g.client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				g.logger.Debug("signature status poll failed", zap.Error(err))
				continue
			}
			if len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return 0, fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return status.Slot, nil
			}
		}
	}
}
