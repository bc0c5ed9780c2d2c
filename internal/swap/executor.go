// Package swap executes a validated swap as a forward-only state machine:
// destination account check, account creation when missing, Jupiter quote,
// transaction build, sign-and-submit, finality confirmation. Each step owns
// its retry policy; once the transaction is submitted there is no rollback,
// only confirmation or a failure report.
package swap

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-token-agent/internal/rpc"
	"solana-token-agent/internal/token"
	"solana-token-agent/internal/wallet"
)

const (
	accountCheckAttempts = 3
	sendMaxRetries       = 10
)

// Request describes one swap to execute. Amount is in base units of the
// output side (ExactOut).
type Request struct {
	Amount     float64
	InputMint  string
	OutputMint string
	Token      *token.Token
}

// Executor drives the swap state machine.
type Executor struct {
	rpc            *rpc.Client
	jupiter        *JupiterClient
	signer         wallet.Signer
	confirmTimeout time.Duration
	logger         *logrus.Logger
}

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	RPC            *rpc.Client
	Jupiter        *JupiterClient
	Signer         wallet.Signer
	ConfirmTimeout time.Duration
	Logger         *logrus.Logger
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	return &Executor{
		rpc:            cfg.RPC,
		jupiter:        cfg.Jupiter,
		signer:         cfg.Signer,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         cfg.Logger,
	}
}

// Execute runs the machine to a terminal state. Progress messages go to
// notify; the returned Result reports the failing step when not successful.
func (e *Executor) Execute(ctx context.Context, req Request, notify Notifier) Result {
	send := func(msg string) {
		if notify != nil {
			notify(msg)
		}
	}
	fail := func(step Step, err error) Result {
		e.logger.WithFields(logrus.Fields{
			"step":  step.String(),
			"token": req.Token.Symbol,
		}).WithError(err).Warn("swap failed")
		return Result{FailedStep: step, Err: err}
	}

	// Step 1: resolve the merchant's associated token account and check
	// whether it exists. Bounded retries here because the public RPC
	// endpoint is the usual failure.
	merchant, err := solana.PublicKeyFromBase58(req.Token.Address)
	if err != nil {
		return fail(StepCheckDestinationAccount, fmt.Errorf("invalid merchant address %q: %w", req.Token.Address, err))
	}
	outputMint, err := solana.PublicKeyFromBase58(req.OutputMint)
	if err != nil {
		return fail(StepCheckDestinationAccount, fmt.Errorf("invalid output mint %q: %w", req.OutputMint, err))
	}

	destination, _, err := FindAssociatedTokenAddress(merchant, outputMint)
	if err != nil {
		return fail(StepCheckDestinationAccount, fmt.Errorf("failed to derive token account: %w", err))
	}

	var exists bool
	for attempt := 0; attempt < accountCheckAttempts; attempt++ {
		exists, err = e.rpc.AccountExists(ctx, destination, "confirmed")
		if err == nil {
			break
		}
		if attempt == accountCheckAttempts-1 {
			return fail(StepCheckDestinationAccount, fmt.Errorf(
				"failed to fetch account info for %s: %v. The RPC endpoint may be rate-limited or blocking requests",
				destination, err))
		}
		send(fmt.Sprintf("Retrying account check (attempt %d/%d)...", attempt+2, accountCheckAttempts))
		select {
		case <-ctx.Done():
			return fail(StepCheckDestinationAccount, ctx.Err())
		case <-time.After(time.Duration(math.Pow(2, float64(attempt))) * time.Second):
		}
	}

	// Step 2: create the destination account when it is missing. This is a
	// separate on-chain transaction confirmed to finality before the swap.
	if !exists {
		send(fmt.Sprintf("Creating associated token account for %s...", req.Token.Symbol))
		sig, err := e.createDestinationAccount(ctx, destination, merchant, outputMint)
		if err != nil {
			return fail(StepEnsureAccountExists, err)
		}
		send(fmt.Sprintf("Associated token account created. Signature: https://solscan.io/tx/%s", sig))
	}

	solAmount := "Unknown"
	if req.InputMint == token.NativeMint {
		solAmount = fmt.Sprintf("%.4f", req.Amount/1e9)
	}
	send(fmt.Sprintf("Initiating swap: %s SOL -> %s. Please confirm in your wallet...", solAmount, req.Token.Symbol))

	// Step 3: quote. A routing error is terminal, not retryable.
	quote, err := e.jupiter.Quote(ctx, QuoteRequest{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      uint64(math.Round(req.Amount)),
		SlippageBps: 50,
	})
	if err != nil {
		return fail(StepFetchQuote, err)
	}

	// Step 4: build the unsigned transaction with the merchant's account as
	// destination.
	encodedTx, err := e.jupiter.BuildSwap(ctx, BuildRequest{
		Quote:                   quote,
		UserPublicKey:           e.signer.PublicKey().String(),
		DestinationTokenAccount: destination.String(),
	})
	if err != nil {
		return fail(StepBuildAndRequestSwap, err)
	}

	// Step 5: sign and submit. Preflight is skipped; the RPC node retries
	// delivery on our behalf.
	raw, err := base64.StdEncoding.DecodeString(encodedTx)
	if err != nil {
		return fail(StepSignAndSubmit, fmt.Errorf("failed to decode swap transaction: %w", err))
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return fail(StepSignAndSubmit, fmt.Errorf("failed to deserialize swap transaction: %w", err))
	}
	if err := e.signer.Sign(ctx, tx); err != nil {
		return fail(StepSignAndSubmit, fmt.Errorf("failed to sign transaction: %w", err))
	}
	signedTx, err := tx.MarshalBinary()
	if err != nil {
		return fail(StepSignAndSubmit, fmt.Errorf("failed to serialize transaction: %w", err))
	}

	signature, err := e.rpc.SendRawTransaction(ctx, base64.StdEncoding.EncodeToString(signedTx), rpc.SendOptions{
		SkipPreflight:       true,
		PreflightCommitment: "processed",
		MaxRetries:          sendMaxRetries,
	})
	if err != nil {
		return fail(StepSignAndSubmit, err)
	}

	send(fmt.Sprintf("Transaction submitted. Signature: %s\n\nWaiting for confirmation...", signature))

	// Step 6: wait for finality. The transaction may still land after a
	// timeout here; the signature is reported either way.
	if err := e.rpc.ConfirmTransaction(ctx, signature, "finalized", e.confirmTimeout); err != nil {
		res := fail(StepConfirmFinality, err)
		res.Signature = signature
		return res
	}

	send(fmt.Sprintf("Swap successful.\n\nTransaction: https://solscan.io/tx/%s\nAmount: %s SOL -> %s\n\nThe tokens should appear in the merchant's wallet shortly.",
		signature, solAmount, req.Token.Symbol))

	e.logger.WithFields(logrus.Fields{
		"signature": signature,
		"token":     req.Token.Symbol,
	}).Info("swap finalized")

	return Result{Succeeded: true, Signature: signature}
}

func (e *Executor) createDestinationAccount(ctx context.Context, ata, owner, mint solana.PublicKey) (string, error) {
	payer := e.signer.PublicKey()
	ix := NewCreateAssociatedTokenAccountIx(payer, ata, owner, mint)

	blockhash, err := e.rpc.GetLatestBlockhash(ctx, "finalized")
	if err != nil {
		return "", fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	if err := e.signer.Sign(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to sign account creation: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	sig, err := e.rpc.SendRawTransaction(ctx, base64.StdEncoding.EncodeToString(raw), rpc.SendOptions{
		PreflightCommitment: "finalized",
		MaxRetries:          sendMaxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send account creation: %w", err)
	}

	if err := e.rpc.ConfirmTransaction(ctx, sig, "finalized", e.confirmTimeout); err != nil {
		return "", fmt.Errorf("account creation not confirmed: %w", err)
	}
	return sig, nil
}
