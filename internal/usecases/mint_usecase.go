package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/infrastructure/blockchain"
	"stripe-minter.backend/pkg/logger"
	"stripe-minter.backend/pkg/retry"
)

// Polling phase labels
const (
	PhaseTransactionHash = "transaction_hash"
	PhaseTokenID         = "token_id"
)

// MintConfig holds polling bounds and the initial token attributes
type MintConfig struct {
	PollAttempts int
	PollDelay    time.Duration
	TokenImage   string
	TokenTier    string
}

// MintUsecase finalizes a submitted mint: it waits for the transaction to be
// broadcast and mined, then records the token id and initial metadata
type MintUsecase struct {
	gateway  PaymentGateway
	minting  MintingService
	receipts ReceiptFetcher
	cfg      MintConfig
	sleep    retry.Sleeper
	recorder PollRecorder
}

// NewMintUsecase creates a new mint usecase
func NewMintUsecase(gateway PaymentGateway, minting MintingService, receipts ReceiptFetcher, cfg MintConfig) *MintUsecase {
	if cfg.PollAttempts < 1 {
		cfg.PollAttempts = 10
	}
	if cfg.PollDelay < 0 {
		cfg.PollDelay = 0
	}
	if cfg.TokenTier == "" {
		cfg.TokenTier = "pro"
	}
	return &MintUsecase{
		gateway:  gateway,
		minting:  minting,
		receipts: receipts,
		cfg:      cfg,
		sleep:    retry.SleepContext,
	}
}

// SetSleeper replaces the wait between polling attempts
func (u *MintUsecase) SetSleeper(s retry.Sleeper) {
	if s != nil {
		u.sleep = s
	}
}

// SetPollRecorder registers an observer for attempts used per phase
func (u *MintUsecase) SetPollRecorder(r PollRecorder) {
	u.recorder = r
}

// HandleMintTransactionCreated runs both polling phases and applies the results
func (u *MintUsecase) HandleMintTransactionCreated(ctx context.Context, payload []byte) error {
	var data entities.MintTransactionCreatedPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("%w: decode mint payload: %v", domainerrors.ErrDataIntegrity, err)
	}
	if data.TransactionID == "" || data.SubscriptionID == "" {
		return fmt.Errorf("%w: mint payload needs transactionId and subscriptionId", domainerrors.ErrDataIntegrity)
	}

	hash, err := u.ResolveTransactionHash(ctx, data.TransactionID)
	if err != nil {
		return err
	}

	tokenID, err := u.ResolveTokenID(ctx, hash)
	if err != nil {
		return err
	}

	if err := u.gateway.UpdateSubscriptionTokenID(ctx, data.SubscriptionID, tokenID); err != nil {
		return err
	}
	if err := u.minting.ClaimContract(ctx); err != nil {
		return err
	}

	metadata := entities.NewInitialTokenMetadata(u.cfg.TokenImage, u.cfg.TokenTier, data.CreatedAt)
	if err := u.minting.UpdateTokenMetadata(ctx, tokenID, metadata); err != nil {
		return err
	}

	logger.Info(ctx, "Mint finalized",
		zap.String("subscription_id", data.SubscriptionID),
		zap.String("transaction_id", data.TransactionID),
		zap.String("tx_hash", hash),
		zap.Int64("token_id", tokenID),
	)
	return nil
}

// ResolveTransactionHash polls the minting service until the transaction has
// an on-chain hash
func (u *MintUsecase) ResolveTransactionHash(ctx context.Context, transactionID string) (string, error) {
	used := 0
	hash, err := retry.Poll(ctx, u.pollConfig(), func(ctx context.Context, attempt int) (string, error) {
		used = attempt
		req, err := u.minting.GetTransactionRequest(ctx, transactionID)
		if err != nil {
			return "", err
		}
		hash, ok := req.FirstHash()
		if !ok {
			return "", errors.New("transaction not broadcast yet")
		}
		return hash, nil
	}, u.pollOptions(ctx, PhaseTransactionHash, transactionID)...)
	u.record(PhaseTransactionHash, used)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: transaction %s: %v", domainerrors.ErrMintNotFound, transactionID, err)
	}
	return hash, nil
}

// ResolveTokenID polls for the mined receipt and decodes the token id from it
func (u *MintUsecase) ResolveTokenID(ctx context.Context, txHash string) (int64, error) {
	used := 0
	tokenID, err := retry.Poll(ctx, u.pollConfig(), func(ctx context.Context, attempt int) (int64, error) {
		used = attempt
		receipt, err := u.receipts.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			if errors.Is(err, blockchain.ErrInvalidTxHash) {
				return 0, retry.Permanent(err)
			}
			if blockchain.IsReceiptPending(err) {
				return 0, errNotMinedYet
			}
			return 0, fmt.Errorf("receipt lookup: %w", err)
		}
		if receipt == nil {
			return 0, errNotMinedYet
		}

		id, err := blockchain.TokenIDFromReceipt(receipt, blockchain.MintTransferLogIndex, blockchain.TokenIDTopicIndex)
		if err != nil {
			return 0, retry.Permanent(err)
		}
		return id, nil
	}, u.pollOptions(ctx, PhaseTokenID, txHash)...)
	u.record(PhaseTokenID, used)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: transaction %s: %v", domainerrors.ErrTokenIDNotFound, txHash, err)
	}
	return tokenID, nil
}

var errNotMinedYet = errors.New("transaction not mined yet")

func (u *MintUsecase) pollConfig() retry.Config {
	return retry.Fixed(u.cfg.PollAttempts, u.cfg.PollDelay)
}

func (u *MintUsecase) pollOptions(ctx context.Context, phase, ref string) []retry.Option {
	return []retry.Option{
		retry.WithSleeper(u.sleep),
		retry.WithOnRetry(func(attempt int, err error) {
			logger.Debug(ctx, "Polling retry",
				zap.String("phase", phase),
				zap.String("ref", ref),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}),
	}
}

func (u *MintUsecase) record(phase string, attempts int) {
	if u.recorder != nil && attempts > 0 {
		u.recorder.PollAttempts(phase, attempts)
	}
}
