package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/pkg/logger"
)

// SubscriptionUsecase runs the subscription lifecycle workflows
type SubscriptionUsecase struct {
	gateway  PaymentGateway
	minting  MintingService
	queue    JobQueue
	invoices Deduplicator
	now      func() time.Time
}

// NewSubscriptionUsecase creates a new subscription usecase.
// A nil invoices deduplicator counts every invoice.paid delivery.
func NewSubscriptionUsecase(gateway PaymentGateway, minting MintingService, queue JobQueue, invoices Deduplicator) *SubscriptionUsecase {
	return &SubscriptionUsecase{
		gateway:  gateway,
		minting:  minting,
		queue:    queue,
		invoices: invoices,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for mint timestamps
func (u *SubscriptionUsecase) SetClock(now func() time.Time) {
	if now != nil {
		u.now = now
	}
}

// HandleSubscriptionCreated requests a mint for the customer's wallet and
// chains the finalization job
func (u *SubscriptionUsecase) HandleSubscriptionCreated(ctx context.Context, payload []byte) error {
	sub, err := u.gateway.DecodeSubscription(payload)
	if err != nil {
		return err
	}

	wallet, err := u.walletAddress(ctx, sub.CustomerID)
	if err != nil {
		return err
	}

	tx, err := u.minting.SendMint(ctx, wallet)
	if err != nil {
		return err
	}
	if tx == nil || tx.TransactionID == "" {
		return fmt.Errorf("%w: no transaction id for subscription %s", domainerrors.ErrMintRequest, sub.ID)
	}

	next, err := json.Marshal(entities.MintTransactionCreatedPayload{
		TransactionID:  tx.TransactionID,
		SubscriptionID: sub.ID,
		CreatedAt:      u.now().UTC(),
	})
	if err != nil {
		return err
	}

	jobID, err := u.queue.Enqueue(ctx, entities.JobTypeMintTransactionCreated, next)
	if err != nil {
		return fmt.Errorf("enqueue mint finalization: %w", err)
	}

	logger.Info(ctx, "Mint requested",
		zap.String("subscription_id", sub.ID),
		zap.String("transaction_id", tx.TransactionID),
		zap.String("next_job_id", jobID),
	)
	return nil
}

// HandleSubscriptionDeleted marks the subscription's token cancelled.
// A token that is already cancelled is left untouched.
func (u *SubscriptionUsecase) HandleSubscriptionDeleted(ctx context.Context, payload []byte) error {
	sub, err := u.gateway.DecodeSubscription(payload)
	if err != nil {
		return err
	}

	tokenID, err := requireTokenID(sub)
	if err != nil {
		return err
	}

	metadata, err := u.minting.GetTokenMetadata(ctx, tokenID)
	if err != nil {
		return err
	}
	if metadata.IsCancelled() {
		logger.Info(ctx, "Token already cancelled", zap.Int64("token_id", tokenID))
		return nil
	}

	updated := metadata.Clone()
	updated.Status = entities.TokenStatusCancelled
	if err := u.minting.UpdateTokenMetadata(ctx, tokenID, updated); err != nil {
		return err
	}

	logger.Info(ctx, "Token cancelled", zap.String("subscription_id", sub.ID), zap.Int64("token_id", tokenID))
	return nil
}

// HandleInvoicePaid adds one stamina point to the subscription's token
func (u *SubscriptionUsecase) HandleInvoicePaid(ctx context.Context, payload []byte) error {
	invoice, err := u.gateway.DecodeInvoice(payload)
	if err != nil {
		return err
	}
	if invoice.SubscriptionID == "" {
		logger.Info(ctx, "Invoice has no subscription", zap.String("invoice_id", invoice.ID))
		return nil
	}

	sub := invoice.Subscription
	if sub == nil {
		sub, err = u.gateway.GetSubscription(ctx, invoice.SubscriptionID)
		if err != nil {
			return err
		}
	}

	tokenID, err := requireTokenID(sub)
	if err != nil {
		return err
	}

	if u.invoices != nil && invoice.ID != "" {
		claimed, err := u.invoices.Claim(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("claim invoice %s: %w", invoice.ID, err)
		}
		if !claimed {
			logger.Info(ctx, "Invoice already counted", zap.String("invoice_id", invoice.ID))
			return nil
		}
	}

	if err := u.incrementStamina(ctx, tokenID); err != nil {
		if u.invoices != nil && invoice.ID != "" {
			if relErr := u.invoices.Release(context.WithoutCancel(ctx), invoice.ID); relErr != nil {
				logger.Warn(ctx, "Failed to release invoice claim", zap.String("invoice_id", invoice.ID), zap.Error(relErr))
			}
		}
		return err
	}

	logger.Info(ctx, "Stamina incremented", zap.String("invoice_id", invoice.ID), zap.Int64("token_id", tokenID))
	return nil
}

func (u *SubscriptionUsecase) incrementStamina(ctx context.Context, tokenID int64) error {
	metadata, err := u.minting.GetTokenMetadata(ctx, tokenID)
	if err != nil {
		return err
	}

	updated := metadata.Clone()
	updated.Stamina++
	return u.minting.UpdateTokenMetadata(ctx, tokenID, updated)
}

func (u *SubscriptionUsecase) walletAddress(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("%w: subscription has no customer", domainerrors.ErrDataIntegrity)
	}

	customer, err := u.gateway.GetCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	if customer.Deleted {
		return "", fmt.Errorf("%w: customer %s has been deleted", domainerrors.ErrDataIntegrity, customerID)
	}

	wallet := customer.WalletAddress()
	if wallet == "" {
		return "", fmt.Errorf("%w: no wallet address in metadata of customer %s", domainerrors.ErrDataIntegrity, customerID)
	}
	return wallet, nil
}

func requireTokenID(sub *entities.Subscription) (int64, error) {
	tokenID, ok := sub.TokenID()
	if !ok {
		id := ""
		if sub != nil {
			id = sub.ID
		}
		return 0, fmt.Errorf("%w: subscription %s has no numeric token id", domainerrors.ErrDataIntegrity, id)
	}
	return tokenID, nil
}
