package usecases

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"stripe-minter.backend/internal/domain/entities"
)

// JobQueue is the producer side of the durable job queue
type JobQueue interface {
	Enqueue(ctx context.Context, jobType entities.JobType, payload []byte) (string, error)
	Stats(ctx context.Context) (entities.QueueStats, error)
}

// FailedJobQueue also lets operators clear a dead job once it was retried
type FailedJobQueue interface {
	JobQueue
	RemoveFailed(ctx context.Context, id string) (bool, error)
}

// PaymentGateway is the payment provider surface used by the workflows
type PaymentGateway interface {
	ConstructEvent(payload []byte, signature string) (*entities.WebhookEvent, error)
	DecodeSubscription(payload []byte) (*entities.Subscription, error)
	DecodeInvoice(payload []byte) (*entities.Invoice, error)

	GetCustomer(ctx context.Context, customerID string) (*entities.Customer, error)
	CreateCustomer(ctx context.Context, walletAddress string) (*entities.Customer, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*entities.Subscription, error)
	UpdateSubscriptionTokenID(ctx context.Context, subscriptionID string, tokenID int64) error
	CancelSubscription(ctx context.Context, subscriptionID string) error
	FindPriceByLookupKey(ctx context.Context, lookupKey string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*entities.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*entities.CheckoutSession, error)
}

// MintingService is the minting and token metadata surface
type MintingService interface {
	SendMint(ctx context.Context, recipient string) (*entities.MintTransaction, error)
	GetTransactionRequest(ctx context.Context, transactionID string) (*entities.TransactionRequest, error)
	ClaimContract(ctx context.Context) error
	GetTokenMetadata(ctx context.Context, tokenID int64) (*entities.TokenMetadata, error)
	UpdateTokenMetadata(ctx context.Context, tokenID int64, metadata *entities.TokenMetadata) error
}

// ReceiptFetcher looks up mined transaction receipts
type ReceiptFetcher interface {
	GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

// Deduplicator claims a key once within its TTL
type Deduplicator interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// PollRecorder observes how many attempts a polling phase used
type PollRecorder interface {
	PollAttempts(phase string, attempts int)
}
