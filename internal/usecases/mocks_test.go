package usecases_test

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"stripe-minter.backend/internal/domain/entities"
)

// Mock PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) ConstructEvent(payload []byte, signature string) (*entities.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WebhookEvent), args.Error(1)
}

func (m *MockPaymentGateway) DecodeSubscription(payload []byte) (*entities.Subscription, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Subscription), args.Error(1)
}

func (m *MockPaymentGateway) DecodeInvoice(payload []byte) (*entities.Invoice, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Invoice), args.Error(1)
}

func (m *MockPaymentGateway) GetCustomer(ctx context.Context, customerID string) (*entities.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Customer), args.Error(1)
}

func (m *MockPaymentGateway) CreateCustomer(ctx context.Context, walletAddress string) (*entities.Customer, error) {
	args := m.Called(ctx, walletAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Customer), args.Error(1)
}

func (m *MockPaymentGateway) GetSubscription(ctx context.Context, subscriptionID string) (*entities.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Subscription), args.Error(1)
}

func (m *MockPaymentGateway) UpdateSubscriptionTokenID(ctx context.Context, subscriptionID string, tokenID int64) error {
	args := m.Called(ctx, subscriptionID, tokenID)
	return args.Error(0)
}

func (m *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockPaymentGateway) FindPriceByLookupKey(ctx context.Context, lookupKey string) (string, error) {
	args := m.Called(ctx, lookupKey)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*entities.CheckoutSession, error) {
	args := m.Called(ctx, customerID, priceID, successURL, cancelURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CheckoutSession), args.Error(1)
}

func (m *MockPaymentGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*entities.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CheckoutSession), args.Error(1)
}

// Mock MintingService
type MockMintingService struct {
	mock.Mock
}

func (m *MockMintingService) SendMint(ctx context.Context, recipient string) (*entities.MintTransaction, error) {
	args := m.Called(ctx, recipient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MintTransaction), args.Error(1)
}

func (m *MockMintingService) GetTransactionRequest(ctx context.Context, transactionID string) (*entities.TransactionRequest, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRequest), args.Error(1)
}

func (m *MockMintingService) ClaimContract(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMintingService) GetTokenMetadata(ctx context.Context, tokenID int64) (*entities.TokenMetadata, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TokenMetadata), args.Error(1)
}

func (m *MockMintingService) UpdateTokenMetadata(ctx context.Context, tokenID int64, metadata *entities.TokenMetadata) error {
	args := m.Called(ctx, tokenID, metadata)
	return args.Error(0)
}

// Mock JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, jobType entities.JobType, payload []byte) (string, error) {
	args := m.Called(ctx, jobType, payload)
	return args.String(0), args.Error(1)
}

func (m *MockJobQueue) Stats(ctx context.Context) (entities.QueueStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(entities.QueueStats), args.Error(1)
}

func (m *MockJobQueue) RemoveFailed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Mock ReceiptFetcher
type MockReceiptFetcher struct {
	mock.Mock
}

func (m *MockReceiptFetcher) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

// Mock Deduplicator
type MockDeduplicator struct {
	mock.Mock
}

func (m *MockDeduplicator) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduplicator) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Mock FailedJobRepository
type MockFailedJobRepository struct {
	mock.Mock
}

func (m *MockFailedJobRepository) Create(ctx context.Context, job *entities.FailedJob) error {
	args := m.Called(ctx, job)
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockFailedJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.FailedJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FailedJob), args.Error(1)
}

func (m *MockFailedJobRepository) List(ctx context.Context, limit, offset int) ([]*entities.FailedJob, int, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*entities.FailedJob), args.Int(1), args.Error(2)
}

func (m *MockFailedJobRepository) MarkRetried(ctx context.Context, id uuid.UUID, retryJobID string, retriedAt time.Time) error {
	args := m.Called(ctx, id, retryJobID, retriedAt)
	return args.Error(0)
}

// noSleep records requested delays without waiting
type noSleep struct {
	delays []time.Duration
}

func (s *noSleep) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}
