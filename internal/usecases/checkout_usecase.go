package usecases

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/infrastructure/blockchain"
	"stripe-minter.backend/pkg/logger"
)

// CheckoutUsecase serves the browser-facing subscription flow
type CheckoutUsecase struct {
	gateway PaymentGateway
	minting MintingService
	domain  string
}

// NewCheckoutUsecase creates a new checkout usecase. domain is the public
// origin used for the checkout return pages.
func NewCheckoutUsecase(gateway PaymentGateway, minting MintingService, domain string) *CheckoutUsecase {
	return &CheckoutUsecase{
		gateway: gateway,
		minting: minting,
		domain:  strings.TrimRight(domain, "/"),
	}
}

// SubscribePageURL is where buyers start and where cancelled checkouts return
func (u *CheckoutUsecase) SubscribePageURL() string {
	return u.domain + "/subscribe.html"
}

// SuccessPageURL carries the session id placeholder Stripe fills in
func (u *CheckoutUsecase) SuccessPageURL() string {
	return u.domain + "/subscribed.html?session_id={CHECKOUT_SESSION_ID}"
}

// CreateCheckoutSession registers the wallet as a customer and opens a
// subscription checkout for the price behind lookupKey. It returns the
// checkout URL.
func (u *CheckoutUsecase) CreateCheckoutSession(ctx context.Context, walletAddress, lookupKey string) (string, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	lookupKey = strings.TrimSpace(lookupKey)

	if !blockchain.IsValidAddress(walletAddress) {
		return "", fmt.Errorf("%w: walletAddress must be a hex address", domainerrors.ErrValidation)
	}
	if lookupKey == "" {
		return "", fmt.Errorf("%w: lookup_key is required", domainerrors.ErrValidation)
	}

	customer, err := u.gateway.CreateCustomer(ctx, walletAddress)
	if err != nil {
		return "", err
	}

	priceID, err := u.gateway.FindPriceByLookupKey(ctx, lookupKey)
	if err != nil {
		return "", err
	}

	session, err := u.gateway.CreateCheckoutSession(ctx, customer.ID, priceID, u.SuccessPageURL(), u.SubscribePageURL())
	if err != nil {
		return "", err
	}
	if session.URL == "" {
		return "", fmt.Errorf("%w: checkout session %s has no url", domainerrors.ErrExternalService, session.ID)
	}

	logger.Info(ctx, "Checkout session created",
		zap.String("session_id", session.ID),
		zap.String("customer_id", customer.ID),
	)
	return session.URL, nil
}

// CancelSubscription cancels the subscription created by a checkout session
// and returns its id
func (u *CheckoutUsecase) CancelSubscription(ctx context.Context, sessionID string) (string, error) {
	subscriptionID, err := u.sessionSubscription(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if err := u.gateway.CancelSubscription(ctx, subscriptionID); err != nil {
		return "", err
	}

	logger.Info(ctx, "Subscription cancelled", zap.String("subscription_id", subscriptionID))
	return subscriptionID, nil
}

// GetNFTMetadata resolves a checkout session to its token metadata.
// It returns ErrMetadataNotReady until the mint has been finalized.
func (u *CheckoutUsecase) GetNFTMetadata(ctx context.Context, sessionID string) (*entities.TokenMetadata, error) {
	subscriptionID, err := u.sessionSubscription(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sub, err := u.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	tokenID, ok := sub.TokenID()
	if !ok {
		return nil, domainerrors.ErrMetadataNotReady
	}
	return u.minting.GetTokenMetadata(ctx, tokenID)
}

func (u *CheckoutUsecase) sessionSubscription(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("%w: session_id is required", domainerrors.ErrValidation)
	}

	session, err := u.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.SubscriptionID == "" {
		return "", fmt.Errorf("%w: session %s has no subscription", domainerrors.ErrValidation, sessionID)
	}
	return session.SubscriptionID, nil
}
