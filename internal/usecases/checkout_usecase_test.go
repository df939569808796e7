package usecases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/usecases"
)

const wallet = "0x1111111111111111111111111111111111111111"

func TestCheckoutUsecase_CreateCheckoutSession(t *testing.T) {
	gateway := new(MockPaymentGateway)
	uc := usecases.NewCheckoutUsecase(gateway, new(MockMintingService), "https://shop.example/")

	gateway.On("CreateCustomer", mock.Anything, wallet).Return(&entities.Customer{ID: "cus_1"}, nil)
	gateway.On("FindPriceByLookupKey", mock.Anything, "pro_monthly").Return("price_1", nil)
	gateway.On("CreateCheckoutSession", mock.Anything, "cus_1", "price_1",
		"https://shop.example/subscribed.html?session_id={CHECKOUT_SESSION_ID}",
		"https://shop.example/subscribe.html",
	).Return(&entities.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil)

	url, err := uc.CreateCheckoutSession(context.Background(), wallet, "pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", url)
	assert.Equal(t, "https://shop.example/subscribe.html", uc.SubscribePageURL())
}

func TestCheckoutUsecase_CreateCheckoutSession_Validation(t *testing.T) {
	gateway := new(MockPaymentGateway)
	uc := usecases.NewCheckoutUsecase(gateway, new(MockMintingService), "https://shop.example")

	_, err := uc.CreateCheckoutSession(context.Background(), "not-a-wallet", "pro")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = uc.CreateCheckoutSession(context.Background(), wallet, " ")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestCheckoutUsecase_CreateCheckoutSession_NoPrice(t *testing.T) {
	gateway := new(MockPaymentGateway)
	uc := usecases.NewCheckoutUsecase(gateway, new(MockMintingService), "https://shop.example")

	gateway.On("CreateCustomer", mock.Anything, wallet).Return(&entities.Customer{ID: "cus_1"}, nil)
	gateway.On("FindPriceByLookupKey", mock.Anything, "gone").Return("", domainerrors.ErrValidation)

	_, err := uc.CreateCheckoutSession(context.Background(), wallet, "gone")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutUsecase_CancelSubscription(t *testing.T) {
	gateway := new(MockPaymentGateway)
	uc := usecases.NewCheckoutUsecase(gateway, new(MockMintingService), "https://shop.example")

	gateway.On("GetCheckoutSession", mock.Anything, "cs_1").Return(&entities.CheckoutSession{ID: "cs_1", SubscriptionID: "sub_1"}, nil)
	gateway.On("CancelSubscription", mock.Anything, "sub_1").Return(nil).Once()

	subID, err := uc.CancelSubscription(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", subID)
	gateway.AssertExpectations(t)
}

func TestCheckoutUsecase_CancelSubscription_SessionWithoutSubscription(t *testing.T) {
	gateway := new(MockPaymentGateway)
	uc := usecases.NewCheckoutUsecase(gateway, new(MockMintingService), "https://shop.example")

	gateway.On("GetCheckoutSession", mock.Anything, "cs_1").Return(&entities.CheckoutSession{ID: "cs_1"}, nil)

	_, err := uc.CancelSubscription(context.Background(), "cs_1")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	gateway.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)

	_, err = uc.CancelSubscription(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCheckoutUsecase_GetNFTMetadata(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		gateway := new(MockPaymentGateway)
		minting := new(MockMintingService)
		uc := usecases.NewCheckoutUsecase(gateway, minting, "https://shop.example")

		gateway.On("GetCheckoutSession", mock.Anything, "cs_1").Return(&entities.CheckoutSession{SubscriptionID: "sub_1"}, nil)
		gateway.On("GetSubscription", mock.Anything, "sub_1").Return(&entities.Subscription{ID: "sub_1", Metadata: map[string]string{"tokenId": "42"}}, nil)
		minting.On("GetTokenMetadata", mock.Anything, int64(42)).Return(&entities.TokenMetadata{Stamina: 2, Status: entities.TokenStatusActive}, nil)

		m, err := uc.GetNFTMetadata(context.Background(), "cs_1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), m.Stamina)
	})

	t.Run("not ready", func(t *testing.T) {
		gateway := new(MockPaymentGateway)
		minting := new(MockMintingService)
		uc := usecases.NewCheckoutUsecase(gateway, minting, "https://shop.example")

		gateway.On("GetCheckoutSession", mock.Anything, "cs_1").Return(&entities.CheckoutSession{SubscriptionID: "sub_1"}, nil)
		gateway.On("GetSubscription", mock.Anything, "sub_1").Return(&entities.Subscription{ID: "sub_1", Metadata: map[string]string{}}, nil)

		_, err := uc.GetNFTMetadata(context.Background(), "cs_1")
		assert.ErrorIs(t, err, domainerrors.ErrMetadataNotReady)
		minting.AssertNotCalled(t, "GetTokenMetadata", mock.Anything, mock.Anything)
	})
}
