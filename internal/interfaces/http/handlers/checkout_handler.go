package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/interfaces/http/response"
)

type checkoutService interface {
	SubscribePageURL() string
	CreateCheckoutSession(ctx context.Context, walletAddress, lookupKey string) (string, error)
	CancelSubscription(ctx context.Context, sessionID string) (string, error)
	GetNFTMetadata(ctx context.Context, sessionID string) (*entities.TokenMetadata, error)
}

// CheckoutHandler handles the browser-facing subscription endpoints
type CheckoutHandler struct {
	checkoutUsecase checkoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutUsecase checkoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutUsecase: checkoutUsecase}
}

// CreateCheckoutSessionInput accepts both the form post of the subscribe page and JSON
type CreateCheckoutSessionInput struct {
	WalletAddress  string `form:"walletAddress" json:"walletAddress"`
	LookupKey      string `form:"lookup_key" json:"lookup_key"`
	LookupKeyAlias string `form:"lookupKey" json:"lookupKey"`
}

// CancelSubscriptionInput identifies the checkout session to cancel
type CancelSubscriptionInput struct {
	SessionID      string `form:"session_id" json:"session_id"`
	SessionIDAlias string `form:"sessionId" json:"sessionId"`
}

// Index redirects to the subscribe page
// GET /
func (h *CheckoutHandler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, h.checkoutUsecase.SubscribePageURL())
}

// CreateCheckoutSession starts a subscription checkout and redirects to it
// POST /create-checkout-session
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	var input CreateCheckoutSessionInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	lookupKey := input.LookupKey
	if lookupKey == "" {
		lookupKey = input.LookupKeyAlias
	}

	url, err := h.checkoutUsecase.CreateCheckoutSession(c.Request.Context(), input.WalletAddress, lookupKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, url)
}

// CancelSubscription cancels the subscription behind a checkout session
// POST /cancel-subscription
func (h *CheckoutHandler) CancelSubscription(c *gin.Context) {
	var input CancelSubscriptionInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = input.SessionIDAlias
	}

	subscriptionID, err := h.checkoutUsecase.CancelSubscription(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"subscriptionId": subscriptionID,
		"status":         "canceled",
	})
}

// GetNFTMetadata returns the token metadata for a checkout session
// GET /nft-metadata?session_id=
func (h *CheckoutHandler) GetNFTMetadata(c *gin.Context) {
	metadata, err := h.checkoutUsecase.GetNFTMetadata(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, metadata)
}
