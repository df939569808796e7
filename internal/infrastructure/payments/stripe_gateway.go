package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
)

const (
	priceCacheSize       = 64
	DefaultPriceCacheTTL = 5 * time.Minute
)

// StripeGateway wraps the Stripe API calls the service needs
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	// nil disables caching so every lookup lists prices
	prices *expirable.LRU[string, string]
}

// NewStripeGateway creates a gateway against the live Stripe backends
func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	return NewStripeGatewayWithBackends(apiKey, webhookSecret, nil)
}

// NewStripeGatewayWithBackends creates a gateway on explicit backends.
// A nil backends value uses the Stripe defaults.
func NewStripeGatewayWithBackends(apiKey, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)

	return &StripeGateway{
		api:           sc,
		webhookSecret: webhookSecret,
		prices:        expirable.NewLRU[string, string](priceCacheSize, nil, DefaultPriceCacheTTL),
	}
}

// SetPriceCacheTTL bounds how long a lookup key stays mapped to a price id.
// A non-positive ttl turns the cache off.
func (g *StripeGateway) SetPriceCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		g.prices = nil
		return
	}
	g.prices = expirable.NewLRU[string, string](priceCacheSize, nil, ttl)
}

// ConstructEvent verifies the signature header against the raw body
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*entities.WebhookEvent, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing stripe signature header", domainerrors.ErrAuthentication)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrAuthentication, err)
	}

	return &entities.WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Payload: payload,
	}, nil
}

// DecodeSubscription extracts the subscription object from a raw event body
func (g *StripeGateway) DecodeSubscription(payload []byte) (*entities.Subscription, error) {
	raw, err := eventObject(payload)
	if err != nil {
		return nil, err
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: decode subscription: %v", domainerrors.ErrDataIntegrity, err)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("%w: subscription without id", domainerrors.ErrDataIntegrity)
	}
	return toSubscription(&sub), nil
}

// DecodeInvoice extracts the invoice object from a raw event body
func (g *StripeGateway) DecodeInvoice(payload []byte) (*entities.Invoice, error) {
	raw, err := eventObject(payload)
	if err != nil {
		return nil, err
	}

	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("%w: decode invoice: %v", domainerrors.ErrDataIntegrity, err)
	}

	invoice := &entities.Invoice{ID: inv.ID}
	if inv.Subscription != nil && inv.Subscription.ID != "" {
		invoice.SubscriptionID = inv.Subscription.ID
		// An unexpanded reference decodes with only the id set
		if inv.Subscription.Metadata != nil {
			invoice.Subscription = toSubscription(inv.Subscription)
		}
	}
	return invoice, nil
}

// GetCustomer retrieves a customer, including deleted ones
func (g *StripeGateway) GetCustomer(ctx context.Context, customerID string) (*entities.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, wrapStripeError("get customer", err)
	}
	return &entities.Customer{ID: c.ID, Deleted: c.Deleted, Metadata: c.Metadata}, nil
}

// CreateCustomer creates a customer carrying the wallet address in its metadata
func (g *StripeGateway) CreateCustomer(ctx context.Context, walletAddress string) (*entities.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddMetadata(entities.MetadataKeyWalletAddress, walletAddress)

	c, err := g.api.Customers.New(params)
	if err != nil {
		return nil, wrapStripeError("create customer", err)
	}
	return &entities.Customer{ID: c.ID, Metadata: c.Metadata}, nil
}

// GetSubscription retrieves a subscription by id
func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*entities.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapStripeError("get subscription", err)
	}
	return toSubscription(sub), nil
}

// UpdateSubscriptionTokenID writes metadata.tokenId, leaving other keys intact
func (g *StripeGateway) UpdateSubscriptionTokenID(ctx context.Context, subscriptionID string, tokenID int64) error {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddMetadata(entities.MetadataKeyTokenID, strconv.FormatInt(tokenID, 10))

	if _, err := g.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return wrapStripeError("update subscription metadata", err)
	}
	return nil
}

// CancelSubscription cancels a subscription immediately
func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := g.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return wrapStripeError("cancel subscription", err)
	}
	return nil
}

// FindPriceByLookupKey returns the id of the first price carrying lookupKey
func (g *StripeGateway) FindPriceByLookupKey(ctx context.Context, lookupKey string) (string, error) {
	if g.prices != nil {
		if id, ok := g.prices.Get(lookupKey); ok {
			return id, nil
		}
	}

	params := &stripe.PriceListParams{LookupKeys: stripe.StringSlice([]string{lookupKey})}
	params.Context = ctx
	params.AddExpand("data.product")

	iter := g.api.Prices.List(params)
	if iter.Next() {
		id := iter.Price().ID
		if g.prices != nil {
			g.prices.Add(lookupKey, id)
		}
		return id, nil
	}
	if err := iter.Err(); err != nil {
		return "", wrapStripeError("list prices", err)
	}
	return "", fmt.Errorf("%w: no price found for lookup key %q", domainerrors.ErrValidation, lookupKey)
}

// CreateCheckoutSession opens a subscription-mode checkout for a single price
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*entities.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:                 stripe.String(customerID),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return toCheckoutSession(s), nil
}

// GetCheckoutSession retrieves a checkout session by id
func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*entities.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, wrapStripeError("get checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func eventObject(payload []byte) (json.RawMessage, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: decode event: %v", domainerrors.ErrDataIntegrity, err)
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", domainerrors.ErrDataIntegrity, event.ID)
	}
	return event.Data.Raw, nil
}

func toSubscription(sub *stripe.Subscription) *entities.Subscription {
	out := &entities.Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	return out
}

func toCheckoutSession(s *stripe.CheckoutSession) *entities.CheckoutSession {
	out := &entities.CheckoutSession{ID: s.ID, URL: s.URL}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return fmt.Errorf("%s: %w: %s", op, domainerrors.ErrExternalService, stripeErr.Msg)
	}
	return fmt.Errorf("%s: %w: %v", op, domainerrors.ErrExternalService, err)
}
