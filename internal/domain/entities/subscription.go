package entities

import (
	"strconv"
	"strings"
)

// Subscription metadata keys
const (
	MetadataKeyTokenID       = "tokenId"
	MetadataKeyWalletAddress = "walletAddress"
)

// Subscription is the payment provider's subscription record
type Subscription struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer"`
	Status     string            `json:"status,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

// TokenID returns the numeric token id attached after minting.
// ok is false while the key is absent or not a base-10 integer.
func (s *Subscription) TokenID() (tokenID int64, ok bool) {
	if s == nil || s.Metadata == nil {
		return 0, false
	}
	raw, present := s.Metadata[MetadataKeyTokenID]
	if !present {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Customer is the payment provider's customer record
type Customer struct {
	ID       string            `json:"id"`
	Deleted  bool              `json:"deleted"`
	Metadata map[string]string `json:"metadata"`
}

// WalletAddress returns the wallet stored on the customer at checkout
func (c *Customer) WalletAddress() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(c.Metadata[MetadataKeyWalletAddress])
}

// Invoice is the payment provider's invoice record. Subscription is only set
// when the event carried the expanded object; SubscriptionID is set whenever
// the invoice belongs to a subscription.
type Invoice struct {
	ID             string
	SubscriptionID string
	Subscription   *Subscription
}

// WebhookEvent is a verified provider event
type WebhookEvent struct {
	ID      string
	Type    string
	Payload []byte
}

// CheckoutSession is the subset of a provider checkout session the service reads
type CheckoutSession struct {
	ID             string
	URL            string
	SubscriptionID string
}

// MintTransaction is the handle returned when a mint is submitted
type MintTransaction struct {
	TransactionID string `json:"transactionId"`
}

// TransactionAttempt is one broadcast of a submitted transaction
type TransactionAttempt struct {
	Hash      string `json:"hash"`
	Status    string `json:"status"`
	Block     int64  `json:"block,omitempty"`
	Reverted  bool   `json:"reverted,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// TransactionRequest is the minting service's record of a submitted transaction
type TransactionRequest struct {
	TransactionID       string               `json:"transactionId"`
	ProjectID           string               `json:"projectId,omitempty"`
	ContractAddress     string               `json:"contractAddress,omitempty"`
	FunctionSignature   string               `json:"functionSignature,omitempty"`
	TransactionAttempts []TransactionAttempt `json:"transactionAttempts"`
}

// FirstHash returns the hash of the first attempt carrying a 0x-prefixed hash
func (r *TransactionRequest) FirstHash() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, attempt := range r.TransactionAttempts {
		if strings.HasPrefix(attempt.Hash, "0x") {
			return attempt.Hash, true
		}
	}
	return "", false
}
