package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_TokenID(t *testing.T) {
	tests := []struct {
		name     string
		sub      *Subscription
		expected int64
		ok       bool
	}{
		{"nil subscription", nil, 0, false},
		{"no metadata", &Subscription{ID: "sub_1"}, 0, false},
		{"absent key", &Subscription{Metadata: map[string]string{"other": "1"}}, 0, false},
		{"numeric", &Subscription{Metadata: map[string]string{"tokenId": "42"}}, 42, true},
		{"zero", &Subscription{Metadata: map[string]string{"tokenId": "0"}}, 0, true},
		{"padded", &Subscription{Metadata: map[string]string{"tokenId": " 7 "}}, 7, true},
		{"empty", &Subscription{Metadata: map[string]string{"tokenId": ""}}, 0, false},
		{"trailing junk", &Subscription{Metadata: map[string]string{"tokenId": "12abc"}}, 0, false},
		{"hex", &Subscription{Metadata: map[string]string{"tokenId": "0x2a"}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.sub.TokenID()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCustomer_WalletAddress(t *testing.T) {
	var nilCustomer *Customer
	assert.Empty(t, nilCustomer.WalletAddress())
	assert.Empty(t, (&Customer{}).WalletAddress())
	assert.Equal(t, "0xA", (&Customer{Metadata: map[string]string{"walletAddress": " 0xA "}}).WalletAddress())
}

func TestTransactionRequest_FirstHash(t *testing.T) {
	var nilReq *TransactionRequest
	_, ok := nilReq.FirstHash()
	assert.False(t, ok)

	_, ok = (&TransactionRequest{}).FirstHash()
	assert.False(t, ok)

	req := &TransactionRequest{TransactionAttempts: []TransactionAttempt{
		{Hash: ""},
		{Hash: "pending"},
		{Hash: "0xabc"},
		{Hash: "0xdef"},
	}}
	hash, ok := req.FirstHash()
	require.True(t, ok)
	assert.Equal(t, "0xabc", hash)
}

func TestJobType_IsKnown(t *testing.T) {
	assert.True(t, JobTypeSubscriptionCreated.IsKnown())
	assert.True(t, JobTypeSubscriptionDeleted.IsKnown())
	assert.True(t, JobTypeInvoicePaid.IsKnown())
	assert.True(t, JobTypeMintTransactionCreated.IsKnown())
	assert.False(t, JobType("charge.refunded").IsKnown())
}

func TestNewInitialTokenMetadata(t *testing.T) {
	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewInitialTokenMetadata("https://img", "pro", joined)

	assert.Equal(t, "https://img", m.Image)
	assert.Equal(t, "pro", m.Tier)
	assert.Equal(t, TokenStatusActive, m.Status)
	assert.Equal(t, int64(1), m.Level)
	assert.Zero(t, m.Stamina)
	assert.Zero(t, m.Creator+m.Collaborator+m.Advisor+m.Builder+m.Evangelist)
	assert.Equal(t, "2024-03-01T12:00:00Z", m.JoinedDate)
	assert.False(t, m.IsCancelled())
}

func TestTokenMetadata_JSONKeepsUnknownFields(t *testing.T) {
	in := `{"image":"i","joined_date":"d","tier":"pro","status":"active","level":2,"stamina":5,` +
		`"creator":1,"collaborator":0,"advisor":0,"builder":0,"evangelist":0,"name":"Member #5","attributes":[1,2]}`

	var m TokenMetadata
	require.NoError(t, json.Unmarshal([]byte(in), &m))
	assert.Equal(t, int64(5), m.Stamina)
	assert.Equal(t, int64(2), m.Level)
	require.Len(t, m.Extra, 2)

	m.Status = TokenStatusCancelled
	out, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "cancelled", decoded["status"])
	assert.Equal(t, "Member #5", decoded["name"])
	assert.Equal(t, []any{float64(1), float64(2)}, decoded["attributes"])
	assert.Equal(t, float64(5), decoded["stamina"])
}

func TestTokenMetadata_CloneIsIndependent(t *testing.T) {
	m := &TokenMetadata{Stamina: 1, Extra: map[string]json.RawMessage{"name": json.RawMessage(`"a"`)}}
	c := m.Clone()
	c.Stamina++
	c.Extra["name"][1] = 'b'

	assert.Equal(t, int64(1), m.Stamina)
	assert.Equal(t, `"a"`, string(m.Extra["name"]))
}

func TestFailedJob_IsRetried(t *testing.T) {
	f := &FailedJob{}
	assert.False(t, f.IsRetried())
	f.RetriedAt.SetValid(time.Now())
	assert.True(t, f.IsRetried())
}
