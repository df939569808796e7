package entities

import (
	"encoding/json"
	"time"
)

// TokenStatus is the lifecycle status stored in token metadata
type TokenStatus string

const (
	TokenStatusActive    TokenStatus = "active"
	TokenStatusCancelled TokenStatus = "cancelled"
)

// TokenMetadata is the JSON document stored by the metadata service for one
// token. It is always written back as a whole, so fields this service does not
// know about are kept in Extra and round-tripped unchanged.
type TokenMetadata struct {
	Image        string      `json:"image"`
	JoinedDate   string      `json:"joined_date"`
	Tier         string      `json:"tier"`
	Status       TokenStatus `json:"status"`
	Level        int64       `json:"level"`
	Stamina      int64       `json:"stamina"`
	Creator      int64       `json:"creator"`
	Collaborator int64       `json:"collaborator"`
	Advisor      int64       `json:"advisor"`
	Builder      int64       `json:"builder"`
	Evangelist   int64       `json:"evangelist"`

	Extra map[string]json.RawMessage `json:"-"`
}

// tokenMetadataFields mirrors TokenMetadata without its methods.
type tokenMetadataFields TokenMetadata

var knownTokenMetadataKeys = []string{
	"image", "joined_date", "tier", "status", "level", "stamina",
	"creator", "collaborator", "advisor", "builder", "evangelist",
}

// NewInitialTokenMetadata returns the document written right after a mint.
func NewInitialTokenMetadata(image, tier string, joinedAt time.Time) *TokenMetadata {
	return &TokenMetadata{
		Image:      image,
		JoinedDate: joinedAt.UTC().Format(time.RFC3339Nano),
		Tier:       tier,
		Status:     TokenStatusActive,
		Level:      1,
	}
}

// IsCancelled reports whether the token reached its terminal status
func (m *TokenMetadata) IsCancelled() bool {
	return m.Status == TokenStatusCancelled
}

// Clone returns a deep copy so callers can modify it without touching the original
func (m *TokenMetadata) Clone() *TokenMetadata {
	out := *m
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

func (m TokenMetadata) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(tokenMetadataFields(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(m.Extra)+len(knownTokenMetadataKeys))
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (m *TokenMetadata) UnmarshalJSON(data []byte) error {
	var fields tokenMetadataFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownTokenMetadataKeys {
		delete(raw, k)
	}

	*m = TokenMetadata(fields)
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}
