package syndicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stripe-minter.backend/internal/config"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
)

const mintFunctionSignature = "mint(address account)"

// Config holds the project and contract the client acts on
type Config struct {
	APIKey          string
	ProjectID       string
	ContractAddress string
	ChainID         int64
	APIBaseURL      string
	MetadataBaseURL string
	Timeout         time.Duration
}

// Client talks to the Syndicate transaction and token metadata APIs
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a new Syndicate client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.MetadataBaseURL = strings.TrimRight(cfg.MetadataBaseURL, "/")
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewClientFromConfig creates a client from the environment settings
func NewClientFromConfig(cfg config.SyndicateConfig) *Client {
	return NewClient(Config{
		APIKey:          cfg.APIKey,
		ProjectID:       cfg.ProjectID,
		ContractAddress: cfg.ContractAddress,
		ChainID:         cfg.ChainID,
		APIBaseURL:      cfg.APIBaseURL,
		MetadataBaseURL: cfg.MetadataBaseURL,
		Timeout:         cfg.RequestTimeout,
	})
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

type sendTransactionRequest struct {
	ProjectID         string            `json:"projectId"`
	ContractAddress   string            `json:"contractAddress"`
	ChainID           int64             `json:"chainId"`
	FunctionSignature string            `json:"functionSignature"`
	Args              map[string]string `json:"args"`
}

type metadataUpdateRequest struct {
	Content *entities.TokenMetadata `json:"content"`
	Type    string                  `json:"type"`
}

// SendMint submits mint(address) for recipient and returns the transaction handle
func (c *Client) SendMint(ctx context.Context, recipient string) (*entities.MintTransaction, error) {
	body := sendTransactionRequest{
		ProjectID:         c.cfg.ProjectID,
		ContractAddress:   c.cfg.ContractAddress,
		ChainID:           c.cfg.ChainID,
		FunctionSignature: mintFunctionSignature,
		Args:              map[string]string{"account": recipient},
	}

	var tx entities.MintTransaction
	if err := c.do(ctx, http.MethodPost, c.cfg.APIBaseURL+"/transact/sendTransaction", body, &tx); err != nil {
		return nil, fmt.Errorf("send mint: %w", err)
	}
	return &tx, nil
}

// GetTransactionRequest returns the attempt history of a submitted transaction
func (c *Client) GetTransactionRequest(ctx context.Context, transactionID string) (*entities.TransactionRequest, error) {
	endpoint := fmt.Sprintf("%s/wallet/project/%s/request/%s",
		c.cfg.APIBaseURL, url.PathEscape(c.cfg.ProjectID), url.PathEscape(transactionID))

	var req entities.TransactionRequest
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &req); err != nil {
		return nil, fmt.Errorf("get transaction request %s: %w", transactionID, err)
	}
	return &req, nil
}

// ClaimContract claims the configured contract for the project
func (c *Client) ClaimContract(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/admin/project/%s/contract/%d/%s/claim",
		c.cfg.APIBaseURL, url.PathEscape(c.cfg.ProjectID), c.cfg.ChainID, url.PathEscape(c.cfg.ContractAddress))

	if err := c.do(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("claim contract: %w", err)
	}
	return nil
}

// UpdateTokenMetadata overwrites the whole metadata document of tokenID
func (c *Client) UpdateTokenMetadata(ctx context.Context, tokenID int64, metadata *entities.TokenMetadata) error {
	endpoint := fmt.Sprintf("%s/token-metadata/update/%s/%d/%s/%s",
		c.cfg.APIBaseURL, url.PathEscape(c.cfg.ProjectID), c.cfg.ChainID,
		url.PathEscape(c.cfg.ContractAddress), strconv.FormatInt(tokenID, 10))

	body := metadataUpdateRequest{Content: metadata, Type: "json"}
	if err := c.do(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("update metadata for token %d: %w", tokenID, err)
	}
	return nil
}

// GetTokenMetadata reads the metadata document of tokenID
func (c *Client) GetTokenMetadata(ctx context.Context, tokenID int64) (*entities.TokenMetadata, error) {
	endpoint := fmt.Sprintf("%s/%d/%s/%s",
		c.cfg.MetadataBaseURL, c.cfg.ChainID, url.PathEscape(c.cfg.ContractAddress), strconv.FormatInt(tokenID, 10))

	var metadata entities.TokenMetadata
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &metadata); err != nil {
		return nil, fmt.Errorf("get metadata for token %d: %w", tokenID, err)
	}
	return &metadata, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domainerrors.ErrExternalService, err)
	}
	return nil
}

// APIError is a non-2xx answer from Syndicate
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("syndicate returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("syndicate returned status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return domainerrors.ErrExternalService
}
