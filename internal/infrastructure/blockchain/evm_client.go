package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	dialEVMClient    = ethclient.Dial
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
)

// ErrInvalidTxHash is returned for a hash that is not 32 hex-encoded bytes
var ErrInvalidTxHash = errors.New("invalid transaction hash")

// EVMClient provides EVM blockchain interaction
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
	rpcURL  string
	// testReceipt allows deterministic unit tests without network sockets.
	testReceipt func(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// NewEVMClient creates a new EVM client
func NewEVMClient(rpcURL string) (*EVMClient, error) {
	client, err := dialEVMClient(rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := getClientChainID(client, context.Background())
	if err != nil {
		return nil, err
	}

	return &EVMClient{
		client:  client,
		chainID: chainID,
		rpcURL:  rpcURL,
	}, nil
}

// NewEVMClientWithReceipts creates an EVM client that serves receipts from fn.
// This is intended for unit tests where RPC sockets are unavailable.
func NewEVMClientWithReceipts(chainID *big.Int, fn func(ctx context.Context, hash common.Hash) (*types.Receipt, error)) *EVMClient {
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return &EVMClient{
		chainID:     chainID,
		testReceipt: fn,
	}
}

// ChainID returns the chain ID
func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

// GetTransactionReceipt gets a transaction receipt. A transaction that is not
// mined yet yields an error matching IsReceiptPending.
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}
	if c.testReceipt != nil {
		return c.testReceipt(ctx, hash)
	}
	return c.client.TransactionReceipt(ctx, hash)
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// IsReceiptPending reports whether err means the node has no receipt yet
func IsReceiptPending(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

// ParseTxHash validates and decodes a 0x-prefixed 32-byte hash
func ParseTxHash(txHash string) (common.Hash, error) {
	raw := strings.TrimSpace(txHash)
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, txHash)
	}
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, txHash)
	}
	return common.BytesToHash(b), nil
}

// IsValidAddress reports whether addr is a hex-encoded account address
func IsValidAddress(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr))
}
