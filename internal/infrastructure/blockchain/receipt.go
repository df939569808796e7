package blockchain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// Position of the minted token id inside the mint receipt: the Transfer event
// is the second log and the token id is its indexed third argument.
const (
	MintTransferLogIndex = 1
	TokenIDTopicIndex    = 3
)

// ErrMalformedReceipt is returned when a mined receipt lacks the expected token id
var ErrMalformedReceipt = errors.New("receipt does not carry a token id")

// TokenIDFromReceipt decodes topics[topicIndex] of logs[logIndex] as an integer.
func TokenIDFromReceipt(receipt *types.Receipt, logIndex, topicIndex int) (int64, error) {
	if receipt == nil {
		return 0, fmt.Errorf("%w: nil receipt", ErrMalformedReceipt)
	}
	if logIndex < 0 || logIndex >= len(receipt.Logs) || receipt.Logs[logIndex] == nil {
		return 0, fmt.Errorf("%w: %d logs, want index %d", ErrMalformedReceipt, len(receipt.Logs), logIndex)
	}
	topics := receipt.Logs[logIndex].Topics
	if topicIndex < 0 || topicIndex >= len(topics) {
		return 0, fmt.Errorf("%w: log %d has %d topics, want index %d", ErrMalformedReceipt, logIndex, len(topics), topicIndex)
	}

	value := topics[topicIndex].Big()
	if !value.IsInt64() {
		return 0, fmt.Errorf("%w: topic %s overflows int64", ErrMalformedReceipt, topics[topicIndex].Hex())
	}
	return value.Int64(), nil
}
