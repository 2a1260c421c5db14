package event

import (
	"encoding/json"
	"fmt"
	"time"

	"WyvernExchange/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeOrderApprovedPartOne
	EventTypeOrderApprovedPartTwo
	EventTypeOrderCancelled
	EventTypeOrdersMatched
	EventTypeMinimumMakerProtocolFeeChanged
	EventTypeMinimumTakerProtocolFeeChanged
	EventTypeProtocolFeeRecipientChanged
	EventTypeOwnerChanged
	EventTypeExchangeTokenChanged
	EventTypeDeposited
	EventTypeCommandRejected
)

// Envelope wraps every emitted event
type Envelope struct {
	// Global monotonic sequence, persisted with the state it describes
	Sequence int64

	EventID   uuid.UUID
	EventType EventType

	// Order the event is about (nil for configuration events)
	OrderHash *common.Hash

	// Operation time (the exchange clock, not wall-clock at publish)
	Timestamp time.Time

	// JSON-encoded event payload
	Payload []byte

	// Transfer legs committed by the operation. Set on at most one
	// envelope per operation.
	Journals []ledger.Journal

	// keccak-256 chain hash after this event
	StateHash [32]byte

	// Previous event's chain hash
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	EventType() EventType

	// OrderHash returns the order the event is about (nil for global events)
	OrderHash() *common.Hash
}

// NewEnvelope encodes evt. Sequence and hashes are assigned by the Chain.
func NewEnvelope(evt Event, ts time.Time) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", evt.EventType(), err)
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: evt.EventType(),
		OrderHash: evt.OrderHash(),
		Timestamp: ts,
		Payload:   payload,
	}, nil
}

func (et EventType) String() string {
	switch et {
	case EventTypeOrderApprovedPartOne:
		return "OrderApprovedPartOne"
	case EventTypeOrderApprovedPartTwo:
		return "OrderApprovedPartTwo"
	case EventTypeOrderCancelled:
		return "OrderCancelled"
	case EventTypeOrdersMatched:
		return "OrdersMatched"
	case EventTypeMinimumMakerProtocolFeeChanged:
		return "MinimumMakerProtocolFeeChanged"
	case EventTypeMinimumTakerProtocolFeeChanged:
		return "MinimumTakerProtocolFeeChanged"
	case EventTypeProtocolFeeRecipientChanged:
		return "ProtocolFeeRecipientChanged"
	case EventTypeOwnerChanged:
		return "OwnerChanged"
	case EventTypeExchangeTokenChanged:
		return "ExchangeTokenChanged"
	case EventTypeDeposited:
		return "Deposited"
	case EventTypeCommandRejected:
		return "CommandRejected"
	default:
		return "Unknown"
	}
}
