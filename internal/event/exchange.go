package event

import (
	"WyvernExchange/internal/order"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderApprovedPartOne carries the first half of an approved order's fields.
type OrderApprovedPartOne struct {
	Hash             common.Hash     `json:"hash"`
	Exchange         order.AccountID `json:"exchange"`
	Maker            order.AccountID `json:"maker"`
	Taker            order.AccountID `json:"taker"`
	MakerRelayerFee  string          `json:"maker_relayer_fee"`
	TakerRelayerFee  string          `json:"taker_relayer_fee"`
	MakerProtocolFee string          `json:"maker_protocol_fee"`
	TakerProtocolFee string          `json:"taker_protocol_fee"`
	FeeRecipient     order.AccountID `json:"fee_recipient"`
	FeeMethod        order.FeeMethod `json:"fee_method"`
	Side             order.Side      `json:"side"`
	SaleKind         order.SaleKind  `json:"sale_kind"`
	Target           order.AccountID `json:"target"`
}

func (e *OrderApprovedPartOne) EventType() EventType   { return EventTypeOrderApprovedPartOne }
func (e *OrderApprovedPartOne) OrderHash() *common.Hash { return &e.Hash }

// OrderApprovedPartTwo carries the rest of an approved order's fields.
type OrderApprovedPartTwo struct {
	Hash                      common.Hash     `json:"hash"`
	HowToCall                 order.HowToCall `json:"how_to_call"`
	Calldata                  hexutil.Bytes   `json:"calldata"`
	ReplacementPattern        hexutil.Bytes   `json:"replacement_pattern"`
	StaticTarget              order.AccountID `json:"static_target"`
	StaticExtradata           hexutil.Bytes   `json:"static_extradata"`
	PaymentToken              order.AccountID `json:"payment_token"`
	BasePrice                 string          `json:"base_price"`
	Extra                     string          `json:"extra"`
	ListingTime               order.Moment    `json:"listing_time"`
	ExpirationTime            order.Moment    `json:"expiration_time"`
	Salt                      uint64          `json:"salt"`
	OrderbookInclusionDesired bool            `json:"orderbook_inclusion_desired"`
}

func (e *OrderApprovedPartTwo) EventType() EventType   { return EventTypeOrderApprovedPartTwo }
func (e *OrderApprovedPartTwo) OrderHash() *common.Hash { return &e.Hash }

// NewOrderApproved splits an approved order into its two events.
func NewOrderApproved(hash common.Hash, o *order.Order, inclusionDesired bool) (*OrderApprovedPartOne, *OrderApprovedPartTwo) {
	one := &OrderApprovedPartOne{
		Hash:             hash,
		Exchange:         o.Exchange,
		Maker:            o.Maker,
		Taker:            o.Taker,
		MakerRelayerFee:  order.FormatBalance(&o.MakerRelayerFee),
		TakerRelayerFee:  order.FormatBalance(&o.TakerRelayerFee),
		MakerProtocolFee: order.FormatBalance(&o.MakerProtocolFee),
		TakerProtocolFee: order.FormatBalance(&o.TakerProtocolFee),
		FeeRecipient:     o.FeeRecipient,
		FeeMethod:        o.FeeMethod,
		Side:             o.Side,
		SaleKind:         o.SaleKind,
		Target:           o.Target,
	}
	two := &OrderApprovedPartTwo{
		Hash:                      hash,
		HowToCall:                 o.HowToCall,
		Calldata:                  o.Calldata,
		ReplacementPattern:        o.ReplacementPattern,
		StaticTarget:              o.StaticTarget,
		StaticExtradata:           o.StaticExtradata,
		PaymentToken:              o.PaymentToken,
		BasePrice:                 order.FormatBalance(&o.BasePrice),
		Extra:                     order.FormatBalance(&o.Extra),
		ListingTime:               o.ListingTime,
		ExpirationTime:            o.ExpirationTime,
		Salt:                      o.Salt,
		OrderbookInclusionDesired: inclusionDesired,
	}
	return one, two
}

type OrderCancelled struct {
	Hash common.Hash `json:"hash"`
}

func (e *OrderCancelled) EventType() EventType   { return EventTypeOrderCancelled }
func (e *OrderCancelled) OrderHash() *common.Hash { return &e.Hash }

// OrdersMatched records a settled trade. A hash is empty when the caller
// was that order's maker and the order was not finalized.
type OrdersMatched struct {
	BuyHash  hexutil.Bytes   `json:"buy_hash"`
	SellHash hexutil.Bytes   `json:"sell_hash"`
	Maker    order.AccountID `json:"maker"`
	Taker    order.AccountID `json:"taker"`
	Price    string          `json:"price"`
	Metadata hexutil.Bytes   `json:"metadata"`
}

func (e *OrdersMatched) EventType() EventType { return EventTypeOrdersMatched }

// OrderHash keys the event by the sell hash, falling back to the buy hash.
func (e *OrdersMatched) OrderHash() *common.Hash {
	for _, h := range [][]byte{e.SellHash, e.BuyHash} {
		if len(h) == common.HashLength {
			hash := common.BytesToHash(h)
			return &hash
		}
	}
	return nil
}

type MinimumMakerProtocolFeeChanged struct {
	Fee string `json:"fee"`
}

func (e *MinimumMakerProtocolFeeChanged) EventType() EventType {
	return EventTypeMinimumMakerProtocolFeeChanged
}
func (e *MinimumMakerProtocolFeeChanged) OrderHash() *common.Hash { return nil }

type MinimumTakerProtocolFeeChanged struct {
	Fee string `json:"fee"`
}

func (e *MinimumTakerProtocolFeeChanged) EventType() EventType {
	return EventTypeMinimumTakerProtocolFeeChanged
}
func (e *MinimumTakerProtocolFeeChanged) OrderHash() *common.Hash { return nil }

type ProtocolFeeRecipientChanged struct {
	Caller       order.AccountID `json:"caller"`
	NewRecipient order.AccountID `json:"new_recipient"`
}

func (e *ProtocolFeeRecipientChanged) EventType() EventType {
	return EventTypeProtocolFeeRecipientChanged
}
func (e *ProtocolFeeRecipientChanged) OrderHash() *common.Hash { return nil }

type OwnerChanged struct {
	Caller   order.AccountID `json:"caller"`
	NewOwner order.AccountID `json:"new_owner"`
}

func (e *OwnerChanged) EventType() EventType   { return EventTypeOwnerChanged }
func (e *OwnerChanged) OrderHash() *common.Hash { return nil }

type ExchangeTokenChanged struct {
	Caller   order.AccountID `json:"caller"`
	NewToken order.AccountID `json:"new_token"`
}

func (e *ExchangeTokenChanged) EventType() EventType   { return EventTypeExchangeTokenChanged }
func (e *ExchangeTokenChanged) OrderHash() *common.Hash { return nil }

// Deposited records a credit from outside the ledger.
type Deposited struct {
	Currency order.AccountID `json:"currency"`
	Account  order.AccountID `json:"account"`
	Amount   string          `json:"amount"`
}

func (e *Deposited) EventType() EventType   { return EventTypeDeposited }
func (e *Deposited) OrderHash() *common.Hash { return nil }

// CommandRejected is published by ingestion when a command fails a business
// check. It never changes state and is not part of the hash chain.
type CommandRejected struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

func (e *CommandRejected) EventType() EventType   { return EventTypeCommandRejected }
func (e *CommandRejected) OrderHash() *common.Hash { return nil }
