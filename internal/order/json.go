package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// JSON is the wire form of an order. Account ids are 0x hex, amounts are
// decimal strings, byte fields are 0x hex. Field names use snake_case to
// match upstream producers.
type JSON struct {
	Index              uint64        `json:"index,omitempty"`
	Exchange           string        `json:"exchange"`
	Maker              string        `json:"maker"`
	Taker              string        `json:"taker"`
	MakerRelayerFee    string        `json:"maker_relayer_fee"`
	TakerRelayerFee    string        `json:"taker_relayer_fee"`
	MakerProtocolFee   string        `json:"maker_protocol_fee"`
	TakerProtocolFee   string        `json:"taker_protocol_fee"`
	FeeRecipient       string        `json:"fee_recipient"`
	FeeMethod          uint8         `json:"fee_method"`
	Side               uint8         `json:"side"`
	SaleKind           uint8         `json:"sale_kind"`
	Target             string        `json:"target"`
	HowToCall          uint8         `json:"how_to_call"`
	Calldata           hexutil.Bytes `json:"calldata"`
	ReplacementPattern hexutil.Bytes `json:"replacement_pattern"`
	StaticTarget       string        `json:"static_target"`
	StaticExtradata    hexutil.Bytes `json:"static_extradata"`
	PaymentToken       string        `json:"payment_token"`
	BasePrice          string        `json:"base_price"`
	Extra              string        `json:"extra"`
	ListingTime        uint64        `json:"listing_time"`
	ExpirationTime     uint64        `json:"expiration_time"`
	Salt               uint64        `json:"salt"`
	CreatedDate        uint64        `json:"created_date,omitempty"`
}

// ToJSON converts an order to its wire form.
func ToJSON(o *Order) JSON {
	return JSON{
		Index:              o.Index,
		Exchange:           o.Exchange.Hex(),
		Maker:              o.Maker.Hex(),
		Taker:              o.Taker.Hex(),
		MakerRelayerFee:    FormatBalance(&o.MakerRelayerFee),
		TakerRelayerFee:    FormatBalance(&o.TakerRelayerFee),
		MakerProtocolFee:   FormatBalance(&o.MakerProtocolFee),
		TakerProtocolFee:   FormatBalance(&o.TakerProtocolFee),
		FeeRecipient:       o.FeeRecipient.Hex(),
		FeeMethod:          uint8(o.FeeMethod),
		Side:               uint8(o.Side),
		SaleKind:           uint8(o.SaleKind),
		Target:             o.Target.Hex(),
		HowToCall:          uint8(o.HowToCall),
		Calldata:           nonNil(o.Calldata),
		ReplacementPattern: nonNil(o.ReplacementPattern),
		StaticTarget:       o.StaticTarget.Hex(),
		StaticExtradata:    nonNil(o.StaticExtradata),
		PaymentToken:       o.PaymentToken.Hex(),
		BasePrice:          FormatBalance(&o.BasePrice),
		Extra:              FormatBalance(&o.Extra),
		ListingTime:        o.ListingTime,
		ExpirationTime:     o.ExpirationTime,
		Salt:               o.Salt,
		CreatedDate:        o.CreatedDate,
	}
}

// Order converts the wire form back to an Order.
func (j *JSON) Order() (Order, error) {
	var o Order
	var err error

	accounts := []struct {
		name string
		src  string
		dst  *AccountID
	}{
		{"exchange", j.Exchange, &o.Exchange},
		{"maker", j.Maker, &o.Maker},
		{"taker", j.Taker, &o.Taker},
		{"fee_recipient", j.FeeRecipient, &o.FeeRecipient},
		{"target", j.Target, &o.Target},
		{"static_target", j.StaticTarget, &o.StaticTarget},
		{"payment_token", j.PaymentToken, &o.PaymentToken},
	}
	for _, a := range accounts {
		if a.src == "" {
			continue
		}
		if *a.dst, err = ParseAccountID(a.src); err != nil {
			return o, fmt.Errorf("parse %s: %w", a.name, err)
		}
	}

	amounts := []struct {
		name string
		src  string
		dst  *Balance
	}{
		{"maker_relayer_fee", j.MakerRelayerFee, &o.MakerRelayerFee},
		{"taker_relayer_fee", j.TakerRelayerFee, &o.TakerRelayerFee},
		{"maker_protocol_fee", j.MakerProtocolFee, &o.MakerProtocolFee},
		{"taker_protocol_fee", j.TakerProtocolFee, &o.TakerProtocolFee},
		{"base_price", j.BasePrice, &o.BasePrice},
		{"extra", j.Extra, &o.Extra},
	}
	for _, a := range amounts {
		if err := ParseBalanceInto(a.dst, a.src); err != nil {
			return o, fmt.Errorf("parse %s: %w", a.name, err)
		}
	}

	fm, side, kind, how, err := ParseEnums([]uint8{j.FeeMethod, j.Side, j.SaleKind, j.HowToCall})
	if err != nil {
		return o, err
	}

	o.Index = j.Index
	o.FeeMethod = fm
	o.Side = side
	o.SaleKind = kind
	o.HowToCall = how
	o.Calldata = []byte(j.Calldata)
	o.ReplacementPattern = []byte(j.ReplacementPattern)
	o.StaticExtradata = []byte(j.StaticExtradata)
	o.ListingTime = j.ListingTime
	o.ExpirationTime = j.ExpirationTime
	o.Salt = j.Salt
	o.CreatedDate = j.CreatedDate
	return o, nil
}

// ParseBalanceInto parses a decimal string into dst. Empty means zero.
func ParseBalanceInto(dst *Balance, s string) error {
	if s == "" {
		dst.Clear()
		return nil
	}
	return dst.SetFromDecimal(s)
}

// ParseBalance parses a decimal amount.
func ParseBalance(s string) (Balance, error) {
	var b Balance
	err := ParseBalanceInto(&b, s)
	return b, err
}

// FormatBalance renders b as a decimal string.
func FormatBalance(b *Balance) string {
	return b.ToBig().String()
}
