package order

import "fmt"

// Layout of the compact array form used by the *_ex commands.
//
// addrs: exchange, maker, taker, fee_recipient, target, static_target, payment_token
// uints: maker_relayer_fee, taker_relayer_fee, maker_protocol_fee, taker_protocol_fee,
//        base_price, extra, listing_time, expiration_time, salt
const (
	AddrsPerOrder = 7
	UintsPerOrder = 9
	EnumsPerOrder = 4
)

// FromArrayParameters builds an order from its compact array form.
func FromArrayParameters(
	addrs [AddrsPerOrder]AccountID,
	uints [UintsPerOrder]uint64,
	feeMethod FeeMethod,
	side Side,
	saleKind SaleKind,
	howToCall HowToCall,
	calldata, replacementPattern, staticExtradata []byte,
) Order {
	return Order{
		Exchange:           addrs[0],
		Maker:              addrs[1],
		Taker:              addrs[2],
		MakerRelayerFee:    NewBalance(uints[0]),
		TakerRelayerFee:    NewBalance(uints[1]),
		MakerProtocolFee:   NewBalance(uints[2]),
		TakerProtocolFee:   NewBalance(uints[3]),
		FeeRecipient:       addrs[3],
		FeeMethod:          feeMethod,
		Side:               side,
		SaleKind:           saleKind,
		Target:             addrs[4],
		HowToCall:          howToCall,
		Calldata:           calldata,
		ReplacementPattern: replacementPattern,
		StaticTarget:       addrs[5],
		StaticExtradata:    staticExtradata,
		PaymentToken:       addrs[6],
		BasePrice:          NewBalance(uints[4]),
		Extra:              NewBalance(uints[5]),
		ListingTime:        uints[6],
		ExpirationTime:     uints[7],
		Salt:               uints[8],
	}
}

// PairParameters is the compact array form of a buy/sell pair: buy fields
// first, then sell fields, with enums packed as
// [buy fee_method, side, sale_kind, how_to_call, sell fee_method, side, sale_kind, how_to_call].
type PairParameters struct {
	Addrs [2 * AddrsPerOrder]AccountID
	Uints [2 * UintsPerOrder]uint64
	Enums [2 * EnumsPerOrder]uint8

	CalldataBuy            []byte
	CalldataSell           []byte
	ReplacementPatternBuy  []byte
	ReplacementPatternSell []byte
	StaticExtradataBuy     []byte
	StaticExtradataSell    []byte
}

// BuildBuySell unpacks a PairParameters into its two orders.
func BuildBuySell(p *PairParameters) (buy, sell Order, err error) {
	var addrs [AddrsPerOrder]AccountID
	var uints [UintsPerOrder]uint64

	copy(addrs[:], p.Addrs[:AddrsPerOrder])
	copy(uints[:], p.Uints[:UintsPerOrder])
	fm, side, kind, how, err := ParseEnums(p.Enums[:EnumsPerOrder])
	if err != nil {
		return buy, sell, fmt.Errorf("buy enums: %w", err)
	}
	buy = FromArrayParameters(addrs, uints, fm, side, kind, how,
		p.CalldataBuy, p.ReplacementPatternBuy, p.StaticExtradataBuy)

	copy(addrs[:], p.Addrs[AddrsPerOrder:])
	copy(uints[:], p.Uints[UintsPerOrder:])
	fm, side, kind, how, err = ParseEnums(p.Enums[EnumsPerOrder:])
	if err != nil {
		return buy, sell, fmt.Errorf("sell enums: %w", err)
	}
	sell = FromArrayParameters(addrs, uints, fm, side, kind, how,
		p.CalldataSell, p.ReplacementPatternSell, p.StaticExtradataSell)

	return buy, sell, nil
}

// ParseEnums decodes [fee_method, side, sale_kind, how_to_call].
func ParseEnums(b []uint8) (FeeMethod, Side, SaleKind, HowToCall, error) {
	if len(b) != EnumsPerOrder {
		return 0, 0, 0, 0, fmt.Errorf("want %d enum bytes, got %d", EnumsPerOrder, len(b))
	}
	if b[0] > uint8(FeeMethodSplitFee) {
		return 0, 0, 0, 0, fmt.Errorf("invalid fee method %d", b[0])
	}
	if b[1] > uint8(SideSell) {
		return 0, 0, 0, 0, fmt.Errorf("invalid side %d", b[1])
	}
	if b[2] > uint8(SaleKindDutchAuction) {
		return 0, 0, 0, 0, fmt.Errorf("invalid sale kind %d", b[2])
	}
	if b[3] > uint8(HowToCallDelegateCall) {
		return 0, 0, 0, 0, fmt.Errorf("invalid how_to_call %d", b[3])
	}
	return FeeMethod(b[0]), Side(b[1]), SaleKind(b[2]), HowToCall(b[3]), nil
}
