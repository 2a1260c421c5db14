package order_test

import (
	"WyvernExchange/internal/order"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func account(b byte) order.AccountID {
	var id order.AccountID
	for i := range id {
		id[i] = b
	}
	return id
}

func sampleOrder() order.Order {
	return order.Order{
		Exchange:         account(0xEE),
		Maker:            account(0x01),
		Taker:            account(0xEE),
		MakerRelayerFee:  order.NewBalance(250),
		TakerRelayerFee:  order.NewBalance(100),
		MakerProtocolFee: order.NewBalance(10),
		TakerProtocolFee: order.NewBalance(5),
		FeeRecipient:     account(0x09),
		FeeMethod:        order.FeeMethodSplitFee,
		Side:             order.SideSell,
		SaleKind:         order.SaleKindFixedPrice,
		Target:           account(0x07),
		HowToCall:        order.HowToCallCall,
		Calldata:         []byte{0xde, 0xad, 0xbe, 0xef},
		PaymentToken:     account(0x05),
		BasePrice:        order.NewBalance(10_000_000_000_000_000),
		ListingTime:      100,
		ExpirationTime:   0,
		Salt:             42,
	}
}

// ============================================================================
// Test: HashOrder / HashToSign
// ============================================================================

func TestHashOrder_Deterministic(t *testing.T) {
	o := sampleOrder()
	h1 := order.HashOrder(&o)
	h2 := order.HashOrder(&o)
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s vs %s", h1.Hex(), h2.Hex())
	}

	c := o.Clone()
	if order.HashOrder(c) != h1 {
		t.Error("clone must hash identically")
	}
}

func TestHashToSign_IsDoubleKeccak(t *testing.T) {
	o := sampleOrder()
	inner := order.HashOrder(&o)
	want := crypto.Keccak256Hash(inner.Bytes())

	if got := order.HashToSign(&o); got != want {
		t.Errorf("got %s, want %s", got.Hex(), want.Hex())
	}
	if order.HashToSign(&o) == inner {
		t.Error("hash_to_sign must differ from hash_order")
	}
}

func TestHashOrder_EveryFieldChangesHash(t *testing.T) {
	base := sampleOrder()
	baseHash := order.HashOrder(&base)

	mutations := map[string]func(o *order.Order){
		"index":               func(o *order.Order) { o.Index = 7 },
		"exchange":            func(o *order.Order) { o.Exchange = account(0x11) },
		"maker":               func(o *order.Order) { o.Maker = account(0x12) },
		"taker":               func(o *order.Order) { o.Taker = account(0x13) },
		"maker_relayer_fee":   func(o *order.Order) { o.MakerRelayerFee = order.NewBalance(251) },
		"taker_relayer_fee":   func(o *order.Order) { o.TakerRelayerFee = order.NewBalance(101) },
		"maker_protocol_fee":  func(o *order.Order) { o.MakerProtocolFee = order.NewBalance(11) },
		"taker_protocol_fee":  func(o *order.Order) { o.TakerProtocolFee = order.NewBalance(6) },
		"fee_recipient":       func(o *order.Order) { o.FeeRecipient = account(0x14) },
		"fee_method":          func(o *order.Order) { o.FeeMethod = order.FeeMethodProtocolFee },
		"side":                func(o *order.Order) { o.Side = order.SideBuy },
		"sale_kind":           func(o *order.Order) { o.SaleKind = order.SaleKindDutchAuction },
		"target":              func(o *order.Order) { o.Target = account(0x15) },
		"how_to_call":         func(o *order.Order) { o.HowToCall = order.HowToCallDelegateCall },
		"calldata":            func(o *order.Order) { o.Calldata = []byte{0xde, 0xad, 0xbe, 0xee} },
		"replacement_pattern": func(o *order.Order) { o.ReplacementPattern = []byte{0, 0, 0, 0xff} },
		"static_target":       func(o *order.Order) { o.StaticTarget = account(0x16) },
		"static_extradata":    func(o *order.Order) { o.StaticExtradata = []byte{1} },
		"payment_token":       func(o *order.Order) { o.PaymentToken = account(0x17) },
		"base_price":          func(o *order.Order) { o.BasePrice = order.NewBalance(1) },
		"extra":               func(o *order.Order) { o.Extra = order.NewBalance(1) },
		"listing_time":        func(o *order.Order) { o.ListingTime = 101 },
		"expiration_time":     func(o *order.Order) { o.ExpirationTime = 1000 },
		"salt":                func(o *order.Order) { o.Salt = 43 },
		"created_date":        func(o *order.Order) { o.CreatedDate = 99 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			o := base.Clone()
			mutate(o)
			if order.HashOrder(o) == baseHash {
				t.Errorf("changing %s did not change the hash", name)
			}
		})
	}
}

func TestHashOrder_NilAndEmptyBytesEquivalent(t *testing.T) {
	a := sampleOrder()
	a.StaticExtradata = nil
	b := sampleOrder()
	b.StaticExtradata = []byte{}

	if order.HashOrder(&a) != order.HashOrder(&b) {
		t.Error("nil and empty byte fields must encode identically")
	}
}

func TestHashOrder_ByteFieldBoundariesUnambiguous(t *testing.T) {
	a := sampleOrder()
	a.Calldata = []byte{1, 2}
	a.ReplacementPattern = []byte{3}
	b := sampleOrder()
	b.Calldata = []byte{1}
	b.ReplacementPattern = []byte{2, 3}

	if order.HashOrder(&a) == order.HashOrder(&b) {
		t.Error("shifting bytes between adjacent fields must change the hash")
	}
}

// ============================================================================
// Test: array parameters
// ============================================================================

func TestBuildBuySell_Layout(t *testing.T) {
	var p order.PairParameters
	for i := range p.Addrs {
		p.Addrs[i] = account(byte(i + 1))
	}
	for i := range p.Uints {
		p.Uints[i] = uint64(i + 1)
	}
	p.Enums = [8]uint8{0, 0, 0, 0, 1, 1, 1, 1}
	p.CalldataBuy = []byte{0xaa}
	p.CalldataSell = []byte{0xbb}

	buy, sell, err := order.BuildBuySell(&p)
	if err != nil {
		t.Fatalf("BuildBuySell: %v", err)
	}

	if buy.Exchange != account(1) || buy.PaymentToken != account(7) {
		t.Errorf("buy addresses misplaced: exchange=%s payment=%s", buy.Exchange, buy.PaymentToken)
	}
	if sell.Exchange != account(8) || sell.PaymentToken != account(14) {
		t.Errorf("sell addresses misplaced: exchange=%s payment=%s", sell.Exchange, sell.PaymentToken)
	}
	if buy.BasePrice.Uint64() != 5 || buy.Salt != 9 {
		t.Errorf("buy uints misplaced: base=%d salt=%d", buy.BasePrice.Uint64(), buy.Salt)
	}
	if sell.MakerRelayerFee.Uint64() != 10 || sell.Salt != 18 {
		t.Errorf("sell uints misplaced: fee=%d salt=%d", sell.MakerRelayerFee.Uint64(), sell.Salt)
	}
	if buy.Side != order.SideBuy || sell.Side != order.SideSell {
		t.Errorf("sides: got %s/%s", buy.Side, sell.Side)
	}
	if sell.SaleKind != order.SaleKindDutchAuction || sell.HowToCall != order.HowToCallDelegateCall {
		t.Errorf("sell enums: got %s/%s", sell.SaleKind, sell.HowToCall)
	}
	if string(buy.Calldata) != "\xaa" || string(sell.Calldata) != "\xbb" {
		t.Error("calldata not routed to the right side")
	}
}

func TestParseEnums_RejectsOutOfRange(t *testing.T) {
	if _, _, _, _, err := order.ParseEnums([]uint8{2, 0, 0, 0}); err == nil {
		t.Error("fee method 2 should be rejected")
	}
	if _, _, _, _, err := order.ParseEnums([]uint8{0, 0, 0}); err == nil {
		t.Error("short enum slice should be rejected")
	}
}

// ============================================================================
// Test: wire form
// ============================================================================

func TestJSON_PreservesHash(t *testing.T) {
	o := sampleOrder()
	o.Extra = order.NewBalance(0)
	o.ReplacementPattern = []byte{0, 0, 0xff, 0xff}

	wire := order.ToJSON(&o)
	back, err := wire.Order()
	if err != nil {
		t.Fatalf("Order(): %v", err)
	}
	if order.HashOrder(&back) != order.HashOrder(&o) {
		t.Error("wire conversion changed the order hash")
	}
}

func TestParseAccountID_RejectsWrongLength(t *testing.T) {
	if _, err := order.ParseAccountID("0x0102"); err == nil {
		t.Error("2-byte id should be rejected")
	}
	id, err := order.ParseAccountID(account(0xab).Hex())
	if err != nil {
		t.Fatalf("ParseAccountID: %v", err)
	}
	if id != account(0xab) {
		t.Errorf("got %s, want %s", id, account(0xab))
	}
}
