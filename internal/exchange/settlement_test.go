package exchange_test

import (
	"WyvernExchange/internal/exchange"
	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/order"
	"errors"
	"testing"
)

func bps(v uint64) order.Balance { return order.NewBalance(v) }

func (f *fixture) matchWithValue(buy, sell order.Order, value uint64) (*exchange.MatchResult, error) {
	return f.x.AtomicMatch(f.ctx, exchange.MatchRequest{
		Sender:   buy.Maker,
		MsgValue: order.NewBalance(value),
		Buy:      buy,
		Sell:     sell,
		SellSig:  f.seller.SignOrder(&sell),
	})
}

// buyMakerPair flips the fee recipient so the buy order is the maker side.
func (f *fixture) buyMakerPair(buyPrice, sellPrice uint64) (order.Order, order.Order) {
	buy, sell := f.buyOrder(buyPrice), f.sellOrder(sellPrice)
	buy.FeeRecipient, sell.FeeRecipient = relayer, self
	return buy, sell
}

// ===== Test: Split fee =====

func TestSettlement_SplitFeeSellMaker(t *testing.T) {
	f := newFixture(t)
	f.deposit(token, f.buyer.Account(), 20000)

	buy, sell := f.buyOrder(10000), f.sellOrder(10000)
	buy.FeeMethod, sell.FeeMethod = order.FeeMethodSplitFee, order.FeeMethodSplitFee
	sell.MakerRelayerFee, sell.TakerRelayerFee = bps(250), bps(100)
	sell.MakerProtocolFee, sell.TakerProtocolFee = bps(50), bps(25)
	buy.TakerRelayerFee, buy.TakerProtocolFee = bps(100), bps(25)

	if _, err := f.matchAsBuyer(buy, sell); err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}

	want := map[string]struct {
		account order.AccountID
		amount  uint64
	}{
		"buyer":    {f.buyer.Account(), 20000 - 10000 - 100 - 25},
		"seller":   {f.seller.Account(), 10000 - 250 - 50},
		"relayer":  {relayer, 350},
		"protocol": {protocolRecipient, 75},
	}
	for name, w := range want {
		if got := f.balance(token, w.account); got != w.amount {
			t.Errorf("%s: got %d, want %d", name, got, w.amount)
		}
	}

	envs := f.sink.Envelopes()
	last := envs[len(envs)-1]
	kinds := make([]ledger.JournalType, 0, len(last.Journals))
	for _, j := range last.Journals {
		kinds = append(kinds, j.JournalType)
	}
	wantKinds := []ledger.JournalType{
		ledger.JournalTypePrice,
		ledger.JournalTypeMakerRelayerFee,
		ledger.JournalTypeTakerRelayerFee,
		ledger.JournalTypeMakerProtocolFee,
		ledger.JournalTypeTakerProtocolFee,
	}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("got journals %v, want %v", kinds, wantKinds)
	}
	for i := range kinds {
		if kinds[i] != wantKinds[i] {
			t.Errorf("journal %d: got %s, want %s", i, kinds[i], wantKinds[i])
		}
	}
}

func TestSettlement_SplitFeeBuyMaker(t *testing.T) {
	f := newFixture(t)
	f.deposit(token, f.buyer.Account(), 20000)

	buy, sell := f.buyMakerPair(12000, 10000)
	buy.FeeMethod, sell.FeeMethod = order.FeeMethodSplitFee, order.FeeMethodSplitFee
	buy.MakerRelayerFee = bps(100)
	buy.TakerProtocolFee, sell.TakerProtocolFee = bps(50), bps(50)

	res, err := f.matchAsBuyer(buy, sell)
	if err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}
	if res.Price.Uint64() != 12000 {
		t.Errorf("got price %d, want the buy maker's 12000", res.Price.Uint64())
	}
	if res.Maker != f.buyer.Account() {
		t.Error("buy side names the fee recipient and must be the maker")
	}

	if got := f.balance(token, f.buyer.Account()); got != 20000-12000-120 {
		t.Errorf("buyer: got %d", got)
	}
	if got := f.balance(token, f.seller.Account()); got != 12000-60 {
		t.Errorf("seller: got %d", got)
	}
	if got := f.balance(token, relayer); got != 120 {
		t.Errorf("relayer: got %d", got)
	}
	if got := f.balance(token, protocolRecipient); got != 60 {
		t.Errorf("protocol: got %d", got)
	}
}

// ===== Test: Protocol fee method =====

func TestSettlement_ProtocolFeeInExchangeToken(t *testing.T) {
	f := newFixture(t)
	xtok := acct(0x71)
	if err := f.x.ChangeExchangeToken(f.ctx, owner, xtok); err != nil {
		t.Fatalf("ChangeExchangeToken: %v", err)
	}
	f.deposit(token, f.buyer.Account(), 10000)
	f.deposit(xtok, f.buyer.Account(), 1000)
	f.deposit(xtok, f.seller.Account(), 1000)

	buy, sell := f.buyOrder(10000), f.sellOrder(10000)
	sell.MakerRelayerFee, sell.TakerRelayerFee = bps(100), bps(200)
	buy.TakerRelayerFee = bps(200)

	if _, err := f.matchAsBuyer(buy, sell); err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}

	if got := f.balance(token, f.seller.Account()); got != 10000 {
		t.Errorf("seller token: got %d, want 10000", got)
	}
	if got := f.balance(xtok, f.seller.Account()); got != 900 {
		t.Errorf("seller exchange token: got %d, want 900", got)
	}
	if got := f.balance(xtok, f.buyer.Account()); got != 800 {
		t.Errorf("buyer exchange token: got %d, want 800", got)
	}
	if got := f.balance(xtok, relayer); got != 300 {
		t.Errorf("relayer exchange token: got %d, want 300", got)
	}
}

// ===== Test: Fee ordering =====

func TestSettlement_FeeOrdering(t *testing.T) {
	tests := []struct {
		name   string
		build  func(f *fixture) (order.Order, order.Order)
		native bool
		want   error
	}{
		{
			name: "sell taker relayer above buy",
			build: func(f *fixture) (order.Order, order.Order) {
				buy, sell := f.buyOrder(10000), f.sellOrder(10000)
				sell.TakerRelayerFee, buy.TakerRelayerFee = bps(200), bps(100)
				return buy, sell
			},
			want: exchange.ErrSellTakerRelayerFeeGreaterThanBuyTakerRelayerFee,
		},
		{
			name: "sell taker protocol above buy",
			build: func(f *fixture) (order.Order, order.Order) {
				buy, sell := f.buyOrder(10000), f.sellOrder(10000)
				buy.FeeMethod, sell.FeeMethod = order.FeeMethodSplitFee, order.FeeMethodSplitFee
				sell.TakerProtocolFee, buy.TakerProtocolFee = bps(30), bps(20)
				return buy, sell
			},
			want: exchange.ErrSellTakerProtocolFeeGreaterThanBuyTakerProtocolFee,
		},
		{
			name: "buy taker relayer above sell",
			build: func(f *fixture) (order.Order, order.Order) {
				buy, sell := f.buyMakerPair(10000, 10000)
				buy.TakerRelayerFee, sell.TakerRelayerFee = bps(200), bps(100)
				return buy, sell
			},
			want: exchange.ErrBuyTakerRelayerFeeGreaterThanSellTakerRelayerFee,
		},
		{
			name: "buy taker protocol above sell",
			build: func(f *fixture) (order.Order, order.Order) {
				buy, sell := f.buyMakerPair(10000, 10000)
				buy.FeeMethod, sell.FeeMethod = order.FeeMethodSplitFee, order.FeeMethodSplitFee
				buy.TakerProtocolFee, sell.TakerProtocolFee = bps(30), bps(20)
				return buy, sell
			},
			want: exchange.ErrBuyTakerProtocolFeeGreaterThanSellTakerProtocolFee,
		},
		{
			name: "native split fee with buy maker",
			build: func(f *fixture) (order.Order, order.Order) {
				buy, sell := f.buyMakerPair(10000, 10000)
				buy.FeeMethod, sell.FeeMethod = order.FeeMethodSplitFee, order.FeeMethodSplitFee
				buy.PaymentToken, sell.PaymentToken = self, self
				return buy, sell
			},
			native: true,
			want:   exchange.ErrSellPaymentTokenEqualPaymentToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.deposit(token, f.buyer.Account(), 20000)
			f.deposit(self, f.buyer.Account(), 20000)
			f.sink.Reset()

			buy, sell := tt.build(f)
			var value uint64
			if tt.native {
				value = 10000
			}
			_, err := f.matchWithValue(buy, sell, value)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if exchange.KindOf(err) != exchange.KindSettlement {
				t.Errorf("got kind %s, want settlement", exchange.KindOf(err))
			}
			if len(f.sink.Envelopes()) != 0 {
				t.Error("rejected match emitted events")
			}
		})
	}
}

// ===== Test: Native currency =====

func (f *fixture) nativePair() (order.Order, order.Order) {
	buy, sell := f.buyOrder(10000), f.sellOrder(10000)
	buy.PaymentToken, sell.PaymentToken = self, self
	sell.MakerRelayerFee, sell.TakerRelayerFee = bps(100), bps(200)
	buy.TakerRelayerFee = bps(200)
	return buy, sell
}

func TestSettlement_NativeOvershootRefunded(t *testing.T) {
	f := newFixture(t)
	f.deposit(self, f.buyer.Account(), 20000)

	buy, sell := f.nativePair()
	if _, err := f.matchWithValue(buy, sell, 12000); err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}

	// required = price + taker relayer fee; receive = price - maker relayer fee
	if got := f.balance(self, f.buyer.Account()); got != 20000-10200 {
		t.Errorf("buyer: got %d, want %d", got, 20000-10200)
	}
	if got := f.balance(self, f.seller.Account()); got != 9900 {
		t.Errorf("seller: got %d, want 9900", got)
	}
	if got := f.balance(self, relayer); got != 300 {
		t.Errorf("relayer: got %d, want 300", got)
	}
	if got := f.balance(self, self); got != 0 {
		t.Errorf("escrow: got %d, want 0", got)
	}
}

func TestSettlement_NativeExactValueHasNoRefund(t *testing.T) {
	f := newFixture(t)
	f.deposit(self, f.buyer.Account(), 20000)

	buy, sell := f.nativePair()
	if _, err := f.matchWithValue(buy, sell, 10200); err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}

	envs := f.sink.Envelopes()
	for _, j := range envs[len(envs)-1].Journals {
		if j.JournalType == ledger.JournalTypeRefund {
			t.Errorf("unexpected refund of %s", order.FormatBalance(&j.Amount))
		}
	}
	if got := f.balance(self, self); got != 0 {
		t.Errorf("escrow: got %d, want 0", got)
	}
}

func TestSettlement_NativeValueBelowRequired(t *testing.T) {
	f := newFixture(t)
	f.deposit(self, f.buyer.Account(), 20000)

	buy, sell := f.nativePair()
	_, err := f.matchWithValue(buy, sell, 10199)
	if !errors.Is(err, exchange.ErrValueLessThanRequiredAmount) {
		t.Fatalf("got %v, want ErrValueLessThanRequiredAmount", err)
	}
	if got := f.balance(self, f.buyer.Account()); got != 20000 {
		t.Errorf("buyer balance changed: %d", got)
	}
}

func TestSettlement_NativeValueNotFunded(t *testing.T) {
	f := newFixture(t)
	f.deposit(self, f.buyer.Account(), 5000)

	buy, sell := f.nativePair()
	_, err := f.matchWithValue(buy, sell, 12000)
	if !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Error("ledger cause should stay in the chain")
	}
}

func TestSettlement_NativeMakerFeeAbovePrice(t *testing.T) {
	f := newFixture(t)
	f.deposit(self, f.buyer.Account(), 20000)

	buy, sell := f.nativePair()
	sell.MakerRelayerFee = bps(20000)
	_, err := f.matchWithValue(buy, sell, 12000)
	if !errors.Is(err, exchange.ErrFeeExceedsPrice) {
		t.Errorf("got %v, want ErrFeeExceedsPrice", err)
	}
}

func TestSettlement_ValueSentForTokenTrade(t *testing.T) {
	f := newFixture(t)
	f.deposit(token, f.buyer.Account(), 20000)

	buy, sell := f.buyOrder(10000), f.sellOrder(10000)
	_, err := f.matchWithValue(buy, sell, 1)
	if !errors.Is(err, exchange.ErrValueNotZero) {
		t.Errorf("got %v, want ErrValueNotZero", err)
	}
}

// ===== Test: Pricing =====

func TestSettlement_BuyPriceBelowSellPrice(t *testing.T) {
	f := newFixture(t)
	f.deposit(token, f.buyer.Account(), 20000)

	_, err := f.matchAsBuyer(f.buyOrder(9000), f.sellOrder(10000))
	if !errors.Is(err, exchange.ErrBuyPriceLessThanSellPrice) {
		t.Errorf("got %v, want ErrBuyPriceLessThanSellPrice", err)
	}
}

func TestSettlement_SellMakerPriceWins(t *testing.T) {
	f := newFixture(t)
	f.deposit(token, f.buyer.Account(), 20000)

	res, err := f.matchAsBuyer(f.buyOrder(12000), f.sellOrder(10000))
	if err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}
	if res.Price.Uint64() != 10000 {
		t.Errorf("got %d, want the sell maker's 10000", res.Price.Uint64())
	}
}

func TestSettlement_DutchAuction(t *testing.T) {
	f := newFixture(t)
	f.now = 1400
	f.deposit(token, f.buyer.Account(), 2000)

	buy, sell := f.buyOrder(1000), f.sellOrder(1000)
	sell.SaleKind = order.SaleKindDutchAuction
	sell.Extra = order.NewBalance(500)
	sell.ExpirationTime = 1900

	cur, err := f.x.CalculateCurrentPrice(&sell)
	if err != nil {
		t.Fatalf("CalculateCurrentPrice: %v", err)
	}
	if cur.Uint64() != 750 {
		t.Errorf("got current price %d, want 750", cur.Uint64())
	}

	mp, err := f.x.CalculateMatchPrice(&buy, &sell)
	if err != nil || mp.Uint64() != 750 {
		t.Errorf("CalculateMatchPrice: got %d, %v", mp.Uint64(), err)
	}

	if _, err := f.matchAsBuyer(buy, sell); err != nil {
		t.Fatalf("AtomicMatch: %v", err)
	}
	if got := f.balance(token, f.seller.Account()); got != 750 {
		t.Errorf("seller: got %d, want 750", got)
	}

	f.now = 5000
	cur, _ = f.x.CalculateCurrentPrice(&sell)
	if cur.Uint64() != 500 {
		t.Errorf("after expiry: got %d, want floor of 500", cur.Uint64())
	}
}

func TestSettlement_ZeroAuctionWindow(t *testing.T) {
	f := newFixture(t)
	sell := f.sellOrder(1000)
	sell.SaleKind = order.SaleKindDutchAuction
	sell.ExpirationTime = sell.ListingTime

	if _, err := f.x.CalculateCurrentPrice(&sell); !errors.Is(err, exchange.ErrZeroAuctionWindow) {
		t.Errorf("got %v, want ErrZeroAuctionWindow", err)
	}
}

// ===== Test: Reserved accounts =====

func TestSettlement_ExternalAccountCannotBuy(t *testing.T) {
	f := newFixture(t)

	for _, maker := range []order.AccountID{ledger.ExternalAccount, self} {
		buy, sell := f.buyOrder(10000), f.sellOrder(10000)
		buy.Maker = maker

		_, err := f.x.AtomicMatch(f.ctx, exchange.MatchRequest{
			Sender:  maker,
			Buy:     buy,
			Sell:    sell,
			SellSig: f.seller.SignOrder(&sell),
		})
		if !errors.Is(err, exchange.ErrInvalidBuyOrderParameters) {
			t.Errorf("maker %s: got %v, want ErrInvalidBuyOrderParameters", maker.Short(), err)
		}
	}
	if got := f.balance(token, f.seller.Account()); got != 0 {
		t.Errorf("seller: got %d, want 0", got)
	}
}

func TestSettlement_FeeToExternalAccountRejected(t *testing.T) {
	f := newFixture(t)
	f.deposit(token, f.buyer.Account(), 20000)

	buy, sell := f.buyOrder(10000), f.sellOrder(10000)
	sell.FeeRecipient = ledger.ExternalAccount
	sell.MakerRelayerFee = bps(100)

	_, err := f.matchAsBuyer(buy, sell)
	if !errors.Is(err, exchange.ErrReservedAccount) || !exchange.IsRejection(err) {
		t.Fatalf("got %v, want ErrReservedAccount", err)
	}
	if got := f.balance(token, f.buyer.Account()); got != 20000 {
		t.Errorf("buyer: got %d, want 20000", got)
	}
}
