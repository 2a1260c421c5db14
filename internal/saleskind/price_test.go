package saleskind_test

import (
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/saleskind"
	"errors"
	"testing"
)

func TestFixedPrice_IgnoresEverythingElse(t *testing.T) {
	base := order.NewBalance(10_000_000_000_000_000)
	cases := []struct {
		side                     order.Side
		extra                    uint64
		listing, expiration, now uint64
	}{
		{order.SideSell, 0, 0, 0, 0},
		{order.SideBuy, 999, 10, 5, 1_000_000},
		{order.SideSell, 1 << 40, 100, 100, 100},
	}

	for _, c := range cases {
		got, err := saleskind.CalculateFinalPrice(c.side, order.SaleKindFixedPrice,
			base, order.NewBalance(c.extra), c.listing, c.expiration, c.now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Eq(&base) {
			t.Errorf("got %s, want %s", order.FormatBalance(&got), order.FormatBalance(&base))
		}
	}
}

func TestDutchAuction_LinearDecay(t *testing.T) {
	base := order.NewBalance(1000)
	extra := order.NewBalance(400)

	cases := []struct {
		now  uint64
		want uint64
	}{
		{now: 100, want: 1000}, // at listing
		{now: 150, want: 900},  // quarter
		{now: 200, want: 800},  // half
		{now: 300, want: 600},  // at expiration
		{now: 900, want: 600},  // clamped past expiration
		{now: 50, want: 1000},  // clamped before listing
	}

	for _, c := range cases {
		got, err := saleskind.CalculateFinalPrice(order.SideSell, order.SaleKindDutchAuction,
			base, extra, 100, 300, c.now)
		if err != nil {
			t.Fatalf("now=%d: %v", c.now, err)
		}
		if got.Uint64() != c.want {
			t.Errorf("now=%d: got %d, want %d", c.now, got.Uint64(), c.want)
		}
	}
}

func TestDutchAuction_BuySideAlsoDecreases(t *testing.T) {
	base := order.NewBalance(1000)
	extra := order.NewBalance(400)

	sell, _ := saleskind.CalculateFinalPrice(order.SideSell, order.SaleKindDutchAuction, base, extra, 100, 300, 200)
	buy, _ := saleskind.CalculateFinalPrice(order.SideBuy, order.SaleKindDutchAuction, base, extra, 100, 300, 200)

	if !buy.Eq(&sell) {
		t.Errorf("buy=%d sell=%d, want equal", buy.Uint64(), sell.Uint64())
	}
	if buy.Uint64() != 800 {
		t.Errorf("got %d, want 800", buy.Uint64())
	}
}

func TestDutchAuction_SaturatesAtZero(t *testing.T) {
	got, err := saleskind.CalculateFinalPrice(order.SideSell, order.SaleKindDutchAuction,
		order.NewBalance(10), order.NewBalance(1000), 0, 10, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("got %d, want 0", got.Uint64())
	}
}

func TestDutchAuction_ZeroWindow(t *testing.T) {
	_, err := saleskind.CalculateFinalPrice(order.SideSell, order.SaleKindDutchAuction,
		order.NewBalance(10), order.NewBalance(1), 100, 100, 100)
	if !errors.Is(err, saleskind.ErrZeroAuctionWindow) {
		t.Errorf("got %v, want ErrZeroAuctionWindow", err)
	}
}

func TestUnknownSaleKind_IsZero(t *testing.T) {
	got, err := saleskind.CalculateFinalPrice(order.SideSell, order.SaleKind(9),
		order.NewBalance(10), order.NewBalance(1), 0, 10, 5)
	if err != nil || !got.IsZero() {
		t.Errorf("got (%d, %v), want (0, nil)", got.Uint64(), err)
	}
}

func TestValidateParameters(t *testing.T) {
	if !saleskind.ValidateParameters(order.SaleKindFixedPrice, 100, 0) {
		t.Error("fixed price with no expiration should be valid")
	}
	if saleskind.ValidateParameters(order.SaleKindDutchAuction, 100, 0) {
		t.Error("dutch auction without expiration should be invalid")
	}
	if saleskind.ValidateParameters(order.SaleKindDutchAuction, 100, 100) {
		t.Error("dutch auction with empty window should be invalid")
	}
	if !saleskind.ValidateParameters(order.SaleKindDutchAuction, 100, 101) {
		t.Error("dutch auction with a window should be valid")
	}
}

func TestCanSettleOrder(t *testing.T) {
	cases := []struct {
		listing, expiration, now uint64
		want                     bool
	}{
		{100, 0, 101, true},
		{100, 0, 100, false}, // listing must be strictly before now
		{100, 200, 150, true},
		{100, 200, 200, false}, // expiration is exclusive
		{100, 200, 99, false},
	}
	for _, c := range cases {
		if got := saleskind.CanSettleOrder(c.listing, c.expiration, c.now); got != c.want {
			t.Errorf("CanSettleOrder(%d, %d, %d) = %v, want %v", c.listing, c.expiration, c.now, got, c.want)
		}
	}
}
