package ledger

import (
	"errors"
	"fmt"

	"WyvernExchange/internal/order"
)

var ErrWrongAsset = errors.New("transfer routed to the wrong asset handler")

// AssetTransfer moves value between accounts. Implementations record every
// leg in the operation's batch.
type AssetTransfer interface {
	Transfer(currency, from, to order.AccountID, amount *order.Balance, kind JournalType) error
}

// NativeTransfer moves the chain's native currency, identified by the
// native sentinel.
type NativeTransfer struct {
	Native order.AccountID
	gen    *JournalGenerator
}

func NewNativeTransfer(native order.AccountID, gen *JournalGenerator) *NativeTransfer {
	return &NativeTransfer{Native: native, gen: gen}
}

func (t *NativeTransfer) Transfer(currency, from, to order.AccountID, amount *order.Balance, kind JournalType) error {
	if currency != t.Native {
		return fmt.Errorf("%w: native handler got %s", ErrWrongAsset, currency.Short())
	}
	return t.gen.Transfer(currency, from, to, amount, kind)
}

// TokenTransfer moves fungible tokens. The token's id is the currency.
type TokenTransfer struct {
	Native order.AccountID
	gen    *JournalGenerator
}

func NewTokenTransfer(native order.AccountID, gen *JournalGenerator) *TokenTransfer {
	return &TokenTransfer{Native: native, gen: gen}
}

func (t *TokenTransfer) Transfer(currency, from, to order.AccountID, amount *order.Balance, kind JournalType) error {
	if currency == t.Native {
		return fmt.Errorf("%w: token handler got native currency", ErrWrongAsset)
	}
	return t.gen.Transfer(currency, from, to, amount, kind)
}

// Router dispatches each transfer on whether its currency is native.
type Router struct {
	native order.AccountID
	Native AssetTransfer
	Token  AssetTransfer
}

// NewRouter builds native and token handlers sharing one generator.
func NewRouter(native order.AccountID, gen *JournalGenerator) *Router {
	return &Router{
		native: native,
		Native: NewNativeTransfer(native, gen),
		Token:  NewTokenTransfer(native, gen),
	}
}

func (r *Router) Transfer(currency, from, to order.AccountID, amount *order.Balance, kind JournalType) error {
	if currency == r.native {
		return r.Native.Transfer(currency, from, to, amount, kind)
	}
	return r.Token.Transfer(currency, from, to, amount, kind)
}
