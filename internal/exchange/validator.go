package exchange

import (
	"context"
	"errors"
	"fmt"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/saleskind"
	"WyvernExchange/internal/signature"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateOrderParameters reports whether o targets this instance, has a
// maker that is not a reserved ledger account, has a valid sale kind window
// and, under SplitFee, meets the protocol fee minimums.
func (x *Exchange) ValidateOrderParameters(ctx context.Context, o *order.Order) (bool, error) {
	var ok bool
	err := x.view(ctx, func(c *opContext) error {
		ok = x.validateOrderParameters(c, o)
		return nil
	})
	return ok, err
}

func (x *Exchange) validateOrderParameters(c *opContext, o *order.Order) bool {
	if o.Exchange != x.self {
		return false
	}
	if o.Maker == x.self || o.Maker == ledger.ExternalAccount {
		return false
	}
	if !saleskind.ValidateParameters(o.SaleKind, o.ListingTime, o.ExpirationTime) {
		return false
	}
	if o.FeeMethod == order.FeeMethodSplitFee {
		if o.MakerProtocolFee.Lt(&c.cfg.MinimumMakerProtocolFee) {
			return false
		}
		if o.TakerProtocolFee.Lt(&c.cfg.MinimumTakerProtocolFee) {
			return false
		}
	}
	return true
}

// ValidateOrder reports whether o, identified by hash, may be settled: its
// parameters are valid, it is not cancelled or finalized, and it is either
// approved or carries a valid maker signature over hash.
func (x *Exchange) ValidateOrder(ctx context.Context, hash common.Hash, o *order.Order, sig []byte) (bool, error) {
	var ok bool
	err := x.view(ctx, func(c *opContext) error {
		var err error
		ok, err = x.validateOrder(c, hash, o, sig)
		return err
	})
	return ok, err
}

// validateOrder returns false for any ordinary invalidity, including a
// signature that does not verify. A signature of the wrong shape is an
// error.
func (x *Exchange) validateOrder(c *opContext, hash common.Hash, o *order.Order, sig []byte) (bool, error) {
	if !x.validateOrderParameters(c, o) {
		return false, nil
	}

	done, err := x.lookupFinalized(c, hash)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	approved, err := isApproved(c.tx, hash)
	if err != nil {
		return false, err
	}
	if approved {
		return true, nil
	}

	err = x.verifier.Verify(sig, hash.Bytes(), o.Maker)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, signature.ErrMsgVerifyFailed):
		return false, nil
	case errors.Is(err, signature.ErrInvalidSignatureLength), errors.Is(err, signature.ErrInvalidPublicKey):
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return false, err
	}
}

// requireValidOrder returns the order's hash-to-sign if it validates.
func (x *Exchange) requireValidOrder(c *opContext, o *order.Order, sig []byte) (common.Hash, error) {
	hash := order.HashToSign(o)
	ok, err := x.validateOrder(c, hash, o, sig)
	if err != nil {
		return hash, err
	}
	if !ok {
		return hash, ErrInvalidOrderHash
	}
	return hash, nil
}

// ApproveOrder pre-authorizes o so it can be matched without a signature.
func (x *Exchange) ApproveOrder(ctx context.Context, caller order.AccountID, o *order.Order, orderbookInclusionDesired bool) error {
	return x.run(ctx, "approve_order", func(c *opContext) error {
		if caller != o.Maker {
			return ErrOnlyMaker
		}
		hash := order.HashToSign(o)

		approved, err := isApproved(c.tx, hash)
		if err != nil {
			return err
		}
		if approved {
			return ErrOrderHashMissing
		}
		if err := markApproved(c.tx, hash); err != nil {
			return err
		}

		one, two := event.NewOrderApproved(hash, o, orderbookInclusionDesired)
		c.emit(one)
		c.emit(two)

		x.logger.Info().Str("hash", hash.Hex()).Str("maker", o.Maker.Short()).Msg("order approved")
		return nil
	})
}

// CancelOrder marks a currently valid order as cancelled. Cancelling twice
// fails the validity check.
func (x *Exchange) CancelOrder(ctx context.Context, caller order.AccountID, o *order.Order, sig []byte) error {
	return x.run(ctx, "cancel_order", func(c *opContext) error {
		if caller != o.Maker {
			return ErrOnlyMaker
		}
		hash, err := x.requireValidOrder(c, o, sig)
		if err != nil {
			return err
		}
		if err := markCancelledOrFinalized(c.tx, hash); err != nil {
			return err
		}
		c.finalized = append(c.finalized, hash)
		c.emit(&event.OrderCancelled{Hash: hash})

		x.logger.Info().Str("hash", hash.Hex()).Str("maker", o.Maker.Short()).Msg("order cancelled")
		return nil
	})
}
