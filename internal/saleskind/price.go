package saleskind

import (
	"errors"

	"WyvernExchange/internal/order"

	"github.com/holiman/uint256"
)

// ErrZeroAuctionWindow is returned for a Dutch auction whose expiration equals
// its listing time.
var ErrZeroAuctionWindow = errors.New("dutch auction has zero-length price window")

// ValidateParameters reports whether the sale kind / time window combination is
// acceptable. Dutch auctions need an expiration strictly after listing.
func ValidateParameters(kind order.SaleKind, listingTime, expirationTime order.Moment) bool {
	switch kind {
	case order.SaleKindFixedPrice:
		return true
	case order.SaleKindDutchAuction:
		return expirationTime > 0 && expirationTime > listingTime
	default:
		return false
	}
}

// CanSettleOrder reports whether an order is inside its settlement window.
func CanSettleOrder(listingTime, expirationTime, now order.Moment) bool {
	return listingTime < now && (expirationTime == 0 || now < expirationTime)
}

// CalculateFinalPrice returns the settlement price of an order at now.
//
// Dutch auctions move linearly from basePrice to basePrice-extra across the
// listing window. Buy orders decay the same way as sell orders.
func CalculateFinalPrice(
	_ order.Side,
	kind order.SaleKind,
	basePrice, extra order.Balance,
	listingTime, expirationTime, now order.Moment,
) (order.Balance, error) {
	switch kind {
	case order.SaleKindFixedPrice:
		return basePrice, nil

	case order.SaleKindDutchAuction:
		if expirationTime <= listingTime {
			return order.Balance{}, ErrZeroAuctionWindow
		}
		window := expirationTime - listingTime

		var elapsed order.Moment
		if now > listingTime {
			elapsed = now - listingTime
		}
		if elapsed > window {
			elapsed = window
		}

		diff := new(uint256.Int).Mul(&extra, uint256.NewInt(elapsed))
		diff.Div(diff, uint256.NewInt(window))

		var price order.Balance
		if diff.Gt(&basePrice) {
			return price, nil
		}
		price.Sub(&basePrice, diff)
		return price, nil

	default:
		return order.Balance{}, nil
	}
}
