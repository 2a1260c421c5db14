package exchange

import (
	"errors"

	"WyvernExchange/internal/calldata"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/saleskind"
)

// OrdersCanMatch reports whether buy and sell are compatible at the current
// time. It has no side effects.
func (x *Exchange) OrdersCanMatch(buy, sell *order.Order) bool {
	return x.ordersCanMatch(buy, sell, x.clock.Now())
}

func (x *Exchange) ordersCanMatch(buy, sell *order.Order, now order.Moment) bool {
	wildcard := x.self
	return buy.Side == order.SideBuy && sell.Side == order.SideSell &&
		buy.FeeMethod == sell.FeeMethod &&
		buy.PaymentToken == sell.PaymentToken &&
		(sell.Taker == wildcard || sell.Taker == buy.Maker) &&
		(buy.Taker == wildcard || buy.Taker == sell.Maker) &&
		((sell.FeeRecipient == wildcard) != (buy.FeeRecipient == wildcard)) &&
		buy.Target == sell.Target &&
		buy.HowToCall == sell.HowToCall &&
		saleskind.CanSettleOrder(buy.ListingTime, buy.ExpirationTime, now) &&
		saleskind.CanSettleOrder(sell.ListingTime, sell.ExpirationTime, now)
}

// OrderCalldataCanMatch reports whether the two calldata payloads agree once
// each side's replacement pattern is applied.
func (x *Exchange) OrderCalldataCanMatch(buy, sell *order.Order) bool {
	return calldata.CanMatch(buy.Calldata, buy.ReplacementPattern, sell.Calldata, sell.ReplacementPattern) == nil
}

func calldataCanMatch(buy, sell *order.Order) error {
	err := calldata.CanMatch(buy.Calldata, buy.ReplacementPattern, sell.Calldata, sell.ReplacementPattern)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, calldata.ErrBuyArrayNotEqual):
		return ErrBuyArrayNotEqual
	case errors.Is(err, calldata.ErrSellArrayNotEqual):
		return ErrSellArrayNotEqual
	default:
		return ErrArrayNotEqual
	}
}

// CalculateCurrentPrice returns o's price at the current time.
func (x *Exchange) CalculateCurrentPrice(o *order.Order) (order.Balance, error) {
	return currentPrice(o, x.clock.Now())
}

func currentPrice(o *order.Order, now order.Moment) (order.Balance, error) {
	price, err := saleskind.CalculateFinalPrice(o.Side, o.SaleKind, o.BasePrice, o.Extra, o.ListingTime, o.ExpirationTime, now)
	if errors.Is(err, saleskind.ErrZeroAuctionWindow) {
		return price, ErrZeroAuctionWindow
	}
	return price, err
}

// CalculateMatchPrice returns the clearing price of buy against sell: the
// maker side's price, provided the buy price covers the sell price.
func (x *Exchange) CalculateMatchPrice(buy, sell *order.Order) (order.Balance, error) {
	return x.matchPrice(buy, sell, x.clock.Now())
}

func (x *Exchange) matchPrice(buy, sell *order.Order, now order.Moment) (order.Balance, error) {
	sellPrice, err := currentPrice(sell, now)
	if err != nil {
		return sellPrice, err
	}
	buyPrice, err := currentPrice(buy, now)
	if err != nil {
		return buyPrice, err
	}
	if buyPrice.Lt(&sellPrice) {
		return order.Balance{}, ErrBuyPriceLessThanSellPrice
	}
	if x.sellIsMaker(sell) {
		return sellPrice, nil
	}
	return buyPrice, nil
}

// sellIsMaker reports whether the sell order names the fee recipient, i.e.
// the buy order carries the wildcard.
func (x *Exchange) sellIsMaker(sell *order.Order) bool {
	return sell.FeeRecipient != x.self
}
