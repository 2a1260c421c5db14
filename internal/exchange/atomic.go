package exchange

import (
	"context"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/order"

	"github.com/ethereum/go-ethereum/common"
)

// MatchRequest is one call to AtomicMatch.
type MatchRequest struct {
	Sender   order.AccountID
	MsgValue order.Balance

	Buy     order.Order
	BuySig  []byte
	Sell    order.Order
	SellSig []byte

	Metadata []byte
}

// MatchResult describes a committed match. A hash is zero when the sender
// was that order's maker, since the order was never authenticated or
// finalized.
type MatchResult struct {
	BuyHash  common.Hash
	SellHash common.Hash
	Maker    order.AccountID
	Taker    order.AccountID
	Price    order.Balance
}

// AtomicMatch validates, matches and settles a buy/sell pair. On any error
// nothing is written and no event is emitted.
func (x *Exchange) AtomicMatch(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	var res *MatchResult
	err := x.run(ctx, "atomic_match", func(c *opContext) error {
		var err error
		res, err = x.atomicMatch(c, &req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if x.metrics != nil {
		x.metrics.MatchesSettled.WithLabelValues(req.Sell.FeeMethod.String(), req.Sell.PaymentToken.Short()).Inc()
		x.metrics.MatchedVolume.WithLabelValues(req.Sell.PaymentToken.Short()).Add(balanceFloat(&res.Price))
	}
	return res, nil
}

func (x *Exchange) atomicMatch(c *opContext, req *MatchRequest) (*MatchResult, error) {
	buy, sell := &req.Buy, &req.Sell
	res := &MatchResult{}
	var buyHashBytes, sellHashBytes []byte

	if req.Sender == buy.Maker {
		if !x.validateOrderParameters(c, buy) {
			return nil, ErrInvalidBuyOrderParameters
		}
	} else {
		hash, err := x.requireValidOrder(c, buy, req.BuySig)
		if err != nil {
			return nil, err
		}
		res.BuyHash = hash
		buyHashBytes = hash.Bytes()
	}

	if req.Sender == sell.Maker {
		if !x.validateOrderParameters(c, sell) {
			return nil, ErrInvalidSellOrderParameters
		}
	} else {
		hash, err := x.requireValidOrder(c, sell, req.SellSig)
		if err != nil {
			return nil, err
		}
		res.SellHash = hash
		sellHashBytes = hash.Bytes()
	}

	if !x.ordersCanMatch(buy, sell, c.now) {
		return nil, ErrOrdersCannotMatch
	}
	if err := calldataCanMatch(buy, sell); err != nil {
		return nil, err
	}

	for _, h := range []*common.Hash{&res.BuyHash, &res.SellHash} {
		if *h == (common.Hash{}) {
			continue
		}
		if err := markCancelledOrFinalized(c.tx, *h); err != nil {
			return nil, err
		}
		c.finalized = append(c.finalized, *h)
	}

	ref := order.HashToSign(sell).Hex()
	price, err := x.executeFundsTransfer(c, req.Sender, &req.MsgValue, buy, sell, ref)
	if err != nil {
		return nil, err
	}
	res.Price = price

	if x.sellIsMaker(sell) {
		res.Maker, res.Taker = sell.Maker, buy.Maker
	} else {
		res.Maker, res.Taker = buy.Maker, sell.Maker
	}

	c.emit(&event.OrdersMatched{
		BuyHash:  buyHashBytes,
		SellHash: sellHashBytes,
		Maker:    res.Maker,
		Taker:    res.Taker,
		Price:    order.FormatBalance(&price),
		Metadata: req.Metadata,
	})

	x.logger.Info().
		Str("buy_hash", res.BuyHash.Hex()).
		Str("sell_hash", res.SellHash.Hex()).
		Str("maker", res.Maker.Short()).
		Str("taker", res.Taker.Short()).
		Str("price", order.FormatBalance(&price)).
		Str("fee_method", sell.FeeMethod.String()).
		Msg("orders matched")
	return res, nil
}
