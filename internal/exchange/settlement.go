package exchange

import (
	"errors"
	"fmt"

	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/order"
)

var basisPoints = order.NewBalance(order.BasisPoints)

type payer uint8

const (
	payBuyer payer = iota
	paySeller
)

type leg struct {
	currency order.AccountID
	from     order.AccountID
	to       order.AccountID
	amount   order.Balance
	kind     ledger.JournalType
}

// settlement plans the transfer legs of one match. Native-currency fees are
// paid out of escrow and tracked in receive (seller's net) and required
// (buyer's gross); token fees move directly between parties.
type settlement struct {
	escrow   order.AccountID
	currency order.AccountID
	native   bool
	buyer    order.AccountID
	seller   order.AccountID
	price    order.Balance
	receive  order.Balance
	required order.Balance
	legs     []leg
}

func (s *settlement) fee(bps *order.Balance) (order.Balance, error) {
	var amount order.Balance
	if _, overflow := amount.MulDivOverflow(bps, &s.price, &basisPoints); overflow {
		return amount, ErrFeeExceedsPrice
	}
	return amount, nil
}

func (s *settlement) charge(currency order.AccountID, who payer, recipient order.AccountID, bps *order.Balance, kind ledger.JournalType) error {
	amount, err := s.fee(bps)
	if err != nil || amount.IsZero() {
		return err
	}

	if s.native && currency == s.escrow {
		switch who {
		case paySeller:
			if s.receive.Lt(&amount) {
				return ErrFeeExceedsPrice
			}
			s.receive.Sub(&s.receive, &amount)
		case payBuyer:
			if _, overflow := s.required.AddOverflow(&s.required, &amount); overflow {
				return ErrFeeExceedsPrice
			}
		}
		s.legs = append(s.legs, leg{currency, s.escrow, recipient, amount, kind})
		return nil
	}

	from := s.buyer
	if who == paySeller {
		from = s.seller
	}
	s.legs = append(s.legs, leg{currency, from, recipient, amount, kind})
	return nil
}

// protocolFeeCurrency is the currency ProtocolFee-method relayer fees are
// charged in.
func (c *opContext) protocolFeeCurrency(paymentToken order.AccountID) order.AccountID {
	if c.cfg.ExchangeToken.IsZero() {
		return paymentToken
	}
	return c.cfg.ExchangeToken
}

// executeFundsTransfer settles a matched pair and returns the match price.
// sender funds msgValue for native trades; any overshoot is refunded to the
// buyer.
func (x *Exchange) executeFundsTransfer(c *opContext, sender order.AccountID, msgValue *order.Balance, buy, sell *order.Order, ref string) (order.Balance, error) {
	currency := sell.PaymentToken
	native := currency == x.self

	if !native && !msgValue.IsZero() {
		return order.Balance{}, ErrValueNotZero
	}

	price, err := x.matchPrice(buy, sell, c.now)
	if err != nil {
		return price, err
	}

	s := &settlement{
		escrow:   x.self,
		currency: currency,
		native:   native,
		buyer:    buy.Maker,
		seller:   sell.Maker,
		price:    price,
		receive:  price,
		required: price,
	}

	if !native && !price.IsZero() {
		s.legs = append(s.legs, leg{currency, buy.Maker, sell.Maker, price, ledger.JournalTypePrice})
	}

	if x.sellIsMaker(sell) {
		err = x.chargeSellMaker(c, s, buy, sell)
	} else {
		err = x.chargeBuyMaker(c, s, buy, sell)
	}
	if err != nil {
		return price, err
	}

	if native {
		if msgValue.Lt(&s.required) {
			return price, ErrValueLessThanRequiredAmount
		}
		s.legs = append(s.legs, leg{currency, x.self, sell.Maker, s.receive, ledger.JournalTypeSellerPayout})

		var refund order.Balance
		refund.Sub(msgValue, &s.required)
		s.legs = append(s.legs, leg{currency, x.self, buy.Maker, refund, ledger.JournalTypeRefund})
	}

	batch, err := x.applyLegs(c, sender, msgValue, s, ref)
	if err != nil {
		return price, err
	}
	c.batch = batch
	return price, nil
}

func (x *Exchange) chargeSellMaker(c *opContext, s *settlement, buy, sell *order.Order) error {
	if sell.TakerRelayerFee.Gt(&buy.TakerRelayerFee) {
		return ErrSellTakerRelayerFeeGreaterThanBuyTakerRelayerFee
	}

	if sell.FeeMethod == order.FeeMethodSplitFee {
		if sell.TakerProtocolFee.Gt(&buy.TakerProtocolFee) {
			return ErrSellTakerProtocolFeeGreaterThanBuyTakerProtocolFee
		}
		protocol := c.cfg.ProtocolFeeRecipient
		for _, ch := range []struct {
			who       payer
			recipient order.AccountID
			bps       *order.Balance
			kind      ledger.JournalType
		}{
			{paySeller, sell.FeeRecipient, &sell.MakerRelayerFee, ledger.JournalTypeMakerRelayerFee},
			{payBuyer, sell.FeeRecipient, &sell.TakerRelayerFee, ledger.JournalTypeTakerRelayerFee},
			{paySeller, protocol, &sell.MakerProtocolFee, ledger.JournalTypeMakerProtocolFee},
			{payBuyer, protocol, &sell.TakerProtocolFee, ledger.JournalTypeTakerProtocolFee},
		} {
			if err := s.charge(s.currency, ch.who, ch.recipient, ch.bps, ch.kind); err != nil {
				return err
			}
		}
		return nil
	}

	feeCurrency := c.protocolFeeCurrency(s.currency)
	if err := s.charge(feeCurrency, paySeller, sell.FeeRecipient, &sell.MakerRelayerFee, ledger.JournalTypeMakerRelayerFee); err != nil {
		return err
	}
	return s.charge(feeCurrency, payBuyer, sell.FeeRecipient, &sell.TakerRelayerFee, ledger.JournalTypeTakerRelayerFee)
}

func (x *Exchange) chargeBuyMaker(c *opContext, s *settlement, buy, sell *order.Order) error {
	if buy.TakerRelayerFee.Gt(&sell.TakerRelayerFee) {
		return ErrBuyTakerRelayerFeeGreaterThanSellTakerRelayerFee
	}

	if sell.FeeMethod == order.FeeMethodSplitFee {
		if s.native {
			return ErrSellPaymentTokenEqualPaymentToken
		}
		if buy.TakerProtocolFee.Gt(&sell.TakerProtocolFee) {
			return ErrBuyTakerProtocolFeeGreaterThanSellTakerProtocolFee
		}
		protocol := c.cfg.ProtocolFeeRecipient
		for _, ch := range []struct {
			who       payer
			recipient order.AccountID
			bps       *order.Balance
			kind      ledger.JournalType
		}{
			{payBuyer, buy.FeeRecipient, &buy.MakerRelayerFee, ledger.JournalTypeMakerRelayerFee},
			{paySeller, buy.FeeRecipient, &buy.TakerRelayerFee, ledger.JournalTypeTakerRelayerFee},
			{payBuyer, protocol, &buy.MakerProtocolFee, ledger.JournalTypeMakerProtocolFee},
			{paySeller, protocol, &buy.TakerProtocolFee, ledger.JournalTypeTakerProtocolFee},
		} {
			if err := s.charge(s.currency, ch.who, ch.recipient, ch.bps, ch.kind); err != nil {
				return err
			}
		}
		return nil
	}

	feeCurrency := c.protocolFeeCurrency(s.currency)
	if err := s.charge(feeCurrency, payBuyer, buy.FeeRecipient, &buy.MakerRelayerFee, ledger.JournalTypeMakerRelayerFee); err != nil {
		return err
	}
	return s.charge(feeCurrency, paySeller, buy.FeeRecipient, &buy.TakerRelayerFee, ledger.JournalTypeTakerRelayerFee)
}

// applyLegs moves escrowed native value in from sender, then runs every
// planned leg in order. Any failure leaves the transaction to be rolled back.
func (x *Exchange) applyLegs(c *opContext, sender order.AccountID, msgValue *order.Balance, s *settlement, ref string) (*ledger.Batch, error) {
	tracker := ledger.NewBalanceTracker(c.tx)
	gen := ledger.NewJournalGenerator(tracker, ref, int64(c.now))
	router := ledger.NewRouter(x.self, gen)

	if s.native {
		if err := router.Transfer(x.self, sender, x.self, msgValue, ledger.JournalTypeEscrowDeposit); err != nil {
			return nil, settlementError(err)
		}
	}
	for i := range s.legs {
		l := &s.legs[i]
		if err := router.Transfer(l.currency, l.from, l.to, &l.amount, l.kind); err != nil {
			return nil, settlementError(err)
		}
	}

	batch := gen.Batch()
	validator := ledger.NewInvariantValidator(tracker)
	if err := validator.ValidateBatch(batch); err != nil {
		return nil, err
	}
	if s.native {
		if err := validator.ValidateNetZero(batch, x.self, x.self); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func settlementError(err error) error {
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
	}
	if errors.Is(err, ledger.ErrReservedAccount) {
		return fmt.Errorf("%w: %w", ErrReservedAccount, err)
	}
	return err
}
