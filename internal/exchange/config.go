package exchange

import (
	"context"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/store"
)

// Config is the owner-controlled protocol configuration.
type Config struct {
	Owner                   order.AccountID
	ProtocolFeeRecipient    order.AccountID
	MinimumMakerProtocolFee order.Balance
	MinimumTakerProtocolFee order.Balance

	// ExchangeToken is the currency ProtocolFee-method orders pay relayer
	// fees in. Zero means the order's own payment token.
	ExchangeToken order.AccountID
}

// Config returns the current configuration.
func (x *Exchange) Config(ctx context.Context) (Config, error) {
	var cfg Config
	err := x.view(ctx, func(c *opContext) error {
		cfg = c.cfg
		return nil
	})
	return cfg, err
}

// Bootstrap seeds the configuration of a fresh store. It does nothing once
// any configuration has been written, so it is safe to call on every start.
// A fresh store requires a usable protocol fee recipient.
func (x *Exchange) Bootstrap(ctx context.Context, cfg Config) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	done, err := store.Has(tx, []byte(keyBootstrapped))
	if err != nil || done {
		return false, err
	}
	if err := x.checkFeeRecipient(cfg.ProtocolFeeRecipient); err != nil {
		return false, err
	}
	if err := saveConfig(tx, &cfg); err != nil {
		return false, err
	}
	if err := tx.Set([]byte(keyBootstrapped), flagSet); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	x.logger.Info().
		Str("owner", cfg.Owner.Hex()).
		Str("protocol_fee_recipient", cfg.ProtocolFeeRecipient.Hex()).
		Str("min_maker_protocol_fee", order.FormatBalance(&cfg.MinimumMakerProtocolFee)).
		Str("min_taker_protocol_fee", order.FormatBalance(&cfg.MinimumTakerProtocolFee)).
		Msg("protocol configuration bootstrapped")
	return true, nil
}

// ChangeOwner sets a new owner. Anyone may claim an unset owner; afterwards
// only the current owner may hand it over.
func (x *Exchange) ChangeOwner(ctx context.Context, caller, newOwner order.AccountID) error {
	return x.run(ctx, "change_owner", func(c *opContext) error {
		if !c.cfg.Owner.IsZero() && c.cfg.Owner != caller {
			return ErrOnlyOwner
		}
		if err := setAccount(c.tx, keyOwner, newOwner); err != nil {
			return err
		}
		c.emit(&event.OwnerChanged{Caller: caller, NewOwner: newOwner})
		return nil
	})
}

func (x *Exchange) ChangeMinimumMakerProtocolFee(ctx context.Context, caller order.AccountID, fee order.Balance) error {
	return x.run(ctx, "change_minimum_maker_protocol_fee", func(c *opContext) error {
		if err := c.requireOwner(caller); err != nil {
			return err
		}
		if err := setAmount(c.tx, keyMinMakerProtocolFee, &fee); err != nil {
			return err
		}
		c.emit(&event.MinimumMakerProtocolFeeChanged{Fee: order.FormatBalance(&fee)})
		return nil
	})
}

func (x *Exchange) ChangeMinimumTakerProtocolFee(ctx context.Context, caller order.AccountID, fee order.Balance) error {
	return x.run(ctx, "change_minimum_taker_protocol_fee", func(c *opContext) error {
		if err := c.requireOwner(caller); err != nil {
			return err
		}
		if err := setAmount(c.tx, keyMinTakerProtocolFee, &fee); err != nil {
			return err
		}
		c.emit(&event.MinimumTakerProtocolFeeChanged{Fee: order.FormatBalance(&fee)})
		return nil
	})
}

func (x *Exchange) ChangeProtocolFeeRecipient(ctx context.Context, caller, recipient order.AccountID) error {
	return x.run(ctx, "change_protocol_fee_recipient", func(c *opContext) error {
		if err := c.requireOwner(caller); err != nil {
			return err
		}
		if err := x.checkFeeRecipient(recipient); err != nil {
			return err
		}
		if err := setAccount(c.tx, keyProtocolFeeRecipient, recipient); err != nil {
			return err
		}
		c.emit(&event.ProtocolFeeRecipientChanged{Caller: caller, NewRecipient: recipient})
		return nil
	})
}

func (x *Exchange) ChangeExchangeToken(ctx context.Context, caller, token order.AccountID) error {
	return x.run(ctx, "change_exchange_token", func(c *opContext) error {
		if err := c.requireOwner(caller); err != nil {
			return err
		}
		if err := setAccount(c.tx, keyExchangeToken, token); err != nil {
			return err
		}
		c.emit(&event.ExchangeTokenChanged{Caller: caller, NewToken: token})
		return nil
	})
}

// checkFeeRecipient refuses accounts protocol fees could not be credited to.
func (x *Exchange) checkFeeRecipient(r order.AccountID) error {
	if r.IsZero() || r == x.self || r == ledger.ExternalAccount {
		return ErrInvalidProtocolFeeRecipient
	}
	return nil
}

func (c *opContext) requireOwner(caller order.AccountID) error {
	if c.cfg.Owner.IsZero() || c.cfg.Owner != caller {
		return ErrOnlyOwner
	}
	return nil
}
