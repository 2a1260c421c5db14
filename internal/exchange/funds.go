package exchange

import (
	"context"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/order"
)

// Deposit credits amount of currency to account from outside the ledger.
// Only the owner may deposit.
func (x *Exchange) Deposit(ctx context.Context, caller, currency, account order.AccountID, amount order.Balance) error {
	return x.run(ctx, "deposit", func(c *opContext) error {
		if err := c.requireOwner(caller); err != nil {
			return err
		}
		tracker := ledger.NewBalanceTracker(c.tx)
		gen := ledger.NewJournalGenerator(tracker, "deposit:"+account.Hex(), int64(c.now))
		if err := ledger.NewRouter(x.self, gen).Transfer(currency, ledger.ExternalAccount, account, &amount, ledger.JournalTypeDeposit); err != nil {
			return err
		}
		c.batch = gen.Batch()
		c.emit(&event.Deposited{
			Currency: currency,
			Account:  account,
			Amount:   order.FormatBalance(&amount),
		})
		return nil
	})
}

// BalanceOf returns account's committed balance of currency.
func (x *Exchange) BalanceOf(ctx context.Context, currency, account order.AccountID) (order.Balance, error) {
	var bal order.Balance
	err := x.view(ctx, func(c *opContext) error {
		var err error
		bal, err = ledger.NewBalanceTracker(c.tx).GetBalance(ledger.NewAccountKey(currency, account))
		return err
	})
	return bal, err
}
