package ledger

import (
	"errors"
	"fmt"

	"WyvernExchange/internal/order"
	"WyvernExchange/internal/store"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceTracker reads and writes account balances inside one store
// transaction. Writes become durable only when the caller commits.
type BalanceTracker struct {
	tx store.Tx
}

func NewBalanceTracker(tx store.Tx) *BalanceTracker {
	return &BalanceTracker{tx: tx}
}

// GetBalance returns the current balance for an account. Missing keys read as zero.
func (bt *BalanceTracker) GetBalance(key AccountKey) (order.Balance, error) {
	var bal order.Balance
	raw, err := bt.tx.Get(key.StorageKey())
	if errors.Is(err, store.ErrNotFound) {
		return bal, nil
	}
	if err != nil {
		return bal, fmt.Errorf("read balance %s: %w", key.AccountPath(), err)
	}
	if len(raw) != 32 {
		return bal, fmt.Errorf("corrupt balance %s: %d bytes", key.AccountPath(), len(raw))
	}
	bal.SetBytes32(raw)
	return bal, nil
}

func (bt *BalanceTracker) setBalance(key AccountKey, bal *order.Balance) error {
	v := bal.Bytes32()
	if err := bt.tx.Set(key.StorageKey(), v[:]); err != nil {
		return fmt.Errorf("write balance %s: %w", key.AccountPath(), err)
	}
	return nil
}

// ApplyJournal moves Amount from CreditAccount to DebitAccount. The external
// account is never debited or credited in storage.
func (bt *BalanceTracker) ApplyJournal(j Journal) error {
	from := NewAccountKey(j.Currency, j.CreditAccount)
	to := NewAccountKey(j.Currency, j.DebitAccount)

	if !from.IsExternal() {
		bal, err := bt.GetBalance(from)
		if err != nil {
			return err
		}
		if bal.Lt(&j.Amount) {
			return fmt.Errorf("%w: %s has %s, needs %s",
				ErrInsufficientBalance, from.AccountPath(), order.FormatBalance(&bal), order.FormatBalance(&j.Amount))
		}
		bal.Sub(&bal, &j.Amount)
		if err := bt.setBalance(from, &bal); err != nil {
			return err
		}
	}

	if !to.IsExternal() {
		bal, err := bt.GetBalance(to)
		if err != nil {
			return err
		}
		if _, overflow := bal.AddOverflow(&bal, &j.Amount); overflow {
			return fmt.Errorf("balance overflow on %s", to.AccountPath())
		}
		if err := bt.setBalance(to, &bal); err != nil {
			return err
		}
	}
	return nil
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		if err := bt.ApplyJournal(j); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSufficient checks if an account holds at least required.
func (bt *BalanceTracker) ValidateSufficient(key AccountKey, required *order.Balance) error {
	if key.IsExternal() {
		return nil
	}
	bal, err := bt.GetBalance(key)
	if err != nil {
		return err
	}
	if bal.Lt(required) {
		return fmt.Errorf("%w: have=%s, need=%s",
			ErrInsufficientBalance, order.FormatBalance(&bal), order.FormatBalance(required))
	}
	return nil
}
