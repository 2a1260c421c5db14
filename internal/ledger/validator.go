package ledger

import (
	"fmt"

	"WyvernExchange/internal/order"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatch verifies every leg is well-formed
func (v *InvariantValidator) ValidateBatch(batch *Batch) error {
	return batch.Validate()
}

// ValidateNetZero verifies that account (normally the escrow) ends the batch
// where it started in currency: everything it received was paid back out.
func (v *InvariantValidator) ValidateNetZero(batch *Batch, currency, account order.AccountID) error {
	in, out := batch.NetFlow(currency, account)
	if !in.Eq(&out) {
		return fmt.Errorf("account %s not net zero in batch %s: in=%s out=%s",
			account.Short(), batch.BatchID, order.FormatBalance(&in), order.FormatBalance(&out))
	}
	return nil
}

// ValidateConserved verifies the batch neither creates nor destroys funds
// among the given non-external accounts: the sum of their balances after the
// batch equals before plus external inflow.
func (v *InvariantValidator) ValidateConserved(batch *Batch, before map[AccountKey]order.Balance) error {
	var sumBefore, sumAfter, external order.Balance
	for key, bal := range before {
		b := bal
		sumBefore.Add(&sumBefore, &b)
		after, err := v.tracker.GetBalance(key)
		if err != nil {
			return err
		}
		sumAfter.Add(&sumAfter, &after)
	}
	for i := range batch.Journals {
		if batch.Journals[i].CreditAccount == ExternalAccount {
			external.Add(&external, &batch.Journals[i].Amount)
		}
	}
	sumBefore.Add(&sumBefore, &external)
	if !sumBefore.Eq(&sumAfter) {
		return fmt.Errorf("batch %s not conserved: before+external=%s after=%s",
			batch.BatchID, order.FormatBalance(&sumBefore), order.FormatBalance(&sumAfter))
	}
	return nil
}
