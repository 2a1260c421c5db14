package ledger

import (
	"errors"
	"fmt"

	"WyvernExchange/internal/order"

	"github.com/google/uuid"
)

// ErrReservedAccount is returned for a leg that would move value out of
// ExternalAccount other than by deposit, or into it at all.
var ErrReservedAccount = errors.New("transfer touches the external account")

// JournalGenerator records the transfer legs of one operation into a batch
// and applies each leg to the tracker as it is generated, so later legs see
// earlier ones.
type JournalGenerator struct {
	tracker *BalanceTracker
	batch   *Batch
}

func NewJournalGenerator(tracker *BalanceTracker, eventRef string, timestamp int64) *JournalGenerator {
	return &JournalGenerator{
		tracker: tracker,
		batch:   NewBatch(eventRef, timestamp),
	}
}

// Transfer moves amount of currency from -> to. Zero amounts are skipped.
func (jg *JournalGenerator) Transfer(
	currency, from, to order.AccountID,
	amount *order.Balance,
	kind JournalType,
) error {
	if amount.IsZero() || from == to {
		return nil
	}
	if to == ExternalAccount || (from == ExternalAccount && kind != JournalTypeDeposit) {
		return fmt.Errorf("%w: %s leg %s -> %s", ErrReservedAccount, kind, from.Short(), to.Short())
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       jg.batch.BatchID,
		EventRef:      jg.batch.EventRef,
		Currency:      currency,
		DebitAccount:  to,
		CreditAccount: from,
		Amount:        *amount,
		JournalType:   kind,
		Timestamp:     jg.batch.Timestamp,
	}

	if err := jg.tracker.ApplyJournal(journal); err != nil {
		return fmt.Errorf("%s leg: %w", kind, err)
	}
	jg.batch.Journals = append(jg.batch.Journals, journal)
	return nil
}

// Batch returns the legs generated so far.
func (jg *JournalGenerator) Batch() *Batch {
	return jg.batch
}
