package ledger

import (
	"fmt"

	"WyvernExchange/internal/order"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeDeposit JournalType = iota
	JournalTypePrice
	JournalTypeMakerRelayerFee
	JournalTypeTakerRelayerFee
	JournalTypeMakerProtocolFee
	JournalTypeTakerProtocolFee
	JournalTypeEscrowDeposit
	JournalTypeSellerPayout
	JournalTypeRefund
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeDeposit:
		return "deposit"
	case JournalTypePrice:
		return "price"
	case JournalTypeMakerRelayerFee:
		return "maker_relayer_fee"
	case JournalTypeTakerRelayerFee:
		return "taker_relayer_fee"
	case JournalTypeMakerProtocolFee:
		return "maker_protocol_fee"
	case JournalTypeTakerProtocolFee:
		return "taker_protocol_fee"
	case JournalTypeEscrowDeposit:
		return "escrow_deposit"
	case JournalTypeSellerPayout:
		return "seller_payout"
	case JournalTypeRefund:
		return "refund"
	default:
		return "unknown"
	}
}

// Journal represents a single transfer leg
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string          // Order hash or operation reference
	Currency      order.AccountID // Payment token, or the native sentinel
	DebitAccount  order.AccountID // Account receiving funds (balance increases)
	CreditAccount order.AccountID // Account paying (balance decreases)
	Amount        order.Balance   // ALWAYS positive
	JournalType   JournalType
	Timestamp     int64 // Operation time, unix seconds
}

// Batch groups the legs of one operation. They are applied together or not at all.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Timestamp int64
	Journals  []Journal
}

func NewBatch(eventRef string, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Timestamp: timestamp,
	}
}

// Validate ensures every leg is well-formed. An empty batch is valid: a
// zero-price match with no fees moves nothing.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount.IsZero() {
			return fmt.Errorf("journal %s has zero amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}
	return nil
}

// NetFlow returns the net change of account's balance in currency across the
// batch, as (in, out).
func (b *Batch) NetFlow(currency, account order.AccountID) (in, out order.Balance) {
	for i := range b.Journals {
		j := &b.Journals[i]
		if j.Currency != currency {
			continue
		}
		if j.DebitAccount == account {
			in.Add(&in, &j.Amount)
		}
		if j.CreditAccount == account {
			out.Add(&out, &j.Amount)
		}
	}
	return in, out
}
