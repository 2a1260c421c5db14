package order

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// BasisPoints is the denominator for all fee amounts (10000 = 100%).
const BasisPoints = 10000

// AccountID is a 32-byte account identifier. For signed orders it is also the
// maker's raw public key.
type AccountID [32]byte

// ZeroAccount is the unset account id.
var ZeroAccount AccountID

func (a AccountID) Bytes() []byte {
	return a[:]
}

func (a AccountID) Hex() string {
	return hexutil.Encode(a[:])
}

// Short returns the first 4 bytes in hex, for logs.
func (a AccountID) Short() string {
	return hex.EncodeToString(a[:4])
}

func (a AccountID) String() string {
	return a.Hex()
}

func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// ParseAccountID decodes a 0x-prefixed hex string of exactly 32 bytes.
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID
	b, err := hexutil.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode account id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("account id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Balance is an unsigned 256-bit amount.
type Balance = uint256.Int

// NewBalance returns a Balance holding v.
func NewBalance(v uint64) Balance {
	return *uint256.NewInt(v)
}

// Moment is a unix timestamp in seconds.
type Moment = uint64

// Side of an order.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// SaleKind selects the price curve.
type SaleKind uint8

const (
	SaleKindFixedPrice SaleKind = iota
	SaleKindDutchAuction
)

func (k SaleKind) String() string {
	switch k {
	case SaleKindFixedPrice:
		return "FixedPrice"
	case SaleKindDutchAuction:
		return "DutchAuction"
	default:
		return "Unknown"
	}
}

// FeeMethod selects how fees are charged on a match.
type FeeMethod uint8

const (
	FeeMethodProtocolFee FeeMethod = iota
	FeeMethodSplitFee
)

func (f FeeMethod) String() string {
	switch f {
	case FeeMethodProtocolFee:
		return "ProtocolFee"
	case FeeMethodSplitFee:
		return "SplitFee"
	default:
		return "Unknown"
	}
}

// HowToCall is the call semantics of the settlement payload. Opaque to the
// settlement core except for equality between matched orders.
type HowToCall uint8

const (
	HowToCallCall HowToCall = iota
	HowToCallDelegateCall
)

func (h HowToCall) String() string {
	switch h {
	case HowToCallCall:
		return "Call"
	case HowToCallDelegateCall:
		return "DelegateCall"
	default:
		return "Unknown"
	}
}

// Order is a signed trade intent. It is treated as immutable once hashed.
type Order struct {
	// Index is the exchange-assigned order index, 0 when unassigned.
	Index uint64

	// Exchange must equal the running instance's own id.
	Exchange AccountID
	Maker    AccountID
	// Taker may be the wildcard (the exchange id) for "any".
	Taker AccountID

	// Fees in basis points of the settlement price.
	MakerRelayerFee  Balance
	TakerRelayerFee  Balance
	MakerProtocolFee Balance
	TakerProtocolFee Balance

	// FeeRecipient set to the wildcard marks this order as the taker side;
	// the counter-order's recipient collects relayer fees.
	FeeRecipient AccountID
	FeeMethod    FeeMethod
	Side         Side
	SaleKind     SaleKind

	Target             AccountID
	HowToCall          HowToCall
	Calldata           []byte
	ReplacementPattern []byte
	StaticTarget       AccountID
	StaticExtradata    []byte

	// PaymentToken set to the wildcard means native currency.
	PaymentToken AccountID
	BasePrice    Balance
	Extra        Balance

	ListingTime    Moment
	ExpirationTime Moment // 0 = never expires
	Salt           uint64
	CreatedDate    Moment
}

// Clone returns a deep copy; byte slices are not shared.
func (o *Order) Clone() *Order {
	c := *o
	c.Calldata = cloneBytes(o.Calldata)
	c.ReplacementPattern = cloneBytes(o.ReplacementPattern)
	c.StaticExtradata = cloneBytes(o.StaticExtradata)
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
