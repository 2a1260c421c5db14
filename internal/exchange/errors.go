package exchange

import (
	"errors"
)

// ErrorKind groups error codes by how a caller should react.
type ErrorKind int

const (
	KindParameter ErrorKind = iota
	KindAuthorization
	KindReplay
	KindSignature
	KindMatch
	KindSettlement
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindAuthorization:
		return "authorization"
	case KindReplay:
		return "replay"
	case KindSignature:
		return "signature"
	case KindMatch:
		return "match"
	case KindSettlement:
		return "settlement"
	default:
		return "internal"
	}
}

// Error is a caller-visible rejection. Each code has exactly one sentinel
// value; compare with errors.Is.
type Error struct {
	Code    string
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code string, kind ErrorKind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

var (
	// Parameter
	ErrInvalidBuyOrderParameters  = newError("InvalidBuyOrderParameters", KindParameter, "buy order parameters invalid")
	ErrInvalidSellOrderParameters = newError("InvalidSellOrderParameters", KindParameter, "sell order parameters invalid")
	ErrZeroAuctionWindow          = newError("ZeroAuctionWindow", KindParameter, "dutch auction expiration equals listing time")
	ErrInvalidProtocolFeeRecipient = newError(
		"InvalidProtocolFeeRecipient", KindParameter, "protocol fee recipient is zero or a reserved account")

	// Authorization
	ErrOnlyMaker = newError("OnlyMaker", KindAuthorization, "caller is not the order maker")
	ErrOnlyOwner = newError("OnlyOwner", KindAuthorization, "caller is not the owner")

	// Replay. OrderHashMissing is returned when approving an order whose
	// hash is already approved.
	ErrOrderHashMissing = newError("OrderHashMissing", KindReplay, "order already approved")
	ErrInvalidOrderHash = newError("InvalidOrderHash", KindReplay, "order is not valid: cancelled, finalized, unsigned or malformed")

	// Signature
	ErrInvalidSignature = newError("InvalidSignature", KindSignature, "signature malformed")
	ErrMsgVerifyFailed  = newError("MsgVerifyFailed", KindSignature, "signature does not verify")

	// Match
	ErrOrdersCannotMatch         = newError("OrdersCannotMatch", KindMatch, "orders cannot match")
	ErrBuyArrayNotEqual          = newError("BuyArrayNotEqual", KindMatch, "buy replacement pattern length mismatch")
	ErrSellArrayNotEqual         = newError("SellArrayNotEqual", KindMatch, "sell replacement pattern length mismatch")
	ErrArrayNotEqual             = newError("ArrayNotEqual", KindMatch, "calldata differs after replacement")
	ErrBuyPriceLessThanSellPrice = newError("BuyPriceLessThanSellPrice", KindMatch, "buy price below sell price")

	// Settlement
	ErrSellTakerRelayerFeeGreaterThanBuyTakerRelayerFee = newError(
		"SellTakerRelayerFeeGreaterThanBuyTakerRelayerFee", KindSettlement, "sell taker relayer fee exceeds buy")
	ErrSellTakerProtocolFeeGreaterThanBuyTakerProtocolFee = newError(
		"SellTakerProtocolFeeGreaterThanBuyTakerProtocolFee", KindSettlement, "sell taker protocol fee exceeds buy")
	ErrBuyTakerRelayerFeeGreaterThanSellTakerRelayerFee = newError(
		"BuyTakerRelayerFeeGreaterThanSellTakerRelayerFee", KindSettlement, "buy taker relayer fee exceeds sell")
	ErrBuyTakerProtocolFeeGreaterThanSellTakerProtocolFee = newError(
		"BuyTakerProtocolFeeGreaterThanSellTakerProtocolFee", KindSettlement, "buy taker protocol fee exceeds sell")
	ErrSellPaymentTokenEqualPaymentToken = newError(
		"SellPaymentTokenEqualPaymentToken", KindSettlement, "split fee with native currency requires the sell side as maker")
	ErrValueLessThanRequiredAmount = newError("ValueLessThanRequiredAmount", KindSettlement, "native value below required amount")
	ErrValueNotZero                = newError("ValueNotZero", KindSettlement, "native value sent for a token trade")
	ErrFeeExceedsPrice             = newError("FeeExceedsPrice", KindSettlement, "maker fees exceed the match price")
	ErrInsufficientBalance         = newError("InsufficientBalance", KindSettlement, "insufficient balance for transfer")
	ErrReservedAccount             = newError("ReservedAccount", KindSettlement, "transfer touches a reserved ledger account")
)

// Code returns the error code of err, or "Internal" when err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "Internal"
}

// KindOf returns the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRejection reports whether err is a business rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}
