package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// encodedOrder is the canonical RLP layout. Field order is part of the
// protocol: reordering changes every order hash.
type encodedOrder struct {
	Index              uint64
	Exchange           [32]byte
	Maker              [32]byte
	Taker              [32]byte
	MakerRelayerFee    *big.Int
	TakerRelayerFee    *big.Int
	MakerProtocolFee   *big.Int
	TakerProtocolFee   *big.Int
	FeeRecipient       [32]byte
	FeeMethod          uint8
	Side               uint8
	SaleKind           uint8
	Target             [32]byte
	HowToCall          uint8
	Calldata           []byte
	ReplacementPattern []byte
	StaticTarget       [32]byte
	StaticExtradata    []byte
	PaymentToken       [32]byte
	BasePrice          *big.Int
	Extra              *big.Int
	ListingTime        uint64
	ExpirationTime     uint64
	Salt               uint64
	CreatedDate        uint64
}

// Encode returns the canonical byte encoding of every order field.
func Encode(o *Order) ([]byte, error) {
	enc := encodedOrder{
		Index:              o.Index,
		Exchange:           o.Exchange,
		Maker:              o.Maker,
		Taker:              o.Taker,
		MakerRelayerFee:    o.MakerRelayerFee.ToBig(),
		TakerRelayerFee:    o.TakerRelayerFee.ToBig(),
		MakerProtocolFee:   o.MakerProtocolFee.ToBig(),
		TakerProtocolFee:   o.TakerProtocolFee.ToBig(),
		FeeRecipient:       o.FeeRecipient,
		FeeMethod:          uint8(o.FeeMethod),
		Side:               uint8(o.Side),
		SaleKind:           uint8(o.SaleKind),
		Target:             o.Target,
		HowToCall:          uint8(o.HowToCall),
		Calldata:           nonNil(o.Calldata),
		ReplacementPattern: nonNil(o.ReplacementPattern),
		StaticTarget:       o.StaticTarget,
		StaticExtradata:    nonNil(o.StaticExtradata),
		PaymentToken:       o.PaymentToken,
		BasePrice:          o.BasePrice.ToBig(),
		Extra:              o.Extra.ToBig(),
		ListingTime:        o.ListingTime,
		ExpirationTime:     o.ExpirationTime,
		Salt:               o.Salt,
		CreatedDate:        o.CreatedDate,
	}
	b, err := rlp.EncodeToBytes(&enc)
	if err != nil {
		return nil, fmt.Errorf("rlp encode order: %w", err)
	}
	return b, nil
}

// HashOrder returns keccak256(Encode(o)), the canonical order hash.
func HashOrder(o *Order) common.Hash {
	b, err := Encode(o)
	if err != nil {
		// Every field type above is RLP-encodable; failure means a broken build.
		panic(err)
	}
	return crypto.Keccak256Hash(b)
}

// HashToSign returns keccak256(HashOrder(o)), the value a maker signs.
func HashToSign(o *Order) common.Hash {
	h := HashOrder(o)
	return crypto.Keccak256Hash(h.Bytes())
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
