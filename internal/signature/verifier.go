package signature

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"WyvernExchange/internal/order"
)

// SignatureLength is the only accepted signature size.
const SignatureLength = 64

var (
	ErrInvalidSignatureLength = errors.New("signature must be 64 bytes")
	ErrInvalidPublicKey       = errors.New("account id is not a 32-byte public key")
	ErrMsgVerifyFailed        = errors.New("signature verification failed")
)

// Verifier checks a detached signature over msg against the signer's account id.
type Verifier interface {
	Verify(sig, msg []byte, signer order.AccountID) error
}

// Ed25519Verifier verifies 64-byte Ed25519 signatures where the account id is
// the raw public key.
type Ed25519Verifier struct{}

func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

func (Ed25519Verifier) Verify(sig, msg []byte, signer order.AccountID) error {
	if len(sig) != SignatureLength {
		return fmt.Errorf("%w: got %d", ErrInvalidSignatureLength, len(sig))
	}
	pub, err := PublicKey(signer.Bytes())
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, msg, sig) {
		return ErrMsgVerifyFailed
	}
	return nil
}

// PublicKey converts raw account bytes into a public key.
func PublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// AccountFromBytes converts raw public key bytes into an account id.
func AccountFromBytes(raw []byte) (order.AccountID, error) {
	var id order.AccountID
	if len(raw) != len(id) {
		return id, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Signer produces signatures for a single account. Used by tooling and tests.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSignerFromSeed derives a signer from a 32-byte seed.
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Account returns the signer's account id (its public key).
func (s *Signer) Account() order.AccountID {
	var id order.AccountID
	copy(id[:], s.key.Public().(ed25519.PublicKey))
	return id
}

func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.key, msg)
}

// SignOrder signs the order's hash-to-sign.
func (s *Signer) SignOrder(o *order.Order) []byte {
	h := order.HashToSign(o)
	return s.Sign(h.Bytes())
}
