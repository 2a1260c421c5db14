package ingestion

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"WyvernExchange/internal/order"
	"WyvernExchange/internal/signature"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const commandDomain = "WyvernExchange:command:v1"

// MaxCommandTTL bounds how far in the future a command may expire. It also
// bounds how long a digest must be remembered to refuse a replay.
const MaxCommandTTL = 10 * time.Minute

const seenPruneThreshold = 4096

var (
	ErrUnauthenticated = errors.New("command signature does not verify")
	ErrCommandExpired  = errors.New("command expired")
	ErrCommandReplayed = errors.New("command already processed")
	ErrCallerMismatch  = errors.New("payload caller is not the signer")
)

// SignedCommand is the wire form of every command message. Signature is
// the caller's signature over CommandDigest; Payload is the command JSON
// exactly as signed.
type SignedCommand struct {
	Caller    string          `json:"caller"`
	ExpiresAt int64           `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
	Signature hexutil.Bytes   `json:"signature"`
}

// CommandDigest is keccak256(domain || name || 0x00 || caller ||
// expires_at (8 bytes BE) || payload).
func CommandDigest(name string, caller order.AccountID, expiresAt int64, payload []byte) common.Hash {
	var exp [8]byte
	binary.BigEndian.PutUint64(exp[:], uint64(expiresAt))
	return crypto.Keccak256Hash(
		[]byte(commandDomain),
		[]byte(name), []byte{0},
		caller[:],
		exp[:],
		payload,
	)
}

// SignCommand wraps payload in a SignedCommand signed by s.
func SignCommand(s *signature.Signer, name string, payload []byte, expiresAt time.Time) ([]byte, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	caller := s.Account()
	digest := CommandDigest(name, caller, expiresAt.Unix(), compact.Bytes())

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(SignedCommand{
		Caller:    caller.Hex(),
		ExpiresAt: expiresAt.Unix(),
		Payload:   compact.Bytes(),
		Signature: s.Sign(digest.Bytes()),
	}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(out.Bytes(), "\n"), nil
}

// Authenticated is a command whose signature has been checked.
type Authenticated struct {
	Caller    order.AccountID
	Payload   []byte
	Digest    common.Hash
	ExpiresAt int64
}

// Authenticator checks command signatures and refuses a digest it has
// already accepted until the command expires.
type Authenticator struct {
	verifier signature.Verifier
	now      func() time.Time

	mu   sync.Mutex
	seen map[common.Hash]int64
}

func NewAuthenticator(v signature.Verifier, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{verifier: v, now: now, seen: make(map[common.Hash]int64)}
}

// Open decodes and verifies a SignedCommand for the named command.
func (a *Authenticator) Open(name string, data []byte) (*Authenticated, error) {
	var sc SignedCommand
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformedCommand, err)
	}
	caller, err := order.ParseAccountID(sc.Caller)
	if err != nil {
		return nil, fmt.Errorf("%w: caller: %v", ErrMalformedCommand, err)
	}
	if len(sc.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedCommand)
	}

	now := a.now().Unix()
	if sc.ExpiresAt <= now {
		return nil, fmt.Errorf("%w: at %d", ErrCommandExpired, sc.ExpiresAt)
	}
	if sc.ExpiresAt > now+int64(MaxCommandTTL/time.Second) {
		return nil, fmt.Errorf("%w: expiry %d is beyond the %s window", ErrMalformedCommand, sc.ExpiresAt, MaxCommandTTL)
	}

	digest := CommandDigest(name, caller, sc.ExpiresAt, sc.Payload)
	if err := a.verifier.Verify(sc.Signature, digest.Bytes(), caller); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnauthenticated, caller.Short(), err)
	}
	return &Authenticated{Caller: caller, Payload: sc.Payload, Digest: digest, ExpiresAt: sc.ExpiresAt}, nil
}

// Claim marks the command as processed. A second claim of the same digest
// fails until Release or expiry.
func (a *Authenticator) Claim(c *Authenticated) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().Unix()
	if len(a.seen) >= seenPruneThreshold {
		for d, exp := range a.seen {
			if exp <= now {
				delete(a.seen, d)
			}
		}
	}
	if exp, ok := a.seen[c.Digest]; ok && exp > now {
		return fmt.Errorf("%w: %s", ErrCommandReplayed, c.Digest.Hex())
	}
	a.seen[c.Digest] = c.ExpiresAt
	return nil
}

// Release forgets a claimed command so a redelivery can run it.
func (a *Authenticator) Release(c *Authenticated) {
	a.mu.Lock()
	delete(a.seen, c.Digest)
	a.mu.Unlock()
}

// authCode maps authentication failures to rejection codes.
func authCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthenticated", true
	case errors.Is(err, ErrCommandExpired):
		return "CommandExpired", true
	case errors.Is(err, ErrCommandReplayed):
		return "CommandReplayed", true
	case errors.Is(err, ErrCallerMismatch):
		return "CallerMismatch", true
	}
	return "", false
}
