package event

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const GenesisHashSeed = "WyvernExchange:genesis:v1"

// ChainTip is the last assigned sequence and its chain hash.
type ChainTip struct {
	Sequence int64
	Hash     [32]byte
}

// GenesisTip is the tip before the first event.
func GenesisTip() ChainTip {
	return ChainTip{Hash: crypto.Keccak256Hash([]byte(GenesisHashSeed))}
}

// MarshalBinary encodes the tip as sequence (8 bytes BE) || hash.
func (t ChainTip) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+32)
	binary.BigEndian.PutUint64(buf[:8], uint64(t.Sequence))
	copy(buf[8:], t.Hash[:])
	return buf, nil
}

func (t *ChainTip) UnmarshalBinary(data []byte) error {
	if len(data) != 8+32 {
		return fmt.Errorf("chain tip: want 40 bytes, got %d", len(data))
	}
	t.Sequence = int64(binary.BigEndian.Uint64(data[:8]))
	copy(t.Hash[:], data[8:])
	return nil
}

// ChainHasher computes the event hash chain
type ChainHasher struct {
	prevHash [32]byte
}

func NewChainHasher(prev [32]byte) *ChainHasher {
	return &ChainHasher{prevHash: prev}
}

// ComputeHash calculates hash[N] = keccak256(prev_hash || sequence || digest)
func (h *ChainHasher) ComputeHash(sequence int64, digest []byte) [32]byte {
	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))

	hash := crypto.Keccak256Hash(h.prevHash[:], seqBuf[:], digest)
	h.prevHash = hash
	return hash
}

// GetPrevHash returns current chain tip
func (h *ChainHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// Stamp assigns consecutive sequences and chain hashes to envs, starting
// after tip, and returns the new tip.
func Stamp(tip ChainTip, envs []Envelope) ChainTip {
	hasher := NewChainHasher(tip.Hash)
	for i := range envs {
		tip.Sequence++
		envs[i].Sequence = tip.Sequence
		envs[i].PrevHash = hasher.GetPrevHash()
		envs[i].StateHash = hasher.ComputeHash(tip.Sequence, digest(&envs[i]))
	}
	tip.Hash = hasher.GetPrevHash()
	return tip
}

// VerifyChain checks that envs link to tip and to each other.
func VerifyChain(tip ChainTip, envs []Envelope) error {
	hasher := NewChainHasher(tip.Hash)
	for i := range envs {
		e := &envs[i]
		if e.Sequence != tip.Sequence+int64(i)+1 {
			return fmt.Errorf("sequence gap: got %d, want %d", e.Sequence, tip.Sequence+int64(i)+1)
		}
		if e.PrevHash != hasher.GetPrevHash() {
			return fmt.Errorf("seq %d: prev hash mismatch", e.Sequence)
		}
		if hasher.ComputeHash(e.Sequence, digest(e)) != e.StateHash {
			return fmt.Errorf("seq %d: state hash mismatch", e.Sequence)
		}
	}
	return nil
}

func digest(e *Envelope) []byte {
	buf := make([]byte, 0, 4+len(e.Payload)+len(e.Journals)*16)
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.EventType))
	buf = append(buf, e.Payload...)
	for i := range e.Journals {
		j := &e.Journals[i]
		buf = append(buf, j.Currency[:]...)
		buf = append(buf, j.CreditAccount[:]...)
		buf = append(buf, j.DebitAccount[:]...)
		amount := j.Amount.Bytes32()
		buf = append(buf, amount[:]...)
	}
	return buf
}
