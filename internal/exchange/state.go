package exchange

import (
	"errors"
	"fmt"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/store"

	"github.com/ethereum/go-ethereum/common"
)

// Store layout. Registry entries are never removed.
const (
	prefixCancelled = "registry/cancelled/"
	prefixApproved  = "registry/approved/"

	keyOwner                = "config/owner"
	keyProtocolFeeRecipient = "config/protocol_fee_recipient"
	keyMinMakerProtocolFee  = "config/min_maker_protocol_fee"
	keyMinTakerProtocolFee  = "config/min_taker_protocol_fee"
	keyExchangeToken        = "config/exchange_token"
	keyBootstrapped         = "config/bootstrapped"

	keyChainTip = "events/tip"
)

var flagSet = []byte{1}

func registryKey(prefix string, hash common.Hash) []byte {
	return append([]byte(prefix), hash.Bytes()...)
}

func isCancelledOrFinalized(tx store.Tx, hash common.Hash) (bool, error) {
	return store.Has(tx, registryKey(prefixCancelled, hash))
}

func markCancelledOrFinalized(tx store.Tx, hash common.Hash) error {
	return tx.Set(registryKey(prefixCancelled, hash), flagSet)
}

func isApproved(tx store.Tx, hash common.Hash) (bool, error) {
	return store.Has(tx, registryKey(prefixApproved, hash))
}

func markApproved(tx store.Tx, hash common.Hash) error {
	return tx.Set(registryKey(prefixApproved, hash), flagSet)
}

func getAccount(tx store.Tx, key string) (order.AccountID, error) {
	var id order.AccountID
	raw, err := tx.Get([]byte(key))
	if errors.Is(err, store.ErrNotFound) {
		return id, nil
	}
	if err != nil {
		return id, fmt.Errorf("read %s: %w", key, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("corrupt %s: %d bytes", key, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func setAccount(tx store.Tx, key string, id order.AccountID) error {
	return tx.Set([]byte(key), id.Bytes())
}

func getAmount(tx store.Tx, key string) (order.Balance, error) {
	var b order.Balance
	raw, err := tx.Get([]byte(key))
	if errors.Is(err, store.ErrNotFound) {
		return b, nil
	}
	if err != nil {
		return b, fmt.Errorf("read %s: %w", key, err)
	}
	if len(raw) != 32 {
		return b, fmt.Errorf("corrupt %s: %d bytes", key, len(raw))
	}
	b.SetBytes32(raw)
	return b, nil
}

func setAmount(tx store.Tx, key string, b *order.Balance) error {
	v := b.Bytes32()
	return tx.Set([]byte(key), v[:])
}

func loadConfig(tx store.Tx) (Config, error) {
	var cfg Config
	var err error

	if cfg.Owner, err = getAccount(tx, keyOwner); err != nil {
		return cfg, err
	}
	if cfg.ProtocolFeeRecipient, err = getAccount(tx, keyProtocolFeeRecipient); err != nil {
		return cfg, err
	}
	if cfg.ExchangeToken, err = getAccount(tx, keyExchangeToken); err != nil {
		return cfg, err
	}
	if cfg.MinimumMakerProtocolFee, err = getAmount(tx, keyMinMakerProtocolFee); err != nil {
		return cfg, err
	}
	if cfg.MinimumTakerProtocolFee, err = getAmount(tx, keyMinTakerProtocolFee); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func saveConfig(tx store.Tx, cfg *Config) error {
	if err := setAccount(tx, keyOwner, cfg.Owner); err != nil {
		return err
	}
	if err := setAccount(tx, keyProtocolFeeRecipient, cfg.ProtocolFeeRecipient); err != nil {
		return err
	}
	if err := setAccount(tx, keyExchangeToken, cfg.ExchangeToken); err != nil {
		return err
	}
	if err := setAmount(tx, keyMinMakerProtocolFee, &cfg.MinimumMakerProtocolFee); err != nil {
		return err
	}
	return setAmount(tx, keyMinTakerProtocolFee, &cfg.MinimumTakerProtocolFee)
}

func loadChainTip(tx store.Tx) (event.ChainTip, error) {
	raw, err := tx.Get([]byte(keyChainTip))
	if errors.Is(err, store.ErrNotFound) {
		return event.GenesisTip(), nil
	}
	if err != nil {
		return event.ChainTip{}, fmt.Errorf("read chain tip: %w", err)
	}
	var tip event.ChainTip
	if err := tip.UnmarshalBinary(raw); err != nil {
		return tip, err
	}
	return tip, nil
}

func saveChainTip(tx store.Tx, tip event.ChainTip) error {
	raw, _ := tip.MarshalBinary()
	return tx.Set([]byte(keyChainTip), raw)
}
