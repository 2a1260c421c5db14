package ledger

import (
	"fmt"

	"WyvernExchange/internal/order"
)

// ExternalAccount is the boundary account deposits are credited from. Its
// balance is never checked or stored.
var ExternalAccount = func() order.AccountID {
	var id order.AccountID
	for i := range id {
		id[i] = 0xff
	}
	return id
}()

const balancePrefix = "bal/"

// AccountKey identifies one balance: an account's holding of one currency.
type AccountKey struct {
	Currency order.AccountID
	Account  order.AccountID
}

func NewAccountKey(currency, account order.AccountID) AccountKey {
	return AccountKey{Currency: currency, Account: account}
}

// StorageKey is the store key: "bal/" || currency || account.
func (k AccountKey) StorageKey() []byte {
	key := make([]byte, 0, len(balancePrefix)+64)
	key = append(key, balancePrefix...)
	key = append(key, k.Currency[:]...)
	key = append(key, k.Account[:]...)
	return key
}

// AccountPath returns the string representation for logging.
func (k AccountKey) AccountPath() string {
	if k.Account == ExternalAccount {
		return fmt.Sprintf("external:%s", k.Currency.Short())
	}
	return fmt.Sprintf("account:%s:%s", k.Account.Short(), k.Currency.Short())
}

func (k AccountKey) IsExternal() bool {
	return k.Account == ExternalAccount
}
