package calldata

import (
	"bytes"
	"errors"
)

var (
	ErrBuyArrayNotEqual  = errors.New("buy calldata replacement length mismatch")
	ErrSellArrayNotEqual = errors.New("sell calldata replacement length mismatch")
	ErrArrayNotEqual     = errors.New("calldata differs after replacement")
)

// GuardedArrayReplace overwrites array in place with desired wherever mask has
// bits set: array[i] = (array[i] &^ mask[i]) | (desired[i] & mask[i]).
// All three slices must have equal length; otherwise array is left untouched
// and false is returned.
func GuardedArrayReplace(array, desired, mask []byte) bool {
	if len(array) != len(desired) || len(array) != len(mask) {
		return false
	}
	for i := range array {
		array[i] = (array[i] &^ mask[i]) | (desired[i] & mask[i])
	}
	return true
}

// ArrayEq reports length and content equality.
func ArrayEq(a, b []byte) bool {
	return len(a) == len(b) && bytes.Equal(a, b)
}

// CanMatch applies each side's replacement pattern to a copy of its own
// calldata, using the counter-order's calldata as the source, and requires the
// results to be identical. Inputs are not modified.
func CanMatch(buyCalldata, buyPattern, sellCalldata, sellPattern []byte) error {
	buy := append([]byte(nil), buyCalldata...)
	sell := append([]byte(nil), sellCalldata...)

	if len(buyPattern) > 0 {
		if !GuardedArrayReplace(buy, sellCalldata, buyPattern) {
			return ErrBuyArrayNotEqual
		}
	}
	if len(sellPattern) > 0 {
		if !GuardedArrayReplace(sell, buyCalldata, sellPattern) {
			return ErrSellArrayNotEqual
		}
	}
	if !ArrayEq(buy, sell) {
		return ErrArrayNotEqual
	}
	return nil
}
