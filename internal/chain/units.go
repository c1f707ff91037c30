package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// EtherToWei converts a decimal ether amount such as "0.5" to wei.
// Negative, malformed or sub-wei precision amounts are rejected.
func EtherToWei(ether string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(ether))
	if err != nil {
		return nil, newError(ErrInvalidAmount, "toWei", fmt.Errorf("%q: %w", ether, err))
	}
	if d.IsNegative() {
		return nil, newError(ErrInvalidAmount, "toWei", fmt.Errorf("%q is negative", ether))
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, newError(ErrInvalidAmount, "toWei", fmt.Errorf("%q has more than %d decimals", ether, etherDecimals))
	}
	return wei.BigInt(), nil
}

// WeiToEther renders a wei amount as an ether decimal string without
// trailing zeros.
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
