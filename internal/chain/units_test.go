package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEtherToWei(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.5", "500000000000000000"},
		{"1", "1000000000000000000"},
		{"0", "0"},
		{" 2.25 ", "2250000000000000000"},
		{"0.000000000000000001", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			wei, err := EtherToWei(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, wei.String())
		})
	}
}

func TestEtherToWei_Invalid(t *testing.T) {
	for _, in := range []string{"-1", "abc", "", "0.0000000000000000001"} {
		t.Run(in, func(t *testing.T) {
			_, err := EtherToWei(in)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestWeiToEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("500000000000000000", 10)
	assert.Equal(t, "0.5", WeiToEther(wei))
	assert.Equal(t, "0", WeiToEther(nil))
	assert.Equal(t, "3", WeiToEther(new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))))
}
