package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding selects how a buffered gas estimate is turned back into an integer.
type Rounding int

const (
	// RoundHalfUp rounds to the nearest integer, halves away from zero.
	RoundHalfUp Rounding = iota
	// Floor truncates.
	Floor
)

func (r Rounding) String() string {
	if r == Floor {
		return "floor"
	}
	return "round"
}

// ParseRounding accepts "round" or "floor".
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "round":
		return RoundHalfUp, nil
	case "floor":
		return Floor, nil
	}
	return RoundHalfUp, fmt.Errorf("unknown gas rounding %q", s)
}

// ErrGasMultiplier is returned for multipliers below 1.
var ErrGasMultiplier = errors.New("gas multiplier must be at least 1")

// GasPolicy turns a node gas estimate into the submitted gas limit.
type GasPolicy struct {
	Multiplier decimal.Decimal
	Rounding   Rounding
}

// NewGasPolicy parses a decimal multiplier such as "1.2".
func NewGasPolicy(multiplier string, rounding Rounding) (GasPolicy, error) {
	m, err := decimal.NewFromString(strings.TrimSpace(multiplier))
	if err != nil {
		return GasPolicy{}, fmt.Errorf("gas multiplier %q: %w", multiplier, err)
	}
	p := GasPolicy{Multiplier: m, Rounding: rounding}
	return p, p.Validate()
}

// MustGasPolicy is NewGasPolicy for constants.
func MustGasPolicy(multiplier string, rounding Rounding) GasPolicy {
	p, err := NewGasPolicy(multiplier, rounding)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate rejects multipliers that could shrink the estimate.
func (p GasPolicy) Validate() error {
	if p.Multiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: got %s", ErrGasMultiplier, p.Multiplier)
	}
	return nil
}

// Apply returns round(estimate*m) or floor(estimate*m). The result is never
// below the estimate.
func (p GasPolicy) Apply(estimate uint64) uint64 {
	scaled := decimal.NewFromBigInt(new(big.Int).SetUint64(estimate), 0).Mul(p.Multiplier)
	if p.Rounding == Floor {
		scaled = scaled.Floor()
	} else {
		scaled = scaled.Round(0)
	}
	limit := scaled.BigInt().Uint64()
	if limit < estimate {
		return estimate
	}
	return limit
}

func (p GasPolicy) String() string {
	return p.Multiplier.String() + "/" + p.Rounding.String()
}

// GasPolicies picks a policy per call site. Keys are contract method names,
// optionally suffixed with "/<role>" for role specific overrides.
type GasPolicies struct {
	Default GasPolicy
	Sites   map[string]GasPolicy
}

// DefaultGasPolicies reproduces the buffers the dashboards have always used:
// 1.2 rounded for most calls, 1.2 floored for distributor info updates and
// 1.5 floored for retailer info updates.
func DefaultGasPolicies() GasPolicies {
	return GasPolicies{
		Default: MustGasPolicy("1.2", RoundHalfUp),
		Sites: map[string]GasPolicy{
			"updateProductInfo/distributor": MustGasPolicy("1.2", Floor),
			"updateProductInfo/farmer":      MustGasPolicy("1.2", Floor),
			"updateProductInfo/retailer":    MustGasPolicy("1.5", Floor),
		},
	}
}

// For returns the policy of method for role, falling back to the method and
// then the default.
func (g GasPolicies) For(method, role string) GasPolicy {
	if role != "" {
		if p, ok := g.Sites[method+"/"+role]; ok {
			return p
		}
	}
	if p, ok := g.Sites[method]; ok {
		return p
	}
	return g.Default
}

// Uniform replaces every policy with p.
func (g GasPolicies) Uniform(p GasPolicy) GasPolicies {
	return GasPolicies{Default: p, Sites: map[string]GasPolicy{}}
}
