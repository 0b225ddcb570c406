package ndvi

import (
	"fmt"
	"math"
)

// Policy decides which raw index values count as trustworthy vegetation
// evidence rather than cloud, water or sensor noise. Policies are applied
// exclusively, never blended; deployments vary the choice by data scarcity.
type Policy string

const (
	// PolicyStrict accepts finite values above 0.05, rejecting bare soil,
	// water and most cloud artifacts.
	PolicyStrict Policy = "strict"
	// PolicyPermissive accepts any finite value above -1.0.
	PolicyPermissive Policy = "permissive"
	// PolicyFiniteOnly rejects only NaN and infinities.
	PolicyFiniteOnly Policy = "finite"
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyStrict, PolicyPermissive, PolicyFiniteOnly:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown quality filter policy %q", s)
	}
}

// Accept reports whether a raw index value is trustworthy under the policy.
func (p Policy) Accept(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	switch p {
	case PolicyStrict:
		return v > 0.05
	case PolicyPermissive:
		return v > -1.0
	default:
		return true
	}
}

// Filter drops untrustworthy readings. Accepted readings are returned
// unmodified; rejected ones are dropped entirely, never transformed.
func Filter(raw []Reading, p Policy) []Reading {
	accepted := make([]Reading, 0, len(raw))
	for _, r := range raw {
		if p.Accept(r.Value) {
			accepted = append(accepted, r)
		}
	}
	return accepted
}
