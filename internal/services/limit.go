package services

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 15
	MinLimit     = 1
	MaxLimit     = 50
)

// LimitPolicy clamps requested result sizes.
type LimitPolicy struct {
	Default int
	Max     int
}

// DefaultLimitPolicy allows 1 to 50 results and defaults to 15.
var DefaultLimitPolicy = LimitPolicy{Default: DefaultLimit, Max: MaxLimit}

// Clamp forces n into [1, Max]. Max itself never exceeds MaxLimit.
func (p LimitPolicy) Clamp(n int) int {
	maxLimit := p.Max
	if maxLimit < MinLimit || maxLimit > MaxLimit {
		maxLimit = MaxLimit
	}
	if n < MinLimit {
		return MinLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// Parse reads a limit query value. Empty or non-numeric input yields the
// default.
func (p LimitPolicy) Parse(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.Clamp(p.Default)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return p.Clamp(p.Default)
	}
	return p.Clamp(n)
}

func ClampLimit(n int) int {
	return DefaultLimitPolicy.Clamp(n)
}

func ParseLimit(raw string) int {
	return DefaultLimitPolicy.Parse(raw)
}
