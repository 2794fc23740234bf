package contracts

import (
	"fmt"
	"strings"
)

// Strategy tags one of the three selection horizons
type Strategy string

const (
	StrategyShort  Strategy = "SHORT"
	StrategyMedium Strategy = "MEDIUM"
	StrategyLong   Strategy = "LONG"
)

// Strategies returns the tags in dedup priority order (Short > Medium > Long)
// ⭐ SSOT: 전략 우선순위는 여기서만 정의
func Strategies() []Strategy {
	return []Strategy{StrategyShort, StrategyMedium, StrategyLong}
}

// Valid reports whether s is a known strategy tag
func (s Strategy) Valid() bool {
	switch s {
	case StrategyShort, StrategyMedium, StrategyLong:
		return true
	}
	return false
}

// ParseStrategy accepts the tag case-insensitively ("short", "Medium", ...)
func ParseStrategy(v string) (Strategy, error) {
	s := Strategy(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown strategy %q (use short, medium, long)", v)
	}
	return s, nil
}

// Label is the lowercase form used in config keys and metric labels
func (s Strategy) Label() string {
	return strings.ToLower(string(s))
}
