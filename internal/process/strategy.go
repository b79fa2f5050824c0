package process

import (
	"fmt"
	"strings"
)

// Strategy selects how the child's standard streams are wired.
type Strategy int

const (
	// StrategyDirect lets the child inherit stdout and stderr.
	StrategyDirect Strategy = iota
	// StrategyCaptured pipes stdout and stderr and relays them line by line.
	StrategyCaptured
)

// DefaultStrategies is the fallback order used when none is configured.
var DefaultStrategies = []Strategy{StrategyDirect, StrategyCaptured}

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyCaptured:
		return "captured"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration name to a Strategy.
// "piped" is accepted as an alias for "captured". Matching is case-insensitive.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "direct":
		return StrategyDirect, nil
	case "captured", "piped":
		return StrategyCaptured, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// ParseStrategies parses an ordered list of names. An empty list yields
// DefaultStrategies.
func ParseStrategies(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return append([]Strategy(nil), DefaultStrategies...), nil
	}
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, err := ParseStrategy(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
