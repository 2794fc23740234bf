package contracts

import (
	"fmt"
	"strconv"
	"strings"
)

// Comparator is the relational operator of a gate predicate
type Comparator string

const (
	OpGT Comparator = ">"
	OpGE Comparator = ">="
	OpLT Comparator = "<"
	OpLE Comparator = "<="
)

// Valid reports whether c is a supported operator
func (c Comparator) Valid() bool {
	switch c {
	case OpGT, OpGE, OpLT, OpLE:
		return true
	}
	return false
}

// Lower reports whether the operator bounds from below (> or >=)
func (c Comparator) Lower() bool {
	return c == OpGT || c == OpGE
}

func (c Comparator) compare(a, b float64) bool {
	switch c {
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	}
	return false
}

// Predicate is one (factor, comparator, threshold) condition. When Ref is
// set the factor is compared with another factor of the same bundle
// (Price > SMA200) and Threshold is ignored.
type Predicate struct {
	Factor     FactorName `json:"factor"`
	Op         Comparator `json:"op"`
	Threshold  float64    `json:"threshold,omitempty"`
	Ref        FactorName `json:"ref,omitempty"`
	HardReject bool       `json:"hard_reject,omitempty"`
}

// Eval applies the predicate. A missing operand fails the predicate.
func (p Predicate) Eval(b *FactorBundle) bool {
	v, ok := b.Get(p.Factor)
	if !ok {
		return false
	}

	rhs := p.Threshold
	if p.Ref != "" {
		r, ok := b.Get(p.Ref)
		if !ok {
			return false
		}
		rhs = r
	}

	return p.Op.compare(v, rhs)
}

func (p Predicate) String() string {
	rhs := strconv.FormatFloat(p.Threshold, 'g', -1, 64)
	if p.Ref != "" {
		rhs = string(p.Ref)
	}
	return fmt.Sprintf("%s%s%s", p.Factor, p.Op, rhs)
}

// GateLevel is one immutable strictness tier. Rank 1 is the strictest;
// a level with no predicates accepts everything.
type GateLevel struct {
	Rank       int         `json:"rank"`
	Predicates []Predicate `json:"predicates"`
}

// AcceptAll reports whether the level has no predicates
func (g GateLevel) AcceptAll() bool {
	return len(g.Predicates) == 0
}

func (g GateLevel) String() string {
	if g.AcceptAll() {
		return fmt.Sprintf("L%d(accept-all)", g.Rank)
	}
	parts := make([]string, len(g.Predicates))
	for i, p := range g.Predicates {
		parts[i] = p.String()
	}
	return fmt.Sprintf("L%d(%s)", g.Rank, strings.Join(parts, ", "))
}

// LevelTrace records what one evaluated level did (audit)
type LevelTrace struct {
	Rank         int      `json:"rank"`
	Passed       int      `json:"passed"`
	HardRejected []string `json:"hard_rejected,omitempty"`
}
