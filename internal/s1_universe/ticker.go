package s1_universe

import (
	"sort"
	"strings"

	"github.com/wonny/trifund/internal/contracts"
)

// exchangeSuffixes are kept after a dot (EOAN.DE, MC.PA, ULVR.L)
var exchangeSuffixes = map[string]bool{
	"DE": true, "PA": true, "L": true, "MI": true, "AS": true, "MC": true, "BR": true,
	"VI": true, "HE": true, "ST": true, "CO": true, "OL": true, "LS": true, "SW": true,
	"VX": true, "IR": true, "AT": true, "WA": true, "PR": true,
}

// classShares keep a hyphen (BRK.B → BRK-B)
var classShares = map[string]bool{
	"BRK-A": true, "BRK-B": true, "BF-A": true, "BF-B": true,
}

// FormatTicker normalizes a raw constituent ticker to a market-data ID
func FormatTicker(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" {
		return ""
	}
	// 위키 각주 제거 ("MMM[1]")
	if i := strings.IndexByte(t, '['); i > 0 {
		t = strings.TrimSpace(t[:i])
	}

	upper := strings.ToUpper(t)
	if classShares[upper] {
		return upper
	}

	if i := strings.LastIndexByte(upper, '.'); i > 0 {
		base, suffix := upper[:i], upper[i+1:]
		if exchangeSuffixes[suffix] {
			return base + "." + suffix
		}
		if classShares[base+"-"+suffix] {
			return base + "-" + suffix
		}
		return t
	}

	if i := strings.LastIndexByte(upper, '-'); i > 0 {
		base, suffix := upper[:i], upper[i+1:]
		if exchangeSuffixes[suffix] {
			return base + "." + suffix
		}
	}

	return upper
}

// hasSuffix reports whether id already names an exchange or share class
func hasSuffix(id string) bool {
	return strings.ContainsAny(id, ".-")
}

// Dedupe keeps the first instrument per ID, drops empty IDs and sorts by ID
func Dedupe(lists ...[]contracts.Instrument) []contracts.Instrument {
	merged := contracts.MergeInstruments(lists...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}
