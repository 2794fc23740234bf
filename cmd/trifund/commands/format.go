package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintJSON writes v as indented JSON to stdout
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintRunSummary prints the stage list and quality line of a run
func PrintRunSummary(result *brain.RunResult) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Run %s  (as of %s)\n", result.RunID, result.AsOf.Format("2006-01-02"))
	PrintSeparator()
	fmt.Printf("  Stages    : %s\n", strings.Join(result.CompletedStages, " → "))
	fmt.Printf("  Duration  : %s\n", result.Duration.Round(1e6))
	if f := result.Factors; f != nil {
		fmt.Printf("  Factors   : %d loaded, %d missing, %d failed\n", len(f.Bundles), len(f.NotFound), len(f.Failed))
	}
	if q := result.Quality; q != nil {
		fmt.Printf("  Coverage  : %.1f%% (passed=%v)\n", q.QualityScore*100, q.Passed)
	}
	fmt.Printf("  Narrative : %s (%d/%d)\n", result.Narrative.Status, result.Narrative.Succeeded, result.Narrative.Requested)
	PrintDoubleSeparator()
}

// PrintPortfolio prints one table per strategy
func PrintPortfolio(set *contracts.PortfolioSet) {
	if set == nil {
		return
	}

	for _, s := range contracts.Strategies() {
		r := set.Result(s)
		fmt.Println()
		if r == nil {
			fmt.Printf("[%s] no result\n", s.Label())
			continue
		}

		fmt.Printf("[%s] %d selected  (pool %d, excluded %d, gate L%d)\n",
			s.Label(), len(r.Candidates), r.PoolSize, r.Excluded, r.GateLevel)
		if r.Error != "" {
			PrintError(r.Error)
			continue
		}
		if len(r.Candidates) == 0 {
			continue
		}

		PrintTableHeader(
			[]string{"#", "ID", "Score", "Price", "Target", "Alloc%", "Narr", "Conv"},
			[]int{3, 10, 8, 10, 10, 7, 5, 5},
		)
		for _, c := range r.Candidates {
			fmt.Printf("%-3d  %-10s  %8.2f  %10.2f  %10.2f  %7.2f  %5s  %5s\n",
				c.Rank, c.Instrument.ID, c.CompositeScore, c.CurrentPrice, c.TargetPrice, c.AllocationPct,
				optional(narrativeScore(c)), optional(c.ConvictionScore))
		}
	}
}

// PrintGateTrace prints how far each gated strategy relaxed
func PrintGateTrace(set *contracts.PortfolioSet) {
	for _, s := range []contracts.Strategy{contracts.StrategyMedium, contracts.StrategyLong} {
		r := set.Result(s)
		if r == nil {
			continue
		}

		fmt.Println()
		fmt.Printf("[%s] admitted at L%d\n", s.Label(), r.GateLevel)
		for _, t := range r.GateTrace {
			marker := " "
			if t.Rank == r.GateLevel {
				marker = "*"
			}
			fmt.Printf("  %s L%d  passed=%-4d hard_rejected=%d\n", marker, t.Rank, t.Passed, len(t.HardRejected))
		}
		for _, d := range r.Dropped {
			fmt.Printf("    dropped %-10s %s %v\n", d.InstrumentID, d.Kind, d.Missing)
		}
		for _, f := range r.Flagged {
			fmt.Printf("    flagged %-10s %s %s\n", f.InstrumentID, f.Kind, f.Detail)
		}
	}
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	for i, col := range columns {
		fmt.Printf("%-*s", widths[i], col)
		if i < len(columns)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()

	totalWidth := 0
	for _, w := range widths {
		totalWidth += w + 2
	}
	fmt.Println(strings.Repeat("─", totalWidth-2))
}

func narrativeScore(c contracts.Candidate) *float64 {
	if v, ok := c.NarrativeScore(); ok {
		return &v
	}
	return nil
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}
