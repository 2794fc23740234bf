package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/s0_data"
)

// runCmd executes one selection run in the foreground
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "선정 1회 실행 (S1→S5)",
	Long: `세 전략 선정을 한 번 실행합니다.

--factors 를 주면 DB 없이 스냅샷 파일(YAML/JSON)의 유니버스와 팩터로 실행합니다.
오프라인 실행은 저장/발행을 하지 않습니다.

Example:
  go run ./cmd/trifund run
  go run ./cmd/trifund run --as-of 2026-03-02 --dry-run
  go run ./cmd/trifund run --factors testdata/snapshot.yaml --json`,
	RunE: runSelection,
}

var (
	runAsOf    string
	runDryRun  bool
	runFactors string
	runJSON    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runAsOf, "as-of", "", "run date YYYY-MM-DD (default: today UTC, or the snapshot's as_of)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "skip persistence and publish")
	runCmd.Flags().StringVar(&runFactors, "factors", "", "snapshot file for an offline run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the portfolio set as JSON")
}

func runSelection(cmd *cobra.Command, args []string) error {
	offline := runFactors != ""

	a, err := bootstrap(offline)
	if err != nil {
		return err
	}
	defer a.Close()

	var data *s0_data.OfflineData
	if offline {
		data, err = s0_data.LoadSnapshotFile(runFactors)
		if err != nil {
			return err
		}
	}

	asOf, err := resolveAsOf(runAsOf, data)
	if err != nil {
		return err
	}

	orch, err := a.orchestrator(data, nil)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	runner, err := a.runner(orch)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := runner.Run(ctx, brain.RunConfig{AsOf: asOf, DryRun: runDryRun || offline})

	if runJSON {
		if result != nil && result.Portfolio != nil {
			if err := PrintJSON(result.Portfolio); err != nil {
				return err
			}
		}
		return runErr
	}

	if result != nil {
		PrintRunSummary(result)
		PrintPortfolio(result.Portfolio)
	}
	if runErr != nil {
		PrintError(runErr.Error())
		return runErr
	}

	fmt.Println()
	PrintSuccess(fmt.Sprintf("Run %s completed (config %s)", result.RunID, shortHash(orch.ConfigHash())))
	return nil
}

// resolveAsOf: flag > snapshot as_of > today (UTC)
func resolveAsOf(flag string, data *s0_data.OfflineData) (time.Time, error) {
	if flag != "" {
		t, err := time.Parse("2006-01-02", flag)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", flag, err)
		}
		return t, nil
	}
	if data != nil {
		return data.AsOf, nil
	}
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
