package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/s0_data"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/config"
)

// gateCmd groups the relaxation-gate inspection commands
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "단계별 완화 게이트 조회/진단",
	Long: `Medium/Long 전략의 단계별 완화 게이트를 조회하거나 진단합니다.

Example:
  go run ./cmd/trifund gate levels
  go run ./cmd/trifund gate explain --factors testdata/snapshot.yaml`,
}

var (
	gateLevelsCmd = &cobra.Command{
		Use:   "levels",
		Short: "설정된 게이트 레벨 출력 (1 = 가장 엄격)",
		RunE:  runGateLevels,
	}

	gateExplainCmd = &cobra.Command{
		Use:   "explain",
		Short: "스냅샷 파일로 게이트 완화 과정 진단",
		Long: `스냅샷 파일로 내러티브 없이 dry-run 선정을 수행하고
레벨별 통과 수, 제외/보류 종목을 출력합니다.`,
		RunE: runGateExplain,
	}

	gateFactors string
)

func init() {
	rootCmd.AddCommand(gateCmd)
	gateCmd.AddCommand(gateLevelsCmd)
	gateCmd.AddCommand(gateExplainCmd)

	gateExplainCmd.Flags().StringVar(&gateFactors, "factors", "", "snapshot file (required)")
	gateExplainCmd.MarkFlagRequired("factors")
}

func runGateLevels(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOffline()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	strategy, _, err := loadStrategy(cfg)
	if err != nil {
		return err
	}

	printLevels(strategy)
	return nil
}

func printLevels(strategy *strategyconfig.Config) {
	fmt.Printf("gate target: %d candidates\n", strategy.Selection.GateTarget)
	for _, s := range []contracts.Strategy{contracts.StrategyMedium, contracts.StrategyLong} {
		fmt.Println()
		fmt.Printf("[%s]\n", s.Label())
		for _, lvl := range strategy.LevelsFor(s) {
			fmt.Printf("  %s\n", lvl)
		}
	}
}

func runGateExplain(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.Close()
	a.cfg.Narrative.Enabled = false

	data, err := s0_data.LoadSnapshotFile(gateFactors)
	if err != nil {
		return err
	}

	orch, err := a.orchestrator(data, nil)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	result, err := orch.Run(context.Background(), brain.RunConfig{AsOf: data.AsOf, DryRun: true})
	if err != nil {
		return err
	}

	printLevels(a.strategy)
	PrintGateTrace(result.Portfolio)
	return nil
}
