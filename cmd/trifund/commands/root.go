package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trifund",
	Short: "trifund - 3전략(단기/중기/장기) 종목 선정 엔진",
	Long: `trifund Unified CLI

한 번의 실행으로 세 가지 전략 포트폴리오를 만든다:
  Short  : 촉매 + 모멘텀 (최대 5종목)
  Medium : 성장/품질 + 단계별 완화 게이트
  Long   : 내재가치 대비 안전마진

S1 Universe → S0 Factors → S2 Selection → S3 Narrative → S4 Portfolio → S5 Publish

Usage:
  go run ./cmd/trifund [command]

Examples:
  go run ./cmd/trifund run --factors testdata/snapshot.yaml --dry-run
  go run ./cmd/trifund config validate config/strategy/trifund.yaml
  go run ./cmd/trifund universe refresh
  go run ./cmd/trifund api
  go run ./cmd/trifund scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: $STRATEGY_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
