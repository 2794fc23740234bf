package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/trifund/internal/strategyconfig"
)

// configCmd groups strategy-config commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "전략 설정 검증/해시",
	Long: `전략 YAML 설정을 검증하거나 실행에 기록되는 해시를 출력합니다.
경로를 생략하면 --strategy, $STRATEGY_CONFIG, 내장 기본값 순서로 사용합니다.

Example:
  go run ./cmd/trifund config validate config/strategy/trifund.yaml
  go run ./cmd/trifund config hash
  go run ./cmd/trifund config show`,
}

var (
	configValidateCmd = &cobra.Command{
		Use:   "validate [path]",
		Short: "설정 검증 (필수 규칙 + 권고 경고)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigValidate,
	}

	configHashCmd = &cobra.Command{
		Use:   "hash [path]",
		Short: "설정 SHA256 해시 출력",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigHash,
	}

	configShowCmd = &cobra.Command{
		Use:   "show [path]",
		Short: "적용되는 설정을 YAML로 출력",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigShow,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configHashCmd)
	configCmd.AddCommand(configShowCmd)
}

func strategyFromArgs(args []string) (*strategyconfig.Config, error) {
	path := strategyFile
	if len(args) == 1 {
		path = args[0]
	}
	cfg, _, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := strategyFromArgs(args)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	for _, w := range strategyconfig.Warn(cfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	PrintSuccess(fmt.Sprintf("%s v%s is valid", cfg.Meta.StrategyID, cfg.Meta.Version))
	return nil
}

func runConfigHash(cmd *cobra.Command, args []string) error {
	cfg, err := strategyFromArgs(args)
	if err != nil {
		return err
	}

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash strategy config: %w", err)
	}
	fmt.Println(hash)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := strategyFromArgs(args)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode strategy config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
