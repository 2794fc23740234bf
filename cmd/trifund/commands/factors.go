package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/trifund/internal/s0_data"
	"github.com/wonny/trifund/internal/s1_universe"
	"github.com/wonny/trifund/pkg/redis"
)

// factorsCmd groups factor snapshot commands
var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "S0 팩터 스냅샷 관리",
	Long: `외부에서 계산된 팩터 스냅샷 파일을 PostgreSQL에 적재합니다.
적재된 종목의 캐시 항목은 삭제되어 다음 실행에서 새 값을 읽습니다.

Example:
  go run ./cmd/trifund factors import snapshot-2026-03-02.yaml`,
}

var factorsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "스냅샷 파일 적재 (캐시 무효화 포함)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactorsImport,
}

func init() {
	rootCmd.AddCommand(factorsCmd)
	factorsCmd.AddCommand(factorsImportCmd)
}

func runFactorsImport(cmd *cobra.Command, args []string) error {
	data, err := s0_data.LoadSnapshotFile(args[0])
	if err != nil {
		return err
	}

	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := s0_data.NewCachedStore(s0_data.NewRepository(a.db.Pool), redis.NewCache(a.redis, keyPrefix), a.log)
	bundles := data.Store.Bundles()
	if err := store.SaveFactors(ctx, bundles); err != nil {
		return fmt.Errorf("import factors: %w", err)
	}

	if len(data.Catalysts) > 0 {
		repo := s1_universe.NewRepository(a.db.Pool)
		if err := repo.SaveCatalystCandidates(ctx, data.AsOf, data.Catalysts, "snapshot"); err != nil {
			return fmt.Errorf("import catalysts: %w", err)
		}
	}

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Factor import (%s)\n", data.AsOf.Format("2006-01-02"))
	PrintSeparator()
	fmt.Printf("  %-12s : %d\n", "bundles", len(bundles))
	fmt.Printf("  %-12s : %d\n", "universe", len(data.Universe))
	fmt.Printf("  %-12s : %d\n", "catalysts", len(data.Catalysts))
	PrintDoubleSeparator()
	PrintSuccess("snapshot stored")
	return nil
}
