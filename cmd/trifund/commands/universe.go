package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/s1_universe"
)

// universeCmd groups index-membership commands
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "S1 유니버스 (6개 지수 구성종목) 관리",
	Long: `S&P 500, Nasdaq-100, DJIA, DAX, Euro Stoxx 50, CAC 40 구성종목을
Wikipedia에서 수집해 중복 제거 후 저장합니다.

Example:
  go run ./cmd/trifund universe refresh
  go run ./cmd/trifund universe refresh --dry-run
  go run ./cmd/trifund universe list`,
}

var (
	universeRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Wikipedia에서 유니버스 갱신",
		RunE:  runUniverseRefresh,
	}

	universeListCmd = &cobra.Command{
		Use:   "list",
		Short: "저장된 유니버스 출력",
		RunE:  runUniverseList,
	}

	universeDryRun bool
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeRefreshCmd)
	universeCmd.AddCommand(universeListCmd)

	universeRefreshCmd.Flags().BoolVar(&universeDryRun, "dry-run", false, "fetch and dedupe only, do not store")
}

func runUniverseRefresh(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(universeDryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store s1_universe.Store
	if !universeDryRun {
		store = s1_universe.NewRepository(a.db.Pool)
	}

	source := s1_universe.NewWikipediaSource(a.httpClient(), "", a.log)
	universe, err := s1_universe.NewBuilder(source, store, a.log).Build(ctx)
	if err != nil {
		return err
	}

	indexes := make([]contracts.IndexSource, 0, len(universe.ByIndex))
	for idx := range universe.ByIndex {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Universe (%s)\n", universe.Source)
	PrintSeparator()
	for _, idx := range indexes {
		fmt.Printf("  %-12s : %d\n", idx, universe.ByIndex[idx])
	}
	fmt.Printf("  %-12s : %d\n", "duplicates", universe.Duplicates)
	fmt.Printf("  %-12s : %d\n", "total", len(universe.Instruments))
	PrintDoubleSeparator()

	if universeDryRun {
		PrintWarning("dry run: universe not stored")
	}
	return nil
}

func runUniverseList(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	instruments, err := s1_universe.NewRepository(a.db.Pool).ListUniverse(context.Background())
	if err != nil {
		return err
	}

	PrintTableHeader([]string{"ID", "Index", "Name"}, []int{10, 12, 40})
	for _, inst := range instruments {
		fmt.Printf("%-10s  %-12s  %s\n", inst.ID, inst.Index, inst.Name)
	}
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d instruments", len(instruments)))
	return nil
}
