package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/trifund/internal/s1_universe"
	"github.com/wonny/trifund/internal/scheduler"
	"github.com/wonny/trifund/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `정기 작업 스케줄러를 시작하거나 작업을 조회/실행합니다.

등록되는 작업:
- universe_refresh: 평일 21:00 (Wikipedia 구성종목 갱신)
- selection_run:    $SCHEDULE_CRON (기본: 평일 22:30, 초 단위 포함)

Example:
  go run ./cmd/trifund scheduler start
  go run ./cmd/trifund scheduler list
  go run ./cmd/trifund scheduler run selection_run`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작 (Ctrl+C로 종료)",
		RunE:  runSchedulerStart,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업과 다음 실행 시각",
		RunE:  runSchedulerList,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerRun,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers every job against live dependencies
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	orch, err := a.orchestrator(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	runner, err := a.runner(orch)
	if err != nil {
		return nil, err
	}

	source := s1_universe.NewWikipediaSource(a.httpClient(), "", a.log)
	builder := s1_universe.NewBuilder(source, s1_universe.NewRepository(a.db.Pool), a.log)

	s := scheduler.New(a.log)
	for _, job := range []scheduler.Job{
		jobs.NewUniverseJob(builder, "", a.log),
		jobs.NewSelectionJob(runner, a.cfg.ScheduleCron, a.log),
	} {
		if err := s.AddJob(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.serveMetrics(ctx)
	s.Start()

	PrintSuccess("Scheduler started")
	printJobs(s)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()
	s.Stop()
	return nil
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}
	s.Start()
	defer s.Stop()

	printJobs(s)
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := s.RunJobSync(ctx, args[0])
	if err != nil {
		return err
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempt(s): %s", result.JobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", result.JobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration))
	return nil
}

func printJobs(s *scheduler.Scheduler) {
	stats := s.GetJobStats()

	PrintTableHeader([]string{"Job", "Schedule", "Next run"}, []int{18, 18, 25})
	for _, name := range s.GetAllJobs() {
		next, _ := s.NextRun(name)
		fmt.Printf("%-18s  %-18s  %s\n", name, stats[name].Schedule, next.Format("2006-01-02 15:04:05 MST"))
	}
}
