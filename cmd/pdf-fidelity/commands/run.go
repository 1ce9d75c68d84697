package commands

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/compare"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/orchestrator"
)

var (
	runWorkers     int
	runOutDir      string
	runConcurrency int
	runKeep        bool
	runNoAbort     bool
)

var runCmd = &cobra.Command{
	Use:   "run [id...]",
	Short: "Extract selected documents in parallel and compare against baselines",
	Long: `Run extracts every selected document with the parallel candidate producer,
compares text, character metadata, page rasters and failed pages against the
latest baseline and exits with status 1 if any document failed unexpectedly.`,
	RunE: runRun,
}

func init() {
	addQueryFlag(runCmd)
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "extraction workers per document (default from config)")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "directory for candidate artifacts of failing documents (default from config)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "documents processed at once (default from config)")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "also keep artifacts of passing documents")
	runCmd.Flags().BoolVar(&runNoAbort, "no-abort", false, "keep running after an aggregation invariant violation")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	workers := a.cfg.Extraction.Workers
	if runWorkers > 0 {
		workers = runWorkers
	}
	opts := orchestrator.Options{
		DocumentConcurrency:       a.cfg.Run.DocumentConcurrency,
		AbortOnInvariantViolation: a.cfg.Run.AbortOnInvariantViolation && !runNoAbort,
		OutputDir:                 a.cfg.Run.OutputDir,
		KeepArtifacts:             a.cfg.Run.KeepArtifacts || runKeep,
	}
	if runConcurrency > 0 {
		opts.DocumentConcurrency = runConcurrency
	}
	if runOutDir != "" {
		opts.OutputDir = runOutDir
	}

	selected, skipped, err := a.selectDocuments(args)
	if err != nil {
		return err
	}

	candidate, err := a.candidate(workers)
	if err != nil {
		return err
	}
	gen, err := a.baselines()
	if err != nil {
		return err
	}

	orc := orchestrator.New(candidate, a.engine.Identity(), gen, compare.New(a.cfg.Comparison), a.store, opts, a.logger)

	if !jsonOut {
		ui.Section(fmt.Sprintf("Running %d document(s) with %d worker(s), %s", len(selected), workers, a.engine.Identity()))
	}
	bar := ui.NewProgressBar(len(selected), "documents")
	var mu sync.Mutex
	orc.OnOutcome(func(out domain.DocumentOutcome) {
		if out.Status == domain.StatusSkipped {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		bar.Add(out.DocumentID)
	})

	summary, runErr := orc.Run(ctx, selected, skipped)
	bar.Finish()
	if summary == nil {
		return runErr
	}

	if jsonOut {
		if err := ui.JSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		printSummary(summary)
	}

	if runErr != nil {
		return runErr
	}
	if summary.ExitCode() != 0 {
		return ErrRegression
	}
	return nil
}

func printSummary(s *orchestrator.Summary) {
	rows := make([][]string, 0, len(s.Outcomes))
	for _, out := range s.Outcomes {
		if out.Status == domain.StatusSkipped {
			continue
		}
		rows = append(rows, []string{out.DocumentID, ui.Status(out), ui.FormatDuration(out.Duration), outcomeDetail(out)})
	}
	ui.Table([]string{"Document", "Status", "Time", "Detail"}, rows)

	for _, out := range s.Outcomes {
		if out.Status != domain.StatusFailed || len(out.Results) == 0 {
			continue
		}
		ui.Section(out.DocumentID)
		var detail [][]string
		for _, r := range out.Results {
			if r.Verdict == domain.VerdictPass {
				continue
			}
			detail = append(detail, []string{
				string(r.Artifact), ui.Page(r.Page), ui.Verdict(r.Verdict),
				fmt.Sprintf("%.4f", r.Similarity), r.Locator.String(), r.Detail,
			})
		}
		ui.Table([]string{"Artifact", "Page", "Verdict", "Similarity", "Locator", "Detail"}, detail)
	}

	ui.Newline()
	ui.KeyValue("Run", s.RunID)
	ui.KeyValue("Passed", fmt.Sprintf("%d (%d expected failures)", s.Passed, s.ExpectedFailures))
	ui.KeyValue("Failed", fmt.Sprintf("%d (%d need review)", s.Failed, s.NeedsReview))
	ui.KeyValue("Errors", fmt.Sprintf("%d", s.Errors))
	ui.KeyValue("Skipped", fmt.Sprintf("%d", s.Skipped))
	ui.KeyValue("Duration", ui.FormatDuration(s.Duration))
	ui.Newline()

	switch {
	case s.Aborted:
		ui.Error("Batch aborted after an aggregation invariant violation")
	case s.ExitCode() != 0:
		ui.Error("Fidelity regressions detected")
	default:
		ui.Success("All selected documents match their baselines")
	}
}

func outcomeDetail(out domain.DocumentOutcome) string {
	if out.Error == "" {
		return ""
	}
	msg := out.Error
	if out.ErrorType != "" && !strings.Contains(msg, "["+string(out.ErrorType)+"]") {
		msg = fmt.Sprintf("[%s] %s", out.ErrorType, msg)
	}
	return msg
}
