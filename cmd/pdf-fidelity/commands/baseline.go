package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline [id...]",
	Short: "Produce new reference baselines",
	Long: `Baseline extracts the selected documents with a single sequential reference
worker and records the artifacts as a new manifest version for the current
engine. This is the only command that changes baselines.`,
	RunE: runBaseline,
}

func init() {
	addQueryFlag(baselineCmd)
	rootCmd.AddCommand(baselineCmd)
}

func runBaseline(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	selected, _, err := a.selectDocuments(args)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		ui.Warning("No documents selected")
		return nil
	}

	gen, err := a.baselines()
	if err != nil {
		return err
	}

	ui.Section(fmt.Sprintf("Baselining %d document(s) with %s", len(selected), a.engine.Identity()))

	var failed int
	for _, doc := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		spinner := ui.NewSpinner(fmt.Sprintf("%s (%d pages)", doc.ID, doc.Pages))
		spinner.Start()
		entry, err := gen.Rebaseline(ctx, doc)
		spinner.Stop()

		switch {
		case err == nil:
			msg := fmt.Sprintf("%s v%d: %d pages", doc.ID, entry.Version, entry.PageCount)
			if n := len(entry.PageErrors); n > 0 {
				msg += fmt.Sprintf(", %d failed page(s) recorded", n)
			}
			ui.Success("%s", msg)
		case doc.ExpectedFailure() && domain.IsType(err, domain.ErrorTypeDocumentLoad):
			ui.Info("%s: expected failure, no baseline needed", doc.ID)
		default:
			failed++
			ui.Error("%s: %v", doc.ID, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) could not be baselined", failed)
	}
	return nil
}
