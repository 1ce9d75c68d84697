package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [id...]",
	Short: "Check sources and baselines against the manifest",
	Long: `Verify recomputes source checksums, reads the stored baseline files and
regenerates baseline rasters, reporting any artifact that no longer matches the
hash and size recorded in the manifest.`,
	RunE: runVerify,
}

func init() {
	addQueryFlag(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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
	gen, err := a.baselines()
	if err != nil {
		return err
	}

	ui.Section(fmt.Sprintf("Verifying %d document(s) against %s", len(selected), a.engine.Identity()))

	var problems int
	rows := make([][]string, 0, len(selected))
	for _, doc := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, detail := color.GreenString("ok"), ""

		if err := gen.VerifySource(doc); err != nil {
			state, detail = color.RedString("source changed"), err.Error()
			problems++
		} else if _, entry, err := gen.Load(ctx, doc); err != nil {
			switch {
			case doc.ExpectedFailure() && domain.IsType(err, domain.ErrorTypeStaleBaseline):
				state = color.HiBlackString("expected failure")
			case domain.IsType(err, domain.ErrorTypeStaleBaseline):
				state, detail = color.YellowString("no baseline"), err.Error()
				problems++
			default:
				state, detail = color.RedString("inconsistent"), err.Error()
				problems++
			}
		} else {
			detail = fmt.Sprintf("v%d, %d images", entry.Version, len(entry.Images))
		}
		rows = append(rows, []string{doc.ID, state, detail})
	}
	ui.Table([]string{"Document", "State", "Detail"}, rows)

	if problems > 0 {
		return fmt.Errorf("%d document(s) need attention", problems)
	}
	ui.Newline()
	ui.Success("All baselines are consistent")
	return nil
}
