package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

var auditCmd = &cobra.Command{
	Use:   "audit <run-id>",
	Short: "Show the audit log of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.AuditByRun(ctx, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no audit records for run %s", args[0])
	}
	if jsonOut {
		return ui.JSON(cmd.OutOrStdout(), records)
	}

	ui.Section(fmt.Sprintf("Run %s (%s)", args[0], records[0].Engine))
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		verdict := ""
		if r.Verdict != "" {
			verdict = ui.Verdict(r.Verdict)
		}
		rows = append(rows, []string{
			r.DocumentID, ui.Status(domain.DocumentOutcome{Status: r.Status}), string(r.Artifact),
			ui.Page(r.Page), verdict, r.Locator, r.Detail,
		})
	}
	ui.Table([]string{"Document", "Status", "Artifact", "Page", "Verdict", "Locator", "Detail"}, rows)
	return nil
}
