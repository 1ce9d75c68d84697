package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered documents and their baselines",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	addQueryFlag(listCmd)
	listCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(listCmd)
}

type listedDocument struct {
	ID              string   `json:"id"`
	Path            string   `json:"path"`
	Pages           int      `json:"pages"`
	Tags            []string `json:"tags"`
	BaselineVersion int      `json:"baseline_version,omitempty"`
	Versions        []int    `json:"versions,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	selected, _, err := a.selectDocuments(nil)
	if err != nil {
		return err
	}

	identity := a.engine.Identity()
	listed := make([]listedDocument, 0, len(selected))
	for _, doc := range selected {
		ld := listedDocument{ID: doc.ID, Path: doc.Path, Pages: doc.Pages, Tags: doc.Tags.Sorted()}
		versions, err := a.store.Versions(ctx, doc.ID, identity)
		if err != nil {
			return err
		}
		if n := len(versions); n > 0 {
			ld.BaselineVersion = versions[n-1]
			ld.Versions = versions
		}
		listed = append(listed, ld)
	}

	if jsonOut {
		return ui.JSON(cmd.OutOrStdout(), listed)
	}

	ui.Section(fmt.Sprintf("Documents (engine %s)", identity))
	rows := make([][]string, 0, len(listed))
	for _, ld := range listed {
		version := "none"
		if ld.BaselineVersion > 0 {
			version = fmt.Sprintf("v%d", ld.BaselineVersion)
		}
		if n := len(ld.Versions); n > 1 {
			version += fmt.Sprintf(" (%d versions)", n)
		}
		rows = append(rows, []string{ld.ID, fmt.Sprintf("%d", ld.Pages), version, strings.Join(ld.Tags, ", ")})
	}
	ui.Table([]string{"ID", "Pages", "Baseline", "Tags"}, rows)
	return nil
}
