package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/manifest"
)

var showVersion int

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a baseline manifest entry",
	Long: `Show prints the manifest entry of a document for the current engine: the
latest version by default, or the one selected with --version.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().IntVar(&showVersion, "version", 0, "manifest version to show (default latest)")
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identity := a.engine.Identity()
	var entry *manifest.Entry
	if showVersion > 0 {
		entry, err = a.store.Get(ctx, args[0], identity, showVersion)
	} else {
		entry, err = a.store.Latest(ctx, args[0], identity)
	}
	if errors.Is(err, manifest.ErrNotFound) {
		return fmt.Errorf("no baseline for %s under engine %s", args[0], identity)
	}
	if err != nil {
		return err
	}
	if jsonOut {
		return ui.JSON(cmd.OutOrStdout(), entry)
	}

	ui.Section(fmt.Sprintf("%s v%d (%s)", entry.DocumentID, entry.Version, entry.Engine))
	ui.KeyValue("Created", entry.CreatedAt.Format("2006-01-02 15:04:05"))
	ui.KeyValue("Checksum", entry.DocumentChecksum)
	ui.KeyValue("Pages", fmt.Sprintf("%d", entry.PageCount))
	ui.KeyValue("Metadata scope", string(entry.MetadataScope))
	ui.KeyValue("Text", fmt.Sprintf("%s (%d bytes)", entry.TextHash, entry.TextSize))
	ui.KeyValue("Metadata", fmt.Sprintf("%s (%d bytes)", entry.MetadataHash, entry.MetadataSize))
	if pages := entry.ErrorPages(); len(pages) > 0 {
		ui.KeyValue("Failed pages", fmt.Sprint(pages))
	}

	rows := make([][]string, 0, len(entry.Images))
	for _, img := range entry.Images {
		rows = append(rows, []string{
			ui.Page(img.Page), string(img.Kind), fmt.Sprintf("%dx%d", img.Width, img.Height),
			fmt.Sprintf("%d", img.Size), img.Hash,
		})
	}
	ui.Table([]string{"Page", "Kind", "Size", "Bytes", "Hash"}, rows)
	return nil
}
