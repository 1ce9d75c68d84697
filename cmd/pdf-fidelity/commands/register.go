package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
)

var registerTags []string

var registerCmd = &cobra.Command{
	Use:   "register <id> <pdf>",
	Short: "Add a PDF to the document registry",
	Long: `Register validates a PDF, records its checksum and page count and tags it for
selection. Documents tagged expected-failure may be unreadable.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a document and its baseline files",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	registerCmd.Flags().StringSliceVarP(&registerTags, "tag", "t", nil, "tag to attach, repeatable (e.g. category:forms, size:small, expected-failure)")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(removeCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.registry.RegisterFile(args[0], args[1], registerTags)
	if err != nil {
		return fmt.Errorf("register %s: %w", args[0], err)
	}
	if err := a.registry.Save(); err != nil {
		return err
	}

	ui.Success("Registered %s", doc.ID)
	ui.KeyValue("Path", doc.Path)
	ui.KeyValue("Pages", fmt.Sprintf("%d", doc.Pages))
	ui.KeyValue("Checksum", doc.Checksum)
	ui.KeyValue("Tags", strings.Join(doc.Tags.Sorted(), ", "))
	if doc.ExpectedFailure() && doc.Pages == 0 {
		ui.Warning("Document could not be read; it is tagged as an expected failure")
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.registry.Get(args[0])
	if err != nil {
		return err
	}
	gen, err := a.baselines()
	if err != nil {
		return err
	}
	if err := gen.Remove(ctx, doc); err != nil {
		return err
	}
	if err := a.registry.Remove(doc.ID); err != nil {
		return err
	}
	if err := a.registry.Save(); err != nil {
		return err
	}

	ui.Success("Removed %s; manifest history is kept", doc.ID)
	return nil
}
