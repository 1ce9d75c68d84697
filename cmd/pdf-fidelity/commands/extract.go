package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/partition"
	"github.com/spherical/pdf-fidelity/internal/pdf"
)

var (
	extractWorkers int
	extractOutDir  string
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract one PDF without comparing it",
	Long: `Extract runs the parallel candidate producer on a single file and writes
text.u32, metadata.jsonl and the page images to the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().IntVarP(&extractWorkers, "workers", "w", 0, "extraction workers (default from config)")
	extractCmd.Flags().StringVarP(&extractOutDir, "out", "o", "", "output directory (default: <out>/<pdf-name>)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pdfPath := args[0]
	if err := pdf.NewValidator().ValidatePDFPath(pdfPath); err != nil {
		return err
	}

	workers := a.cfg.Extraction.Workers
	if extractWorkers > 0 {
		workers = extractWorkers
	}
	outDir := extractOutDir
	if outDir == "" {
		base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
		outDir = filepath.Join(a.cfg.Run.OutputDir, base)
	}

	// Page count up front so each worker bar knows its range.
	h, err := a.engine.Open(ctx, pdfPath)
	if err != nil {
		return err
	}
	pages := h.PageCount()
	if err := h.Close(); err != nil {
		a.logger.Warn().Err(err).Str("path", pdfPath).Msg("Failed to close document handle")
	}
	ranges, err := partition.Split(pages, workers)
	if err != nil {
		return err
	}

	producer, err := a.candidate(workers)
	if err != nil {
		return err
	}

	ui.Section(fmt.Sprintf("Extracting %s (%d pages, %d workers)", filepath.Base(pdfPath), pages, workers))

	events := make(chan domain.StreamEvent, 3*pages+8)
	bars := ui.NewWorkerBars(ranges)
	consumed := make(chan struct{})
	go func() {
		bars.Consume(events)
		close(consumed)
	}()

	doc := domain.Document{ID: filepath.Base(pdfPath), Path: pdfPath}
	arts, err := producer.WithEvents(events).Produce(ctx, doc)
	close(events)
	<-consumed
	bars.Wait()
	if err != nil {
		return fmt.Errorf("extract %s: %w", pdfPath, err)
	}

	w, err := pdf.NewArtifactWriter(outDir)
	if err != nil {
		return err
	}
	if err := w.WriteAll(arts); err != nil {
		return err
	}

	ui.Success("Extracted %d pages in %s", arts.PageCount, ui.FormatDuration(arts.ProcessingTime))
	ui.KeyValue("Engine", arts.Engine.String())
	ui.KeyValue("Text", fmt.Sprintf("%s (%d bytes, sha256 %s)", filepath.Join(outDir, pdf.TextFile), arts.Text.Size, arts.Text.Hash))
	ui.KeyValue("Metadata", fmt.Sprintf("%s (%d bytes, %s)", filepath.Join(outDir, pdf.MetadataFile), arts.Metadata.Size, arts.MetadataScope))
	ui.KeyValue("Images", fmt.Sprintf("%d", len(arts.Images)))
	for _, pe := range arts.PageErrors {
		ui.Warning("Page %d: [%s] %s", pe.Page+1, pe.Type, pe.Message)
	}
	return nil
}
