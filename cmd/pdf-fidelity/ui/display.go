package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Table prints rows under headers with aligned columns
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// Status renders a document status with its color
func Status(o domain.DocumentOutcome) string {
	label := string(o.Status)
	switch {
	case o.Status == domain.StatusPassed && o.ExpectedFailure:
		return color.GreenString("%s (expected failure)", label)
	case o.Status == domain.StatusPassed:
		return color.GreenString("%s", label)
	case o.Status == domain.StatusFailed && o.NeedsReview:
		return color.YellowString("%s (needs review)", label)
	case o.Status == domain.StatusFailed, o.Status == domain.StatusError:
		return color.RedString("%s", label)
	default:
		return color.HiBlackString("%s", label)
	}
}

// Verdict renders a comparison verdict with its color
func Verdict(v domain.Verdict) string {
	switch v {
	case domain.VerdictPass:
		return color.GreenString("%s", v)
	case domain.VerdictReview:
		return color.YellowString("%s", v)
	default:
		return color.RedString("%s", v)
	}
}

// Page renders a zero-based page index for people
func Page(p int) string {
	if p == domain.DocumentLevel {
		return "-"
	}
	return fmt.Sprintf("%d", p+1)
}

// JSON writes v as indented JSON
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// KeyValue prints an indented key and value
func KeyValue(key, value string) {
	fmt.Fprintf(os.Stdout, "  %s: %s\n", key, value)
}
