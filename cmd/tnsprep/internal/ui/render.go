// Package ui formats command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/cache"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/runner"
)

// Style definitions
var (
	// Colors
	primaryColor = lipgloss.Color("#3b82f6")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)

// Success formats a positive status line
func Success(msg string) string { return successStyle.Render("✓ " + msg) }

// Error formats a failure line
func Error(msg string) string { return errorStyle.Render("✗ " + msg) }

// Warning formats a warning line
func Warning(msg string) string { return warningStyle.Render("! " + msg) }

// Muted formats secondary information
func Muted(msg string) string { return mutedStyle.Render(msg) }

// Title formats a heading
func Title(msg string) string { return titleStyle.Render(msg) }

// SummaryOptions controls RenderSummary
type SummaryOptions struct {
	Mode    runner.Mode
	Verbose bool // list every file, not just failures and changes
}

// RenderSummary writes a per-file listing followed by a one line total
func RenderSummary(w io.Writer, s *runner.Summary, opts SummaryOptions) {
	for _, f := range s.Files {
		line := fileLine(f, opts)
		if line != "" {
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w, totals(s, opts.Mode))
}

func fileLine(f runner.FileResult, opts SummaryOptions) string {
	name := f.Source.Path
	switch {
	case f.Err != nil:
		return Error(fmt.Sprintf("%s: %v", name, f.Err))
	case opts.Mode == runner.ModeCheck && f.Changed:
		return Warning(name + " needs preprocessing")
	case !opts.Verbose && !f.Changed:
		return ""
	}

	detail := fmt.Sprintf("%d roots, %d bindings", f.Roots, f.Expanded)
	if f.Skipped > 0 {
		detail += fmt.Sprintf(", %d skipped", f.Skipped)
	}
	if f.Cached {
		detail = "cached"
	}

	target := name
	if f.Output != "" {
		target = fmt.Sprintf("%s → %s", name, relTo(filepath.Dir(name), f.Output))
	}
	if !f.Changed {
		return Muted(fmt.Sprintf("  %s (unchanged)", target))
	}
	return Success(target) + " " + Muted("("+detail+")")
}

func totals(s *runner.Summary, mode runner.Mode) string {
	failed := len(s.Failed())
	changed := s.Count(func(f runner.FileResult) bool { return f.Err == nil && f.Changed })
	cached := s.Count(func(f runner.FileResult) bool { return f.Cached })

	verb := "written"
	switch mode {
	case runner.ModeCheck:
		verb = "need preprocessing"
	case runner.ModeStdout:
		verb = "printed"
		changed = len(s.Files) - failed
	}

	parts := []string{
		fmt.Sprintf("%d files", len(s.Files)),
		fmt.Sprintf("%d %s", changed, verb),
	}
	if cached > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", cached))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	line := strings.Join(parts, ", ") + " " + Muted(fmt.Sprintf("in %s", s.Duration.Round(time.Millisecond)))

	if failed > 0 {
		return Error(line)
	}
	return Success(line)
}

// RenderCacheStats writes cache statistics as a boxed table
func RenderCacheStats(w io.Writer, dir string, stats cache.Stats) {
	rows := [][2]string{
		{"Directory", dir},
		{"Entries", fmt.Sprintf("%d", stats.EntryCount)},
		{"Size", FormatBytes(stats.TotalSize)},
	}
	if stats.Hits+stats.Misses > 0 {
		rows = append(rows,
			[2]string{"Hits", fmt.Sprintf("%d (%d in memory)", stats.Hits, stats.MemoryHits)},
			[2]string{"Misses", fmt.Sprintf("%d", stats.Misses)},
		)
	}

	var b strings.Builder
	b.WriteString(Title("Cache"))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Width(10).Render(row[0]))
		b.WriteString(row[1])
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
