package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/bpatch/model"
)

// Output receives all status messages. Stdout is reserved for diffs.
var Output io.Writer = os.Stderr

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	PathStyle    = lipgloss.NewStyle()
	FaintStyle   = lipgloss.NewStyle().Faint(true)
)

func printStyled(style lipgloss.Style, format string, a ...interface{}) {
	fmt.Fprintln(Output, style.Render(fmt.Sprintf(format, a...)))
}

func Header(format string, a ...interface{}) {
	printStyled(HeaderStyle, format, a...)
}

func Info(format string, a ...interface{}) {
	printStyled(InfoStyle, format, a...)
}

func Success(format string, a ...interface{}) {
	printStyled(SuccessStyle, format, a...)
}

func Warning(format string, a ...interface{}) {
	printStyled(WarningStyle, format, a...)
}

func Error(format string, a ...interface{}) {
	printStyled(ErrorStyle, format, a...)
}

func Path(format string, a ...interface{}) {
	printStyled(PathStyle, "  "+format, a...)
}

// --- Summaries ---

// RenderSummary formats a summary for the terminal.
func RenderSummary(s model.Summary) string {
	var b strings.Builder

	if s.Message != "" {
		b.WriteString(HeaderStyle.Render(s.Message))
		b.WriteString("\n\n")
	}

	section := func(title string, style lipgloss.Style, paths []string) {
		if len(paths) == 0 {
			return
		}
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, p := range paths {
			b.WriteString(fmt.Sprintf("  %s\n", PathStyle.Render(p)))
		}
	}

	modifiedTitle := "Modified:"
	if s.DryRun {
		modifiedTitle = "Would modify:"
	}
	section(modifiedTitle, SuccessStyle, s.Modified)
	section("Already patched:", FaintStyle, s.Unchanged)
	section("Failed:", ErrorStyle, s.Failed)
	section("Warnings:", WarningStyle, s.Warnings)

	if len(s.Notes) > 0 {
		b.WriteString(InfoStyle.Render("Changes:"))
		b.WriteString("\n")
		for _, n := range s.Notes {
			b.WriteString(fmt.Sprintf("  - %s\n", n))
		}
	}

	if b.Len() == 0 {
		b.WriteString(FaintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	return b.String()
}

// PrintSummary writes a rendered summary to Output.
func PrintSummary(s model.Summary) {
	fmt.Fprint(Output, RenderSummary(s))
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(prefix string) *ProgressBar {
	return &ProgressBar{prefix: prefix}
}

// Update redraws the bar; it matches the progress callback signature.
func (p *ProgressBar) Update(current, total int) {
	p.current, p.total = current, total
	p.draw()
	if total > 0 && current == total {
		p.Finish()
	}
}

func (p *ProgressBar) Finish() {
	fmt.Fprintln(Output)
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(Output, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
