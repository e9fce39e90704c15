package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

const ruleWidth = 50

type renderer struct {
	out io.Writer

	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	source lipgloss.Style
	err    lipgloss.Style
}

// newRenderer styles output for w. Colors are dropped when w is not a terminal.
func newRenderer(w io.Writer) *renderer {
	lr := lipgloss.NewRenderer(w)
	return &renderer{
		out:    w,
		title:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		label:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		muted:  lr.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		source: lr.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		err:    lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8")),
	}
}

func (r *renderer) status(msg string) {
	fmt.Fprintln(r.out, r.muted.Render(msg))
}

func (r *renderer) indexSummary(m domain.IndexManifest) {
	r.status(fmt.Sprintf("Index ready: %d chunks from %d transcripts (build %s)",
		m.ChunkCount, len(m.Sources), shortID(m.BuildID)))
}

func (r *renderer) banner(title string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, r.title.Render(title))
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "Ask questions about the podcast episodes!")
	fmt.Fprintln(r.out, "Type 'exit' or 'quit' to end the conversation")
	fmt.Fprintln(r.out, rule)
}

func (r *renderer) prompt() {
	fmt.Fprint(r.out, "\n"+r.label.Render("Your question:")+" ")
}

func (r *renderer) answer(a *domain.Answer) {
	fmt.Fprintf(r.out, "\n%s %s\n", r.label.Render("Answer:"), a.Text)

	citations := a.Citations()
	if len(citations) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\n%s\n", r.label.Render(fmt.Sprintf("Sources (%d relevant chunks found):", len(a.Chunks))))
	for _, c := range citations {
		fmt.Fprintf(r.out, "   • %s\n", r.source.Render(c))
	}
}

func (r *renderer) failure(err error) {
	fmt.Fprintf(r.out, "\n%s %v\n", r.err.Render("Error:"), err)
	fmt.Fprintln(r.out, "Please try asking your question again.")
}

func (r *renderer) goodbye() {
	fmt.Fprintln(r.out, "\nThanks for using the podcast chat!")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
