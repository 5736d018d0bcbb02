package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal/analysis"
)

var outcomeOrder = []trial.Outcome{
	trial.OutcomeCorrect,
	trial.OutcomeTooSlow,
	trial.OutcomeWrongDirection,
	trial.OutcomeNoResponse,
	trial.OutcomePremature,
}

// Markdown renders a session report: manifest, outcome counts, per-condition RTs and the PMBR effect
func Markdown(m *session.Manifest, records []trial.Record) string {
	summary := analysis.Summarize(records)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# PMBR session report: participant %s\n\n", m.Participant))

	b.WriteString("| Field | Value |\n|---|---|\n")
	b.WriteString(fmt.Sprintf("| Session ID | %s |\n", m.SessionID))
	b.WriteString(fmt.Sprintf("| Session / run | %d / %d |\n", m.SessionNo, m.RunNo))
	b.WriteString(fmt.Sprintf("| Mode | %s |\n", m.Mode))
	b.WriteString(fmt.Sprintf("| Seed | %d |\n", m.Seed))
	b.WriteString(fmt.Sprintf("| Status | %s |\n", m.Status))
	b.WriteString(fmt.Sprintf("| Started | %s |\n", m.StartedAt))
	if m.CompletedAt != nil {
		b.WriteString(fmt.Sprintf("| Completed | %s |\n", *m.CompletedAt))
	}
	b.WriteString(fmt.Sprintf("| Sequence hash | `%s` |\n\n", m.SequenceHash))

	b.WriteString("## Outcomes\n\n")
	b.WriteString(fmt.Sprintf("%d trials recorded, accuracy %.1f%%", summary.Trials, summary.Accuracy*100))
	if summary.MeanRT > 0 {
		b.WriteString(fmt.Sprintf(", mean correct probe RT %.0f ms", summary.MeanRT))
	}
	b.WriteString(".\n\n| Outcome | Trials |\n|---|---:|\n")
	for _, o := range outcomeOrder {
		b.WriteString(fmt.Sprintf("| %s | %d |\n", o, summary.Outcomes[o]))
	}
	b.WriteString("\n")

	if len(summary.Conditions) > 0 {
		b.WriteString("## Conditions\n\n")
		b.WriteString("| Condition | Trials | Accuracy | Mean RT | Median RT | SD | P90 |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
		for _, c := range summary.Conditions {
			b.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %s | %s | %s | %s |\n",
				c.Condition, c.Trials, c.Accuracy*100,
				msCell(c.MeanRT, c.RTSamples), msCell(c.MedianRT, c.RTSamples),
				msCell(c.SDRT, c.RTSamples-1), msCell(c.P90RT, c.RTSamples)))
		}
		b.WriteString("\n")
	}

	b.WriteString("## PMBR effect\n\n")
	if e := summary.Effect; e != nil {
		b.WriteString(fmt.Sprintf("Ipsilateral %.1f ms (n=%d) vs contralateral %.1f ms (n=%d).\n\n",
			e.IpsilateralMeanRT, e.NIpsilateral, e.ContralateralMeanRT, e.NContralateral))
		b.WriteString(fmt.Sprintf("- Effect: **%+.1f ms**\n", e.EffectMs))
		b.WriteString(fmt.Sprintf("- Welch t(%.1f) = %.3f, p = %.4f\n", e.DegreesOfFreedom, e.TStatistic, e.PValue))
		b.WriteString(fmt.Sprintf("- Cohen's d = %.2f\n", e.CohensD))
	} else {
		b.WriteString("Not enough correct ipsilateral and contralateral trials to estimate the effect.\n")
	}
	return b.String()
}

func msCell(v float64, samples int) string {
	if samples <= 0 {
		return "NA"
	}
	return fmt.Sprintf("%.1f", v)
}

// HTML renders the markdown report as a standalone page
func HTML(m *session.Manifest, records []trial.Record) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: fmt.Sprintf("PMBR participant %s", m.Participant),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(Markdown(m, records)), p, renderer)
}

// Write emits the report in the requested format ("md" or "html")
func Write(w io.Writer, format string, m *session.Manifest, records []trial.Record) error {
	var out []byte
	switch strings.ToLower(format) {
	case "md", "markdown":
		out = []byte(Markdown(m, records))
	case "html":
		out = HTML(m, records)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	_, err := w.Write(out)
	return err
}
