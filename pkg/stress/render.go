package stress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how a [Report] is rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

var ErrUnknownOutput = errors.New("unknown output format")

// ParseOutputFormat parses an output format name. The empty string selects
// [OutputText].
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "":
		return OutputText, nil
	case OutputText, OutputJSON, OutputYAML:
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownOutput, s)
}

// RenderOpts configures [Render].
type RenderOpts struct {
	Format OutputFormat
	// Color enables ANSI styling of text output, using the color profile
	// detected for the writer.
	Color bool
}

// Render writes the report to w.
func Render(w io.Writer, r *Report, opts RenderOpts) error {
	switch opts.Format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil

	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return nil

	case OutputText, "":
		return renderText(w, r, opts.Color)
	}

	return fmt.Errorf("%w: %q", ErrUnknownOutput, opts.Format)
}

type textStyles struct {
	title, name, dim, pass, fail lipgloss.Style
}

func newTextStyles(w io.Writer, color bool) textStyles {
	renderer := lipgloss.NewRenderer(w)
	if !color {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return textStyles{
		title: renderer.NewStyle().Bold(true),
		name:  renderer.NewStyle().Foreground(lipgloss.Color("211")),
		dim:   renderer.NewStyle().Foreground(lipgloss.Color("245")),
		pass:  renderer.NewStyle().Foreground(lipgloss.Color("42")).SetString("✓"),
		fail:  renderer.NewStyle().Foreground(lipgloss.Color("196")).SetString("✗"),
	}
}

func renderText(w io.Writer, r *Report, color bool) error {
	st := newTextStyles(w, color)
	title := cases.Title(language.English)

	nameWidth := 0
	for _, res := range r.Results {
		nameWidth = max(nameWidth, len(res.Scenario))
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", st.title.Render("Stress run"), st.dim.Render(r.ID.String()))
	fmt.Fprintf(&b, "%s\n\n", st.dim.Render(fmt.Sprintf("goroutines=%d iterations=%d fair=%t",
		r.Config.Goroutines, r.Config.Iterations, r.Config.Fair)))

	for _, res := range r.Results {
		icon := st.pass.String()
		if !res.Passed {
			icon = st.fail.String()
		}

		name := st.name.Render(fmt.Sprintf("%-*s", nameWidth, title.String(res.Scenario)))
		fmt.Fprintf(&b, "%s %s %10d ops %12.0f ops/s %10.2f ms\n",
			icon, name, res.Operations, res.OpsPerSec, res.ElapsedMS)

		if res.Error != "" {
			fmt.Fprintf(&b, "    %s\n", res.Error)
		}
	}

	passed := 0
	for _, res := range r.Results {
		if res.Passed {
			passed++
		}
	}

	fmt.Fprintf(&b, "\n%d/%d scenarios passed\n", passed, len(r.Results))

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
