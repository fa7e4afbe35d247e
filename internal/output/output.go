// Package output renders command results as YAML, JSON or an aligned
// table.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/ctagard/cdbg/internal/config"
	"github.com/ctagard/cdbg/internal/errors"
)

// Table is implemented by results that have a tabular rendering.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Printer writes results in one format.
type Printer struct {
	w      io.Writer
	format string
	// width truncates table lines. Zero disables truncation.
	width int
}

// NewPrinter creates a Printer for format. Tables written to a terminal are
// cut to the terminal width.
func NewPrinter(w io.Writer, format string) (*Printer, error) {
	switch format {
	case config.FormatYAML, config.FormatJSON, config.FormatTable:
	default:
		return nil, errors.InvalidParameter("format", format, "one of yaml, json, table")
	}
	p := &Printer{w: w, format: format}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = width
		}
	}
	return p, nil
}

// Print writes v. The table format requires v to implement Table; other
// values fall back to YAML.
func (p *Printer) Print(v any) error {
	switch p.format {
	case config.FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.FormatTable:
		if t, ok := v.(Table); ok {
			return p.table(t)
		}
	}
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode yaml: %w", err)
	}
	return enc.Close()
}

func (p *Printer) table(t Table) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header(), "\t"))
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, line := range strings.SplitAfter(buf.String(), "\n") {
		if line == "" {
			continue
		}
		if _, err := io.WriteString(p.w, truncate(line, p.width)); err != nil {
			return err
		}
	}
	return nil
}

// truncate cuts a line to width runes, keeping the trailing newline.
func truncate(line string, width int) string {
	body := strings.TrimSuffix(line, "\n")
	if width <= 0 || utf8.RuneCountInString(body) <= width {
		return line
	}
	runes := []rune(body)
	return string(runes[:width-1]) + "…\n"
}
