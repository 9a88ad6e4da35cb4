package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"mcpdesk/internal/infra/config"
)

type printer struct {
	out    io.Writer
	errOut io.Writer
	format config.OutputFormat
}

func newPrinter(out, errOut io.Writer, format config.OutputFormat) printer {
	if format == "" {
		format = config.OutputText
	}
	return printer{out: out, errOut: errOut, format: format}
}

// emit writes value as JSON or YAML, or calls text for the text format.
func (p printer) emit(value any, text func(w io.Writer) error) error {
	switch p.format {
	case config.OutputJSON:
		return writeJSON(p.out, value)
	case config.OutputYAML:
		return writeYAML(p.out, value)
	default:
		return text(p.out)
	}
}

func (p printer) staleWarning(fetchedAt time.Time, cause error) {
	when := "an earlier session"
	if !fetchedAt.IsZero() {
		when = fetchedAt.Local().Format(time.RFC3339)
	}
	if cause != nil {
		warnf(p.errOut, "management service unreachable (%v); showing cached view from %s", cause, when)
		return
	}
	warnf(p.errOut, "showing cached view from %s", when)
}

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return err
	}
	return enc.Close()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func onOff(enabled bool) string {
	if enabled {
		return "yes"
	}
	return "no"
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
