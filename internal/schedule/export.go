/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatICS   Format = "ics"
	FormatTable Format = "table"
)

// ParseFormat maps a wire or flag name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatICS, FormatTable:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Export bundles rendered bytes with download metadata.
type Export struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Exporter renders plans for download, storage, and terminal display.
type Exporter struct {
	logger zerolog.Logger
}

// NewExporter creates a plan exporter.
func NewExporter(logger zerolog.Logger) *Exporter {
	return &Exporter{
		logger: logger.With().Str("component", "schedule_export").Logger(),
	}
}

// Export renders the plan in the requested format.
func (e *Exporter) Export(p Plan, format Format) (*Export, error) {
	var (
		out *Export
		err error
	)
	switch format {
	case FormatJSON:
		out, err = e.exportJSON(p)
	case FormatICS:
		out, err = e.exportICS(p)
	case FormatTable:
		out, err = e.exportTable(p)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Str("run_id", p.RunID).
		Str("format", string(format)).
		Int("bytes", len(out.Data)).
		Msg("plan exported")
	return out, nil
}

func (e *Exporter) exportJSON(p Plan) (*Export, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	data = append(data, '\n')
	return &Export{
		Data:        data,
		Filename:    exportFilename(p, "json"),
		ContentType: "application/json; charset=utf-8",
	}, nil
}

func (e *Exporter) exportICS(p Plan) (*Export, error) {
	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Friends Incode//Skuld//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:Skuld plan %s\r\n", p.Start.Format("2006-01-02")))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, st := range p.Schedule {
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%d-%s@skuld\r\n", st.Task.ID, p.RunID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(p.ComputedAt)))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(st.When)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(st.End())))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(st.Task.Content)))
		buf.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICalText(
			fmt.Sprintf("Importance %d, due %s", st.Task.Importance, st.Task.Deadline.Format(time.RFC3339)))))
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	return &Export{
		Data:        buf.Bytes(),
		Filename:    exportFilename(p, "ics"),
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

func (e *Exporter) exportTable(p Plan) (*Export, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Plan %s (%s), starting %s\n\n",
		p.RunID, p.Strategy, p.Start.Format(time.RFC3339))

	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tTASK\tIMP\tDEADLINE")
	for _, st := range p.Schedule {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			st.When.Format("2006-01-02 15:04"),
			st.End().Format("2006-01-02 15:04"),
			st.Task.Content,
			st.Task.Importance,
			st.Task.Deadline.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("render table: %w", err)
	}

	return &Export{
		Data:        buf.Bytes(),
		Filename:    exportFilename(p, "txt"),
		ContentType: "text/plain; charset=utf-8",
	}, nil
}

func exportFilename(p Plan, ext string) string {
	return fmt.Sprintf("skuld-plan-%s-%s.%s",
		p.Start.Format("2006-01-02"), slugify(p.Strategy), ext)
}

// formatICalTime formats a time in UTC iCal format.
func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICalText escapes special characters for iCal text fields.
func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
