/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlog

import (
	"bufio"
	"io"
	"strings"
)

// Record is one entry of a play or report log: a comment line followed by the
// resource locator on its own line.
type Record struct {
	Comment string
	Locator string
}

var commentFlattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Encode renders r in the two-line m3u form. Line breaks inside the comment
// are flattened so the comment/locator pairing survives a re-read.
func (r Record) Encode() string {
	var b strings.Builder
	b.WriteByte('#')
	b.WriteString(commentFlattener.Replace(r.Comment))
	b.WriteByte('\n')
	b.WriteString(r.Locator)
	b.WriteByte('\n')
	return b.String()
}

// Parse reads records two lines at a time. A dangling comment line without a
// locator is ignored.
func Parse(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		records []Record
		lines   []string
	)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
		if len(lines) < 2 {
			continue
		}
		records = append(records, Record{
			Comment: strings.TrimPrefix(lines[0], "#"),
			Locator: lines[1],
		})
		lines = lines[:0]
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// ReportComment builds the comment line of a report record.
func ReportComment(submitter, comment string) string {
	return submitter + " - " + comment
}
