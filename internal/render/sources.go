// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"
)

// =============================================================================
// SOURCE EXTRACTION
// =============================================================================

// Source is one consulted reference extracted from an assistant message.
type Source struct {
	Outlet    string
	Title     string
	Relevance string
	Date      string
	URL       string
}

var (
	// sourceLineRe matches the inline citation format the analyst emits:
	//   📰 [Reuters]: "Fed holds rates steady" - 2026-03-15
	sourceLineRe = regexp.MustCompile(`^📰 \[([^\]]+)\]: "([^"]+)"(?: - (\d{4}-\d{2}-\d{2}))?\s*$`)

	// urlRe matches bare http(s) URLs for the direct-links panel.
	urlRe = regexp.MustCompile(`https?://[^\s)\]>"']+`)

	// tableSeparatorRe matches markdown table separator rows like |---|:--:|.
	tableSeparatorRe = regexp.MustCompile(`^\|?[\s:|-]+\|?$`)
)

// sourceHeaderCells are first-cell values that mark a table header row rather
// than a data row. "Fuente" appears in Spanish-language analyses.
var sourceHeaderCells = map[string]bool{
	"source": true,
	"fuente": true,
	"outlet": true,
}

// ParseSourceLines extracts inline citations from message content. Lines
// that do not match the citation format are ignored.
func ParseSourceLines(content string) []Source {
	var sources []Source
	for _, line := range strings.Split(content, "\n") {
		m := sourceLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		sources = append(sources, Source{
			Outlet: m[1],
			Title:  m[2],
			Date:   m[3],
		})
	}
	return sources
}

// ParseSourceTable extracts sources from a markdown pipe table. The analyst's
// tables are source | title | relevance | date. Separator rows, header rows,
// and rows with fewer than 4 non-empty cells are skipped; a padded fragment
// like |a|b||d| is not a data row.
func ParseSourceTable(content string) []Source {
	var sources []Source
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		if tableSeparatorRe.MatchString(line) {
			continue
		}

		cells := splitTableRow(line)
		if countNonEmpty(cells) < 4 {
			continue
		}
		if sourceHeaderCells[strings.ToLower(cells[0])] {
			continue
		}

		sources = append(sources, Source{
			Outlet:    cells[0],
			Title:     cells[1],
			Relevance: cells[2],
			Date:      cells[3],
			URL:       firstURL(line),
		})
	}
	return sources
}

// countNonEmpty returns the number of cells with content.
func countNonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if c != "" {
			n++
		}
	}
	return n
}

// ExtractURLs returns every bare URL in the content, deduplicated in order
// of first appearance.
func ExtractURLs(content string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, u := range urlRe.FindAllString(content, -1) {
		u = strings.TrimRight(u, ".,;")
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// splitTableRow splits a pipe table row into trimmed cells, dropping the
// empty leading and trailing fragments around the outer pipes.
func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// firstURL pulls the first URL out of a cell that may wrap it in a markdown
// link.
func firstURL(cell string) string {
	if m := urlRe.FindString(cell); m != "" {
		return strings.TrimRight(m, ".,;)")
	}
	return ""
}
