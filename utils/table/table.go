/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package table renders rows as ASCII tables.
package table

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// minWidth 列最小宽度
const minWidth = 4

// Fprint writes rows under the given column header, followed by a row count.
// A nil value prints as NULL.
func Fprint(w io.Writer, columns []string, rows [][]any) error {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = max(len(col), minWidth)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			s := ""
			if i < len(row) {
				s = formatValue(row[i])
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var b strings.Builder
	writeBorder(&b, widths)
	writeLine(&b, widths, columns)
	writeBorder(&b, widths)
	for _, line := range cells {
		writeLine(&b, widths, line)
	}
	writeBorder(&b, widths)
	fmt.Fprintf(&b, "(%d rows)\n", len(rows))
	_, err := io.WriteString(w, b.String())
	return err
}

// FprintMaps prints map rows. Columns follow fieldOrder; columns not listed
// there are appended in alphabetical order.
func FprintMaps(w io.Writer, data []map[string]any, fieldOrder []string) error {
	if len(data) == 0 {
		_, err := io.WriteString(w, "(0 rows)\n")
		return err
	}
	seen := make(map[string]bool)
	for _, row := range data {
		for col := range row {
			seen[col] = true
		}
	}
	var columns []string
	for _, field := range fieldOrder {
		if seen[field] {
			columns = append(columns, field)
			delete(seen, field)
		}
	}
	rest := make([]string, 0, len(seen))
	for col := range seen {
		rest = append(rest, col)
	}
	sort.Strings(rest)
	columns = append(columns, rest...)

	rows := make([][]any, len(data))
	for i, m := range data {
		rows[i] = make([]any, len(columns))
		for j, col := range columns {
			rows[i][j] = m[col]
		}
	}
	return Fprint(w, columns, rows)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func writeBorder(b *strings.Builder, widths []int) {
	b.WriteByte('+')
	for _, width := range widths {
		b.WriteString(strings.Repeat("-", width+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
}

func writeLine(b *strings.Builder, widths []int, values []string) {
	b.WriteByte('|')
	for i, v := range values {
		fmt.Fprintf(b, " %-*s |", widths[i], v)
	}
	b.WriteByte('\n')
}
