// Package tablegen generates random data tables and their CSV encoding.
// It is the shared core behind the table.generate MCP tool and the
// backend's /create-random-csv endpoint.
package tablegen

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/seqgpt/helper-mcp/pkg/errmodel"
)

// Limits enforced on every generation request.
const (
	MaxRows    = 10000
	MaxColumns = 64
)

// DefaultColumns is used when a request names no columns.
var DefaultColumns = []string{"ID", "Value A", "Value B", "Value C"}

// Spec describes a table to generate.
type Spec struct {
	NumRows  int      `json:"num_rows"`
	Columns  []string `json:"columns,omitempty"`
	ValueMin float64  `json:"value_min"`
	ValueMax float64  `json:"value_max"`
}

// Table is a generated table. Rows are positional, matching Columns.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// Cell is a single table value: a 1-based row number for identifier
// columns, a rounded float otherwise.
type Cell struct {
	Number  int64
	Value   float64
	IsIndex bool
}

// Normalize applies defaults and validates the spec.
func (s *Spec) Normalize() error {
	if s.NumRows == 0 {
		s.NumRows = 10
	}
	if s.NumRows < 1 || s.NumRows > MaxRows {
		return errmodel.Validation("bad_num_rows",
			fmt.Sprintf("num_rows must be between 1 and %d", MaxRows),
			map[string]any{"num_rows": s.NumRows})
	}
	if len(s.Columns) == 0 {
		s.Columns = append([]string(nil), DefaultColumns...)
	}
	if len(s.Columns) > MaxColumns {
		return errmodel.Validation("too_many_columns",
			fmt.Sprintf("at most %d columns are allowed", MaxColumns),
			map[string]any{"columns": len(s.Columns)})
	}
	for i, c := range s.Columns {
		if strings.TrimSpace(c) == "" {
			return errmodel.Validation("empty_column_name",
				"column names must not be empty",
				map[string]any{"index": i})
		}
	}
	if s.ValueMin == 0 && s.ValueMax == 0 {
		s.ValueMax = 100
	}
	if s.ValueMin > s.ValueMax {
		return errmodel.Validation("bad_value_range",
			"value_min must not exceed value_max",
			map[string]any{"value_min": s.ValueMin, "value_max": s.ValueMax})
	}
	return nil
}

// IsIndexColumn reports whether a column holds 1-based row numbers.
// The first column always does, as does any column named id/index/row.
func IsIndexColumn(pos int, name string) bool {
	if pos == 0 {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "id", "index", "row":
		return true
	}
	return false
}

// Generate builds a table from a normalized spec. rng must not be nil;
// identifier cells are deterministic regardless of rng.
func Generate(spec Spec, rng *rand.Rand) (Table, error) {
	if err := spec.Normalize(); err != nil {
		return Table{}, err
	}
	t := Table{Columns: spec.Columns, Rows: make([][]Cell, spec.NumRows)}
	for i := 0; i < spec.NumRows; i++ {
		row := make([]Cell, len(spec.Columns))
		for j, name := range spec.Columns {
			if IsIndexColumn(j, name) {
				row[j] = Cell{Number: int64(i + 1), IsIndex: true}
				continue
			}
			v := spec.ValueMin + rng.Float64()*(spec.ValueMax-spec.ValueMin)
			row[j] = Cell{Value: round2(v)}
		}
		t.Rows[i] = row
	}
	return t, nil
}

// Summary renders the one-line description reported alongside a table.
func (t Table) Summary() string {
	return fmt.Sprintf("Generated table with %d rows and %d columns", len(t.Rows), len(t.Columns))
}

// Records converts the table into one map per row, keyed by column name.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(row))
		for j, c := range row {
			if c.IsIndex {
				rec[t.Columns[j]] = c.Number
			} else {
				rec[t.Columns[j]] = c.Value
			}
		}
		out[i] = rec
	}
	return out
}

// EncodeCSV renders the table as CSV with a header row.
func (t Table) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j, c := range row {
			if c.IsIndex {
				record[j] = strconv.FormatInt(c.Number, 10)
			} else {
				record[j] = strconv.FormatFloat(c.Value, 'f', 2, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
