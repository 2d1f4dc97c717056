// Package csvquery runs read-only SQL over a CSV document by loading it
// into an in-memory SQLite database as table df.
package csvquery

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/seqgpt/helper-mcp/pkg/errmodel"
)

// TableName is the SQL name the loaded CSV is exposed as.
const TableName = "df"

// Limits on query inputs and outputs.
const (
	MaxInputBytes  = 32 << 20
	MaxResultRows  = 10000
	maxColumnCount = 256
)

// Result holds query output with positional rows materialized as maps.
type Result struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Query loads the CSV from r and executes query against it.
// Only a single SELECT statement is accepted.
func Query(ctx context.Context, r io.Reader, query string) (Result, error) {
	stmt, err := validateSelect(query)
	if err != nil {
		return Result{}, err
	}
	header, records, err := readCSV(r)
	if err != nil {
		return Result{}, err
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return Result{}, errmodel.System("sqlite_open", err.Error(), nil)
	}
	defer db.Close()
	// The in-memory database lives and dies with this single connection.
	db.SetMaxOpenConns(1)

	if err := loadTable(ctx, db, header, records); err != nil {
		return Result{}, err
	}
	return runSelect(ctx, db, stmt)
}

func validateSelect(query string) (string, error) {
	stmt := strings.TrimSpace(query)
	stmt = strings.TrimSuffix(stmt, ";")
	if stmt == "" {
		return "", errmodel.Query("empty_sql", "sql query is required", nil)
	}
	if strings.Contains(stmt, ";") {
		return "", errmodel.Query("multiple_statements", "only a single SQL statement is allowed", nil)
	}
	first := strings.ToUpper(firstToken(stmt))
	if first != "SELECT" {
		return "", errmodel.Query("not_select", "only SELECT statements are allowed",
			map[string]any{"statement": first})
	}
	return stmt, nil
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	limited := &io.LimitedReader{R: r, N: MaxInputBytes + 1}
	reader := csv.NewReader(limited)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, errmodel.Validation("bad_csv", fmt.Sprintf("parse csv: %v", err), nil)
	}
	if limited.N <= 0 {
		return nil, nil, errmodel.Validation("csv_too_large",
			fmt.Sprintf("csv input exceeds %d bytes", MaxInputBytes), nil)
	}
	if len(records) == 0 {
		return nil, nil, errmodel.Validation("empty_csv", "csv has no header row", nil)
	}
	header := records[0]
	if len(header) == 0 || len(header) > maxColumnCount {
		return nil, nil, errmodel.Validation("bad_csv_header",
			fmt.Sprintf("csv must have between 1 and %d columns", maxColumnCount), nil)
	}
	return header, records[1:], nil
}

// columnIsNumeric reports whether every non-empty value in column j parses
// as a float. Such columns are created as REAL so numeric SQL works.
func columnIsNumeric(records [][]string, j int) bool {
	seen := false
	for _, rec := range records {
		if j >= len(rec) || rec[j] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(rec[j], 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func loadTable(ctx context.Context, db *sql.DB, header []string, records [][]string) error {
	numeric := make([]bool, len(header))
	cols := make([]string, len(header))
	for j, name := range header {
		numeric[j] = columnIsNumeric(records, j)
		typ := "TEXT"
		if numeric[j] {
			typ = "REAL"
		}
		cols[j] = quoteIdent(name) + " " + typ
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return errmodel.System("sqlite_create", err.Error(), nil)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", TableName, placeholders)
	stmt, err := db.PrepareContext(ctx, insert)
	if err != nil {
		return errmodel.System("sqlite_prepare", err.Error(), nil)
	}
	defer stmt.Close()

	args := make([]any, len(header))
	for _, rec := range records {
		for j := range header {
			switch {
			case j >= len(rec) || rec[j] == "":
				args[j] = nil
			case numeric[j]:
				v, _ := strconv.ParseFloat(rec[j], 64)
				args[j] = v
			default:
				args[j] = rec[j]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errmodel.System("sqlite_insert", err.Error(), nil)
		}
	}
	return nil
}

func runSelect(ctx context.Context, db *sql.DB, stmt string) (Result, error) {
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, errmodel.Query("invalid_sql", err.Error(), nil)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, errmodel.Query("invalid_sql", err.Error(), nil)
	}
	res := Result{Columns: cols, Rows: []map[string]any{}}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if len(res.Rows) >= MaxResultRows {
			return Result{}, errmodel.Query("result_too_large",
				fmt.Sprintf("query returned more than %d rows", MaxResultRows), nil)
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, errmodel.Query("scan_failed", err.Error(), nil)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return Result{}, errmodel.Query("invalid_sql", err.Error(), nil)
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
