package csvquery

import (
	"context"
	"strings"
	"testing"

	"github.com/seqgpt/helper-mcp/pkg/errmodel"
)

const sampleCSV = `ID,Name,Value
1,alpha,10.5
2,beta,20
3,gamma,7.25
4,delta,20
5,epsilon,1.75
`

func TestQuerySelectAll(t *testing.T) {
	res, err := Query(context.Background(), strings.NewReader(sampleCSV), "SELECT * FROM df LIMIT 3")
	if err != nil {
		t.Fatal(err)
	}
	if res.RowCount != 3 {
		t.Fatalf("row_count=%d want 3", res.RowCount)
	}
	if len(res.Columns) != 3 || res.Columns[1] != "Name" {
		t.Fatalf("columns=%v", res.Columns)
	}
	if res.Rows[0]["Name"] != "alpha" {
		t.Fatalf("row0=%v", res.Rows[0])
	}
	if v, ok := res.Rows[0]["Value"].(float64); !ok || v != 10.5 {
		t.Fatalf("Value=%v (%T)", res.Rows[0]["Value"], res.Rows[0]["Value"])
	}
}

func TestQueryAggregation(t *testing.T) {
	res, err := Query(context.Background(), strings.NewReader(sampleCSV),
		`SELECT COUNT(*) AS n, SUM(Value) AS total FROM df WHERE Value >= 10`)
	if err != nil {
		t.Fatal(err)
	}
	if res.RowCount != 1 {
		t.Fatalf("row_count=%d", res.RowCount)
	}
	row := res.Rows[0]
	if n, ok := row["n"].(int64); !ok || n != 3 {
		t.Fatalf("n=%v (%T)", row["n"], row["n"])
	}
	if total, ok := row["total"].(float64); !ok || total != 50.5 {
		t.Fatalf("total=%v", row["total"])
	}
}

func TestQueryQuotedColumnNames(t *testing.T) {
	csvData := "ID,Value A\n1,2.5\n2,3.5\n"
	res, err := Query(context.Background(), strings.NewReader(csvData),
		`SELECT "Value A" FROM df ORDER BY "Value A" DESC`)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows[0]["Value A"] != 3.5 {
		t.Fatalf("rows=%v", res.Rows)
	}
}

func TestQueryTrailingSemicolonAllowed(t *testing.T) {
	if _, err := Query(context.Background(), strings.NewReader(sampleCSV), "SELECT * FROM df;"); err != nil {
		t.Fatal(err)
	}
}

func TestQueryRejections(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		code string
	}{
		{"empty", "   ", "empty_sql"},
		{"update", "UPDATE df SET Value = 0", "not_select"},
		{"delete", "delete from df", "not_select"},
		{"drop", "DROP TABLE df", "not_select"},
		{"multi", "SELECT 1; SELECT 2", "multiple_statements"},
		{"bad sql", "SELECT missing_column FROM df", "invalid_sql"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Query(context.Background(), strings.NewReader(sampleCSV), tc.sql)
			ce := errmodel.From(err)
			if ce == nil || ce.Code != tc.code {
				t.Fatalf("err=%v want code %s", err, tc.code)
			}
		})
	}
}

func TestQueryEmptyCSV(t *testing.T) {
	_, err := Query(context.Background(), strings.NewReader(""), "SELECT 1")
	ce := errmodel.From(err)
	if ce == nil || ce.Code != "empty_csv" {
		t.Fatalf("err=%v", err)
	}
}

func TestQueryTextColumnStaysText(t *testing.T) {
	csvData := "ID,Code\n1,007\n2,X12\n"
	res, err := Query(context.Background(), strings.NewReader(csvData), "SELECT Code FROM df ORDER BY ID")
	if err != nil {
		t.Fatal(err)
	}
	// Code mixes numeric-looking and alphanumeric values, so it must load
	// as TEXT and keep leading zeros.
	if res.Rows[0]["Code"] != "007" {
		t.Fatalf("Code=%v", res.Rows[0]["Code"])
	}
}

func TestQueryEmptyCellsAreNull(t *testing.T) {
	csvData := "ID,Value\n1,\n2,5\n"
	res, err := Query(context.Background(), strings.NewReader(csvData),
		"SELECT COUNT(*) AS n FROM df WHERE Value IS NULL")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := res.Rows[0]["n"].(int64); n != 1 {
		t.Fatalf("n=%v", res.Rows[0]["n"])
	}
}
