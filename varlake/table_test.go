package varlake

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewTable_Valid(t *testing.T) {
	table, err := NewTable([]Column{
		{Name: "contig", Values: []any{"chr1", "chr1", "chr2"}},
		{Name: "pos_start", Values: []any{int64(100), int64(200), int64(50)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if table.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", table.NumRows())
	}
	if table.NumColumns() != 2 {
		t.Errorf("NumColumns = %d, want 2", table.NumColumns())
	}
	if names := table.ColumnNames(); !reflect.DeepEqual(names, []string{"contig", "pos_start"}) {
		t.Errorf("ColumnNames = %v", names)
	}

	col, ok := table.Column("pos_start")
	if !ok {
		t.Fatal("pos_start column missing")
	}
	if col.Values[2] != int64(50) {
		t.Errorf("pos_start[2] = %v, want 50", col.Values[2])
	}

	row := table.Row(1)
	if row["contig"] != "chr1" || row["pos_start"] != int64(200) {
		t.Errorf("Row(1) = %v", row)
	}
}

func TestNewTable_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		columns []Column
	}{
		{"unnamed column", []Column{{Name: "", Values: []any{1}}}},
		{"duplicate column", []Column{
			{Name: "contig", Values: []any{"chr1"}},
			{Name: "contig", Values: []any{"chr2"}},
		}},
		{"ragged lengths", []Column{
			{Name: "contig", Values: []any{"chr1", "chr2"}},
			{Name: "pos_start", Values: []any{int64(1)}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTable(tc.columns); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got: %v", err)
			}
		})
	}
}

func TestTable_EmptyBatch(t *testing.T) {
	var zero Table
	if zero.NumRows() != 0 {
		t.Errorf("zero table NumRows = %d", zero.NumRows())
	}
	if zero.NumColumns() != 0 {
		t.Errorf("zero table NumColumns = %d", zero.NumColumns())
	}
	if _, ok := zero.Column("contig"); ok {
		t.Error("zero table resolved a column")
	}
}

func TestTable_ColumnMissing(t *testing.T) {
	table, err := NewTable([]Column{{Name: "qual", Values: []any{float32(10)}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.Column("alleles"); ok {
		t.Error("missing column resolved")
	}
}
