package varlake

import (
	"errors"
	"sort"
	"testing"
)

func fragmentTestManifest() *Manifest {
	return &Manifest{
		SchemaName:    manifestSchemaName,
		FormatVersion: formatVersionCurrent,
		TileCapacity:  defaultTileCapacity,
		AnchorGap:     defaultAnchorGap,
		Checksum:      ChecksumNone,
		InfoFields: []FieldDescriptor{
			{Name: "AF", Type: "Float", Number: "A"},
			{Name: "DB", Type: "Flag", Number: "0"},
			{Name: "DP", Type: "Integer", Number: "1"},
		},
		FormatFields: []FieldDescriptor{
			{Name: "GQ", Type: "Integer", Number: "1"},
			{Name: "GT", Type: "String", Number: "1"},
		},
	}
}

func TestFragment_EncodeDecodeRoundtrip(t *testing.T) {
	schema := newFragmentSchema(fragmentTestManifest())

	rows := []map[string]any{
		{
			attrSampleName: "alice",
			attrContig:     "chr1",
			attrPosStart:   int64(100),
			attrPosEnd:     int64(101),
			attrAlleles:    "A,T",
			attrID:         "rs42",
			attrFilters:    "PASS",
			attrQual:       float32(33.5),
			attrInfoBlob:   `{"DP":12}`,
			attrFmtBlob:    `{"GT":"0/1"}`,
			"info_DP":      12,
			"info_AF":      "0.5,0.25",
			"info_DB":      true,
			"fmt_GQ":       99,
			"fmt_GT":       "0/1",
		},
		{
			attrSampleName: "bob",
			attrContig:     "chr2",
			attrPosStart:   int64(5),
			attrPosEnd:     int64(8),
			attrAlleles:    "G,C",
		},
	}

	data, err := schema.encodeFragment(rows)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := decodeFragment(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("decoded %d rows, want 2", len(got))
	}

	first := got[0]
	want := map[string]any{
		attrSampleName: "alice",
		attrPosStart:   int64(100),
		attrQual:       float32(33.5),
		"info_DP":      int32(12),
		"info_AF":      "0.5,0.25",
		"info_DB":      true,
		"fmt_GQ":       int32(99),
		"fmt_GT":       "0/1",
	}
	for name, v := range want {
		if first[name] != v {
			t.Errorf("row 0 %s = %v (%T), want %v (%T)", name, first[name], first[name], v, v)
		}
	}

	second := got[1]
	if second[attrSampleName] != "bob" {
		t.Errorf("row 1 sample_name = %v, want bob", second[attrSampleName])
	}
	for _, name := range []string{attrID, attrQual, "info_DP", "fmt_GT"} {
		if _, exists := second[name]; exists {
			t.Errorf("row 1 unexpectedly has %s = %v", name, second[name])
		}
	}
}

func TestFragment_EncodeMissingRequiredColumn(t *testing.T) {
	schema := newFragmentSchema(fragmentTestManifest())

	_, err := schema.encodeFragment([]map[string]any{
		{
			attrSampleName: "alice",
			attrPosStart:   int64(100),
			attrPosEnd:     int64(101),
			attrAlleles:    "A,T",
			// contig absent
		},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got: %v", err)
	}
}

func TestFragment_EncodeRejectsWrongType(t *testing.T) {
	schema := newFragmentSchema(fragmentTestManifest())

	_, err := schema.encodeFragment([]map[string]any{
		{
			attrSampleName: "alice",
			attrContig:     "chr1",
			attrPosStart:   "not a number",
			attrPosEnd:     int64(101),
			attrAlleles:    "A,T",
		},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got: %v", err)
	}
}

func TestFragment_DecodeGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {}, []byte("not parquet at all")} {
		if _, err := decodeFragment(data); !errors.Is(err, ErrFragmentInvalid) {
			t.Errorf("decode of %d bytes: expected ErrFragmentInvalid, got: %v", len(data), err)
		}
	}
}

func TestFragmentSchema_TypedColumns(t *testing.T) {
	schema := newFragmentSchema(fragmentTestManifest())

	cases := []struct {
		name string
		typ  columnType
	}{
		{"info_DP", colInt32},   // Integer, arity 1
		{"info_AF", colString},  // Float but multi-valued
		{"info_DB", colBool},    // Flag
		{"fmt_GQ", colInt32},
		{attrPosStart, colInt64},
		{attrQual, colFloat32},
		{attrAlleles, colString},
	}
	for _, tc := range cases {
		col, ok := schema.columns[tc.name]
		if !ok {
			t.Errorf("column %s missing from schema", tc.name)
			continue
		}
		if col.typ != tc.typ {
			t.Errorf("column %s type = %d, want %d", tc.name, col.typ, tc.typ)
		}
	}

	if !sort.StringsAreSorted(schema.order) {
		t.Errorf("schema order not sorted: %v", schema.order)
	}
}

func TestSortedFieldNames(t *testing.T) {
	fields := []FieldDescriptor{
		{Name: "GT"}, {Name: "AD"}, {Name: "GQ"},
	}
	got := sortedFieldNames(fields, fmtPrefix)
	want := []string{"fmt_AD", "fmt_GQ", "fmt_GT"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
