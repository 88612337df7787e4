package varlake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// -----------------------------------------------------------------------------
// Attribute names
// -----------------------------------------------------------------------------

// Builtin attribute columns every fragment carries.
const (
	attrSampleName = "sample_name"
	attrContig     = "contig"
	attrPosStart   = "pos_start"
	attrPosEnd     = "pos_end"
	attrAlleles    = "alleles"
	attrID         = "id"
	attrFilters    = "filters"
	attrQual       = "qual"
)

// Combination pseudo-attributes: JSON-encoded maps of a record's whole
// INFO or FORMAT payload.
const (
	attrInfoBlob = "info"
	attrFmtBlob  = "fmt"
)

// Namespacing for per-field attributes derived from headers.
const (
	infoPrefix = "info_"
	fmtPrefix  = "fmt_"
)

// builtinAttributes in canonical column order. This is also the default
// attribute selection when a query names none.
var builtinAttributes = []string{
	attrSampleName, attrContig, attrPosStart, attrPosEnd,
	attrAlleles, attrID, attrFilters, attrQual,
}

// -----------------------------------------------------------------------------
// Fragment schema
// -----------------------------------------------------------------------------

// ErrFragmentInvalid indicates fragment data that does not decode.
var ErrFragmentInvalid = errors.New("invalid fragment")

// columnType enumerates the value kinds fragments store.
type columnType int

const (
	colInt32 columnType = iota
	colInt64
	colFloat32
	colBool
	colString
)

// fragmentColumn defines a single fragment schema column.
type fragmentColumn struct {
	name     string
	typ      columnType
	nullable bool
}

// fragmentSchema is the column layout derived from a manifest: the
// builtins, one optional column per materializable INFO/FORMAT field, and
// the two pseudo-attribute blobs.
type fragmentSchema struct {
	columns map[string]fragmentColumn
	pq      *parquet.Schema
	order   []string // column order as the parquet schema sorts it
}

// newFragmentSchema builds the layout for a dataset manifest. Field
// declarations with arity "1" get native types; multi-valued fields stay
// textual.
func newFragmentSchema(m *Manifest) *fragmentSchema {
	cols := []fragmentColumn{
		{attrSampleName, colString, false},
		{attrContig, colString, false},
		{attrPosStart, colInt64, false},
		{attrPosEnd, colInt64, false},
		{attrAlleles, colString, false},
		{attrID, colString, true},
		{attrFilters, colString, true},
		{attrQual, colFloat32, true},
		{attrInfoBlob, colString, true},
		{attrFmtBlob, colString, true},
	}
	for _, f := range m.InfoFields {
		cols = append(cols, fragmentColumn{infoPrefix + f.Name, fieldColumnType(f), true})
	}
	for _, f := range m.FormatFields {
		cols = append(cols, fragmentColumn{fmtPrefix + f.Name, fieldColumnType(f), true})
	}

	s := &fragmentSchema{columns: make(map[string]fragmentColumn, len(cols))}
	group := make(parquet.Group, len(cols))
	for _, c := range cols {
		s.columns[c.name] = c
		group[c.name] = columnNode(c)
	}
	s.pq = parquet.NewSchema("fragment", group)

	// Group fields come back sorted by name; row building follows that
	// order, not declaration order.
	s.order = make([]string, len(s.pq.Fields()))
	for i, f := range s.pq.Fields() {
		s.order[i] = f.Name()
	}
	return s
}

func fieldColumnType(f FieldDescriptor) columnType {
	if f.Number != "1" {
		if f.Type == "Flag" {
			return colBool
		}
		return colString
	}
	switch f.Type {
	case "Integer":
		return colInt32
	case "Float":
		return colFloat32
	case "Flag":
		return colBool
	default:
		return colString
	}
}

func columnNode(c fragmentColumn) parquet.Node {
	var node parquet.Node
	switch c.typ {
	case colInt32:
		node = parquet.Int(32)
	case colInt64:
		node = parquet.Int(64)
	case colFloat32:
		node = parquet.Leaf(parquet.FloatType)
	case colBool:
		node = parquet.Leaf(parquet.BooleanType)
	default:
		node = parquet.String()
	}
	if c.nullable {
		node = parquet.Optional(node)
	}
	return node
}

// -----------------------------------------------------------------------------
// Encode
// -----------------------------------------------------------------------------

// encodeFragment writes rows (maps keyed by column name) as a parquet
// object with snappy-compressed pages.
func (s *fragmentSchema) encodeFragment(rows []map[string]any) ([]byte, error) {
	rowBuf := parquet.NewBuffer(s.pq)
	for i, rec := range rows {
		row, err := s.recordToRow(rec, i)
		if err != nil {
			return nil, err
		}
		if _, err := rowBuf.WriteRows([]parquet.Row{row}); err != nil {
			return nil, fmt.Errorf("varlake: fragment write row %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, s.pq, parquet.Compression(&parquet.Snappy))
	if _, err := w.WriteRowGroup(rowBuf); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("varlake: fragment write row group: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("varlake: fragment close writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *fragmentSchema) recordToRow(rec map[string]any, index int) (parquet.Row, error) {
	row := make(parquet.Row, len(s.order))
	for i, name := range s.order {
		col := s.columns[name]

		val, exists := rec[name]
		if !exists || val == nil {
			if !col.nullable {
				return nil, fmt.Errorf("varlake: fragment row %d missing required column %q: %w", index, name, ErrInvalidArgument)
			}
			row[i] = parquet.NullValue().Level(0, 0, i)
			continue
		}

		pqVal, err := col.toValue(val)
		if err != nil {
			return nil, fmt.Errorf("varlake: fragment row %d column %q: %w", index, name, err)
		}
		defLevel := 1
		if !col.nullable {
			defLevel = 0
		}
		row[i] = pqVal.Level(0, defLevel, i)
	}
	return row, nil
}

func (c fragmentColumn) toValue(val any) (parquet.Value, error) {
	switch c.typ {
	case colInt32:
		switch v := val.(type) {
		case int32:
			return parquet.Int32Value(v), nil
		case int:
			if v < -1<<31 || v > 1<<31-1 {
				return parquet.Value{}, fmt.Errorf("value %d overflows int32: %w", v, ErrInvalidArgument)
			}
			return parquet.Int32Value(int32(v)), nil
		}
	case colInt64:
		switch v := val.(type) {
		case int64:
			return parquet.Int64Value(v), nil
		case int:
			return parquet.Int64Value(int64(v)), nil
		case uint32:
			return parquet.Int64Value(int64(v)), nil
		}
	case colFloat32:
		switch v := val.(type) {
		case float32:
			return parquet.FloatValue(v), nil
		case float64:
			return parquet.FloatValue(float32(v)), nil
		}
	case colBool:
		if v, ok := val.(bool); ok {
			return parquet.BooleanValue(v), nil
		}
	case colString:
		if v, ok := val.(string); ok {
			return parquet.ByteArrayValue([]byte(v)), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("unsupported value type %T: %w", val, ErrInvalidArgument)
}

// -----------------------------------------------------------------------------
// Decode
// -----------------------------------------------------------------------------

// decodeFragment reads a fragment object back into rows. The layout comes
// from the file itself, so fragments written before later ingests widened
// the dataset schema still decode; absent columns read as missing keys.
func decodeFragment(data []byte) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, ErrFragmentInvalid
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFragmentInvalid
		}
		return nil, fmt.Errorf("%w: %w", ErrFragmentInvalid, err)
	}

	fields := file.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}

	numRows := file.NumRows()
	if numRows == 0 {
		return nil, nil
	}

	reader := parquet.NewReader(file)
	defer closer(reader)()

	records := make([]map[string]any, 0, numRows)
	rows := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(rows)
		for i := 0; i < n; i++ {
			records = append(records, rowToRecord(names, rows[i]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read rows: %w", ErrFragmentInvalid, err)
		}
	}
	return records, nil
}

func rowToRecord(names []string, row parquet.Row) map[string]any {
	rec := make(map[string]any, len(names))
	for i, name := range names {
		if i >= len(row) {
			continue
		}
		val := row[i]
		if val.IsNull() {
			continue
		}
		switch val.Kind() {
		case parquet.Boolean:
			rec[name] = val.Boolean()
		case parquet.Int32:
			rec[name] = val.Int32()
		case parquet.Int64:
			rec[name] = val.Int64()
		case parquet.Float:
			rec[name] = val.Float()
		case parquet.Double:
			rec[name] = val.Double()
		case parquet.ByteArray:
			rec[name] = string(val.ByteArray())
		}
	}
	return rec
}

// -----------------------------------------------------------------------------
// Paths
// -----------------------------------------------------------------------------

func fragmentPath(id string) string {
	return path.Join(fragmentsDir, id+".parquet")
}

// sortedFieldNames returns descriptor names sorted, for stable attribute
// listings.
func sortedFieldNames(fields []FieldDescriptor, prefix string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = prefix + f.Name
	}
	sort.Strings(out)
	return out
}
