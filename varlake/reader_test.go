package varlake

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// -----------------------------------------------------------------------------
// Scripted engine double
// -----------------------------------------------------------------------------

// scriptedReadEngine is a ReadEngine double. Units are scripted as row
// counts served in order; every call is recorded for order assertions.
type scriptedReadEngine struct {
	units []int
	unit  int

	calls     []string
	attrs     []string
	completed bool
	resultNum uint64
	results   *Table
	closed    bool

	// neverComplete keeps Completed false no matter how many units ran.
	neverComplete bool

	readErr error

	queryable   []string
	infoAttrs   []string
	formatAttrs []string
	samples     []string
	version     int
	statsJSON   string
}

func (e *scriptedReadEngine) record(format string, args ...any) {
	e.calls = append(e.calls, fmt.Sprintf(format, args...))
}

func (e *scriptedReadEngine) Reset() error {
	e.record("Reset")
	e.unit = 0
	e.completed = false
	e.results = nil
	e.resultNum = 0
	e.attrs = nil
	return nil
}

func (e *scriptedReadEngine) SetMaxRecords(limit uint64) error {
	e.record("SetMaxRecords(%d)", limit)
	return nil
}

func (e *scriptedReadEngine) SetRegionPartition(index, count int) error {
	e.record("SetRegionPartition(%d,%d)", index, count)
	return nil
}

func (e *scriptedReadEngine) SetSamplePartition(index, count int) error {
	e.record("SetSamplePartition(%d,%d)", index, count)
	return nil
}

func (e *scriptedReadEngine) SetSortRegions(sort bool) error {
	e.record("SetSortRegions(%t)", sort)
	return nil
}

func (e *scriptedReadEngine) SetMemoryBudgetMB(mb int) error {
	e.record("SetMemoryBudgetMB(%d)", mb)
	return nil
}

func (e *scriptedReadEngine) SetConfig(csv string) error {
	e.record("SetConfig(%s)", csv)
	return nil
}

func (e *scriptedReadEngine) SetSamples(csv string) error {
	e.record("SetSamples(%s)", csv)
	return nil
}

func (e *scriptedReadEngine) SetSamplesFile(uri string) error {
	e.record("SetSamplesFile(%s)", uri)
	return nil
}

func (e *scriptedReadEngine) SetRegions(csv string) error {
	e.record("SetRegions(%s)", csv)
	return nil
}

func (e *scriptedReadEngine) SetBEDFile(uri string) error {
	e.record("SetBEDFile(%s)", uri)
	return nil
}

func (e *scriptedReadEngine) SetAttributes(names []string) error {
	e.record("SetAttributes")
	e.attrs = append([]string(nil), names...)
	return nil
}

func (e *scriptedReadEngine) Read(context.Context) error {
	e.record("Read")
	if e.readErr != nil {
		return e.readErr
	}
	if e.unit < len(e.units) {
		n := e.units[e.unit]
		e.unit++
		e.resultNum = uint64(n)
		e.results = unitTable(n)
	} else {
		e.resultNum = 0
		e.results = &Table{}
	}
	e.completed = e.unit >= len(e.units) && !e.neverComplete
	return nil
}

func (e *scriptedReadEngine) Results() (*Table, error) {
	if e.results == nil {
		return nil, ErrInconsistentState
	}
	return e.results, nil
}

func (e *scriptedReadEngine) Completed() bool { return e.completed }

func (e *scriptedReadEngine) ResultCount() uint64 { return e.resultNum }

func (e *scriptedReadEngine) QueryableAttributes(context.Context) ([]string, error) {
	return e.queryable, nil
}

func (e *scriptedReadEngine) InfoAttributes(context.Context) ([]string, error) {
	return e.infoAttrs, nil
}

func (e *scriptedReadEngine) FormatAttributes(context.Context) ([]string, error) {
	return e.formatAttrs, nil
}

func (e *scriptedReadEngine) SampleNames(context.Context) ([]string, error) {
	return e.samples, nil
}

func (e *scriptedReadEngine) SampleCount(context.Context) (int, error) {
	return len(e.samples), nil
}

func (e *scriptedReadEngine) FormatVersion(context.Context) (int, error) {
	return e.version, nil
}

func (e *scriptedReadEngine) SetStatsEnabled(bool) {}

func (e *scriptedReadEngine) Stats() (string, error) { return e.statsJSON, nil }

func (e *scriptedReadEngine) SetVerbose(bool) {}

func (e *scriptedReadEngine) Close() error {
	e.closed = true
	return nil
}

// unitTable builds a single-column batch of n rows.
func unitTable(n int) *Table {
	values := make([]any, n)
	for i := range values {
		values[i] = int64(i)
	}
	t, err := NewTable([]Column{{Name: "pos_start", Values: values}})
	if err != nil {
		panic(err)
	}
	return t
}

func newScriptedSession(t *testing.T, engine ReadEngine) *ReadSession {
	t.Helper()
	session, err := NewReadSession("scripted", WithReadEngine(engine))
	if err != nil {
		t.Fatal(err)
	}
	return session
}

// -----------------------------------------------------------------------------
// Read protocol
// -----------------------------------------------------------------------------

func TestReadSession_Read_CallSequence(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{3}}
	session := newScriptedSession(t, engine)

	_, err := session.Read(ctx, Query{
		Attributes: []string{"contig", "pos_start"},
		Samples:    []string{"alice", "bob"},
		Regions:    []string{"chr1:100-200", "chr2"},
		BEDFile:    "extra.bed",
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{
		"Reset",
		"SetSamples(alice,bob)",
		"SetRegions(chr1:100-200,chr2)",
		"SetAttributes",
		"SetBEDFile(extra.bed)",
		"Read",
	}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

func TestReadSession_Read_SamplesFileSelection(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{1}}
	session := newScriptedSession(t, engine)

	_, err := session.Read(ctx, Query{SamplesFile: "names.txt"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{
		"Reset",
		"SetSamples()",
		"SetSamplesFile(names.txt)",
		"SetAttributes",
		"Read",
	}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

func TestReadSession_Read_ConflictingSelection(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{1}}
	session := newScriptedSession(t, engine)

	_, err := session.Read(ctx, Query{
		Samples:     []string{"alice"},
		SamplesFile: "names.txt",
	})
	if !errors.Is(err, ErrConflictingSelection) {
		t.Fatalf("expected ErrConflictingSelection, got: %v", err)
	}

	// The engine is left reset, with no selection applied.
	want := []string{"Reset"}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

func TestReadSession_Read_DefaultAttributes(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{1}}
	session := newScriptedSession(t, engine)

	if _, err := session.Read(ctx, Query{}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(engine.attrs, builtinAttributes) {
		t.Errorf("attributes = %v, want builtin set %v", engine.attrs, builtinAttributes)
	}
}

func TestReadSession_ChunkedRead(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{4, 4, 2}}
	session := newScriptedSession(t, engine)

	batch, err := session.Read(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if batch.NumRows() != 4 {
		t.Errorf("first batch rows = %d, want 4", batch.NumRows())
	}
	if session.Completed() {
		t.Error("completed after first batch")
	}

	batch, err = session.ContinueRead(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if batch.NumRows() != 4 {
		t.Errorf("second batch rows = %d, want 4", batch.NumRows())
	}
	if session.Completed() {
		t.Error("completed after second batch")
	}

	batch, err = session.ContinueRead(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if batch.NumRows() != 2 {
		t.Errorf("third batch rows = %d, want 2", batch.NumRows())
	}
	if !session.Completed() {
		t.Error("not completed after final batch")
	}
}

func TestReadSession_Read_RestartsAfterCompletion(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{2, 1}}
	session := newScriptedSession(t, engine)

	if _, err := session.Read(ctx, Query{}); err != nil {
		t.Fatal(err)
	}
	if _, err := session.ContinueRead(ctx); err != nil {
		t.Fatal(err)
	}
	if !session.Completed() {
		t.Fatal("expected completion")
	}

	// A new Read resets and serves the script from the top.
	batch, err := session.Read(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if batch.NumRows() != 2 {
		t.Errorf("restarted batch rows = %d, want 2", batch.NumRows())
	}
	if session.Completed() {
		t.Error("completed right after restart")
	}
}

// -----------------------------------------------------------------------------
// Batch iterator
// -----------------------------------------------------------------------------

func TestBatchIterator_YieldsAllBatches(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{4, 4, 2}}
	session := newScriptedSession(t, engine)

	var sizes []int
	it := session.Batches(ctx, Query{})
	for it.Next() {
		sizes = append(sizes, it.Batch().NumRows())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator failed: %v", err)
	}
	if !reflect.DeepEqual(sizes, []int{4, 4, 2}) {
		t.Errorf("batch sizes = %v, want [4 4 2]", sizes)
	}
}

func TestBatchIterator_SecondIterationYieldsNothing(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{4, 4, 2}}
	session := newScriptedSession(t, engine)

	first := session.Batches(ctx, Query{})
	n := 0
	for first.Next() {
		n++
	}
	if n != 3 {
		t.Fatalf("first iteration yielded %d batches, want 3", n)
	}

	second := session.Batches(ctx, Query{})
	for second.Next() {
		t.Fatal("second iteration yielded a batch")
	}
	if err := second.Err(); err != nil {
		t.Errorf("second iteration error: %v", err)
	}
}

func TestBatchIterator_SurfacesError(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{readErr: errors.New("storage gone")}
	session := newScriptedSession(t, engine)

	it := session.Batches(ctx, Query{})
	if it.Next() {
		t.Fatal("Next succeeded despite engine error")
	}
	if it.Err() == nil {
		t.Fatal("expected terminal error")
	}
	if it.Batch() != nil {
		t.Error("batch not cleared on error")
	}
}

// -----------------------------------------------------------------------------
// Count
// -----------------------------------------------------------------------------

func TestReadSession_Count(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{7}}
	session := newScriptedSession(t, engine)

	n, err := session.Count(ctx, CountQuery{
		Samples: []string{"alice"},
		Regions: []string{"chr1:1-1000"},
	})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}

	// Count never selects attributes; the scan stays count-only.
	want := []string{
		"Reset",
		"SetSamples(alice)",
		"SetRegions(chr1:1-1000)",
		"Read",
	}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

func TestReadSession_Count_IncompleteUnit(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{units: []int{7}, neverComplete: true}
	session := newScriptedSession(t, engine)

	_, err := session.Count(ctx, CountQuery{})
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Metadata and lifecycle
// -----------------------------------------------------------------------------

func TestReadSession_MetadataForwards(t *testing.T) {
	ctx := context.Background()
	engine := &scriptedReadEngine{
		samples:   []string{"alice", "bob"},
		version:   2,
		statsJSON: `{"read_units":1}`,
	}
	session := newScriptedSession(t, engine)

	samples, err := session.Samples(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(samples, []string{"alice", "bob"}) {
		t.Errorf("samples = %v", samples)
	}

	n, err := session.SampleCount(ctx)
	if err != nil || n != 2 {
		t.Errorf("sample count = %d, %v; want 2, nil", n, err)
	}

	version, err := session.FormatVersion(ctx)
	if err != nil || version != 2 {
		t.Errorf("format version = %d, %v; want 2, nil", version, err)
	}

	stats, err := session.Stats()
	if err != nil || stats != `{"read_units":1}` {
		t.Errorf("stats = %q, %v", stats, err)
	}
}

func TestReadSession_CloseForwards(t *testing.T) {
	engine := &scriptedReadEngine{}
	session := newScriptedSession(t, engine)

	if err := session.Close(); err != nil {
		t.Fatal(err)
	}
	if !engine.closed {
		t.Error("engine not closed")
	}
}
