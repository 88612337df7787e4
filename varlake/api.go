// Package varlake provides sessioned access to columnar variant-call
// datasets: paginated read queries, dataset creation, and bulk sample
// ingestion over pluggable object storage.
//
// Varlake focuses on orchestration: translating caller configuration into
// engine settings, enforcing the read/write session split, and exposing a
// pagination protocol in which the engine is the sole authority on
// completion. It does not interpret variant semantics beyond what
// filtering and ingestion require.
package varlake

import (
	"context"
	"fmt"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// AttributeClass selects which group of queryable attributes to list.
type AttributeClass string

const (
	// ClassAll lists every concretely queryable attribute.
	ClassAll AttributeClass = "all"

	// ClassInfo lists the dataset's INFO-derived attributes.
	ClassInfo AttributeClass = "info"

	// ClassFormat lists the dataset's FORMAT-derived attributes.
	ClassFormat AttributeClass = "fmt"

	// ClassBuiltin lists the fixed attributes every dataset carries.
	ClassBuiltin AttributeClass = "builtin"
)

// ChecksumKind names the integrity algorithm applied to fragment data.
type ChecksumKind string

const (
	ChecksumSHA256 ChecksumKind = "sha256"
	ChecksumMD5    ChecksumKind = "md5"
	ChecksumNone   ChecksumKind = "none"
)

// Partition selects one shard of a partitioned scan: shard Index out of
// Count total shards. Index and Count are jointly supplied by
// construction; a zero-value Partition is not valid.
type Partition struct {
	Index int
	Count int
}

func (p Partition) validate() error {
	if p.Count <= 0 || p.Index < 0 || p.Index >= p.Count {
		return fmt.Errorf("varlake: partition %d/%d out of range: %w", p.Index, p.Count, ErrInvalidArgument)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Result tables
// -----------------------------------------------------------------------------

// Column is one named column of a result batch. Values use the kinds the
// fragment codec produces: int32, int64, float32, float64, string, bool,
// []byte. A missing cell is a nil element.
type Column struct {
	Name   string
	Values []any
}

// Table is one columnar result batch. Batches from consecutive read units
// of the same query share a column layout.
type Table struct {
	columns []Column
	byName  map[string]int
}

// NewTable assembles a batch from columns, which must share a length.
func NewTable(columns []Column) (*Table, error) {
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("varlake: column %d has no name: %w", i, ErrInvalidArgument)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("varlake: duplicate column %q: %w", c.Name, ErrInvalidArgument)
		}
		if len(c.Values) != len(columns[0].Values) {
			return nil, fmt.Errorf("varlake: column %q length mismatch: %w", c.Name, ErrInvalidArgument)
		}
		byName[c.Name] = i
	}
	return &Table{columns: columns, byName: byName}, nil
}

// NumRows returns the number of rows in the batch.
func (t *Table) NumRows() int {
	if t == nil || len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// NumColumns returns the number of columns in the batch.
func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnNames returns the column names in layout order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

// Row materializes row i as a name → value map.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// -----------------------------------------------------------------------------
// Engine handles
// -----------------------------------------------------------------------------

// ReadEngine is the storage engine handle a ReadSession drives.
//
// A handle is stateful: configuration and selection calls stage state that
// the next Read consumes. Read executes one bounded unit of the query and
// buffers its results; Completed reports whether the full result set has
// been produced and is the only authority on termination. Engines that
// hold resources may additionally implement io.Closer.
type ReadEngine interface {
	// Reset drops selection, buffered results, and pagination state,
	// returning the handle to its initial configured state. Applied
	// configuration defaults survive a Reset.
	Reset() error

	// Configuration. Applied once per session, before any Read.
	SetMaxRecords(limit uint64) error
	SetRegionPartition(index, count int) error
	SetSamplePartition(index, count int) error
	SetSortRegions(sort bool) error
	SetMemoryBudgetMB(mb int) error
	SetConfig(csv string) error

	// Selection. An empty samples string selects all samples.
	SetSamples(csv string) error
	SetSamplesFile(uri string) error
	SetRegions(csv string) error
	SetBEDFile(uri string) error
	SetAttributes(names []string) error

	// Read executes one bounded read unit.
	Read(ctx context.Context) error

	// Results returns the batch buffered by the last unit.
	Results() (*Table, error)

	// Completed reports whether the last unit finished the result set.
	Completed() bool

	// ResultCount returns the number of records the last unit matched.
	ResultCount() uint64

	// Metadata. May hit storage on first use.
	QueryableAttributes(ctx context.Context) ([]string, error)
	InfoAttributes(ctx context.Context) ([]string, error)
	FormatAttributes(ctx context.Context) ([]string, error)
	SampleNames(ctx context.Context) ([]string, error)
	SampleCount(ctx context.Context) (int, error)
	FormatVersion(ctx context.Context) (int, error)

	// Diagnostics passthrough.
	SetStatsEnabled(enabled bool)
	Stats() (string, error)
	SetVerbose(verbose bool)
}

// WriteEngine is the storage engine handle a WriteSession drives.
//
// Creation parameters and ingestion parameters are staged by the Set
// calls; CreateDataset and IngestSamples consume them. Engines that hold
// resources may additionally implement io.Closer.
type WriteEngine interface {
	Reset() error

	// Configuration.
	SetConfig(csv string) error

	// Dataset creation staging.
	SetExtraAttributes(csv string) error
	SetTileCapacity(n int) error
	SetAnchorGap(n int) error
	SetChecksum(kind ChecksumKind) error
	SetAllowDuplicates(allow bool) error

	// CreateDataset materializes the dataset. Creating a dataset that
	// already exists is a silent no-op.
	CreateDataset(ctx context.Context) error

	// Ingestion staging.
	SetThreads(n int) error
	SetMemoryBudgetMB(mb int) error
	SetScratchSpace(path string, sizeMB int) error
	SetSampleBatchSize(n int) error
	SetSamples(csv string) error

	// RegisterSamples records the staged samples in the dataset registry
	// without ingesting their data. Required before IngestSamples only on
	// datasets whose format version predates integrated registration.
	RegisterSamples(ctx context.Context) error

	// IngestSamples parses and stores the staged sample URIs.
	IngestSamples(ctx context.Context) error

	// Metadata. May hit storage on first use.
	FormatVersion(ctx context.Context) (int, error)

	// Diagnostics passthrough.
	SetVerbose(verbose bool)
}

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

// Store abstracts the object storage a dataset lives on. Objects are
// write-once; mutation goes through ConditionalWriter where a store
// supports it.
type Store interface {
	// Put writes data at path, creating parent structure as needed.
	// Writing to an existing path is ErrExists.
	Put(ctx context.Context, path string, data []byte) error

	// Get reads the full content at path. Missing paths are ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether path holds an object.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths under prefix, lexically sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at path. Deleting a missing path is not
	// an error.
	Delete(ctx context.Context, path string) error
}

// ConditionalWriter is an optional Store extension for optimistic
// concurrency. CompareAndSwap atomically replaces the content at path if
// and only if the current content matches expected; an empty expected
// value means the path must not yet exist. A lost race is
// ErrCommitConflict.
type ConditionalWriter interface {
	CompareAndSwap(ctx context.Context, path, expected, replacement string) error
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrInvalidMode indicates an option or engine call that does not
	// belong to the session's mode.
	ErrInvalidMode = errInvalidMode{}

	// ErrConflictingSelection indicates a sample list and a samples file
	// supplied to the same query.
	ErrConflictingSelection = errConflictingSelection{}

	// ErrIncompleteScratchConfig indicates a scratch path without a size,
	// or a size without a path.
	ErrIncompleteScratchConfig = errIncompleteScratchConfig{}

	// ErrInvalidArgument indicates a value outside its domain.
	ErrInvalidArgument = errInvalidArgument{}

	// ErrInconsistentState indicates a protocol invariant breach, such as
	// a count scan left incomplete after its single read unit.
	ErrInconsistentState = errInconsistentState{}

	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errNotFound{}

	// ErrExists indicates an attempt to write to an existing path.
	ErrExists = errExists{}

	// ErrCommitConflict indicates an optimistic commit lost a race.
	ErrCommitConflict = errCommitConflict{}
)

type errInvalidMode struct{}

func (errInvalidMode) Error() string { return "invalid mode" }

type errConflictingSelection struct{}

func (errConflictingSelection) Error() string { return "conflicting sample selection" }

type errIncompleteScratchConfig struct{}

func (errIncompleteScratchConfig) Error() string { return "incomplete scratch configuration" }

type errInvalidArgument struct{}

func (errInvalidArgument) Error() string { return "invalid argument" }

type errInconsistentState struct{}

func (errInconsistentState) Error() string { return "inconsistent state" }

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errExists struct{}

func (errExists) Error() string { return "path exists" }

type errCommitConflict struct{}

func (errCommitConflict) Error() string { return "commit conflict" }
