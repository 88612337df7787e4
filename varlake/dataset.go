package varlake

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	manifestSchemaName = "varlake-manifest"

	// formatVersionCurrent is written by CreateDataset.
	formatVersionCurrent = 2

	// formatRegistryIntegrated is the first format whose ingestion
	// registers unseen samples itself; older formats need an explicit
	// registration pass first.
	formatRegistryIntegrated = 2
)

// Fixed object layout under a dataset location.
const (
	manifestObject = "manifest.json"
	registryObject = "samples.json"
	fragmentsDir   = "fragments"
)

// -----------------------------------------------------------------------------
// Manifest
// -----------------------------------------------------------------------------

// FieldDescriptor describes one INFO or FORMAT field the dataset can
// materialize as a typed attribute column.
type FieldDescriptor struct {
	// Name is the field ID from the source header (e.g. "DP", "GT").
	Name string `json:"name"`

	// Type is the declared value type: Integer, Float, Flag, String, or
	// Character.
	Type string `json:"type"`

	// Number is the declared arity ("0", "1", "A", "R", "G", ".").
	Number string `json:"number"`
}

// ContigSpan is the inclusive position range a fragment covers on one
// contig, used to prune fragments during scan planning.
type ContigSpan struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// FragmentRef points to one immutable fragment data object.
type FragmentRef struct {
	// ID uniquely identifies the fragment within the dataset.
	ID string `json:"id"`

	// Path locates the fragment object relative to the dataset root.
	Path string `json:"path"`

	// Rows is the number of records stored in the fragment.
	Rows int64 `json:"rows"`

	// Samples lists the sample names the fragment holds rows for.
	Samples []string `json:"samples"`

	// Contigs maps each contig present to the span it covers.
	Contigs map[string]ContigSpan `json:"contigs"`

	// Checksum is an optional integrity digest of the fragment object.
	Checksum string `json:"checksum,omitempty"`

	// CreatedAt records when the fragment was committed.
	CreatedAt time.Time `json:"created_at"`
}

// Manifest describes a dataset: format version, creation parameters,
// attribute metadata, and the fragment inventory.
//
// A manifest is self-contained; everything a read engine needs to plan a
// scan short of the fragment data itself is here.
type Manifest struct {
	// SchemaName identifies the manifest schema.
	SchemaName string `json:"schema_name"`

	// FormatVersion identifies the dataset format.
	FormatVersion int `json:"format_version"`

	// CreatedAt records dataset creation time.
	CreatedAt time.Time `json:"created_at"`

	// TileCapacity is the row count at which ingestion cuts fragments.
	TileCapacity int `json:"tile_capacity"`

	// AnchorGap is the maximum record length assumed when expanding
	// region scans over records that start before a region.
	AnchorGap int `json:"anchor_gap"`

	// Checksum names the integrity algorithm for fragment objects.
	Checksum ChecksumKind `json:"checksum"`

	// AllowDuplicates permits records sharing (sample, contig, start).
	AllowDuplicates bool `json:"allow_duplicates"`

	// ExtraAttributes lists INFO/FORMAT fields requested for
	// materialization at creation time, ahead of ingestion.
	ExtraAttributes []string `json:"extra_attributes,omitempty"`

	// InfoFields and FormatFields accumulate the fields observed across
	// ingested headers.
	InfoFields   []FieldDescriptor `json:"info_fields,omitempty"`
	FormatFields []FieldDescriptor `json:"fmt_fields,omitempty"`

	// Fragments inventories the dataset's data objects in commit order.
	Fragments []FragmentRef `json:"fragments,omitempty"`
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// ErrManifestInvalid indicates a manifest failed validation.
var ErrManifestInvalid = errors.New("invalid manifest")

// manifestValidationError gives field-level detail and unwraps to
// ErrManifestInvalid so callers can match the class.
type manifestValidationError struct {
	Field   string
	Message string
}

func (e *manifestValidationError) Error() string {
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Message)
}

func (e *manifestValidationError) Unwrap() error {
	return ErrManifestInvalid
}

func validateManifest(m *Manifest) error {
	if m.SchemaName != manifestSchemaName {
		return &manifestValidationError{"schema_name", fmt.Sprintf("got %q, want %q", m.SchemaName, manifestSchemaName)}
	}
	if m.FormatVersion <= 0 {
		return &manifestValidationError{"format_version", "must be positive"}
	}
	if m.FormatVersion > formatVersionCurrent {
		return &manifestValidationError{"format_version", fmt.Sprintf("%d is newer than supported %d", m.FormatVersion, formatVersionCurrent)}
	}
	if m.TileCapacity <= 0 {
		return &manifestValidationError{"tile_capacity", "must be positive"}
	}
	if m.AnchorGap < 0 {
		return &manifestValidationError{"anchor_gap", "must not be negative"}
	}
	if !m.Checksum.valid() {
		return &manifestValidationError{"checksum", fmt.Sprintf("unknown kind %q", m.Checksum)}
	}
	for i, f := range m.Fragments {
		if f.ID == "" || f.Path == "" {
			return &manifestValidationError{fmt.Sprintf("fragments[%d]", i), "missing id or path"}
		}
		if f.Rows < 0 {
			return &manifestValidationError{fmt.Sprintf("fragments[%d].rows", i), "must not be negative"}
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// sampleRegistry is the dataset's registered sample inventory, kept
// sorted and separate from the manifest so sample-only updates stay
// small.
type sampleRegistry struct {
	Samples []string `json:"samples"`
}

// -----------------------------------------------------------------------------
// Load / encode
// -----------------------------------------------------------------------------

// loadManifest fetches and validates the dataset manifest. The raw
// encoding is returned alongside for use as a compare-and-swap witness.
func loadManifest(ctx context.Context, store Store) (*Manifest, string, error) {
	data, err := store.Get(ctx, manifestObject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", fmt.Errorf("varlake: dataset manifest: %w", ErrNotFound)
		}
		return nil, "", fmt.Errorf("varlake: load manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("varlake: decode manifest: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, "", fmt.Errorf("varlake: %w", err)
	}
	return &m, string(data), nil
}

func encodeManifest(m *Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("varlake: encode manifest: %w", err)
	}
	return string(data), nil
}

// loadRegistry fetches the sample registry. A dataset created before any
// registration may lack one; that reads as empty.
func loadRegistry(ctx context.Context, store Store) (*sampleRegistry, string, error) {
	data, err := store.Get(ctx, registryObject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &sampleRegistry{}, "", nil
		}
		return nil, "", fmt.Errorf("varlake: load sample registry: %w", err)
	}
	var r sampleRegistry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, "", fmt.Errorf("varlake: decode sample registry: %w", err)
	}
	return &r, string(data), nil
}

func encodeRegistry(r *sampleRegistry) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("varlake: encode sample registry: %w", err)
	}
	return string(data), nil
}
