package varlake

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Engine defaults.
const (
	defaultMemoryBudgetMB  = 2048
	defaultBytesPerRecord  = 1024
	defaultTileCapacity    = 10000
	defaultAnchorGap       = 1000
	defaultSampleBatchSize = 10
)

// Engine override keys, accepted through ReadConfig/WriteConfig
// EngineConfig entries.
const (
	// cfgReadBatchRows caps the rows one read unit materializes,
	// overriding the memory-budget-derived cap.
	cfgReadBatchRows = "read.batch_rows"

	// cfgReadBytesPerRecord is the per-record estimate used to derive the
	// unit cap from the memory budget.
	cfgReadBytesPerRecord = "read.bytes_per_record"

	// cfgIngestFragmentRows overrides the dataset tile capacity as the
	// fragment cut size for one write session.
	cfgIngestFragmentRows = "ingest.fragment_rows"
)

// intConfigKeys are validated as positive integers at SetConfig time.
var intConfigKeys = map[string]bool{
	cfgReadBatchRows:      true,
	cfgReadBytesPerRecord: true,
	cfgIngestFragmentRows: true,
}

// engineConfig holds parsed key=value overrides. Unknown keys are kept
// but inert.
type engineConfig map[string]string

// apply parses a comma-joined override string into the map. Empty
// elements are skipped; elements without '=' are rejected.
func (ec engineConfig) apply(csv string) error {
	for _, entry := range strings.Split(csv, ",") {
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return fmt.Errorf("varlake: engine config entry %q: %w", entry, ErrInvalidArgument)
		}
		if intConfigKeys[key] {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("varlake: engine config %s=%q must be a positive integer: %w", key, value, ErrInvalidArgument)
			}
		}
		ec[key] = value
	}
	return nil
}

// intValue returns the validated integer override, or def when unset.
func (ec engineConfig) intValue(key string, def int) int {
	v, ok := ec[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// engineStats collects diagnostics counters across a handle's lifetime.
// Reset does not clear them.
type engineStats struct {
	ReadUnits       int64 `json:"read_units"`
	FragmentsOpened int64 `json:"fragments_opened"`
	RowsScanned     int64 `json:"rows_scanned"`
	RowsMatched     int64 `json:"rows_matched"`
	RowsIngested    int64 `json:"rows_ingested"`
	FragmentsWrote  int64 `json:"fragments_written"`
	BytesRead       int64 `json:"bytes_read"`
	BytesWritten    int64 `json:"bytes_written"`
}

func (s *engineStats) encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("varlake: encode stats: %w", err)
	}
	return string(data), nil
}

// resolveStore maps a dataset location to a Store. An explicit store
// wins; "mem://name" locations share a process-level registry; anything
// else is treated as a filesystem path ("file://" prefixes allowed).
// Remote schemes need an explicitly constructed store (see varlake/s3).
func resolveStore(location string, explicit Store) (Store, error) {
	if explicit != nil {
		return explicit, nil
	}
	switch {
	case strings.HasPrefix(location, "mem://"):
		return memoryStoreFor(strings.TrimPrefix(location, "mem://")), nil
	case strings.HasPrefix(location, "file://"):
		return NewFS(strings.TrimPrefix(location, "file://"))
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("varlake: location %q needs an explicit store option: %w", location, ErrInvalidArgument)
	case location == "":
		return nil, fmt.Errorf("varlake: empty dataset location: %w", ErrInvalidArgument)
	default:
		return NewFS(location)
	}
}

// datasetState is the lazily-opened view of a dataset shared by the
// embedded engine handles. Raw encodings are retained as
// compare-and-swap witnesses.
type datasetState struct {
	store       Store
	manifest    *Manifest
	manifestRaw string
	registry    *sampleRegistry
	registryRaw string
	opened      bool
}

// open loads the manifest and registry once. Missing datasets surface
// ErrNotFound.
func (d *datasetState) open(ctx context.Context) error {
	if d.opened {
		return nil
	}
	m, raw, err := loadManifest(ctx, d.store)
	if err != nil {
		return err
	}
	r, rawReg, err := loadRegistry(ctx, d.store)
	if err != nil {
		return err
	}
	d.manifest, d.manifestRaw = m, raw
	d.registry, d.registryRaw = r, rawReg
	d.opened = true
	return nil
}

// reload drops cached state so the next open observes new commits.
func (d *datasetState) reload() {
	d.opened = false
	d.manifest, d.registry = nil, nil
	d.manifestRaw, d.registryRaw = "", ""
}
