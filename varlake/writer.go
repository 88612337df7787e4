package varlake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// CreateParams configures dataset creation. Zero-valued fields keep the
// engine defaults: tile capacity 10000, anchor gap 1000, sha256
// checksums, duplicates allowed.
type CreateParams struct {
	// ExtraAttributes restricts which INFO and FORMAT fields get their
	// own typed columns ("info_DP", "fmt_GQ"). Empty promotes all fields
	// the ingested headers define.
	ExtraAttributes []string

	// TileCapacity is the row count per stored fragment.
	TileCapacity int

	// AnchorGap is the maximum distance a record may span without an
	// anchor, recorded for engines that index long variants.
	AnchorGap int

	// Checksum selects the fragment integrity algorithm. ChecksumNone
	// disables verification.
	Checksum ChecksumKind

	// AllowDuplicates permits records sharing a start position. Nil
	// keeps the default (true).
	AllowDuplicates *bool
}

// IngestParams configures one ingestion run. Zero-valued fields keep the
// engine defaults: runtime.NumCPU() threads, sample batches of 10, no
// scratch staging.
type IngestParams struct {
	// URIs name the VCF inputs. Plain paths and file:// URIs are read
	// directly; gzip and zstd compressed inputs are detected by suffix.
	URIs []string

	// Threads bounds the parser worker pool.
	Threads int

	// TotalMemoryBudgetMB caps ingestion buffering.
	TotalMemoryBudgetMB int

	// ScratchSpacePath and ScratchSpaceSizeMB configure local staging of
	// inputs before parsing. Both must be set together.
	ScratchSpacePath   string
	ScratchSpaceSizeMB int

	// SampleBatchSize is the number of inputs handed to the worker pool
	// at a time.
	SampleBatchSize int
}

// WriteSession is a creation and ingestion handle over one dataset
// location. It stages parameters on a WriteEngine and drives the
// create, register, and ingest operations in the required order.
//
// Sessions are not safe for concurrent use.
type WriteSession struct {
	dataset string
	engine  WriteEngine
	logger  *slog.Logger
}

// Dataset returns the location the session was opened on.
func (s *WriteSession) Dataset() string { return s.dataset }

// CreateDataset materializes a new dataset at the session's location.
// Creating over an existing dataset succeeds without modifying it.
func (s *WriteSession) CreateDataset(ctx context.Context, p CreateParams) error {
	if err := s.engine.SetExtraAttributes(strings.Join(p.ExtraAttributes, ",")); err != nil {
		return err
	}
	if p.TileCapacity != 0 {
		if err := s.engine.SetTileCapacity(p.TileCapacity); err != nil {
			return err
		}
	}
	if p.AnchorGap != 0 {
		if err := s.engine.SetAnchorGap(p.AnchorGap); err != nil {
			return err
		}
	}
	if p.Checksum != "" {
		if err := s.engine.SetChecksum(p.Checksum); err != nil {
			return err
		}
	}
	if p.AllowDuplicates != nil {
		if err := s.engine.SetAllowDuplicates(*p.AllowDuplicates); err != nil {
			return err
		}
	}
	return s.engine.CreateDataset(ctx)
}

// IngestSamples parses and stores the given VCF inputs. An empty URI
// list is a no-op. On datasets whose format predates integrated
// registration the samples are registered first.
func (s *WriteSession) IngestSamples(ctx context.Context, p IngestParams) error {
	if len(p.URIs) == 0 {
		return nil
	}
	if (p.ScratchSpacePath == "") != (p.ScratchSpaceSizeMB == 0) {
		return fmt.Errorf("varlake: scratch path and size must be set together: %w", ErrIncompleteScratchConfig)
	}
	if p.Threads != 0 {
		if err := s.engine.SetThreads(p.Threads); err != nil {
			return err
		}
	}
	if p.TotalMemoryBudgetMB != 0 {
		if err := s.engine.SetMemoryBudgetMB(p.TotalMemoryBudgetMB); err != nil {
			return err
		}
	}
	if p.ScratchSpacePath != "" {
		if err := s.engine.SetScratchSpace(p.ScratchSpacePath, p.ScratchSpaceSizeMB); err != nil {
			return err
		}
	}
	if p.SampleBatchSize != 0 {
		if err := s.engine.SetSampleBatchSize(p.SampleBatchSize); err != nil {
			return err
		}
	}
	if err := s.engine.SetSamples(strings.Join(p.URIs, ",")); err != nil {
		return err
	}

	version, err := s.engine.FormatVersion(ctx)
	if err != nil {
		return err
	}
	if version < formatRegistryIntegrated {
		if err := s.engine.RegisterSamples(ctx); err != nil {
			return err
		}
	}
	return s.engine.IngestSamples(ctx)
}

// FormatVersion returns the dataset's on-disk format version.
func (s *WriteSession) FormatVersion(ctx context.Context) (int, error) {
	return s.engine.FormatVersion(ctx)
}

// Close releases the engine if it holds resources.
func (s *WriteSession) Close() error {
	if c, ok := s.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
