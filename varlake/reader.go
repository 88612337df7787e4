package varlake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Query selects what a read returns. Attributes defaults to the builtin
// attribute set when empty. Samples and SamplesFile are mutually
// exclusive; empty selection means all samples and all regions.
type Query struct {
	// Attributes to materialize per matching record.
	Attributes []string

	// Samples restricts the scan to the named samples.
	Samples []string

	// Regions restricts the scan to records overlapping any of the
	// given regions ("chr1:100-200" or "chr1").
	Regions []string

	// SamplesFile names a text file holding one sample name per line.
	SamplesFile string

	// BEDFile names a BED file contributing further regions.
	BEDFile string
}

// CountQuery selects what a count covers.
type CountQuery struct {
	Samples []string
	Regions []string
}

// ReadSession is a paginated query handle over one dataset. A session
// wraps a ReadEngine and owns the restart-versus-continue protocol: Read
// starts a result set from scratch, ContinueRead fetches the next batch,
// and the engine's Completed state is the only end-of-results signal.
//
// Sessions are not safe for concurrent use.
type ReadSession struct {
	dataset string
	engine  ReadEngine
	logger  *slog.Logger
}

// Dataset returns the location the session was opened on.
func (s *ReadSession) Dataset() string { return s.dataset }

// Read restarts the session on a new selection and returns the first
// batch. The batch may be partial; check Completed and call ContinueRead
// until it reports true.
func (s *ReadSession) Read(ctx context.Context, q Query) (*Table, error) {
	if err := s.engine.Reset(); err != nil {
		return nil, err
	}
	if len(q.Samples) > 0 && q.SamplesFile != "" {
		return nil, fmt.Errorf("varlake: samples and samples file both set: %w", ErrConflictingSelection)
	}
	switch {
	case q.SamplesFile != "":
		if err := s.engine.SetSamples(""); err != nil {
			return nil, err
		}
		if err := s.engine.SetSamplesFile(q.SamplesFile); err != nil {
			return nil, err
		}
	case len(q.Samples) > 0:
		if err := s.engine.SetSamples(strings.Join(q.Samples, ",")); err != nil {
			return nil, err
		}
	}
	if len(q.Regions) > 0 {
		if err := s.engine.SetRegions(strings.Join(q.Regions, ",")); err != nil {
			return nil, err
		}
	}
	// An attribute-free engine state means count-only, so a query naming
	// no attributes gets the builtin set here.
	attrs := q.Attributes
	if len(attrs) == 0 {
		attrs = builtinAttributes
	}
	if err := s.engine.SetAttributes(attrs); err != nil {
		return nil, err
	}
	if q.BEDFile != "" {
		if err := s.engine.SetBEDFile(q.BEDFile); err != nil {
			return nil, err
		}
	}
	if err := s.engine.Read(ctx); err != nil {
		return nil, err
	}
	return s.engine.Results()
}

// ContinueRead fetches the next batch of the current result set. The
// selection is untouched; once the set is exhausted further calls return
// empty batches.
func (s *ReadSession) ContinueRead(ctx context.Context) (*Table, error) {
	if err := s.engine.Read(ctx); err != nil {
		return nil, err
	}
	return s.engine.Results()
}

// Completed reports whether the current result set has been fully
// returned.
func (s *ReadSession) Completed() bool {
	return s.engine.Completed()
}

// Batches returns an iterator over all batches of the query's result
// set. The first Next restarts the session via Read; see BatchIterator.
func (s *ReadSession) Batches(ctx context.Context, q Query) *BatchIterator {
	return &BatchIterator{session: s, ctx: ctx, query: q}
}

// Count scans the selection without materializing attributes and returns
// the number of matching records. The scan must finish in a single
// engine unit; an engine that pages a count surfaces
// ErrInconsistentState.
func (s *ReadSession) Count(ctx context.Context, q CountQuery) (uint64, error) {
	if err := s.engine.Reset(); err != nil {
		return 0, err
	}
	if err := s.engine.SetSamples(strings.Join(q.Samples, ",")); err != nil {
		return 0, err
	}
	if err := s.engine.SetRegions(strings.Join(q.Regions, ",")); err != nil {
		return 0, err
	}
	if err := s.engine.Read(ctx); err != nil {
		return 0, err
	}
	if !s.engine.Completed() {
		return 0, fmt.Errorf("varlake: count did not complete in one unit: %w", ErrInconsistentState)
	}
	return s.engine.ResultCount(), nil
}

// Samples returns the registered sample names.
func (s *ReadSession) Samples(ctx context.Context) ([]string, error) {
	return s.engine.SampleNames(ctx)
}

// SampleCount returns the number of registered samples.
func (s *ReadSession) SampleCount(ctx context.Context) (int, error) {
	return s.engine.SampleCount(ctx)
}

// FormatVersion returns the dataset's on-disk format version.
func (s *ReadSession) FormatVersion(ctx context.Context) (int, error) {
	return s.engine.FormatVersion(ctx)
}

// Stats returns the engine's counters as a JSON string. Empty when the
// session was built without WithStats.
func (s *ReadSession) Stats() (string, error) {
	return s.engine.Stats()
}

// Close releases the engine if it holds resources.
func (s *ReadSession) Close() error {
	if c, ok := s.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
