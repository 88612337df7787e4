package varlake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/varlake/varlake/internal/vcf"
)

// casAttempts bounds the reload-and-retry loop around metadata commits.
const casAttempts = 5

// writeEngine is the embedded engine behind a WriteSession. Creation
// parameters and ingestion parameters are staged by Set calls and
// consumed by CreateDataset, RegisterSamples, and IngestSamples.
type writeEngine struct {
	ds     *datasetState
	logger *slog.Logger

	// Creation parameters.
	tileCapacity    int
	anchorGap       int
	checksum        ChecksumKind
	allowDuplicates bool
	extraAttrs      []string

	// Ingestion parameters.
	threads         int
	memoryBudget    int
	scratchPath     string
	scratchMB       int
	sampleBatchSize int
	sampleURIs      []string

	cfg     engineConfig
	closed  bool
	verbose bool
	stats   engineStats
}

func newWriteEngine(store Store, logger *slog.Logger) *writeEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &writeEngine{
		ds:              &datasetState{store: store},
		logger:          logger,
		tileCapacity:    defaultTileCapacity,
		anchorGap:       defaultAnchorGap,
		checksum:        ChecksumSHA256,
		allowDuplicates: true,
		threads:         runtime.NumCPU(),
		sampleBatchSize: defaultSampleBatchSize,
		cfg:             make(engineConfig),
	}
}

func (e *writeEngine) log(msg string, args ...any) {
	if e.verbose {
		e.logger.Info(msg, args...)
	} else {
		e.logger.Debug(msg, args...)
	}
}

func (e *writeEngine) Reset() error {
	if e.closed {
		return fmt.Errorf("varlake: reset on closed handle: %w", ErrInconsistentState)
	}
	e.sampleURIs = nil
	return nil
}

func (e *writeEngine) Close() error {
	e.closed = true
	return nil
}

func (e *writeEngine) SetConfig(csv string) error {
	return e.cfg.apply(csv)
}

// -----------------------------------------------------------------------------
// Creation
// -----------------------------------------------------------------------------

func (e *writeEngine) SetExtraAttributes(csv string) error {
	e.extraAttrs = nil
	for _, name := range strings.Split(csv, ",") {
		if name = strings.TrimSpace(name); name != "" {
			e.extraAttrs = append(e.extraAttrs, name)
		}
	}
	return nil
}

func (e *writeEngine) SetTileCapacity(n int) error {
	if n <= 0 {
		return fmt.Errorf("varlake: tile capacity %d: %w", n, ErrInvalidArgument)
	}
	e.tileCapacity = n
	return nil
}

func (e *writeEngine) SetAnchorGap(n int) error {
	if n < 0 {
		return fmt.Errorf("varlake: anchor gap %d: %w", n, ErrInvalidArgument)
	}
	e.anchorGap = n
	return nil
}

func (e *writeEngine) SetChecksum(kind ChecksumKind) error {
	if !kind.valid() {
		return fmt.Errorf("varlake: checksum kind %q: %w", kind, ErrInvalidArgument)
	}
	e.checksum = kind
	return nil
}

func (e *writeEngine) SetAllowDuplicates(allow bool) error {
	e.allowDuplicates = allow
	return nil
}

func (e *writeEngine) CreateDataset(ctx context.Context) error {
	if e.closed {
		return fmt.Errorf("varlake: create on closed handle: %w", ErrInconsistentState)
	}
	switch _, _, err := loadManifest(ctx, e.ds.store); {
	case err == nil:
		return nil // already created
	case !errors.Is(err, ErrNotFound):
		return err
	}

	m := &Manifest{
		SchemaName:      manifestSchemaName,
		FormatVersion:   formatVersionCurrent,
		CreatedAt:       time.Now().UTC(),
		TileCapacity:    e.tileCapacity,
		AnchorGap:       e.anchorGap,
		Checksum:        e.checksum,
		AllowDuplicates: e.allowDuplicates,
		ExtraAttributes: append([]string(nil), e.extraAttrs...),
	}
	if err := validateManifest(m); err != nil {
		return err
	}
	encoded, err := encodeManifest(m)
	if err != nil {
		return err
	}
	cw, err := conditionalWriter(e.ds.store)
	if err != nil {
		return err
	}
	err = cw.CompareAndSwap(ctx, manifestObject, "", encoded)
	if errors.Is(err, ErrCommitConflict) {
		return nil // lost the race to another creator
	}
	if err != nil {
		return err
	}
	e.ds.reload()
	e.log("dataset created", "format_version", m.FormatVersion, "tile_capacity", m.TileCapacity)
	return nil
}

// -----------------------------------------------------------------------------
// Ingestion
// -----------------------------------------------------------------------------

func (e *writeEngine) SetThreads(n int) error {
	if n <= 0 {
		return fmt.Errorf("varlake: thread count %d: %w", n, ErrInvalidArgument)
	}
	e.threads = n
	return nil
}

func (e *writeEngine) SetMemoryBudgetMB(mb int) error {
	if mb <= 0 {
		return fmt.Errorf("varlake: memory budget %d: %w", mb, ErrInvalidArgument)
	}
	e.memoryBudget = mb
	return nil
}

func (e *writeEngine) SetScratchSpace(path string, sizeMB int) error {
	if path == "" || sizeMB <= 0 {
		return fmt.Errorf("varlake: scratch space needs both a path and a size: %w", ErrIncompleteScratchConfig)
	}
	e.scratchPath = path
	e.scratchMB = sizeMB
	return nil
}

func (e *writeEngine) SetSampleBatchSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("varlake: sample batch size %d: %w", n, ErrInvalidArgument)
	}
	e.sampleBatchSize = n
	return nil
}

func (e *writeEngine) SetSamples(csv string) error {
	e.sampleURIs = nil
	for _, uri := range strings.Split(csv, ",") {
		if uri = strings.TrimSpace(uri); uri != "" {
			e.sampleURIs = append(e.sampleURIs, uri)
		}
	}
	return nil
}

func (e *writeEngine) RegisterSamples(ctx context.Context) error {
	if e.closed {
		return fmt.Errorf("varlake: register on closed handle: %w", ErrInconsistentState)
	}
	if len(e.sampleURIs) == 0 {
		return nil
	}
	if err := e.ds.open(ctx); err != nil {
		return err
	}

	var names []string
	for _, uri := range e.sampleURIs {
		header, err := readHeader(uri)
		if err != nil {
			return err
		}
		if len(header.Samples) == 0 {
			return fmt.Errorf("varlake: %s declares no samples: %w", uri, ErrInvalidArgument)
		}
		names = append(names, header.Samples...)
	}
	if err := e.commitRegistry(ctx, names); err != nil {
		return err
	}
	e.log("samples registered", "count", len(names))
	return nil
}

// parseResult carries one parsed input out of the worker pool.
type parseResult struct {
	uri      string
	samples  []string
	infoDefs []vcf.FieldDef
	fmtDefs  []vcf.FieldDef
	rows     []map[string]any
	err      error
}

func (e *writeEngine) IngestSamples(ctx context.Context) error {
	if e.closed {
		return fmt.Errorf("varlake: ingest on closed handle: %w", ErrInconsistentState)
	}
	if len(e.sampleURIs) == 0 {
		return nil
	}
	if err := e.ds.open(ctx); err != nil {
		return err
	}
	manifest := e.ds.manifest

	stage, err := e.newScratchStage()
	if err != nil {
		return err
	}
	defer stage.cleanup()

	pool, err := ants.NewPool(e.threads)
	if err != nil {
		return fmt.Errorf("varlake: worker pool: %w", err)
	}
	defer pool.Release()

	var (
		infoDefs, fmtDefs []vcf.FieldDef
		sampleNames       []string
		rows              []map[string]any
		refs              []FragmentRef
		seen              map[string]struct{}
	)
	if !manifest.AllowDuplicates {
		seen = make(map[string]struct{})
	}
	fragRows := e.fragmentRows(manifest)

	for start := 0; start < len(e.sampleURIs); start += e.sampleBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + e.sampleBatchSize
		if end > len(e.sampleURIs) {
			end = len(e.sampleURIs)
		}
		batch := e.sampleURIs[start:end]

		results := make([]parseResult, len(batch))
		var wg sync.WaitGroup
		for i, uri := range batch {
			local, err := stage.localize(uri)
			if err != nil {
				return err
			}
			wg.Add(1)
			task := func() {
				defer wg.Done()
				results[i] = parseInput(uri, local)
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				return fmt.Errorf("varlake: submit parse: %w", err)
			}
		}
		wg.Wait()

		for _, res := range results {
			if res.err != nil {
				return res.err
			}
			sampleNames = append(sampleNames, res.samples...)
			infoDefs = append(infoDefs, res.infoDefs...)
			fmtDefs = append(fmtDefs, res.fmtDefs...)
			for _, row := range res.rows {
				if seen != nil {
					key := dedupKey(row)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
				}
				rows = append(rows, row)
			}
		}

		// Flush full fragments between batches to bound buffering.
		for len(rows) >= fragRows {
			ref, err := e.writeFragment(ctx, manifest, infoDefs, fmtDefs, rows[:fragRows])
			if err != nil {
				return err
			}
			refs = append(refs, ref)
			rows = rows[fragRows:]
		}
	}
	if len(rows) > 0 {
		ref, err := e.writeFragment(ctx, manifest, infoDefs, fmtDefs, rows)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	if manifest.FormatVersion < formatRegistryIntegrated {
		if err := e.requireRegistered(sampleNames); err != nil {
			return err
		}
	} else if err := e.commitRegistry(ctx, sampleNames); err != nil {
		return err
	}
	if err := e.commitFragments(ctx, refs, infoDefs, fmtDefs); err != nil {
		return err
	}
	e.log("ingest committed",
		"inputs", len(e.sampleURIs),
		"fragments", len(refs),
		"rows", e.stats.RowsIngested)
	return nil
}

func (e *writeEngine) FormatVersion(ctx context.Context) (int, error) {
	if err := e.ds.open(ctx); err != nil {
		return 0, err
	}
	return e.ds.manifest.FormatVersion, nil
}

func (e *writeEngine) SetVerbose(verbose bool) { e.verbose = verbose }

// fragmentRows resolves the per-fragment row count: an explicit override
// wins, then the memory budget caps the manifest's tile capacity.
func (e *writeEngine) fragmentRows(m *Manifest) int {
	if rows := e.cfg.intValue(cfgIngestFragmentRows, 0); rows > 0 {
		return rows
	}
	rows := m.TileCapacity
	if e.memoryBudget > 0 {
		if budget := e.memoryBudget * (1 << 20) / defaultBytesPerRecord; budget < rows {
			rows = budget
		}
	}
	if rows < 1 {
		return 1
	}
	return rows
}

func (e *writeEngine) requireRegistered(names []string) error {
	registered := make(map[string]struct{}, len(e.ds.registry.Samples))
	for _, s := range e.ds.registry.Samples {
		registered[s] = struct{}{}
	}
	for _, name := range names {
		if _, ok := registered[name]; !ok {
			return fmt.Errorf("varlake: sample %q is not registered: %w", name, ErrInconsistentState)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Parsing
// -----------------------------------------------------------------------------

func readHeader(uri string) (*vcf.Header, error) {
	rc, err := vcf.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("varlake: open %s: %w", uri, err)
	}
	defer closer(rc)()
	header, err := vcf.NewScanner(rc).Header()
	if err != nil {
		return nil, fmt.Errorf("varlake: %s: %w", uri, err)
	}
	return header, nil
}

// parseInput reads one staged input into per-sample rows keyed by
// attribute name. uri names the original input for error reporting;
// local is the path to read.
func parseInput(uri, local string) parseResult {
	res := parseResult{uri: uri}
	rc, err := vcf.Open(local)
	if err != nil {
		res.err = fmt.Errorf("varlake: open %s: %w", uri, err)
		return res
	}
	defer closer(rc)()

	sc := vcf.NewScanner(rc)
	header, err := sc.Header()
	if err != nil {
		res.err = fmt.Errorf("varlake: %s: %w", uri, err)
		return res
	}
	if len(header.Samples) == 0 {
		res.err = fmt.Errorf("varlake: %s declares no samples: %w", uri, ErrInvalidArgument)
		return res
	}
	res.samples = header.Samples
	res.infoDefs = header.Info
	res.fmtDefs = header.Format

	for sc.Scan() {
		rows, err := recordRows(header, sc.Record())
		if err != nil {
			res.err = fmt.Errorf("varlake: %s: %w", uri, err)
			return res
		}
		res.rows = append(res.rows, rows...)
	}
	if err := sc.Err(); err != nil {
		res.err = fmt.Errorf("varlake: %s: %w", uri, err)
	}
	return res
}

// recordRows flattens one VCF record into one row per sample column.
func recordRows(header *vcf.Header, rec *vcf.Record) ([]map[string]any, error) {
	alleles := rec.Ref
	if len(rec.Alt) > 0 {
		alleles += "," + strings.Join(rec.Alt, ",")
	}

	var infoBlob string
	if len(rec.Info) > 0 {
		data, err := json.Marshal(rec.Info)
		if err != nil {
			return nil, fmt.Errorf("encode info at %s:%d: %w", rec.Contig, rec.Pos, err)
		}
		infoBlob = string(data)
	}

	base := map[string]any{
		attrContig:   rec.Contig,
		attrPosStart: int64(rec.Pos),
		attrPosEnd:   int64(rec.EndPos()),
		attrAlleles:  alleles,
	}
	if rec.ID != "" {
		base[attrID] = rec.ID
	}
	if len(rec.Filter) > 0 {
		base[attrFilters] = strings.Join(rec.Filter, ";")
	}
	if rec.Qual != nil {
		base[attrQual] = *rec.Qual
	}
	if infoBlob != "" {
		base[attrInfoBlob] = infoBlob
	}
	for key, val := range rec.Info {
		base[infoPrefix+key] = val
	}

	rows := make([]map[string]any, 0, len(header.Samples))
	for i, sample := range header.Samples {
		row := make(map[string]any, len(base)+8)
		for k, v := range base {
			row[k] = v
		}
		row[attrSampleName] = sample
		if i < len(rec.Samples) && len(rec.Samples[i]) > 0 {
			data, err := json.Marshal(rec.Samples[i])
			if err != nil {
				return nil, fmt.Errorf("encode fmt at %s:%d: %w", rec.Contig, rec.Pos, err)
			}
			row[attrFmtBlob] = string(data)
			for key, val := range rec.Samples[i] {
				row[fmtPrefix+key] = val
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func dedupKey(row map[string]any) string {
	name, _ := row[attrSampleName].(string)
	contig, _ := row[attrContig].(string)
	start, _ := row[attrPosStart].(int64)
	alleles, _ := row[attrAlleles].(string)
	return fmt.Sprintf("%s\x00%s\x00%d\x00%s", name, contig, start, alleles)
}

// -----------------------------------------------------------------------------
// Fragments
// -----------------------------------------------------------------------------

// writeFragment sorts, encodes, and stores one fragment, returning its
// manifest entry. The schema is widened with any header fields the
// manifest does not know yet so promoted columns land typed.
func (e *writeEngine) writeFragment(ctx context.Context, m *Manifest, infoDefs, fmtDefs []vcf.FieldDef, rows []map[string]any) (FragmentRef, error) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, _ := rows[i][attrContig].(string)
		cj, _ := rows[j][attrContig].(string)
		if ci != cj {
			return ci < cj
		}
		pi, _ := rows[i][attrPosStart].(int64)
		pj, _ := rows[j][attrPosStart].(int64)
		if pi != pj {
			return pi < pj
		}
		si, _ := rows[i][attrSampleName].(string)
		sj, _ := rows[j][attrSampleName].(string)
		return si < sj
	})

	widened := *m
	widened.InfoFields = mergeFields(m.InfoFields, infoDefs, m.ExtraAttributes, infoPrefix)
	widened.FormatFields = mergeFields(m.FormatFields, fmtDefs, m.ExtraAttributes, fmtPrefix)

	data, err := newFragmentSchema(&widened).encodeFragment(rows)
	if err != nil {
		return FragmentRef{}, err
	}
	sum, err := m.Checksum.sum(data)
	if err != nil {
		return FragmentRef{}, err
	}

	ref := FragmentRef{
		ID:        uuid.NewString(),
		Rows:      int64(len(rows)),
		Samples:   rowSamples(rows),
		Contigs:   rowContigs(rows),
		Checksum:  sum,
		CreatedAt: time.Now().UTC(),
	}
	ref.Path = fragmentPath(ref.ID)

	if err := e.ds.store.Put(ctx, ref.Path, data); err != nil {
		return FragmentRef{}, fmt.Errorf("varlake: store fragment %s: %w", ref.ID, err)
	}
	e.stats.FragmentsWrote++
	e.stats.RowsIngested += int64(len(rows))
	e.stats.BytesWritten += int64(len(data))
	e.log("fragment written", "id", ref.ID, "rows", len(rows), "bytes", len(data))
	return ref, nil
}

func rowSamples(rows []map[string]any) []string {
	set := make(map[string]struct{})
	for _, row := range rows {
		if name, ok := row[attrSampleName].(string); ok {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func rowContigs(rows []map[string]any) map[string]ContigSpan {
	spans := make(map[string]ContigSpan)
	for _, row := range rows {
		contig, _ := row[attrContig].(string)
		start, _ := row[attrPosStart].(int64)
		end, _ := row[attrPosEnd].(int64)
		span, ok := spans[contig]
		if !ok {
			spans[contig] = ContigSpan{Start: uint32(start), End: uint32(end)}
			continue
		}
		if uint32(start) < span.Start {
			span.Start = uint32(start)
		}
		if uint32(end) > span.End {
			span.End = uint32(end)
		}
		spans[contig] = span
	}
	return spans
}

// mergeFields unions header definitions into the manifest's promoted
// field list. A non-empty extras list restricts promotion to the named
// attributes; first definition of a field wins.
func mergeFields(known []FieldDescriptor, defs []vcf.FieldDef, extras []string, prefix string) []FieldDescriptor {
	merged := append([]FieldDescriptor(nil), known...)
	have := make(map[string]bool, len(merged))
	for _, f := range merged {
		have[f.Name] = true
	}
	for _, def := range defs {
		if have[def.ID] || !promoted(extras, prefix+def.ID) {
			continue
		}
		have[def.ID] = true
		merged = append(merged, FieldDescriptor{
			Name:   def.ID,
			Type:   string(def.Type),
			Number: def.Number,
		})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged
}

func promoted(extras []string, name string) bool {
	if len(extras) == 0 {
		return true
	}
	for _, e := range extras {
		if e == name {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Commit
// -----------------------------------------------------------------------------

func conditionalWriter(s Store) (ConditionalWriter, error) {
	cw, ok := s.(ConditionalWriter)
	if !ok {
		return nil, fmt.Errorf("varlake: store %T does not support conditional writes: %w", s, ErrInvalidArgument)
	}
	return cw, nil
}

// commitRegistry unions names into the sample registry. The union is
// idempotent, so a lost race just reloads and retries.
func (e *writeEngine) commitRegistry(ctx context.Context, names []string) error {
	cw, err := conditionalWriter(e.ds.store)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := e.ds.open(ctx); err != nil {
			return err
		}
		merged, changed := unionSamples(e.ds.registry.Samples, names)
		if !changed {
			return nil
		}
		encoded, err := encodeRegistry(&sampleRegistry{Samples: merged})
		if err != nil {
			return err
		}
		err = cw.CompareAndSwap(ctx, registryObject, e.ds.registryRaw, encoded)
		if err == nil {
			e.ds.reload()
			return nil
		}
		if !errors.Is(err, ErrCommitConflict) {
			return err
		}
		e.ds.reload()
	}
	return fmt.Errorf("varlake: registry commit kept conflicting: %w", ErrCommitConflict)
}

// commitFragments appends fragment refs and widened field descriptors to
// the manifest under compare-and-swap.
func (e *writeEngine) commitFragments(ctx context.Context, refs []FragmentRef, infoDefs, fmtDefs []vcf.FieldDef) error {
	if len(refs) == 0 {
		return nil
	}
	cw, err := conditionalWriter(e.ds.store)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := e.ds.open(ctx); err != nil {
			return err
		}
		next := *e.ds.manifest
		next.InfoFields = mergeFields(e.ds.manifest.InfoFields, infoDefs, e.ds.manifest.ExtraAttributes, infoPrefix)
		next.FormatFields = mergeFields(e.ds.manifest.FormatFields, fmtDefs, e.ds.manifest.ExtraAttributes, fmtPrefix)
		next.Fragments = append(append([]FragmentRef(nil), e.ds.manifest.Fragments...), refs...)

		encoded, err := encodeManifest(&next)
		if err != nil {
			return err
		}
		err = cw.CompareAndSwap(ctx, manifestObject, e.ds.manifestRaw, encoded)
		if err == nil {
			e.ds.reload()
			return nil
		}
		if !errors.Is(err, ErrCommitConflict) {
			return err
		}
		e.ds.reload()
	}
	return fmt.Errorf("varlake: manifest commit kept conflicting: %w", ErrCommitConflict)
}

func unionSamples(existing, names []string) ([]string, bool) {
	set := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		set[s] = struct{}{}
	}
	merged := append([]string(nil), existing...)
	changed := false
	for _, name := range names {
		if _, ok := set[name]; ok {
			continue
		}
		set[name] = struct{}{}
		merged = append(merged, name)
		changed = true
	}
	if changed {
		sort.Strings(merged)
	}
	return merged, changed
}

// -----------------------------------------------------------------------------
// Scratch staging
// -----------------------------------------------------------------------------

// scratchStage copies inputs into the configured scratch directory so
// parsing reads local files. A zero stage passes URIs through untouched.
type scratchStage struct {
	dir    string
	budget int64
	spent  int64
}

func (e *writeEngine) newScratchStage() (*scratchStage, error) {
	if e.scratchPath == "" {
		return &scratchStage{}, nil
	}
	dir := filepath.Join(e.scratchPath, "varlake-stage-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("varlake: scratch dir: %w", err)
	}
	return &scratchStage{
		dir:    dir,
		budget: int64(e.scratchMB) * (1 << 20),
	}, nil
}

// localize stages one input into scratch, charging its size against the
// budget. Without a stage directory the original path is returned.
func (s *scratchStage) localize(uri string) (string, error) {
	if s.dir == "" {
		return uri, nil
	}
	src, err := os.Open(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		return "", fmt.Errorf("varlake: stage %s: %w", uri, err)
	}
	defer closer(src)()

	dst, err := os.CreateTemp(s.dir, "input-*"+filepath.Ext(uri))
	if err != nil {
		return "", fmt.Errorf("varlake: stage %s: %w", uri, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("varlake: stage %s: %w", uri, err)
	}
	s.spent += n
	if s.spent > s.budget {
		return "", fmt.Errorf("varlake: scratch space exhausted staging %s (%d MB configured): %w",
			uri, s.budget>>20, ErrInvalidArgument)
	}
	return dst.Name(), nil
}

func (s *scratchStage) cleanup() {
	if s.dir != "" {
		os.RemoveAll(s.dir)
	}
}
