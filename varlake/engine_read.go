package varlake

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/varlake/varlake/internal/region"
	"github.com/varlake/varlake/internal/vcf"
)

// readEngine is the embedded engine behind a ReadSession: a cursor-based
// scanner over the dataset's fragment inventory.
type readEngine struct {
	ds     *datasetState
	logger *slog.Logger

	// Applied configuration. Survives Reset.
	maxRecords   uint64
	regionPart   *Partition
	samplePart   *Partition
	sortRegions  bool
	memoryBudget int
	cfg          engineConfig

	// Selection. Cleared by Reset.
	samplesCSV  *string
	samplesFile string
	regionsCSV  string
	bedFile     string
	attrs       []string
	attrsSet    bool

	// Scan state.
	plan      *scanPlan
	completed bool
	results   *Table
	resultNum uint64
	closed    bool

	// Diagnostics.
	statsEnabled bool
	verbose      bool
	stats        engineStats
}

func newReadEngine(store Store, logger *slog.Logger) *readEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &readEngine{
		ds:           &datasetState{store: store},
		logger:       logger,
		sortRegions:  true,
		memoryBudget: defaultMemoryBudgetMB,
		cfg:          make(engineConfig),
	}
}

func (e *readEngine) log(msg string, args ...any) {
	if e.verbose {
		e.logger.Info(msg, args...)
	} else {
		e.logger.Debug(msg, args...)
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (e *readEngine) Reset() error {
	if e.closed {
		return fmt.Errorf("varlake: reset on closed handle: %w", ErrInconsistentState)
	}
	e.samplesCSV = nil
	e.samplesFile = ""
	e.regionsCSV = ""
	e.bedFile = ""
	e.attrs = nil
	e.attrsSet = false
	e.plan = nil
	e.completed = false
	e.results = nil
	e.resultNum = 0
	return nil
}

func (e *readEngine) Close() error {
	e.closed = true
	e.plan = nil
	e.results = nil
	return nil
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (e *readEngine) SetMaxRecords(limit uint64) error {
	e.maxRecords = limit
	return nil
}

func (e *readEngine) SetRegionPartition(index, count int) error {
	p := Partition{Index: index, Count: count}
	if err := p.validate(); err != nil {
		return err
	}
	e.regionPart = &p
	return nil
}

func (e *readEngine) SetSamplePartition(index, count int) error {
	p := Partition{Index: index, Count: count}
	if err := p.validate(); err != nil {
		return err
	}
	e.samplePart = &p
	return nil
}

func (e *readEngine) SetSortRegions(sort bool) error {
	e.sortRegions = sort
	return nil
}

func (e *readEngine) SetMemoryBudgetMB(mb int) error {
	if mb <= 0 {
		return fmt.Errorf("varlake: memory budget %d: %w", mb, ErrInvalidArgument)
	}
	e.memoryBudget = mb
	return nil
}

func (e *readEngine) SetConfig(csv string) error {
	return e.cfg.apply(csv)
}

// -----------------------------------------------------------------------------
// Selection
// -----------------------------------------------------------------------------

func (e *readEngine) SetSamples(csv string) error {
	e.samplesCSV = &csv
	return nil
}

func (e *readEngine) SetSamplesFile(uri string) error {
	e.samplesFile = uri
	return nil
}

func (e *readEngine) SetRegions(csv string) error {
	e.regionsCSV = csv
	return nil
}

func (e *readEngine) SetBEDFile(uri string) error {
	e.bedFile = uri
	return nil
}

func (e *readEngine) SetAttributes(names []string) error {
	e.attrs = append([]string(nil), names...)
	e.attrsSet = true
	return nil
}

// -----------------------------------------------------------------------------
// Scan plan
// -----------------------------------------------------------------------------

// scanPlan is the frozen execution state of one query: the pruned
// fragment list, resolved filters, and the pagination cursor.
type scanPlan struct {
	fragments []FragmentRef
	regions   []region.Region
	samples   map[string]struct{} // nil selects all samples
	attrs     []string
	countOnly bool
	unitCap   int
	limit     uint64

	curFrag int
	curRow  int
	rows    []map[string]any // decoded rows of the current fragment
	emitted uint64
}

func (e *readEngine) buildPlan(ctx context.Context) error {
	if err := e.ds.open(ctx); err != nil {
		return err
	}

	p := &scanPlan{
		countOnly: !e.attrsSet,
		unitCap:   e.unitCap(),
		limit:     e.maxRecords,
	}

	samples, err := e.resolveSamples()
	if err != nil {
		return err
	}
	p.samples = samples

	p.regions, err = e.resolveRegions()
	if err != nil {
		return err
	}

	if !p.countOnly {
		queryable := make(map[string]bool)
		for _, a := range e.queryableList() {
			queryable[a] = true
		}
		for _, a := range e.attrs {
			if !queryable[a] {
				return fmt.Errorf("varlake: unknown attribute %q: %w", a, ErrInvalidArgument)
			}
		}
		p.attrs = e.attrs
	}

	for _, ref := range e.ds.manifest.Fragments {
		if fragmentMatches(ref, p) {
			p.fragments = append(p.fragments, ref)
		}
	}

	e.plan = p
	e.log("scan planned",
		"fragments", len(p.fragments),
		"regions", len(p.regions),
		"count_only", p.countOnly,
		"unit_cap", p.unitCap)
	return nil
}

// resolveSamples produces the selected-sample set, nil meaning all. A
// sample partition shards the sorted selection.
func (e *readEngine) resolveSamples() (map[string]struct{}, error) {
	var selected []string
	switch {
	case e.samplesFile != "":
		list, err := readSampleList(e.samplesFile)
		if err != nil {
			return nil, err
		}
		selected = list
	case e.samplesCSV != nil && *e.samplesCSV != "":
		selected = strings.Split(*e.samplesCSV, ",")
	}

	if selected == nil && e.samplePart == nil {
		return nil, nil
	}
	if selected == nil {
		selected = append([]string(nil), e.ds.registry.Samples...)
	} else {
		selected = append([]string(nil), selected...)
	}
	if e.samplePart != nil {
		sort.Strings(selected)
		selected = shardStrings(selected, *e.samplePart)
	}

	set := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		set[s] = struct{}{}
	}
	return set, nil
}

// resolveRegions parses the textual and BED selections, sorts and merges
// them unless disabled, and applies the region partition. Partitioning
// always works over the sorted list so shards are deterministic.
func (e *readEngine) resolveRegions() ([]region.Region, error) {
	var regs []region.Region
	if e.regionsCSV != "" {
		parsed, err := region.ParseAll(strings.Split(e.regionsCSV, ","))
		if err != nil {
			return nil, fmt.Errorf("varlake: parse regions: %v: %w", err, ErrInvalidArgument)
		}
		regs = parsed
	}
	if e.bedFile != "" {
		rc, err := vcf.Open(e.bedFile)
		if err != nil {
			return nil, fmt.Errorf("varlake: open bed file %s: %w", e.bedFile, err)
		}
		defer closer(rc)()
		fromBED, err := region.ParseBED(rc)
		if err != nil {
			return nil, fmt.Errorf("varlake: parse bed file %s: %v: %w", e.bedFile, err, ErrInvalidArgument)
		}
		regs = append(regs, fromBED...)
	}

	if e.regionPart != nil && len(regs) == 0 {
		regs = e.wholeContigRegions()
	}
	if e.sortRegions || e.regionPart != nil {
		region.Sort(regs)
		regs = region.Merge(regs)
	}
	if e.regionPart != nil {
		regs = shardRegions(regs, *e.regionPart)
	}
	return regs, nil
}

// wholeContigRegions synthesizes one whole-contig region per contig the
// dataset's fragments cover, so region partitioning works without an
// explicit region list.
func (e *readEngine) wholeContigRegions() []region.Region {
	seen := make(map[string]bool)
	var regs []region.Region
	for _, f := range e.ds.manifest.Fragments {
		for contig := range f.Contigs {
			if !seen[contig] {
				seen[contig] = true
				regs = append(regs, region.Region{Contig: contig, Start: 1, End: region.MaxEnd})
			}
		}
	}
	return regs
}

func shardStrings(list []string, p Partition) []string {
	lo := len(list) * p.Index / p.Count
	hi := len(list) * (p.Index + 1) / p.Count
	return list[lo:hi]
}

func shardRegions(list []region.Region, p Partition) []region.Region {
	lo := len(list) * p.Index / p.Count
	hi := len(list) * (p.Index + 1) / p.Count
	return list[lo:hi]
}

// fragmentMatches prunes fragments that cannot contribute to the plan.
func fragmentMatches(ref FragmentRef, p *scanPlan) bool {
	if p.samples != nil {
		any := false
		for _, s := range ref.Samples {
			if _, ok := p.samples[s]; ok {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	if len(p.regions) > 0 {
		any := false
		for contig, span := range ref.Contigs {
			for _, r := range p.regions {
				if r.Contig == contig && r.Overlaps(span.Start, span.End) {
					any = true
					break
				}
			}
			if any {
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func (p *scanPlan) matches(row map[string]any) bool {
	if p.samples != nil {
		name, _ := row[attrSampleName].(string)
		if _, ok := p.samples[name]; !ok {
			return false
		}
	}
	if len(p.regions) > 0 {
		contig, _ := row[attrContig].(string)
		start := rowPos(row, attrPosStart)
		end := rowPos(row, attrPosEnd)
		for _, r := range p.regions {
			if r.Contig == contig && r.Overlaps(start, end) {
				return true
			}
		}
		return false
	}
	return true
}

func rowPos(row map[string]any, key string) uint32 {
	v, _ := row[key].(int64)
	return uint32(v)
}

// unitCap derives the per-unit row cap: an explicit batch_rows override
// wins, otherwise the memory budget divided by the per-record estimate.
func (e *readEngine) unitCap() int {
	if rows := e.cfg.intValue(cfgReadBatchRows, 0); rows > 0 {
		return rows
	}
	perRecord := e.cfg.intValue(cfgReadBytesPerRecord, defaultBytesPerRecord)
	capRows := e.memoryBudget * (1 << 20) / perRecord
	if capRows < 1 {
		return 1
	}
	return capRows
}

func readSampleList(path string) ([]string, error) {
	rc, err := vcf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("varlake: open samples file %s: %w", path, err)
	}
	defer closer(rc)()

	var names []string
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("varlake: read samples file %s: %w", path, err)
	}
	return names, nil
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

func (e *readEngine) Read(ctx context.Context) error {
	if e.closed {
		return fmt.Errorf("varlake: read on closed handle: %w", ErrInconsistentState)
	}
	if e.plan == nil && !e.anySelection() {
		// Nothing was ever selected; there is nothing to scan.
		e.completed = true
		e.results = &Table{}
		e.resultNum = 0
		return nil
	}
	if e.plan == nil {
		if err := e.buildPlan(ctx); err != nil {
			return err
		}
	}
	if e.completed {
		// Exhausted; further units yield empty batches.
		e.resultNum = 0
		e.results = e.emptyResults()
		return nil
	}
	return e.runUnit(ctx)
}

func (e *readEngine) anySelection() bool {
	return e.attrsSet || e.samplesCSV != nil || e.samplesFile != "" ||
		e.regionsCSV != "" || e.bedFile != ""
}

// emptyResults builds a zero-row batch shaped like the current plan.
func (e *readEngine) emptyResults() *Table {
	if e.plan == nil || e.plan.countOnly {
		return &Table{}
	}
	columns := make([]Column, len(e.plan.attrs))
	for i, a := range e.plan.attrs {
		columns[i] = Column{Name: a, Values: []any{}}
	}
	t, err := NewTable(columns)
	if err != nil {
		return &Table{}
	}
	return t
}

func (e *readEngine) runUnit(ctx context.Context) error {
	p := e.plan
	var matched uint64
	var cols [][]any
	if !p.countOnly {
		cols = make([][]any, len(p.attrs))
	}

scan:
	for p.curFrag < len(p.fragments) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.rows == nil {
			rows, err := e.loadFragment(ctx, p.fragments[p.curFrag])
			if err != nil {
				return err
			}
			p.rows = rows
			p.curRow = 0
		}
		for p.curRow < len(p.rows) {
			row := p.rows[p.curRow]
			p.curRow++
			e.stats.RowsScanned++

			if !p.matches(row) {
				continue
			}
			matched++
			p.emitted++
			if !p.countOnly {
				for i, a := range p.attrs {
					cols[i] = append(cols[i], row[a])
				}
			}
			if p.limit > 0 && p.emitted >= p.limit {
				e.completed = true
				break scan
			}
			if !p.countOnly && int(matched) >= p.unitCap {
				// Unit buffer full; the cursor resumes here.
				return e.finishUnit(cols, matched)
			}
		}
		p.rows = nil
		p.curFrag++
	}

	e.completed = true
	return e.finishUnit(cols, matched)
}

func (e *readEngine) finishUnit(cols [][]any, matched uint64) error {
	e.stats.ReadUnits++
	e.stats.RowsMatched += int64(matched)
	e.resultNum = matched
	e.log("read unit done", "matched", matched, "completed", e.completed)

	if e.plan.countOnly {
		e.results = &Table{}
		return nil
	}
	columns := make([]Column, len(e.plan.attrs))
	for i, a := range e.plan.attrs {
		if cols[i] == nil {
			cols[i] = []any{}
		}
		columns[i] = Column{Name: a, Values: cols[i]}
	}
	t, err := NewTable(columns)
	if err != nil {
		return err
	}
	e.results = t
	return nil
}

func (e *readEngine) loadFragment(ctx context.Context, ref FragmentRef) ([]map[string]any, error) {
	data, err := e.ds.store.Get(ctx, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("varlake: fragment %s: %w", ref.ID, err)
	}
	e.stats.FragmentsOpened++
	e.stats.BytesRead += int64(len(data))

	if err := e.ds.manifest.Checksum.verify(ref.Path, data, ref.Checksum); err != nil {
		return nil, err
	}
	rows, err := decodeFragment(data)
	if err != nil {
		return nil, fmt.Errorf("varlake: fragment %s: %w", ref.ID, err)
	}
	return rows, nil
}

func (e *readEngine) Results() (*Table, error) {
	if e.results == nil {
		return nil, fmt.Errorf("varlake: no read unit has run: %w", ErrInconsistentState)
	}
	return e.results, nil
}

func (e *readEngine) Completed() bool { return e.completed }

func (e *readEngine) ResultCount() uint64 { return e.resultNum }

// -----------------------------------------------------------------------------
// Metadata
// -----------------------------------------------------------------------------

func (e *readEngine) queryableList() []string {
	out := append([]string(nil), builtinAttributes...)
	out = append(out, attrInfoBlob, attrFmtBlob)
	out = append(out, sortedFieldNames(e.ds.manifest.InfoFields, infoPrefix)...)
	out = append(out, sortedFieldNames(e.ds.manifest.FormatFields, fmtPrefix)...)
	return out
}

func (e *readEngine) QueryableAttributes(ctx context.Context) ([]string, error) {
	if err := e.ds.open(ctx); err != nil {
		return nil, err
	}
	return e.queryableList(), nil
}

func (e *readEngine) InfoAttributes(ctx context.Context) ([]string, error) {
	if err := e.ds.open(ctx); err != nil {
		return nil, err
	}
	return sortedFieldNames(e.ds.manifest.InfoFields, infoPrefix), nil
}

func (e *readEngine) FormatAttributes(ctx context.Context) ([]string, error) {
	if err := e.ds.open(ctx); err != nil {
		return nil, err
	}
	return sortedFieldNames(e.ds.manifest.FormatFields, fmtPrefix), nil
}

func (e *readEngine) SampleNames(ctx context.Context) ([]string, error) {
	if err := e.ds.open(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), e.ds.registry.Samples...), nil
}

func (e *readEngine) SampleCount(ctx context.Context) (int, error) {
	if err := e.ds.open(ctx); err != nil {
		return 0, err
	}
	return len(e.ds.registry.Samples), nil
}

func (e *readEngine) FormatVersion(ctx context.Context) (int, error) {
	if err := e.ds.open(ctx); err != nil {
		return 0, err
	}
	return e.ds.manifest.FormatVersion, nil
}

// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

func (e *readEngine) SetStatsEnabled(enabled bool) { e.statsEnabled = enabled }

func (e *readEngine) Stats() (string, error) {
	if !e.statsEnabled {
		return "", nil
	}
	return e.stats.encode()
}

func (e *readEngine) SetVerbose(verbose bool) { e.verbose = verbose }
