// Package vcf is a streaming reader for Variant Call Format text.
//
// It parses the header declarations needed to type INFO and FORMAT
// fields, then yields one Record per data line. Only the subset of VCF
// 4.x required for ingestion is understood: structured INFO/FORMAT/contig
// meta-lines, typed scalar fields, and per-sample genotype columns.
package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformed indicates input that does not parse as VCF.
var ErrMalformed = errors.New("malformed vcf")

// Scanner lines can be long when call sets carry many samples.
const maxLineBytes = 16 << 20

// FieldType is the declared type of an INFO or FORMAT field.
type FieldType string

const (
	TypeInteger   FieldType = "Integer"
	TypeFloat     FieldType = "Float"
	TypeFlag      FieldType = "Flag"
	TypeString    FieldType = "String"
	TypeCharacter FieldType = "Character"
)

// FieldDef describes one ##INFO or ##FORMAT header declaration.
type FieldDef struct {
	ID          string
	Number      string
	Type        FieldType
	Description string
}

// Header carries the metadata needed to interpret data lines.
type Header struct {
	FileFormat string
	Info       []FieldDef
	Format     []FieldDef
	Contigs    []string
	Samples    []string

	infoByID   map[string]FieldDef
	formatByID map[string]FieldDef
}

// InfoDef looks up an INFO declaration by ID.
func (h *Header) InfoDef(id string) (FieldDef, bool) {
	d, ok := h.infoByID[id]
	return d, ok
}

// FormatDef looks up a FORMAT declaration by ID.
func (h *Header) FormatDef(id string) (FieldDef, bool) {
	d, ok := h.formatByID[id]
	return d, ok
}

// SampleFields holds one sample's typed FORMAT values for a record.
// Missing fields ("." or absent trailing columns) carry no key.
type SampleFields map[string]any

// Record is one parsed data line.
type Record struct {
	Contig  string
	Pos     uint32
	ID      string
	Ref     string
	Alt     []string
	Qual    *float32
	Filter  []string
	Info    map[string]any
	Samples []SampleFields
}

// EndPos returns the 1-based inclusive end of the record: the INFO END
// field when present, otherwise start plus reference length minus one.
func (r *Record) EndPos() uint32 {
	if v, ok := r.Info["END"]; ok {
		switch end := v.(type) {
		case int32:
			return uint32(end)
		case string:
			if n, err := strconv.ParseUint(end, 10, 32); err == nil {
				return uint32(n)
			}
		}
	}
	if len(r.Ref) == 0 {
		return r.Pos
	}
	return r.Pos + uint32(len(r.Ref)) - 1
}

// Scanner reads a VCF stream: header first, then records.
//
//	sc := vcf.NewScanner(r)
//	hdr, err := sc.Header()
//	for sc.Scan() {
//		rec := sc.Record()
//	}
//	err = sc.Err()
type Scanner struct {
	sc     *bufio.Scanner
	header *Header
	rec    *Record
	err    error
	line   int
}

// NewScanner wraps r. The header is parsed on the first Header or Scan
// call.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Scanner{sc: sc}
}

// Header parses through the column header line and returns the result.
func (s *Scanner) Header() (*Header, error) {
	if s.header != nil || s.err != nil {
		return s.header, s.err
	}
	h := &Header{
		infoByID:   make(map[string]FieldDef),
		formatByID: make(map[string]FieldDef),
	}
	for s.sc.Scan() {
		s.line++
		line := s.sc.Text()
		switch {
		case strings.HasPrefix(line, "##"):
			if err := parseMetaLine(h, line); err != nil {
				s.err = fmt.Errorf("line %d: %w", s.line, err)
				return nil, s.err
			}
		case strings.HasPrefix(line, "#CHROM"):
			if err := parseColumnHeader(h, line); err != nil {
				s.err = fmt.Errorf("line %d: %w", s.line, err)
				return nil, s.err
			}
			s.header = h
			return h, nil
		case strings.TrimSpace(line) == "":
			continue
		default:
			s.err = fmt.Errorf("%w: line %d: data before column header", ErrMalformed, s.line)
			return nil, s.err
		}
	}
	if err := s.sc.Err(); err != nil {
		s.err = err
	} else {
		s.err = fmt.Errorf("%w: no #CHROM header line", ErrMalformed)
	}
	return nil, s.err
}

// Scan advances to the next record. It returns false at end of input or
// on error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if s.header == nil {
		if _, err := s.Header(); err != nil {
			return false
		}
	}
	for s.sc.Scan() {
		s.line++
		line := s.sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseRecord(s.header, line)
		if err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}
		s.rec = rec
		return true
	}
	s.err = s.sc.Err()
	return false
}

// Record returns the record produced by the last successful Scan.
func (s *Scanner) Record() *Record { return s.rec }

// Err returns the first error encountered, or nil at clean end of input.
func (s *Scanner) Err() error { return s.err }

// -----------------------------------------------------------------------------
// Header parsing
// -----------------------------------------------------------------------------

func parseMetaLine(h *Header, line string) error {
	body, ok := strings.CutPrefix(line, "##")
	if !ok {
		return fmt.Errorf("%w: not a meta line", ErrMalformed)
	}
	key, value, found := strings.Cut(body, "=")
	if !found {
		return fmt.Errorf("%w: meta line missing '='", ErrMalformed)
	}
	switch key {
	case "fileformat":
		h.FileFormat = value
	case "INFO":
		def, err := parseStructuredMeta(value)
		if err != nil {
			return err
		}
		h.Info = append(h.Info, def)
		h.infoByID[def.ID] = def
	case "FORMAT":
		def, err := parseStructuredMeta(value)
		if err != nil {
			return err
		}
		h.Format = append(h.Format, def)
		h.formatByID[def.ID] = def
	case "contig":
		fields, err := splitMetaFields(value)
		if err != nil {
			return err
		}
		if id := fields["ID"]; id != "" {
			h.Contigs = append(h.Contigs, id)
		}
	}
	return nil
}

func parseStructuredMeta(value string) (FieldDef, error) {
	fields, err := splitMetaFields(value)
	if err != nil {
		return FieldDef{}, err
	}
	def := FieldDef{
		ID:          fields["ID"],
		Number:      fields["Number"],
		Type:        FieldType(fields["Type"]),
		Description: fields["Description"],
	}
	if def.ID == "" {
		return FieldDef{}, fmt.Errorf("%w: structured meta line missing ID", ErrMalformed)
	}
	return def, nil
}

// splitMetaFields parses `<k1=v1,k2="v,2",...>` honoring quoted commas.
func splitMetaFields(value string) (map[string]string, error) {
	if !strings.HasPrefix(value, "<") || !strings.HasSuffix(value, ">") {
		return nil, fmt.Errorf("%w: structured meta value not angle-bracketed", ErrMalformed)
	}
	inner := value[1 : len(value)-1]
	fields := make(map[string]string)
	for len(inner) > 0 {
		eq := strings.Index(inner, "=")
		if eq < 0 {
			return nil, fmt.Errorf("%w: meta field missing '='", ErrMalformed)
		}
		key := inner[:eq]
		inner = inner[eq+1:]
		var val string
		if strings.HasPrefix(inner, `"`) {
			end := strings.Index(inner[1:], `"`)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quote in meta field %s", ErrMalformed, key)
			}
			val = inner[1 : 1+end]
			inner = inner[end+2:]
			inner = strings.TrimPrefix(inner, ",")
		} else if comma := strings.Index(inner, ","); comma >= 0 {
			val, inner = inner[:comma], inner[comma+1:]
		} else {
			val, inner = inner, ""
		}
		fields[key] = val
	}
	return fields, nil
}

func parseColumnHeader(h *Header, line string) error {
	cols := strings.Split(line, "\t")
	if len(cols) < 8 {
		return fmt.Errorf("%w: column header has %d fields, need 8", ErrMalformed, len(cols))
	}
	if len(cols) > 9 {
		h.Samples = cols[9:]
	}
	return nil
}

// -----------------------------------------------------------------------------
// Record parsing
// -----------------------------------------------------------------------------

func parseRecord(h *Header, line string) (*Record, error) {
	cols := strings.Split(line, "\t")
	want := 8
	if len(h.Samples) > 0 {
		want = 9 + len(h.Samples)
	}
	if len(cols) < want {
		return nil, fmt.Errorf("%w: record has %d fields, need %d", ErrMalformed, len(cols), want)
	}

	pos, err := strconv.ParseUint(cols[1], 10, 32)
	if err != nil || pos == 0 {
		return nil, fmt.Errorf("%w: bad POS %q", ErrMalformed, cols[1])
	}

	rec := &Record{
		Contig: cols[0],
		Pos:    uint32(pos),
		Ref:    cols[3],
	}
	if cols[2] != "." {
		rec.ID = cols[2]
	}
	if cols[4] != "." && cols[4] != "" {
		rec.Alt = strings.Split(cols[4], ",")
	}
	if cols[5] != "." {
		q, err := strconv.ParseFloat(cols[5], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad QUAL %q", ErrMalformed, cols[5])
		}
		qual := float32(q)
		rec.Qual = &qual
	}
	if cols[6] != "." && cols[6] != "" {
		rec.Filter = strings.Split(cols[6], ";")
	}

	rec.Info, err = parseInfo(h, cols[7])
	if err != nil {
		return nil, err
	}

	if len(h.Samples) > 0 {
		keys := strings.Split(cols[8], ":")
		rec.Samples = make([]SampleFields, len(h.Samples))
		for i := range h.Samples {
			rec.Samples[i] = parseSampleColumn(h, keys, cols[9+i])
		}
	}
	return rec, nil
}

func parseInfo(h *Header, field string) (map[string]any, error) {
	if field == "." || field == "" {
		return nil, nil
	}
	info := make(map[string]any)
	for _, entry := range strings.Split(field, ";") {
		if entry == "" {
			continue
		}
		key, raw, hasValue := strings.Cut(entry, "=")
		def, known := h.InfoDef(key)
		if !hasValue {
			// Presence-only entry; flags are the usual case.
			info[key] = true
			continue
		}
		if raw == "." {
			continue
		}
		if !known {
			info[key] = raw
			continue
		}
		v, err := convertValue(def, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: INFO %s: %v", ErrMalformed, key, err)
		}
		if v != nil {
			info[key] = v
		}
	}
	return info, nil
}

func parseSampleColumn(h *Header, keys []string, col string) SampleFields {
	if col == "." || col == "" {
		return nil
	}
	values := strings.Split(col, ":")
	fields := make(SampleFields, len(values))
	for i, key := range keys {
		// VCF 4.x allows trailing FORMAT fields to be dropped.
		if i >= len(values) || values[i] == "." || values[i] == "" {
			continue
		}
		if def, ok := h.FormatDef(key); ok {
			if v, err := convertValue(def, values[i]); err == nil && v != nil {
				fields[key] = v
				continue
			}
		}
		fields[key] = values[i]
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// convertValue applies the declared type to a raw value. Only
// single-valued fields (Number "1") convert to native kinds; multi-valued
// fields stay as their raw comma-joined text.
func convertValue(def FieldDef, raw string) (any, error) {
	if def.Number != "1" {
		return raw, nil
	}
	switch def.Type {
	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case TypeFlag:
		return true, nil
	default:
		return raw, nil
	}
}
