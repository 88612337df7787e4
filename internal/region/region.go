// Package region parses and manipulates genomic interval selections.
//
// Regions are 1-based inclusive intervals on a contig. The package covers
// the textual forms accepted by query selections ("chr1", "chr1:100",
// "chr1:100-200") and BED files, plus the sorting and merging applied
// before a scan is planned.
package region

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// MaxEnd is the open upper bound used when a region names no end position.
const MaxEnd = ^uint32(0)

// ErrInvalid indicates a region or BED line that could not be parsed.
var ErrInvalid = errors.New("invalid region")

// Region is a 1-based inclusive interval on a contig.
type Region struct {
	Contig string
	Start  uint32
	End    uint32
}

// Parse interprets a textual region specification.
//
// Accepted forms: "contig" (the whole contig), "contig:start" (from start
// to the end of the contig), and "contig:start-end". Contig names may
// themselves contain colons (e.g. HLA alleles); the range, if any, is
// taken from the last colon whose suffix parses as one.
func Parse(s string) (Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Region{}, fmt.Errorf("%w: empty specification", ErrInvalid)
	}

	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Region{Contig: s, Start: 1, End: MaxEnd}, nil
	}

	contig, rest := s[:idx], s[idx+1:]
	start, end, ok := parseRange(rest)
	if !ok {
		// The suffix is not a range; the colon belongs to the contig name.
		return Region{Contig: s, Start: 1, End: MaxEnd}, nil
	}
	if contig == "" {
		return Region{}, fmt.Errorf("%w: %q has no contig", ErrInvalid, s)
	}
	if start == 0 {
		return Region{}, fmt.Errorf("%w: %q positions are 1-based", ErrInvalid, s)
	}
	if end < start {
		return Region{}, fmt.Errorf("%w: %q end precedes start", ErrInvalid, s)
	}
	return Region{Contig: contig, Start: start, End: end}, nil
}

func parseRange(s string) (start, end uint32, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	lo, hi, found := strings.Cut(s, "-")
	v, err := strconv.ParseUint(lo, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	start = uint32(v)
	if !found {
		return start, MaxEnd, true
	}
	v, err = strconv.ParseUint(hi, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return start, uint32(v), true
}

// ParseAll parses each specification in order.
func ParseAll(specs []string) ([]Region, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]Region, 0, len(specs))
	for _, s := range specs {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Overlaps reports whether the interval [start, end] intersects r.
func (r Region) Overlaps(start, end uint32) bool {
	return r.Contig != "" && start <= r.End && end >= r.Start
}

// Contains reports whether pos falls within r.
func (r Region) Contains(pos uint32) bool {
	return pos >= r.Start && pos <= r.End
}

// String renders the canonical textual form.
func (r Region) String() string {
	if r.Start == 1 && r.End == MaxEnd {
		return r.Contig
	}
	if r.End == MaxEnd {
		return fmt.Sprintf("%s:%d", r.Contig, r.Start)
	}
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start, r.End)
}

// Sort orders regions by contig, then start, then end.
func Sort(rs []Region) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Contig != rs[j].Contig {
			return rs[i].Contig < rs[j].Contig
		}
		if rs[i].Start != rs[j].Start {
			return rs[i].Start < rs[j].Start
		}
		return rs[i].End < rs[j].End
	})
}

// Merge collapses overlapping or directly adjacent regions. The input must
// already be sorted; the result is a fresh slice.
func Merge(rs []Region) []Region {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Region, 0, len(rs))
	cur := rs[0]
	for _, r := range rs[1:] {
		if r.Contig == cur.Contig && (cur.End == MaxEnd || r.Start <= cur.End+1) {
			if r.End > cur.End {
				cur.End = r.End
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	return append(out, cur)
}

// ParseBED reads regions from BED text. BED coordinates are 0-based
// half-open and convert to 1-based inclusive. Lines beginning with "#",
// "track", or "browser" are skipped, as are blank lines.
func ParseBED(r io.Reader) ([]Region, error) {
	var out []Region
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") ||
			strings.HasPrefix(text, "track") || strings.HasPrefix(text, "browser") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: bed line %d has %d fields, need 3", ErrInvalid, line, len(fields))
		}
		start, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bed line %d start: %v", ErrInvalid, line, err)
		}
		end, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bed line %d end: %v", ErrInvalid, line, err)
		}
		if end <= start {
			return nil, fmt.Errorf("%w: bed line %d is empty or inverted", ErrInvalid, line)
		}
		out = append(out, Region{Contig: fields[0], Start: uint32(start) + 1, End: uint32(end)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
