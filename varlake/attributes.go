package varlake

import (
	"context"
	"fmt"
	"sort"
)

// Attributes lists the dataset's queryable attribute names for one
// class. ClassAll covers everything addressable in a query except the
// combination pseudo-attributes; ClassBuiltin additionally excludes the
// per-field INFO and FORMAT columns.
func (s *ReadSession) Attributes(ctx context.Context, class AttributeClass) ([]string, error) {
	switch class {
	case ClassInfo:
		return s.engine.InfoAttributes(ctx)
	case ClassFormat:
		return s.engine.FormatAttributes(ctx)
	case ClassAll, ClassBuiltin:
	default:
		return nil, fmt.Errorf("varlake: attribute class %q: %w", class, ErrInvalidArgument)
	}

	queryable, err := s.engine.QueryableAttributes(ctx)
	if err != nil {
		return nil, err
	}
	drop := map[string]bool{
		attrInfoBlob: true,
		attrFmtBlob:  true,
	}
	if class == ClassBuiltin {
		info, err := s.engine.InfoAttributes(ctx)
		if err != nil {
			return nil, err
		}
		format, err := s.engine.FormatAttributes(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range info {
			drop[a] = true
		}
		for _, a := range format {
			drop[a] = true
		}
	}

	out := make([]string, 0, len(queryable))
	seen := make(map[string]bool, len(queryable))
	for _, a := range queryable {
		if drop[a] || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}
