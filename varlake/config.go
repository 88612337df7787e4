package varlake

import (
	"fmt"
	"sort"
	"strings"
)

// ReadConfig carries the optional settings applied to a read engine at
// session construction. Nil fields stage nothing; each present field is
// translated into exactly one engine call, in declaration order, exactly
// once per session.
type ReadConfig struct {
	// Limit caps the total records returned across all read units.
	Limit *uint64

	// RegionPartition restricts the scan to one shard of the region space.
	RegionPartition *Partition

	// SamplePartition restricts the scan to one shard of the sample space.
	SamplePartition *Partition

	// SortRegions controls whether regions are sorted and merged before
	// planning. Engines default to sorting.
	SortRegions *bool

	// MemoryBudgetMB bounds the buffer a single read unit may fill.
	MemoryBudgetMB *int

	// EngineConfig holds engine overrides as ordered "key=value" strings.
	// ConfigFromMap converts a map to this form.
	EngineConfig []string
}

// WriteConfig carries the optional settings applied to a write engine at
// session construction.
type WriteConfig struct {
	// EngineConfig holds engine overrides as ordered "key=value" strings.
	EngineConfig []string
}

// ConfigFromMap converts engine overrides from map form to the ordered
// list form: keys sorted, entries with empty values dropped.
func ConfigFromMap(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + m[k]
	}
	return out
}

// Pointer helpers for the optional config fields.

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 { return &v }

// applyReadConfig stages each present field on the engine. It is called
// exactly once per session, before the first read.
func applyReadConfig(e ReadEngine, cfg ReadConfig) error {
	if cfg.Limit != nil {
		if err := e.SetMaxRecords(*cfg.Limit); err != nil {
			return fmt.Errorf("varlake: apply limit: %w", err)
		}
	}
	if cfg.RegionPartition != nil {
		if err := cfg.RegionPartition.validate(); err != nil {
			return err
		}
		if err := e.SetRegionPartition(cfg.RegionPartition.Index, cfg.RegionPartition.Count); err != nil {
			return fmt.Errorf("varlake: apply region partition: %w", err)
		}
	}
	if cfg.SamplePartition != nil {
		if err := cfg.SamplePartition.validate(); err != nil {
			return err
		}
		if err := e.SetSamplePartition(cfg.SamplePartition.Index, cfg.SamplePartition.Count); err != nil {
			return fmt.Errorf("varlake: apply sample partition: %w", err)
		}
	}
	if cfg.SortRegions != nil {
		if err := e.SetSortRegions(*cfg.SortRegions); err != nil {
			return fmt.Errorf("varlake: apply sort regions: %w", err)
		}
	}
	if cfg.MemoryBudgetMB != nil {
		if err := e.SetMemoryBudgetMB(*cfg.MemoryBudgetMB); err != nil {
			return fmt.Errorf("varlake: apply memory budget: %w", err)
		}
	}
	if len(cfg.EngineConfig) > 0 {
		if err := e.SetConfig(strings.Join(cfg.EngineConfig, ",")); err != nil {
			return fmt.Errorf("varlake: apply engine config: %w", err)
		}
	}
	return nil
}

// applyWriteConfig stages each present field on the engine.
func applyWriteConfig(e WriteEngine, cfg WriteConfig) error {
	if len(cfg.EngineConfig) > 0 {
		if err := e.SetConfig(strings.Join(cfg.EngineConfig, ",")); err != nil {
			return fmt.Errorf("varlake: apply engine config: %w", err)
		}
	}
	return nil
}
