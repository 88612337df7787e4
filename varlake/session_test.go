package varlake

import (
	"errors"
	"reflect"
	"testing"
)

// -----------------------------------------------------------------------------
// Option validity
// -----------------------------------------------------------------------------

func TestNewWriteSession_RejectsReadOnlyOptions(t *testing.T) {
	readOnly := []struct {
		name string
		opt  SessionOption
	}{
		{"WithReadConfig", WithReadConfig(ReadConfig{})},
		{"WithReadEngine", WithReadEngine(&scriptedReadEngine{})},
		{"WithStats", WithStats(true)},
	}
	for _, tc := range readOnly {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWriteSession("mem://opts", tc.opt)
			if !errors.Is(err, ErrInvalidMode) {
				t.Errorf("expected ErrInvalidMode, got: %v", err)
			}
		})
	}
}

func TestNewReadSession_RejectsWriteOnlyOptions(t *testing.T) {
	writeOnly := []struct {
		name string
		opt  SessionOption
	}{
		{"WithWriteConfig", WithWriteConfig(WriteConfig{})},
		{"WithWriteEngine", WithWriteEngine(&recordingWriteEngine{})},
	}
	for _, tc := range writeOnly {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReadSession("mem://opts", tc.opt)
			if !errors.Is(err, ErrInvalidMode) {
				t.Errorf("expected ErrInvalidMode, got: %v", err)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Configuration application
// -----------------------------------------------------------------------------

func TestNewReadSession_AppliesConfigOnce(t *testing.T) {
	engine := &scriptedReadEngine{}
	_, err := NewReadSession("scripted",
		WithReadEngine(engine),
		WithReadConfig(ReadConfig{
			Limit:           Uint64(100),
			RegionPartition: &Partition{Index: 1, Count: 4},
			SamplePartition: &Partition{Index: 0, Count: 2},
			SortRegions:     Bool(false),
			MemoryBudgetMB:  Int(512),
			EngineConfig:    []string{"read.batch_rows=64", "io.retries=3"},
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"SetMaxRecords(100)",
		"SetRegionPartition(1,4)",
		"SetSamplePartition(0,2)",
		"SetSortRegions(false)",
		"SetMemoryBudgetMB(512)",
		"SetConfig(read.batch_rows=64,io.retries=3)",
	}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

func TestNewReadSession_PartialConfigSkipsUnsetFields(t *testing.T) {
	engine := &scriptedReadEngine{}
	_, err := NewReadSession("scripted",
		WithReadEngine(engine),
		WithReadConfig(ReadConfig{Limit: Uint64(10)}),
	)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"SetMaxRecords(10)"}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

func TestNewReadSession_InvalidPartition(t *testing.T) {
	cases := []Partition{
		{Index: -1, Count: 2},
		{Index: 2, Count: 2},
		{Index: 0, Count: 0},
	}
	for _, p := range cases {
		_, err := NewReadSession("scripted",
			WithReadEngine(&scriptedReadEngine{}),
			WithReadConfig(ReadConfig{RegionPartition: &p}),
		)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("partition %+v: expected ErrInvalidArgument, got: %v", p, err)
		}
	}
}

func TestNewWriteSession_AppliesEngineConfig(t *testing.T) {
	engine := &recordingWriteEngine{version: 2}
	_, err := NewWriteSession("scripted",
		WithWriteEngine(engine),
		WithWriteConfig(WriteConfig{EngineConfig: []string{"ingest.fragment_rows=500"}}),
	)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"SetConfig(ingest.fragment_rows=500)"}
	if !reflect.DeepEqual(engine.calls, want) {
		t.Errorf("call sequence = %v, want %v", engine.calls, want)
	}
}

// -----------------------------------------------------------------------------
// Store resolution
// -----------------------------------------------------------------------------

func TestResolveStore_MemorySharedByName(t *testing.T) {
	a, err := resolveStore("mem://shared-resolution", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := resolveStore("mem://shared-resolution", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same mem:// name resolved to different stores")
	}

	c, err := resolveStore("mem://other-resolution", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("different mem:// names shared a store")
	}
}

func TestResolveStore_ExplicitStoreWins(t *testing.T) {
	explicit := NewMemory()
	got, err := resolveStore("s3://bucket/prefix", explicit)
	if err != nil {
		t.Fatal(err)
	}
	if got != explicit {
		t.Error("explicit store was not used")
	}
}

func TestResolveStore_UnknownSchemeNeedsStore(t *testing.T) {
	_, err := resolveStore("s3://bucket/prefix", nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got: %v", err)
	}
}

func TestResolveStore_EmptyLocation(t *testing.T) {
	_, err := resolveStore("", nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got: %v", err)
	}
}
