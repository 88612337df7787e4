package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varlake/varlake/varlake"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "varlake.yaml")
	content := `
dataset: /data/cohort
attributes: [sample_name, contig, pos_start]
engine:
  read.batch_rows: "50000"
  read.bytes_per_record: ""
s3:
  endpoint: http://localhost:9000
  region: us-east-1
  access_key: minio
  secret_key: minio123
  path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/cohort", cfg.Dataset)
	assert.Equal(t, []string{"sample_name", "contig", "pos_start"}, cfg.Attributes)
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.PathStyle)

	// Empty-valued overrides are dropped by the list conversion.
	assert.Equal(t, []string{"read.batch_rows=50000"}, cfg.engineConfigList())
}

func TestLoadConfigMissingExplicitPath(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Dataset)
	assert.Nil(t, cfg.engineConfigList())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("VARLAKE_DATASET", "mem://envset")
	t.Setenv("VARLAKE_S3_ENDPOINT", "http://minio:9000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "mem://envset", cfg.Dataset)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
}

func TestResolveDataset(t *testing.T) {
	cfg := &Config{Dataset: "/from/config"}

	got, err := resolveDataset("/from/flag", cfg)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", got)

	got, err = resolveDataset("", cfg)
	require.NoError(t, err)
	assert.Equal(t, "/from/config", got)

	_, err = resolveDataset("", DefaultConfig())
	assert.Error(t, err)
}

func TestParsePartition(t *testing.T) {
	tests := []struct {
		input   string
		want    *varlake.Partition
		wantErr bool
	}{
		{input: "", want: nil},
		{input: "0/4", want: &varlake.Partition{Index: 0, Count: 4}},
		{input: "3/4", want: &varlake.Partition{Index: 3, Count: 4}},
		{input: "2", wantErr: true},
		{input: "a/4", wantErr: true},
		{input: "1/b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parsePartition(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestSessionOptionsPlainLocation(t *testing.T) {
	opts, err := sessionOptions(context.Background(), DefaultConfig(), GlobalFlags{}, "mem://cli-test")
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestOpenS3StoreRejectsBucketlessLocation(t *testing.T) {
	_, err := openS3Store(context.Background(), S3Config{}, "s3://")
	assert.Error(t, err)
}
