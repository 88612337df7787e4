package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"

	"github.com/varlake/varlake/varlake"
	vls3 "github.com/varlake/varlake/varlake/s3"
)

// Config is the YAML configuration file. Every field has a flag or
// environment override; flags win over environment, environment over
// file.
type Config struct {
	// Dataset is the default dataset location.
	Dataset string `yaml:"dataset"`

	// Attributes is the default export attribute selection.
	Attributes []string `yaml:"attributes"`

	// Engine holds engine key=value overrides applied to every session.
	Engine map[string]string `yaml:"engine"`

	// S3 configures the client for s3:// dataset locations.
	S3 S3Config `yaml:"s3"`
}

// S3Config selects the endpoint and credentials for s3:// locations.
// Empty fields fall back to the AWS default chain.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads the YAML config at path. An empty path loads
// defaults; a missing explicit path is an error. Environment overrides
// are applied either way.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VARLAKE_DATASET"); v != "" {
		c.Dataset = v
	}
	if v := os.Getenv("VARLAKE_S3_ENDPOINT"); v != "" {
		c.S3.Endpoint = v
	}
	if v := os.Getenv("VARLAKE_S3_REGION"); v != "" {
		c.S3.Region = v
	}
}

// resolveDataset picks the dataset location: flag over config.
func resolveDataset(flagValue string, cfg *Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Dataset != "" {
		return cfg.Dataset, nil
	}
	return "", fmt.Errorf("no dataset location: pass --dataset or set it in the config file")
}

// sessionOptions builds the common options for a session on location:
// logger, verbosity, and an explicit store for s3:// locations. Other
// locations resolve inside the library.
func sessionOptions(ctx context.Context, cfg *Config, globals GlobalFlags, location string) ([]varlake.SessionOption, error) {
	opts := []varlake.SessionOption{
		varlake.WithLogger(slog.Default()),
		varlake.WithVerbose(globals.Verbose),
	}
	if strings.HasPrefix(location, "s3://") {
		store, err := openS3Store(ctx, cfg.S3, location)
		if err != nil {
			return nil, err
		}
		opts = append(opts, varlake.WithStore(store))
	}
	return opts, nil
}

// openS3Store builds a varlake store for an s3://bucket/prefix location.
// Explicit credentials and endpoint come from the config file; absent
// fields use the AWS default chain, so IAM roles and ~/.aws work as
// usual.
func openS3Store(ctx context.Context, sc S3Config, location string) (varlake.Store, error) {
	storeCfg, err := vls3.ParseLocation(location)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if sc.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(sc.Region))
	}
	if sc.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
		}
		if sc.PathStyle {
			o.UsePathStyle = true
		}
	})
	return vls3.New(client, storeCfg)
}

// engineConfigList converts the config file's engine override map to the
// session list form.
func (c *Config) engineConfigList() []string {
	return varlake.ConfigFromMap(c.Engine)
}

// parsePartition interprets an "index/count" flag value.
func parsePartition(s string) (*varlake.Partition, error) {
	if s == "" {
		return nil, nil
	}
	idx, count, found := strings.Cut(s, "/")
	if !found {
		return nil, fmt.Errorf("partition %q: want index/count", s)
	}
	var p varlake.Partition
	if _, err := fmt.Sscanf(idx, "%d", &p.Index); err != nil {
		return nil, fmt.Errorf("partition %q: bad index", s)
	}
	if _, err := fmt.Sscanf(count, "%d", &p.Count); err != nil {
		return nil, fmt.Errorf("partition %q: bad count", s)
	}
	return &p, nil
}
