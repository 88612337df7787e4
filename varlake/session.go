package varlake

import (
	"fmt"
	"log/slog"
)

// -----------------------------------------------------------------------------
// Session configuration
// -----------------------------------------------------------------------------

// readSessionConfig holds the resolved configuration for a read session.
type readSessionConfig struct {
	store   Store
	engine  ReadEngine
	cfg     *ReadConfig
	stats   bool
	verbose bool
	logger  *slog.Logger
}

// writeSessionConfig holds the resolved configuration for a write session.
type writeSessionConfig struct {
	store   Store
	engine  WriteEngine
	cfg     *WriteConfig
	verbose bool
	logger  *slog.Logger
}

// SessionOption configures session construction. Options implement
// methods for the constructors they support; using an option with an
// unsupported constructor returns an error wrapping ErrInvalidMode.
type SessionOption interface {
	applyRead(*readSessionConfig) error
	applyWrite(*writeSessionConfig) error
}

// storeOption implements SessionOption for WithStore.
type storeOption struct {
	store Store
}

// WithStore supplies the storage backend directly instead of deriving it
// from the dataset location. Required for locations whose scheme the
// session cannot resolve on its own, such as s3://.
func WithStore(s Store) SessionOption {
	return &storeOption{store: s}
}

func (o *storeOption) applyRead(cfg *readSessionConfig) error {
	cfg.store = o.store
	return nil
}

func (o *storeOption) applyWrite(cfg *writeSessionConfig) error {
	cfg.store = o.store
	return nil
}

// loggerOption implements SessionOption for WithLogger.
type loggerOption struct {
	logger *slog.Logger
}

// WithLogger sets the logger the session and its engine report through.
// Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return &loggerOption{logger: l}
}

func (o *loggerOption) applyRead(cfg *readSessionConfig) error {
	cfg.logger = o.logger
	return nil
}

func (o *loggerOption) applyWrite(cfg *writeSessionConfig) error {
	cfg.logger = o.logger
	return nil
}

// verboseOption implements SessionOption for WithVerbose.
type verboseOption struct {
	verbose bool
}

// WithVerbose raises engine progress reporting to info level.
// Default: false.
func WithVerbose(v bool) SessionOption {
	return &verboseOption{verbose: v}
}

func (o *verboseOption) applyRead(cfg *readSessionConfig) error {
	cfg.verbose = o.verbose
	return nil
}

func (o *verboseOption) applyWrite(cfg *writeSessionConfig) error {
	cfg.verbose = o.verbose
	return nil
}

// statsOption implements SessionOption for WithStats (read-only).
type statsOption struct {
	enabled bool
}

// WithStats enables engine statistics collection, retrievable through
// Stats after reads. Default: false.
// This option is only valid for NewReadSession.
func WithStats(enabled bool) SessionOption {
	return &statsOption{enabled: enabled}
}

func (o *statsOption) applyRead(cfg *readSessionConfig) error {
	cfg.stats = o.enabled
	return nil
}

func (o *statsOption) applyWrite(*writeSessionConfig) error {
	return fmt.Errorf("WithStats: %w", ErrInvalidMode)
}

// readConfigOption implements SessionOption for WithReadConfig (read-only).
type readConfigOption struct {
	cfg ReadConfig
}

// WithReadConfig applies query configuration to the session's engine at
// construction. Each present field is applied exactly once.
// This option is only valid for NewReadSession.
func WithReadConfig(cfg ReadConfig) SessionOption {
	return &readConfigOption{cfg: cfg}
}

func (o *readConfigOption) applyRead(cfg *readSessionConfig) error {
	cfg.cfg = &o.cfg
	return nil
}

func (o *readConfigOption) applyWrite(*writeSessionConfig) error {
	return fmt.Errorf("WithReadConfig: %w", ErrInvalidMode)
}

// writeConfigOption implements SessionOption for WithWriteConfig (write-only).
type writeConfigOption struct {
	cfg WriteConfig
}

// WithWriteConfig applies ingestion configuration to the session's
// engine at construction.
// This option is only valid for NewWriteSession.
func WithWriteConfig(cfg WriteConfig) SessionOption {
	return &writeConfigOption{cfg: cfg}
}

func (o *writeConfigOption) applyRead(*readSessionConfig) error {
	return fmt.Errorf("WithWriteConfig: %w", ErrInvalidMode)
}

func (o *writeConfigOption) applyWrite(cfg *writeSessionConfig) error {
	cfg.cfg = &o.cfg
	return nil
}

// readEngineOption implements SessionOption for WithReadEngine (read-only).
type readEngineOption struct {
	engine ReadEngine
}

// WithReadEngine substitutes the storage engine the session drives.
// Default: the embedded engine over the resolved store.
// This option is only valid for NewReadSession.
func WithReadEngine(e ReadEngine) SessionOption {
	return &readEngineOption{engine: e}
}

func (o *readEngineOption) applyRead(cfg *readSessionConfig) error {
	cfg.engine = o.engine
	return nil
}

func (o *readEngineOption) applyWrite(*writeSessionConfig) error {
	return fmt.Errorf("WithReadEngine: %w", ErrInvalidMode)
}

// writeEngineOption implements SessionOption for WithWriteEngine (write-only).
type writeEngineOption struct {
	engine WriteEngine
}

// WithWriteEngine substitutes the storage engine the session drives.
// Default: the embedded engine over the resolved store.
// This option is only valid for NewWriteSession.
func WithWriteEngine(e WriteEngine) SessionOption {
	return &writeEngineOption{engine: e}
}

func (o *writeEngineOption) applyRead(*readSessionConfig) error {
	return fmt.Errorf("WithWriteEngine: %w", ErrInvalidMode)
}

func (o *writeEngineOption) applyWrite(cfg *writeSessionConfig) error {
	cfg.engine = o.engine
	return nil
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

// NewReadSession opens a query session against the dataset at the given
// location. Construction performs no I/O; the engine touches storage on
// the first operation that needs it.
//
// Locations resolve to a store as follows: "mem://name" shares an
// in-process store per name, "file://" and bare paths use the local
// filesystem, and any other scheme requires WithStore.
func NewReadSession(dataset string, opts ...SessionOption) (*ReadSession, error) {
	cfg := &readSessionConfig{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt.applyRead(cfg); err != nil {
			return nil, fmt.Errorf("varlake: %w", err)
		}
	}

	engine := cfg.engine
	if engine == nil {
		store, err := resolveStore(dataset, cfg.store)
		if err != nil {
			return nil, err
		}
		engine = newReadEngine(store, cfg.logger)
	}
	engine.SetStatsEnabled(cfg.stats)
	engine.SetVerbose(cfg.verbose)
	if cfg.cfg != nil {
		if err := applyReadConfig(engine, *cfg.cfg); err != nil {
			return nil, err
		}
	}

	return &ReadSession{
		dataset: dataset,
		engine:  engine,
		logger:  cfg.logger,
	}, nil
}

// NewWriteSession opens a creation and ingestion session against the
// dataset at the given location. Construction performs no I/O.
//
// Location resolution follows NewReadSession.
func NewWriteSession(dataset string, opts ...SessionOption) (*WriteSession, error) {
	cfg := &writeSessionConfig{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt.applyWrite(cfg); err != nil {
			return nil, fmt.Errorf("varlake: %w", err)
		}
	}

	engine := cfg.engine
	if engine == nil {
		store, err := resolveStore(dataset, cfg.store)
		if err != nil {
			return nil, err
		}
		engine = newWriteEngine(store, cfg.logger)
	}
	engine.SetVerbose(cfg.verbose)
	if cfg.cfg != nil {
		if err := applyWriteConfig(engine, *cfg.cfg); err != nil {
			return nil, err
		}
	}

	return &WriteSession{
		dataset: dataset,
		engine:  engine,
		logger:  cfg.logger,
	}, nil
}
