// Package service provides the application service that stores and restores
// entity graphs: it packs, encodes and uploads graphs, records them in the
// catalog, and reverses the pipeline on load.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/graphpack/internal/repository"
	"github.com/graphpack/internal/storage"
	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/codec"
	"github.com/graphpack/pkg/compression"
	"github.com/graphpack/pkg/config"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/model"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/parallel"
	"github.com/graphpack/pkg/registry"
	"github.com/graphpack/pkg/telemetry"
	"github.com/graphpack/pkg/unpacker"
	"github.com/graphpack/pkg/utils"
)

// ArtifactExt is appended to artifact keys to form storage object keys.
const ArtifactExt = ".gpak"

// Service is the main application service.
type Service struct {
	config    *config.Config
	logger    utils.Logger
	registry  *registry.Registry
	packer    *packer.Packer
	unpacker  *unpacker.Unpacker
	codecOpts codec.Options
	maxBody   int64
	storage   storage.Storage
	artifacts repository.ArtifactRepository
	repos     *repository.Repositories
	newKey    func() string
	clock     utils.Clock

	saved  atomic.Int64
	loaded atomic.Int64
	batch  atomic.Pointer[parallel.PoolMetrics]
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger utils.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry sets the registry used to unpack artifacts. The default is
// registry.Default.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Service) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithStorage injects an artifact store; Initialize then skips building one.
func WithStorage(store storage.Storage) Option {
	return func(s *Service) { s.storage = store }
}

// WithRepository injects a catalog; Initialize then skips opening a database.
func WithRepository(repo repository.ArtifactRepository) Option {
	return func(s *Service) { s.artifacts = repo }
}

// WithKeyGenerator replaces the uuid generator used for empty keys.
func WithKeyGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// WithClock sets the clock that stamps catalog records.
func WithClock(clock utils.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a new Service instance. Storage and catalog are connected by
// Initialize unless injected.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "service config is nil")
	}
	compressionType, level, err := cfg.Codec.Parse()
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:    cfg,
		logger:    utils.GetGlobalLogger(),
		registry:  registry.Default,
		codecOpts: codec.Options{Compression: compressionType, CompressionLevel: level},
		maxBody:   cfg.Codec.MaxDecodedSize,
		newKey:    uuid.NewString,
		clock:     utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBody <= 0 {
		s.maxBody = compression.DefaultMaxDecodedSize
	}

	s.packer = packer.New(packer.WithLogger(s.logger))
	s.unpacker = unpacker.New(s.registry,
		unpacker.WithLogger(s.logger),
		unpacker.WithMaxSweeps(cfg.Unpack.MaxSweeps))
	return s, nil
}

// Initialize initializes all service components.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	if s.artifacts == nil {
		if err := s.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	if s.storage == nil {
		if err := s.initStorage(); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	s.logger.Info("Service components initialized successfully")
	return nil
}

// initDatabase opens the catalog database and migrates it.
func (s *Service) initDatabase(ctx context.Context) error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	repos, err := repository.Open(ctx, &s.config.Database)
	if err != nil {
		return err
	}
	s.repos = repos
	s.artifacts = repos.Artifacts

	s.logger.Info("Database connection established")
	return nil
}

// initStorage initializes the object storage.
func (s *Service) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}
	s.storage = store

	s.logger.Info("Storage initialized")
	return nil
}

func (s *Service) ready() error {
	if s.storage == nil || s.artifacts == nil {
		return apperrors.New(apperrors.CodeContractViolation, "service is not initialized")
	}
	return nil
}

// Save packs root, encodes the bundles and stores them under key. An empty
// key is replaced by a generated one.
func (s *Service) Save(ctx context.Context, key string, root packer.Packable) (artifact *model.Artifact, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "save: nil root")
	}
	if key == "" {
		key = s.newKey()
	}

	ctx, span := telemetry.StartSpan(ctx, "graphpack.save",
		attribute.String("graphpack.key", key),
		attribute.String("graphpack.root_type", root.EntityType()))
	defer func() { telemetry.EndSpan(span, err) }()

	bundles, packStats, err := s.packer.PackRootWithStats(ctx, root)
	if err != nil {
		return nil, err
	}
	data, encStats, err := codec.Encode(bundles, s.codecOpts)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("graphpack.bundles", packStats.Bundles),
		attribute.Int64("graphpack.raw_size", encStats.RawSize),
		attribute.Int64("graphpack.stored_size", int64(len(data))))

	location := key + ArtifactExt
	if err := s.storage.Upload(ctx, location, bytes.NewReader(data)); err != nil {
		return nil, err
	}

	artifact = &model.Artifact{
		Key:           key,
		RootType:      root.EntityType(),
		BundleCount:   packStats.Bundles,
		RawSize:       encStats.RawSize,
		StoredSize:    int64(len(data)),
		Compression:   s.codecOpts.Compression.String(),
		FormatVersion: codec.FormatVersion,
		Checksum:      formatChecksum(encStats.Checksum),
		Location:      location,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.artifacts.Save(ctx, artifact); err != nil {
		if delErr := s.storage.Delete(ctx, location); delErr != nil {
			s.logger.Warn("Failed to remove orphaned object %s: %v", location, delErr)
		}
		return nil, err
	}

	s.saved.Add(1)
	s.logger.Info("Saved %s (%s): %d bundles, %d references, %d -> %d bytes",
		key, artifact.RootType, packStats.Bundles, packStats.References, encStats.RawSize, len(data))
	return artifact, nil
}

// Load restores the graph stored under key.
func (s *Service) Load(ctx context.Context, key string) (result *unpacker.Result, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartSpan(ctx, "graphpack.load", attribute.String("graphpack.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	artifact, bundles, _, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	result, err = s.unpacker.UnpackAll(ctx, bundles)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("graphpack.root_type", artifact.RootType),
		attribute.Int("graphpack.sweeps", result.Stats.Sweeps))

	s.loaded.Add(1)
	s.logger.Info("Loaded %s: %d entities in %d sweeps", key, result.Stats.Entities, result.Stats.Sweeps)
	return result, nil
}

// Inspect decodes the artifact stored under key without reconstructing it.
func (s *Service) Inspect(ctx context.Context, key string) (view codec.ArtifactView, err error) {
	if err := s.ready(); err != nil {
		return codec.ArtifactView{}, err
	}
	ctx, span := telemetry.StartSpan(ctx, "graphpack.inspect", attribute.String("graphpack.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	_, bundles, header, err := s.fetch(ctx, key)
	if err != nil {
		return codec.ArtifactView{}, err
	}
	return codec.NewArtifactView(header, bundles), nil
}

// fetch downloads and decodes an artifact, checking it against its catalog
// record.
func (s *Service) fetch(ctx context.Context, key string) (*model.Artifact, []*bundle.Bundle, codec.Header, error) {
	artifact, err := s.artifacts.GetByKey(ctx, key)
	if err != nil {
		return nil, nil, codec.Header{}, err
	}

	rc, err := s.storage.Download(ctx, artifact.Location)
	if err != nil {
		return nil, nil, codec.Header{}, err
	}
	defer rc.Close()

	maxBody := s.maxBody
	data, err := io.ReadAll(io.LimitReader(rc, maxBody+int64(codec.HeaderSize)+1))
	if err != nil {
		return nil, nil, codec.Header{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to read artifact", err)
	}
	if int64(len(data)) > maxBody+int64(codec.HeaderSize) {
		return nil, nil, codec.Header{}, apperrors.Newf(apperrors.CodeStructural,
			"artifact %s is larger than %d bytes", key, maxBody+int64(codec.HeaderSize))
	}

	bundles, header, err := codec.DecodeLimited(data, maxBody)
	if err != nil {
		return nil, nil, codec.Header{}, err
	}
	if got := formatChecksum(header.Checksum); got != artifact.Checksum {
		return nil, nil, codec.Header{}, apperrors.Newf(apperrors.CodeStructural,
			"artifact %s checksum %s does not match catalog %s", key, got, artifact.Checksum)
	}
	return artifact, bundles, header, nil
}

// List returns catalog records, newest first.
func (s *Service) List(ctx context.Context, opts model.ListOptions) ([]*model.Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.artifacts.List(ctx, opts)
}

// Delete removes the artifact stored under key from storage and catalog.
func (s *Service) Delete(ctx context.Context, key string) (err error) {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, span := telemetry.StartSpan(ctx, "graphpack.delete", attribute.String("graphpack.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	artifact, err := s.artifacts.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, artifact.Location); err != nil {
		return err
	}
	if err := s.artifacts.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info("Deleted %s", key)
	return nil
}

// DeleteBatch deletes artifacts concurrently and stops at the first failure.
func (s *Service) DeleteBatch(ctx context.Context, keys []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return parallel.ForEach(ctx, keys, s.config.Batch.Workers, s.Delete)
}

// BatchItem is one graph to save in a batch.
type BatchItem struct {
	Key  string
	Root packer.Packable
}

// BatchResult is the outcome of saving one BatchItem.
type BatchResult = parallel.TaskResult[BatchItem, *model.Artifact]

// SaveBatch saves independent graphs concurrently, each in its own packing
// session. Results keep the order of items; failures are reported per item.
func (s *Service) SaveBatch(ctx context.Context, items []BatchItem) []BatchResult {
	pool := parallel.NewWorkerPool[BatchItem, *model.Artifact](
		parallel.DefaultPoolConfig().WithWorkers(s.config.Batch.Workers))

	results := pool.ExecuteFunc(ctx, items, func(ctx context.Context, item BatchItem) (*model.Artifact, error) {
		return s.Save(ctx, item.Key, item.Root)
	})

	metrics := pool.Metrics()
	s.batch.Store(&metrics)
	s.logger.Info("Batch saved %d/%d graphs", metrics.CompletedTasks, metrics.TotalTasks)
	return results
}

// Close releases the catalog connection.
func (s *Service) Close() error {
	s.logger.Info("Stopping service...")
	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
			return err
		}
	}
	s.logger.Info("Service stopped")
	return nil
}

// Registry returns the registry used for unpacking.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{
		Saved:  s.saved.Load(),
		Loaded: s.loaded.Load(),
	}
	if m := s.batch.Load(); m != nil {
		stats.LastBatch = *m
	}
	return stats
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Saved     int64                `json:"saved"`
	Loaded    int64                `json:"loaded"`
	LastBatch parallel.PoolMetrics `json:"last_batch"`
}

func formatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
