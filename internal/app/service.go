// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	submitqueue "github.com/verax/verax/internal/adapters/mq/queue"
	workerpool "github.com/verax/verax/internal/adapters/mq/worker"
	"github.com/verax/verax/internal/adapters/repository"
	"github.com/verax/verax/internal/domain/codec"
	"github.com/verax/verax/internal/domain/dedupe"
	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/internal/domain/reputation"
	"github.com/verax/verax/internal/domain/types"
	"github.com/verax/verax/pkg/logger"
	"github.com/verax/verax/pkg/metrics"
)

// Store backend identifiers accepted by WithStoreBackend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

const (
	defaultMode    = "ai-graded"
	maxSubmitScore = 100
)

// SubmitRequest carries one attestation into the write path.
type SubmitRequest struct {
	Key          model.IdentityKey
	Mode         string
	Domain       string
	Subdomain    string
	Score        uint64
	ArtifactHash string
	Timestamp    uint64
}

// SubmitResult reports how a submission was disposed of.
type SubmitResult struct {
	SubmissionID string
	Duplicate    bool
	Accepted     bool
}

// Service implements the API dependencies for the attestation ledger.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.BlobStore
	deduper dedupe.Deduper
	queue   submitqueue.Queue
	pool    *workerpool.Pool
	engine  *reputation.Engine

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	storeBackend   string
	sqlitePath     string
	maxLedgerBytes int
	halfLifeDays   float64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of append workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStoreBackend selects the ledger store implementation. path is
// only used by the sqlite backend.
func WithStoreBackend(backend, path string) Option {
	return func(s *Service) {
		if backend != "" {
			s.storeBackend = backend
		}
		s.sqlitePath = path
	}
}

// WithMaxLedgerBytes sets the per-identity ledger byte ceiling.
func WithMaxLedgerBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLedgerBytes = n
		}
	}
}

// WithHalfLife sets the score decay half-life in days.
func WithHalfLife(days float64) Option {
	return func(s *Service) {
		if days > 0 {
			s.halfLifeDays = days
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      100000,
		dedupeSize:     50000,
		storeBackend:   BackendMemory,
		maxLedgerBytes: repository.DefaultMaxLedgerBytes,
		halfLifeDays:   reputation.DefaultHalfLifeDays,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting attestation ledger service...")

	switch s.storeBackend {
	case BackendSQLite:
		store, err := repository.NewSQLiteStore(ctx, s.sqlitePath,
			repository.WithMaxLedgerBytes(s.maxLedgerBytes),
		)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
	case BackendMemory:
		s.store = repository.NewMemStore(
			repository.WithMaxLedgerBytes(s.maxLedgerBytes),
		)
		s.logger.Info(ctx, "using in-memory store")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.storeBackend)
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = submitqueue.NewInMemoryQueue(
		submitqueue.WithCapacity(s.queueSize),
	)
	s.engine = reputation.NewEngine(
		reputation.WithHalfLife(s.halfLifeDays),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "attestation ledger service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxLedgerBytes", s.maxLedgerBytes),
	)

	return nil
}

// Stop gracefully shuts down the service, draining queued submissions.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping attestation ledger service...")

	// Close the queue first so workers drain the backlog and exit.
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "attestation ledger service stopped")
}

// Submit validates, dedupes and enqueues one attestation. The write is
// asynchronous: an accepted result means the record is queued, not yet
// persisted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.Mode == "" {
		req.Mode = defaultMode
	}
	if err := validateSubmit(req); err != nil {
		return SubmitResult{}, err
	}

	// Submission time is assigned server-side unless the caller carries
	// an explicit historical timestamp.
	if req.Timestamp == 0 {
		req.Timestamp = uint64(time.Now().Unix())
	}

	domain := req.Domain
	if req.Subdomain != "" {
		domain = req.Domain + ":" + req.Subdomain
	}

	// The derived hash binds the base domain, not the composed one.
	artifactHash := req.ArtifactHash
	if artifactHash == "" {
		artifactHash = deriveArtifactHash(req.Domain, req.Score, req.Timestamp)
	}

	// Content fingerprint, not submission id: resubmitting the same
	// attestation bytes is a duplicate even with a fresh request.
	fingerprint := fmt.Sprintf("%s|%s|%s|%d|%d",
		req.Key.String(), req.Mode, domain, req.Score, req.Timestamp)

	if s.deduper.SeenAndRecord(ctx, fingerprint) {
		metrics.RecordDuplicate()
		s.logger.Debug(ctx, "duplicate submission skipped",
			logger.String("identity", req.Key.String()),
			logger.String("domain", domain),
		)
		return SubmitResult{Duplicate: true, Accepted: true}, nil
	}

	sub := model.Submission{
		SubmissionID: uuid.NewString(),
		Key:          req.Key,
		Record: model.SkillRecord{
			Mode:         req.Mode,
			Domain:       domain,
			Score:        req.Score,
			ArtifactHash: artifactHash,
			Timestamp:    req.Timestamp,
		},
	}

	if !s.queue.Enqueue(ctx, sub) {
		// Roll back the dedupe entry so the caller can retry.
		s.deduper.Unrecord(ctx, fingerprint)
		return SubmitResult{}, ErrQueueFull
	}

	metrics.RecordSubmission()
	return SubmitResult{SubmissionID: sub.SubmissionID, Accepted: true}, nil
}

// GetRaw returns a snapshot of the identity's raw ledger buffer.
func (s *Service) GetRaw(ctx context.Context, key model.IdentityKey) ([]byte, error) {
	return s.store.Get(ctx, key)
}

// RecordCount returns the number of complete records in the ledger.
func (s *Service) RecordCount(ctx context.Context, key model.IdentityKey) (int, error) {
	buf, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return codec.Count(buf), nil
}

// Records returns the decoded record list for an identity. Malformed
// frames are skipped, not surfaced as errors.
func (s *Service) Records(ctx context.Context, key model.IdentityKey) ([]types.RecordView, error) {
	buf, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	res := codec.Decode(buf)
	s.observeDecode(res)

	views := make([]types.RecordView, len(res.Records))
	for i, rec := range res.Records {
		views[i] = types.RecordView{
			Mode:         rec.Mode,
			Domain:       rec.Domain,
			Score:        rec.Score,
			ArtifactHash: rec.ArtifactHash,
			Timestamp:    rec.Timestamp,
		}
	}
	return views, nil
}

// Profile decodes the ledger and computes the reputation profile.
func (s *Service) Profile(ctx context.Context, key model.IdentityKey) (types.Profile, error) {
	start := time.Now()
	defer func() {
		metrics.RecordProfileCompute(float64(time.Since(start).Milliseconds()))
	}()

	buf, err := s.store.Get(ctx, key)
	if err != nil {
		return types.Profile{}, err
	}

	res := codec.Decode(buf)
	s.observeDecode(res)

	profile := s.engine.Compute(key, res.Records)
	profile.SkippedFrameCount = len(res.Failures)
	profile.TruncatedTailBytes = res.TruncatedBytes
	return profile, nil
}

// Verify answers whether an identity's ledger clears the verification
// bar, bundling the profile it was judged on.
func (s *Service) Verify(ctx context.Context, key model.IdentityKey) (types.Verification, error) {
	profile, err := s.Profile(ctx, key)
	if err != nil {
		return types.Verification{}, err
	}
	return types.Verification{
		IdentityKey: key.String(),
		RecordCount: profile.TotalRecords,
		Verified:    profile.VerificationBadge,
		Profile:     profile,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"backend":     s.storeBackend,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		totalLedgers := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalLedgers"] = totalLedgers

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalLedgers(totalLedgers)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// observeDecode records codec health signals off the read path.
func (s *Service) observeDecode(res codec.Result) {
	if len(res.Failures) > 0 {
		metrics.RecordDecodeFailures(len(res.Failures))
	}
	if res.Truncated {
		metrics.RecordTruncatedRead()
	}
}

func validateSubmit(req SubmitRequest) error {
	switch {
	case strings.TrimSpace(req.Domain) == "":
		return fmt.Errorf("%w: missing domain", ErrInvalidSubmission)
	case req.Score > maxSubmitScore:
		return fmt.Errorf("%w: score must be at most %d", ErrInvalidSubmission, maxSubmitScore)
	case strings.Contains(req.Domain, ":"):
		return fmt.Errorf("%w: domain must not contain ':', use subdomain", ErrInvalidSubmission)
	case strings.Contains(req.Subdomain, ":"):
		return fmt.Errorf("%w: subdomain must not contain ':'", ErrInvalidSubmission)
	}
	return nil
}

// deriveArtifactHash substitutes a content hash when the submitter did
// not attach one, so every stored record carries a non-empty artifact
// reference.
func deriveArtifactHash(domain string, score, timestamp uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", domain, score, timestamp)))
	return hex.EncodeToString(sum[:])
}
