package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/sig-verify/internal/logging"
	"github.com/example/sig-verify/internal/repository"
	"github.com/example/sig-verify/internal/storage"
)

// ErrInvalidInput is returned when user id or signature source is blank.
var ErrInvalidInput = errors.New("user id and signature source must be non-empty")

// ErrStorageNotConfigured is returned when an upload is requested without a
// configured object storage collaborator.
var ErrStorageNotConfigured = errors.New("object storage is not configured")

// SignatureStore defines the record operations needed by the use case.
type SignatureStore interface {
	Save(ctx context.Context, record *repository.SignatureRecord) error
	FindLatest(ctx context.Context, userID string) (*repository.SignatureRecord, error)
}

// AuditStore defines the audit trail operations needed by the use case.
type AuditStore interface {
	SaveLog(ctx context.Context, log *repository.VerificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.VerificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Scorer compares a stored reference source against a candidate source.
type Scorer interface {
	ScoreSources(ctx context.Context, srcA, srcB string) (float64, error)
}

// Uploader pushes a local asset to object storage and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, logicalKey string) (string, error)
}

// VerifyResult is the outcome of one verification attempt.
type VerifyResult struct {
	RequestID     string    `json:"request_id"`
	UserID        string    `json:"user_id"`
	ReferencePath string    `json:"reference_path"`
	CandidatePath string    `json:"candidate_path"`
	Score         float64   `json:"score"`
	Matched       bool      `json:"matched"`
	Threshold     float64   `json:"threshold"`
	CreatedAt     time.Time `json:"created_at"`
}

// VerificationUseCase encapsulates the save and verify flows.
type VerificationUseCase struct {
	records  SignatureStore
	audit    AuditStore
	cache    Cache
	scorer   Scorer
	uploader Uploader

	threshold float64
	logger    *zap.Logger

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationUseCase constructs a use case instance. uploader may be nil
// when no object storage is configured.
func NewVerificationUseCase(records SignatureStore, audit AuditStore, cache Cache, scorer Scorer, uploader Uploader, threshold float64, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		records:        records,
		audit:          audit,
		cache:          cache,
		scorer:         scorer,
		uploader:       uploader,
		threshold:      threshold,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// SaveSignature registers a reference signature for a user. With upload set
// the local asset is first pushed to object storage and the returned secure
// URL becomes the stored asset reference. Records are append-only.
func (uc *VerificationUseCase) SaveSignature(ctx context.Context, userID, source string, upload bool) (*repository.SignatureRecord, error) {
	userID = strings.TrimSpace(userID)
	source = strings.TrimSpace(source)
	if userID == "" || source == "" {
		return nil, ErrInvalidInput
	}

	opLogger := logging.WithUser(uc.logger, userID)

	switch {
	case upload && storage.IsRemoteAsset(source):
		// Already provider-hosted; re-uploading would only mint a new copy.
		opLogger.Info("source already remote, skipping upload", zap.String("source", source))
	case upload:
		if uc.uploader == nil {
			return nil, ErrStorageNotConfigured
		}
		key := fmt.Sprintf("signatures/%s/%s", userID, uuid.NewString())
		secureURL, err := uc.uploader.Upload(ctx, source, key)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.upload_asset", "", err)
			opLogger.Error("asset upload failed", zap.Error(wrapped))
			return nil, wrapped
		}
		source = secureURL
	}

	record, err := repository.NewSignatureRecord(userID, source)
	if err != nil {
		return nil, err
	}
	if err := uc.records.Save(ctx, record); err != nil {
		wrapped := logging.NewOperationError("usecase.save_signature", "", err)
		opLogger.Error("failed to save signature record", zap.Error(wrapped))
		return nil, wrapped
	}

	opLogger.Info("signature saved", zap.String("signature_path", record.SignaturePath))
	return record, nil
}

// VerifySignature scores the user's stored reference signature against the
// candidate source and decides match or non-match at the configured
// threshold. The comparison is always image content, never path equality.
func (uc *VerificationUseCase) VerifySignature(ctx context.Context, userID, candidate string) (*VerifyResult, error) {
	userID = strings.TrimSpace(userID)
	candidate = strings.TrimSpace(candidate)
	if userID == "" || candidate == "" {
		return nil, ErrInvalidInput
	}

	record, err := uc.records.FindLatest(ctx, userID)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(logging.WithUser(uc.logger, userID), "usecase.verify_signature", requestID)

	score, err := uc.scorer.ScoreSources(ctx, record.SignaturePath, candidate)
	if err != nil {
		// Sentinel case: the comparison could not be performed at all.
		wrapped := logging.NewOperationError("usecase.score", requestID, err)
		opLogger.Error("comparison could not be performed", zap.Error(wrapped))
		return nil, wrapped
	}

	result := &VerifyResult{
		RequestID:     requestID,
		UserID:        userID,
		ReferencePath: record.SignaturePath,
		CandidatePath: candidate,
		Score:         score,
		Matched:       score > uc.threshold,
		Threshold:     uc.threshold,
		CreatedAt:     time.Now().UTC(),
	}

	log := &repository.VerificationLog{
		RequestID:     result.RequestID,
		UserID:        result.UserID,
		ReferencePath: result.ReferencePath,
		CandidatePath: result.CandidatePath,
		Score:         result.Score,
		Matched:       result.Matched,
		Threshold:     result.Threshold,
		CreatedAt:     result.CreatedAt,
	}
	if err := uc.audit.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_audit_log", requestID, err)
		opLogger.Error("failed to persist verification attempt", zap.Error(wrapped))
		return nil, wrapped
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		opLogger.Error("failed to serialize verification result", zap.Error(err))
		return nil, err
	}
	cacheKey := verificationCacheKey(requestID)
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache verification result", zap.Error(err))
		return nil, err
	}

	opLogger.Info("verification completed",
		zap.Float64("score", result.Score),
		zap.Bool("matched", result.Matched))
	return result, nil
}

// GetResult retrieves a verification outcome, cache first, audit store as
// fallback.
func (uc *VerificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*VerifyResult, error) {
	cacheKey := verificationCacheKey(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var result VerifyResult
		if err := json.Unmarshal([]byte(cached), &result); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else if result.UserID == userID {
			return &result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.audit.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		RequestID:     log.RequestID,
		UserID:        log.UserID,
		ReferencePath: log.ReferencePath,
		CandidatePath: log.CandidatePath,
		Score:         log.Score,
		Matched:       log.Matched,
		Threshold:     log.Threshold,
		CreatedAt:     log.CreatedAt,
	}, nil
}

func verificationCacheKey(requestID string) string {
	return fmt.Sprintf("verification:%s", requestID)
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
