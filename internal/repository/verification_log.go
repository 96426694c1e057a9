package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrResultNotFound is returned when no audit row matches a result lookup.
var ErrResultNotFound = errors.New("verification result not found")

// VerificationLog is the audit row persisted for every verification attempt.
type VerificationLog struct {
	ID            uint      `gorm:"primaryKey"`
	RequestID     string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID        string    `gorm:"column:user_id;size:64;index"`
	ReferencePath string    `gorm:"column:reference_path;type:text"`
	CandidatePath string    `gorm:"column:candidate_path;type:text"`
	Score         float64   `gorm:"column:score"`
	Matched       bool      `gorm:"column:matched"`
	Threshold     float64   `gorm:"column:threshold"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (VerificationLog) TableName() string {
	return "verification_logs"
}

// MetricsAggregation holds raw aggregates over the audit log.
type MetricsAggregation struct {
	TotalCount   int64   `gorm:"column:total_count"`
	MatchCount   int64   `gorm:"column:match_count"`
	AverageScore float64 `gorm:"column:average_score"`
}

// VerificationLogRepository provides persistence APIs for the audit trail.
type VerificationLogRepository struct {
	db *gorm.DB
}

// NewVerificationLogRepository creates a new repository instance.
func NewVerificationLogRepository(db *gorm.DB) *VerificationLogRepository {
	return &VerificationLogRepository{db: db}
}

// AutoMigrate ensures the schema is available.
func (r *VerificationLogRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationLog{})
}

// SaveLog persists one verification attempt.
func (r *VerificationLogRepository) SaveLog(ctx context.Context, log *VerificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByRequestIDAndUser retrieves an audit row matching the request and owner.
func (r *VerificationLogRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*VerificationLog, error) {
	var log VerificationLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics computes totals, matches, and the average score across
// all audit rows.
func (r *VerificationLogRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.db.WithContext(ctx).
		Model(&VerificationLog{}).
		Select("COUNT(*) AS total_count, " +
			"COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0) AS match_count, " +
			"COALESCE(AVG(score), 0) AS average_score").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
