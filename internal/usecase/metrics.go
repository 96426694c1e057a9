package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalVerifications int64   `json:"total_verifications"`
	Matches            int64   `json:"matches"`
	MatchRate          float64 `json:"match_rate"`
	AverageScore       float64 `json:"average_score"`
}

// GetMetricsSummary aggregates verification metrics from the audit trail.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.audit.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalVerifications: aggregation.TotalCount,
		Matches:            aggregation.MatchCount,
		AverageScore:       aggregation.AverageScore,
	}

	if aggregation.TotalCount > 0 {
		summary.MatchRate = float64(aggregation.MatchCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
