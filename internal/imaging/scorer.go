package imaging

import (
	"context"
	"image"
	"math"

	"go.uber.org/zap"
)

// ScoreNotPerformed is the sentinel returned when a comparison could not be
// carried out at all. Callers must treat it as "no score", never as a valid
// low-similarity result.
const ScoreNotPerformed = -1

// Previewer renders the two canonical comparison images for an operator.
// Implementations are cosmetic only: they run asynchronously and their
// failures never affect the score.
type Previewer interface {
	Preview(reference, candidate *image.Gray)
}

// Scorer turns two images, or two loadable sources, into a structural
// similarity percentage.
type Scorer struct {
	loader    *Loader
	previewer Previewer
	logger    *zap.Logger
}

// NewScorer builds a Scorer. previewer may be nil.
func NewScorer(loader *Loader, previewer Previewer, logger *zap.Logger) *Scorer {
	return &Scorer{loader: loader, previewer: previewer, logger: logger.Named("scorer")}
}

// Score compares two already-decoded images and reports their structural
// similarity as a percentage in [-100, 100], rounded to two decimals.
func (s *Scorer) Score(imgA, imgB image.Image) float64 {
	canonA := canonicalize(imgA)
	canonB := canonicalize(imgB)

	if s.previewer != nil {
		// Fire and forget: the preview window must not delay the result.
		go s.previewer.Preview(canonA, canonB)
	}

	return roundScore(ssim(canonA, canonB) * 100)
}

// ScoreSources loads both operands and scores them. Any load or decode
// failure yields the ScoreNotPerformed sentinel together with the causal
// error.
func (s *Scorer) ScoreSources(ctx context.Context, srcA, srcB string) (float64, error) {
	imgA, err := s.loader.Load(ctx, srcA)
	if err != nil {
		s.logger.Warn("failed to load first operand", zap.String("source", srcA), zap.Error(err))
		return ScoreNotPerformed, err
	}

	imgB, err := s.loader.Load(ctx, srcB)
	if err != nil {
		s.logger.Warn("failed to load second operand", zap.String("source", srcB), zap.Error(err))
		return ScoreNotPerformed, err
	}

	return s.Score(imgA, imgB), nil
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
