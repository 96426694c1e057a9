package imaging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestScorer() *Scorer {
	return NewScorer(NewLoader(nil, zap.NewNop()), nil, zap.NewNop())
}

// strokesImage paints dark diagonal strokes on a white background, roughly
// the texture of a scanned signature.
func strokesImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 0; x < width; x++ {
		for thickness := 0; thickness < 3; thickness++ {
			y := (x + thickness) % height
			img.Set(x, y, color.Black)
			img.Set(x, (y+height/3)%height, color.Black)
		}
	}
	return img
}

// noiseImage fills pixels from a deterministic generator so runs are
// reproducible.
func noiseImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	state := uint32(0x9e3779b9)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			state = state*1664525 + 1013904223
			img.Set(x, y, color.RGBA{R: uint8(state >> 8), G: uint8(state >> 16), B: uint8(state >> 24), A: 255})
		}
	}
	return img
}

func TestScoreIdenticalImagesIsPerfect(t *testing.T) {
	scorer := newTestScorer()
	img := strokesImage(120, 90)

	score := scorer.Score(img, img)
	if score != 100.00 {
		t.Fatalf("expected 100.00 for identical images, got %v", score)
	}
}

func TestScoreIsSymmetric(t *testing.T) {
	scorer := newTestScorer()
	a := strokesImage(120, 90)
	b := noiseImage(80, 80)

	ab := scorer.Score(a, b)
	ba := scorer.Score(b, a)
	if ab != ba {
		t.Fatalf("score is not symmetric: %v vs %v", ab, ba)
	}
}

func TestScoreSeparatesUnrelatedImages(t *testing.T) {
	scorer := newTestScorer()
	a := strokesImage(120, 90)
	b := noiseImage(120, 90)

	score := scorer.Score(a, b)
	if score >= 75.0 {
		t.Fatalf("expected unrelated images to score below 75.0, got %v", score)
	}
	if score == ScoreNotPerformed {
		t.Fatal("valid comparison must not produce the sentinel")
	}
}

func TestScoreStaysInRange(t *testing.T) {
	scorer := newTestScorer()
	cases := []struct {
		name string
		a, b image.Image
	}{
		{"strokes vs noise", strokesImage(64, 64), noiseImage(64, 64)},
		{"noise vs noise", noiseImage(33, 97), noiseImage(64, 64)},
		{"strokes vs strokes", strokesImage(300, 300), strokesImage(100, 220)},
	}
	for _, tc := range cases {
		score := scorer.Score(tc.a, tc.b)
		if score < -100 || score > 100 {
			t.Fatalf("%s: score %v outside [-100, 100]", tc.name, score)
		}
	}
}

func TestScoreSourcesSentinelOnMissingPath(t *testing.T) {
	scorer := newTestScorer()
	dir := t.TempDir()
	good := writePNG(t, filepath.Join(dir, "good.png"), strokesImage(50, 50))

	score, err := scorer.ScoreSources(context.Background(), good, filepath.Join(dir, "missing.png"))
	if score != ScoreNotPerformed {
		t.Fatalf("expected sentinel %d, got %v", ScoreNotPerformed, score)
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestScoreSourcesSentinelOnZeroByteFile(t *testing.T) {
	scorer := newTestScorer()
	dir := t.TempDir()
	good := writePNG(t, filepath.Join(dir, "good.png"), strokesImage(50, 50))

	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("failed to write empty file: %v", err)
	}

	score, err := scorer.ScoreSources(context.Background(), empty, good)
	if score != ScoreNotPerformed {
		t.Fatalf("expected sentinel %d, got %v", ScoreNotPerformed, score)
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

type recordingPreviewer struct {
	called chan struct{}
}

func (r *recordingPreviewer) Preview(_, _ *image.Gray) {
	close(r.called)
}

func TestScoreInvokesPreviewerWithoutBlocking(t *testing.T) {
	previewer := &recordingPreviewer{called: make(chan struct{})}
	scorer := NewScorer(NewLoader(nil, zap.NewNop()), previewer, zap.NewNop())

	score := scorer.Score(strokesImage(40, 40), strokesImage(40, 40))
	if score != 100.00 {
		t.Fatalf("expected 100.00, got %v", score)
	}

	select {
	case <-previewer.called:
	case <-time.After(time.Second):
		t.Fatal("previewer was never invoked")
	}
}

func writePNG(t *testing.T, path string, img image.Image) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return path
}
