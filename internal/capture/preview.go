package capture

import (
	"image"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DefaultPreviewHold is how long the comparison window stays on screen.
const DefaultPreviewHold = time.Second

// WindowPreviewer shows the two canonical comparison images side by side in
// a transient window. It implements imaging.Previewer; failures are logged
// and dropped, never propagated.
type WindowPreviewer struct {
	Hold   time.Duration
	logger *zap.Logger
}

// NewWindowPreviewer builds a previewer with the default hold duration.
func NewWindowPreviewer(logger *zap.Logger) *WindowPreviewer {
	return &WindowPreviewer{Hold: DefaultPreviewHold, logger: logger.Named("preview")}
}

// Preview renders reference and candidate next to each other for the hold
// duration, then tears the window down.
func (p *WindowPreviewer) Preview(reference, candidate *image.Gray) {
	matA, err := gocv.ImageGrayToMatGray(reference)
	if err != nil {
		p.logger.Warn("preview skipped", zap.Error(err))
		return
	}
	defer matA.Close()

	matB, err := gocv.ImageGrayToMatGray(candidate)
	if err != nil {
		p.logger.Warn("preview skipped", zap.Error(err))
		return
	}
	defer matB.Close()

	combined := gocv.NewMat()
	defer combined.Close()
	gocv.Hconcat(matA, matB, &combined)

	window := gocv.NewWindow("Signature Comparison")
	defer window.Close()

	window.IMShow(combined)
	hold := p.Hold
	if hold <= 0 {
		hold = DefaultPreviewHold
	}
	window.WaitKey(int(hold.Milliseconds()))
}
