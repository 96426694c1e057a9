package imaging

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// CanonicalSize is the fixed edge length both operands are resized to
// before comparison. Aspect ratio is deliberately discarded: the cost and
// the output range stay constant regardless of the input dimensions.
const CanonicalSize = 300

const (
	ssimWindow = 7
	ssimK1     = 0.01
	ssimK2     = 0.03
	ssimL      = 255.0
)

// toGray collapses a color raster to single-channel luminance using the
// BT.601 weights OpenCV applies for its color-to-gray conversion.
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; weigh and scale back to 8-bit.
			luma := (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000 / 257
			if luma > 255 {
				luma = 255
			}
			gray.SetGray(x-bounds.Min.X, y-bounds.Min.Y, colorGray(luma))
		}
	}
	return gray
}

// canonicalize converts an image to grayscale and resizes it to the
// canonical comparison resolution, in that order.
func canonicalize(img image.Image) *image.Gray {
	gray := toGray(img)
	resized := resize.Resize(CanonicalSize, CanonicalSize, gray, resize.Bilinear)
	if g, ok := resized.(*image.Gray); ok {
		return g
	}
	return toGray(resized)
}

// ssim computes the mean structural similarity index between two
// equally-sized grayscale images: 7x7 uniform windows, K1=0.01, K2=0.03,
// dynamic range 255, sample-covariance normalization, averaged over every
// fully-interior window. Result is in [-1, 1]; 1 means identical local
// structure.
func ssim(a, b *image.Gray) float64 {
	w := a.Bounds().Dx()
	h := a.Bounds().Dy()

	c1 := (ssimK1 * ssimL) * (ssimK1 * ssimL)
	c2 := (ssimK2 * ssimL) * (ssimK2 * ssimL)

	np := float64(ssimWindow * ssimWindow)
	covNorm := np / (np - 1)

	var sum float64
	var count int

	for top := 0; top+ssimWindow <= h; top++ {
		for left := 0; left+ssimWindow <= w; left++ {
			var sx, sy, sxx, syy, sxy float64
			for dy := 0; dy < ssimWindow; dy++ {
				rowA := a.Pix[(top+dy)*a.Stride+left:]
				rowB := b.Pix[(top+dy)*b.Stride+left:]
				for dx := 0; dx < ssimWindow; dx++ {
					px := float64(rowA[dx])
					py := float64(rowB[dx])
					sx += px
					sy += py
					sxx += px * px
					syy += py * py
					sxy += px * py
				}
			}

			ux := sx / np
			uy := sy / np
			vx := covNorm * (sxx/np - ux*ux)
			vy := covNorm * (syy/np - uy*uy)
			vxy := covNorm * (sxy/np - ux*uy)

			numerator := (2*ux*uy + c1) * (2*vxy + c2)
			denominator := (ux*ux + uy*uy + c1) * (vx + vy + c2)
			sum += numerator / denominator
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func colorGray(v float64) color.Gray {
	return color.Gray{Y: uint8(v + 0.5)}
}
