package imaging

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"net/http"
	"os"
	"strings"

	// Decoders for the formats the signature file picker accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
)

// Loader normalizes a signature source into a decoded color raster.
// Sources are dispatched in order: HTTP(S) URL, PDF document, local file.
type Loader struct {
	client *http.Client
	logger *zap.Logger
}

// NewLoader builds a Loader. A nil client falls back to http.DefaultClient;
// callers wanting a fetch timeout pass a client carrying one.
func NewLoader(client *http.Client, logger *zap.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, logger: logger.Named("loader")}
}

// Load resolves source into an image. Remote fetch problems surface as
// *NetworkError, everything that fails to produce pixels as *DecodeError.
func (l *Loader) Load(ctx context.Context, source string) (image.Image, error) {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return l.loadURL(ctx, source)
	case strings.HasSuffix(lower, ".pdf"):
		return l.loadPDF(source)
	default:
		return l.loadFile(source)
	}
}

func (l *Loader) loadURL(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	// Decode straight off the wire, no buffering of the full body.
	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, &DecodeError{Source: url, Err: err}
	}
	l.logger.Debug("decoded remote image", zap.String("url", url), zap.String("format", format))
	return toRGBA(img), nil
}

func (l *Loader) loadPDF(path string) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, &DecodeError{Source: path, Err: errors.New("document has no pages")}
	}

	// Only page 1 carries the signature; remaining pages are discarded.
	img, err := doc.Image(0)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	return toRGBA(img), nil
}

func (l *Loader) loadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	return toRGBA(img), nil
}

// toRGBA normalizes every decoded raster to a color image. Grayscale and
// paletted inputs are expanded here so the scorer is the only place that
// collapses channels.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
