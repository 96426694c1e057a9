package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestLoader() *Loader {
	return NewLoader(nil, zap.NewNop())
}

func TestLoadLocalFile(t *testing.T) {
	loader := newTestLoader()
	path := writePNG(t, filepath.Join(t.TempDir(), "sig.png"), strokesImage(60, 40))

	img, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 60 || got.Dy() != 40 {
		t.Fatalf("unexpected bounds: %v", got)
	}
	if _, ok := img.(*image.RGBA); !ok {
		t.Fatalf("expected color raster, got %T", img)
	}
}

func TestLoadMissingFile(t *testing.T) {
	loader := newTestLoader()

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "absent.png"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestLoadURL(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, strokesImage(60, 40)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	loader := newTestLoader()
	img, err := loader.Load(context.Background(), server.URL+"/sig.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 60 || got.Dy() != 40 {
		t.Fatalf("unexpected bounds: %v", got)
	}
}

func TestLoadURLNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	loader := newTestLoader()
	_, err := loader.Load(context.Background(), server.URL+"/absent.png")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", netErr.StatusCode)
	}
}

func TestLoadURLTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	loader := newTestLoader()
	_, err := loader.Load(context.Background(), url+"/sig.png")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestLoadURLUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	}))
	defer server.Close()

	loader := newTestLoader()
	_, err := loader.Load(context.Background(), server.URL+"/sig.png")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestURLAndFileSourcesScoreEqually(t *testing.T) {
	reference := strokesImage(80, 60)
	third := writePNG(t, filepath.Join(t.TempDir(), "third.png"), noiseImage(80, 60))
	local := writePNG(t, filepath.Join(t.TempDir(), "ref.png"), reference)

	var buf bytes.Buffer
	if err := png.Encode(&buf, reference); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	scorer := newTestScorer()
	fromFile, err := scorer.ScoreSources(context.Background(), local, third)
	if err != nil {
		t.Fatalf("file comparison failed: %v", err)
	}
	fromURL, err := scorer.ScoreSources(context.Background(), server.URL+"/ref.png", third)
	if err != nil {
		t.Fatalf("url comparison failed: %v", err)
	}

	if math.Abs(fromFile-fromURL) > 0.01 {
		t.Fatalf("url and file sources diverged: %v vs %v", fromURL, fromFile)
	}
}

func TestLoadPDFUsesOnlyFirstPage(t *testing.T) {
	const blackPage = "0 0 0 rg 0 0 612 792 re f"

	dir := t.TempDir()
	whiteFirst := filepath.Join(dir, "white_first.pdf")
	writeTestPDF(t, whiteFirst, []string{"", blackPage})
	blackFirst := filepath.Join(dir, "black_first.pdf")
	writeTestPDF(t, blackFirst, []string{blackPage, ""})

	loader := newTestLoader()

	img, err := loader.Load(context.Background(), whiteFirst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if luma := meanLuma(img); luma < 200 {
		t.Fatalf("expected white first page, mean luma %v", luma)
	}

	img, err = loader.Load(context.Background(), blackFirst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if luma := meanLuma(img); luma > 55 {
		t.Fatalf("expected black first page, mean luma %v", luma)
	}
}

func TestLoadPDFSuffixIsCaseInsensitive(t *testing.T) {
	loader := newTestLoader()

	// Dispatch must route to the PDF path, which fails on the missing file.
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "absent.PDF"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func meanLuma(img image.Image) float64 {
	gray := toGray(img)
	var sum float64
	for _, v := range gray.Pix {
		sum += float64(v)
	}
	return sum / float64(len(gray.Pix))
}

// writeTestPDF assembles a minimal multi-page PDF with the given page
// content streams, tracking byte offsets so the xref table is exact.
func writeTestPDF(t *testing.T, path string, pageContents []string) {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := range pageContents {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+2*i)
	}

	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, len(pageContents)))

	for i, content := range pageContents {
		pageObj := 3 + 2*i
		addObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>\nendobj\n", pageObj, pageObj+1))
		addObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", pageObj+1, len(content), content))
	}

	xrefPos := buf.Len()
	total := len(offsets) + 1
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", total))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total, xrefPos))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write pdf: %v", err)
	}
}
