package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.design/x/clipboard"
)

const clipboardFileName = "clipboard_img.png"

var (
	clipboardInit    sync.Once
	clipboardInitErr error
)

// ClipboardCapture grabs the image currently on the system clipboard, if
// any, and writes it to a fixed temporary path.
type ClipboardCapture struct {
	tempDir string
	logger  *zap.Logger

	// read is swapped out in tests; defaults to the system clipboard.
	read func() ([]byte, error)
}

// NewClipboardCapture builds a clipboard grabber writing under tempDir.
func NewClipboardCapture(tempDir string, logger *zap.Logger) *ClipboardCapture {
	return &ClipboardCapture{
		tempDir: tempDir,
		logger:  logger.Named("clipboard"),
		read:    readSystemClipboard,
	}
}

// Grab reads the clipboard's image content. An empty clipboard yields
// ErrNoImageInClipboard. The slot is ignored: the clipboard target path is
// fixed.
func (c *ClipboardCapture) Grab(ctx context.Context, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := c.read()
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrNoImageInClipboard
	}

	if err := ensureTempDir(c.tempDir); err != nil {
		return "", err
	}
	path := filepath.Join(c.tempDir, clipboardFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	c.logger.Info("clipboard image captured", zap.String("path", path))
	return path, nil
}

// readSystemClipboard returns the clipboard's image content as PNG bytes,
// or nil when no image is present.
func readSystemClipboard() ([]byte, error) {
	clipboardInit.Do(func() {
		clipboardInitErr = clipboard.Init()
	})
	if clipboardInitErr != nil {
		return nil, clipboardInitErr
	}
	return clipboard.Read(clipboard.FmtImage), nil
}
