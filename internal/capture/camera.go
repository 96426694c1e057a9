package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	keyEscape = 27
	keySpace  = 32
)

// CameraCapture previews frames from a video device and writes the frame
// on screen when the operator hits SPACE. ESC abandons the capture. The
// device handle is released on every exit path.
type CameraCapture struct {
	device  int
	tempDir string
	logger  *zap.Logger
}

// NewCameraCapture builds a camera grabber for the given device index.
func NewCameraCapture(device int, tempDir string, logger *zap.Logger) *CameraCapture {
	return &CameraCapture{device: device, tempDir: tempDir, logger: logger.Named("camera")}
}

// Grab runs the preview loop until the operator captures or cancels.
// The written file lands at temp/test_img<slot>.png.
func (c *CameraCapture) Grab(ctx context.Context, slot int) (string, error) {
	if slot < 1 {
		slot = 1
	}

	cam, err := gocv.OpenVideoCapture(c.device)
	if err != nil {
		return "", &DeviceUnavailableError{Device: c.device, Err: err}
	}
	defer cam.Close()

	if !cam.IsOpened() {
		return "", &DeviceUnavailableError{Device: c.device, Err: errors.New("device not opened")}
	}

	window := gocv.NewWindow("Camera Preview")
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if ok := cam.Read(&frame); !ok || frame.Empty() {
			return "", &DeviceUnavailableError{Device: c.device, Err: errors.New("failed to grab frame")}
		}

		window.IMShow(frame)

		switch key := window.WaitKey(1); key % 256 {
		case keyEscape:
			c.logger.Info("capture cancelled by operator")
			return "", ErrCaptureCancelled
		case keySpace:
			if err := ensureTempDir(c.tempDir); err != nil {
				return "", err
			}
			path := filepath.Join(c.tempDir, fmt.Sprintf("test_img%d.png", slot))
			if ok := gocv.IMWrite(path, frame); !ok {
				return "", fmt.Errorf("failed to write captured frame to %s", path)
			}
			c.logger.Info("frame captured", zap.String("path", path))
			return path, nil
		}
	}
}
