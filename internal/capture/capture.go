// Package capture acquires signature images from the host: a live camera
// frame or whatever image sits on the system clipboard. Each successful
// grab writes a file under the temp directory and hands back its path.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNoImageInClipboard is returned when the clipboard holds no image data.
var ErrNoImageInClipboard = errors.New("no image in clipboard")

// ErrCaptureCancelled is returned when the operator aborts a capture.
var ErrCaptureCancelled = errors.New("capture cancelled")

// DeviceUnavailableError indicates the camera device is absent or busy.
type DeviceUnavailableError struct {
	Device int
	Err    error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("camera device %d unavailable: %v", e.Device, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// Grabber produces a filesystem path to a freshly captured image. The slot
// number distinguishes multiple captures within one comparison; sources
// without that notion ignore it.
type Grabber interface {
	Grab(ctx context.Context, slot int) (string, error)
}

// ensureTempDir creates the capture directory on demand.
func ensureTempDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
