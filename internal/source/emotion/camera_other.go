//go:build !linux

package emotion

import "fmt"

var _ Camera = (*V4L2Camera)(nil)

// V4L2Camera is only available on Linux; on other platforms Open fails and
// the detector reports the device as unavailable.
type V4L2Camera struct {
	device string
}

// NewV4L2Camera creates the stub camera for the given device node.
func NewV4L2Camera(device string) *V4L2Camera {
	return &V4L2Camera{device: device}
}

func (c *V4L2Camera) Open() error {
	return fmt.Errorf("emotion: video capture for %s is only supported on linux", c.device)
}

func (c *V4L2Camera) ReadFrame() (Frame, error) {
	return Frame{}, fmt.Errorf("emotion: video capture is only supported on linux")
}

func (c *V4L2Camera) Close() error { return nil }
