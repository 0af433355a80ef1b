//go:build linux

package emotion

import (
	"errors"
	"fmt"

	"github.com/blackjack/webcam"
)

// pixFmtYUYV is V4L2_PIX_FMT_YUYV ('YUYV' packed 4:2:2). The luma bytes
// double as a grayscale image, which is all the detector needs.
const pixFmtYUYV = webcam.PixelFormat(0x56595559)

const (
	captureWidth  = 640
	captureHeight = 480

	// frameWaitTimeoutSec bounds WaitForFrame so a wedged driver cannot
	// block shutdown indefinitely.
	frameWaitTimeoutSec = 5
)

var _ Camera = (*V4L2Camera)(nil)

// V4L2Camera captures grayscale frames from a Video4Linux2 device.
type V4L2Camera struct {
	device string
	cam    *webcam.Webcam
	width  int
	height int
}

// NewV4L2Camera creates a camera for the given device node, typically
// /dev/video0.
func NewV4L2Camera(device string) *V4L2Camera {
	return &V4L2Camera{device: device}
}

// Open acquires the device and starts streaming in YUYV.
func (c *V4L2Camera) Open() error {
	cam, err := webcam.Open(c.device)
	if err != nil {
		return fmt.Errorf("emotion: open %s: %w", c.device, err)
	}

	_, w, h, err := cam.SetImageFormat(pixFmtYUYV, captureWidth, captureHeight)
	if err != nil {
		cam.Close()
		return fmt.Errorf("emotion: set YUYV format on %s: %w", c.device, err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("emotion: start streaming on %s: %w", c.device, err)
	}

	c.cam = cam
	c.width = int(w)
	c.height = int(h)
	return nil
}

// ReadFrame blocks until the next frame and returns its luma plane.
func (c *V4L2Camera) ReadFrame() (Frame, error) {
	if c.cam == nil {
		return Frame{}, errors.New("emotion: camera is not open")
	}
	if err := c.cam.WaitForFrame(frameWaitTimeoutSec); err != nil {
		return Frame{}, fmt.Errorf("emotion: wait for frame: %w", err)
	}
	raw, err := c.cam.ReadFrame()
	if err != nil {
		return Frame{}, fmt.Errorf("emotion: read frame: %w", err)
	}
	if len(raw) < c.width*c.height*2 {
		return Frame{}, fmt.Errorf("emotion: short frame: %d bytes", len(raw))
	}

	// YUYV packs Y0 U Y1 V; every even byte is luma.
	gray := make([]uint8, c.width*c.height)
	for i := range gray {
		gray[i] = raw[i*2]
	}
	return Frame{Pixels: gray, Width: c.width, Height: c.height}, nil
}

// Close stops streaming and releases the device. Safe to call repeatedly.
func (c *V4L2Camera) Close() error {
	if c.cam == nil {
		return nil
	}
	c.cam.StopStreaming()
	err := c.cam.Close()
	c.cam = nil
	return err
}
