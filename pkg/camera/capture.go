// Package camera provides local webcam capture for the demo binary,
// producing both decoded pixels for the environment assessor and JPEG
// bytes for the landmark service.
package camera

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Config holds capture settings.
type Config struct {
	DeviceID int `yaml:"device_id"`
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	FPS      int `yaml:"fps"`
}

// DefaultConfig returns 720p30 capture on the first device.
func DefaultConfig() Config {
	return Config{DeviceID: 0, Width: 1280, Height: 720, FPS: 30}
}

// Validate fails fast on unusable capture settings.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("camera: invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 || c.FPS > 120 {
		return fmt.Errorf("camera: fps %d outside (0,120]", c.FPS)
	}
	return nil
}

// Capture wraps a gocv webcam. Not safe for concurrent reads; the tick
// loop owns it.
type Capture struct {
	webcam *gocv.VideoCapture
	mat    gocv.Mat
	cfg    Config
}

// Open starts the webcam with the requested mode.
func Open(cfg Config) (*Capture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	webcam, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", cfg.DeviceID, err)
	}
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	return &Capture{
		webcam: webcam,
		mat:    gocv.NewMat(),
		cfg:    cfg,
	}, nil
}

// Read grabs one frame, returning decoded pixels and JPEG bytes.
func (c *Capture) Read() (image.Image, []byte, error) {
	if ok := c.webcam.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, nil, fmt.Errorf("camera: failed to read frame")
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, nil, fmt.Errorf("camera: decode frame: %w", err)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.mat)
	if err != nil {
		return nil, nil, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())
	return img, jpeg, nil
}

// Close releases the webcam and buffers.
func (c *Capture) Close() error {
	c.mat.Close()
	return c.webcam.Close()
}
