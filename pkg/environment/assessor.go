// Package environment scores capture conditions from raw frame pixels:
// a 0-100 lighting score and a glare flag around the iris region.
package environment

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Config holds the lighting and glare thresholds.
type Config struct {
	// RasterSize is the side of the square raster the frame is
	// downsampled to before luminance analysis.
	RasterSize int

	// CenterFraction selects the center-weighted sub-region of the
	// raster that is actually sampled (the face lives there).
	CenterFraction float64

	// Well-exposed band on the 0-255 luminance scale. Full score
	// inside the band with sufficient dynamic range, linear fall-off
	// outside.
	WellExposedMin float64
	WellExposedMax float64
	MinContrast    float64

	ExposurePenaltyPerPt float64
	ContrastPenaltyPerPt float64

	// Glare detection: a small window centered on an iris landmark is
	// checked for saturated pixels.
	GlareWindowPx         int
	VeryBrightLuma        float64
	BrightLuma            float64
	VeryBrightMaxFraction float64
	BrightMaxFraction     float64
}

// DefaultConfig returns thresholds tuned for indoor webcam capture.
func DefaultConfig() Config {
	return Config{
		RasterSize:            64,
		CenterFraction:        0.5,
		WellExposedMin:        80,
		WellExposedMax:        190,
		MinContrast:           40,
		ExposurePenaltyPerPt:  1.25,
		ContrastPenaltyPerPt:  0.75,
		GlareWindowPx:         12,
		VeryBrightLuma:        250,
		BrightLuma:            230,
		VeryBrightMaxFraction: 0.05,
		BrightMaxFraction:     0.20,
	}
}

// Validate fails fast on unusable thresholds.
func (c Config) Validate() error {
	if c.RasterSize < 8 {
		return fmt.Errorf("environment: raster size %d too small", c.RasterSize)
	}
	if c.CenterFraction <= 0 || c.CenterFraction > 1 {
		return fmt.Errorf("environment: center fraction %.2f outside (0,1]", c.CenterFraction)
	}
	if c.WellExposedMin >= c.WellExposedMax {
		return fmt.Errorf("environment: exposure band [%.0f, %.0f] is empty", c.WellExposedMin, c.WellExposedMax)
	}
	if c.GlareWindowPx <= 0 {
		return fmt.Errorf("environment: glare window %d must be positive", c.GlareWindowPx)
	}
	return nil
}

// Assessor computes lighting and glare signals from frame pixels.
type Assessor struct {
	cfg Config
}

// NewAssessor builds an Assessor, validating the thresholds.
func NewAssessor(cfg Config) (*Assessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Assessor{cfg: cfg}, nil
}

// luma returns perceptual luminance on a 0-255 scale.
func luma(r, g, b uint32) float64 {
	// RGBA returns 16-bit channels.
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}

// LightingScore rates the frame's exposure on a 0-100 scale.
//
// The frame is downsampled to a small raster, the center-weighted
// sub-region is sampled, and the average luminance plus dynamic range
// decide the score: full marks inside the well-exposed band with enough
// contrast, linear fall-off outside.
func (a *Assessor) LightingScore(img image.Image) float64 {
	c := a.cfg

	raster := image.NewRGBA(image.Rect(0, 0, c.RasterSize, c.RasterSize))
	draw.ApproxBiLinear.Scale(raster, raster.Bounds(), img, img.Bounds(), draw.Src, nil)

	margin := int(float64(c.RasterSize) * (1 - c.CenterFraction) / 2)
	lo := margin
	hi := c.RasterSize - margin

	var sum float64
	minL, maxL := 255.0, 0.0
	count := 0
	for y := lo; y < hi; y++ {
		for x := lo; x < hi; x++ {
			r, g, b, _ := raster.At(x, y).RGBA()
			l := luma(r, g, b)
			sum += l
			if l < minL {
				minL = l
			}
			if l > maxL {
				maxL = l
			}
			count++
		}
	}
	if count == 0 {
		return 0
	}

	avg := sum / float64(count)
	dynRange := maxL - minL

	score := 100.0
	if avg < c.WellExposedMin {
		score -= (c.WellExposedMin - avg) * c.ExposurePenaltyPerPt
	} else if avg > c.WellExposedMax {
		score -= (avg - c.WellExposedMax) * c.ExposurePenaltyPerPt
	}
	if dynRange < c.MinContrast {
		score -= (c.MinContrast - dynRange) * c.ContrastPenaltyPerPt
	}

	if score < 0 {
		return 0
	}
	return score
}

// GlareAt checks a small pixel window centered on an iris landmark for
// saturated reflections (typically from glasses). A window that would
// exceed the frame bounds reports no glare rather than an error.
func (a *Assessor) GlareAt(img image.Image, cx, cy int) bool {
	c := a.cfg
	half := c.GlareWindowPx / 2

	bounds := img.Bounds()
	window := image.Rect(cx-half, cy-half, cx+half, cy+half)
	if !window.In(bounds) {
		return false
	}

	total := 0
	veryBright := 0
	bright := 0
	for y := window.Min.Y; y < window.Max.Y; y++ {
		for x := window.Min.X; x < window.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			l := luma(r, g, b)
			if l > c.VeryBrightLuma {
				veryBright++
			}
			if l > c.BrightLuma {
				bright++
			}
			total++
		}
	}
	if total == 0 {
		return false
	}

	return float64(veryBright)/float64(total) > c.VeryBrightMaxFraction ||
		float64(bright)/float64(total) > c.BrightMaxFraction
}
