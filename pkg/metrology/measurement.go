// Package metrology converts landmark frames into calibrated physical
// measurements: interpupillary distance, monocular pupillary distances,
// camera distance, head pose and a confidence score.
//
// The only physical scale reference is the population-average human iris
// diameter; there is no per-user calibration step.
package metrology

// Measurement is an immutable snapshot of everything derived from one
// landmark frame. It is produced fresh every tick and is also the type
// of the final aggregated result.
type Measurement struct {
	IPDMM      float64 `json:"ipd_mm"`      // total interpupillary distance
	LeftPDMM   float64 `json:"left_pd_mm"`  // left-eye monocular PD
	RightPDMM  float64 `json:"right_pd_mm"` // right-eye monocular PD
	DistanceCM float64 `json:"distance_cm"` // estimated camera distance
	Lighting   float64 `json:"lighting"`    // 0-100 lighting score
	Accuracy   int     `json:"accuracy"`    // 0-100 confidence score
	RollDeg    float64 `json:"roll_deg"`    // signed head roll in degrees
	Yaw        float64 `json:"yaw"`         // normalized asymmetry, -1..1
	Pitch      float64 `json:"pitch"`       // unitless ratio, ~[-1,1]
	FaceY      float64 `json:"face_y"`      // nose-tip vertical position, 0..1
	Stability  float64 `json:"stability"`   // 0-100 jitter score
}
