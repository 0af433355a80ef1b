package emotion

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
)

var _ FaceLocator = (*PigoLocator)(nil)

// PigoLocator finds faces with the pure-Go pigo cascade detector.
type PigoLocator struct {
	classifier *pigo.Pigo
}

// NewPigoLocator loads a binary pigo cascade (facefinder format) from path.
func NewPigoLocator(path string) (*PigoLocator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("emotion: read cascade %q: %w", path, err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("emotion: unpack cascade %q: %w", path, err)
	}
	return &PigoLocator{classifier: classifier}, nil
}

// Locate runs the cascade over the frame and returns the highest-quality
// clustered detection.
func (l *PigoLocator) Locate(f Frame) (Region, bool) {
	if len(f.Pixels) < f.Width*f.Height || f.Width == 0 || f.Height == 0 {
		return Region{}, false
	}

	params := pigo.CascadeParams{
		MinSize:     60,
		MaxSize:     min(f.Width, f.Height),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: f.Pixels,
			Rows:   f.Height,
			Cols:   f.Width,
			Dim:    f.Width,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, 0.2)

	best := Region{}
	var bestQ float32
	found := false
	for _, det := range dets {
		if det.Q <= 5.0 {
			continue
		}
		if !found || det.Q > bestQ {
			best = Region{
				X:    det.Col - det.Scale/2,
				Y:    det.Row - det.Scale/2,
				Size: det.Scale,
			}
			bestQ = det.Q
			found = true
		}
	}
	return best, found
}
