package sim

// Config fixes the step grid of one integration run: Steps steps of size
// StepSize, producing Steps+1 vectors at times k·StepSize.
type Config struct {
	StepSize float64
	Steps    int
}

type stepGrid interface {
	StepSize() float64
	Steps() int
}

// ConfigFor returns the step grid stored in a scenario.
func ConfigFor(s stepGrid) Config {
	return Config{StepSize: s.StepSize(), Steps: s.Steps()}
}

// MassTolerance bounds |Σp − 1| for every emitted vector.
const MassTolerance = 1e-6
