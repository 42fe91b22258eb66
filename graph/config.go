package graph

// ExecutionConfig bounds a run.
type ExecutionConfig struct {
	// MaxSteps stops a run that still has work after this many node executions.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
	// CycleDetection enables the repeated-node check.
	CycleDetection bool `json:"cycle_detection" yaml:"cycle_detection"`
	// CycleWindow is the number of recent node visits inspected.
	CycleWindow int `json:"cycle_window" yaml:"cycle_window"`
	// CycleThreshold is how many times one node may run on the same input
	// state inside the window.
	CycleThreshold int `json:"cycle_threshold" yaml:"cycle_threshold"`
}

const (
	DefaultMaxSteps       = 50
	DefaultCycleWindow    = 20
	DefaultCycleThreshold = 2
)

// DefaultExecutionConfig returns the configuration used when none is given.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxSteps:       DefaultMaxSteps,
		CycleDetection: true,
		CycleWindow:    DefaultCycleWindow,
		CycleThreshold: DefaultCycleThreshold,
	}
}

// normalize fills non-positive limits with defaults.
func (c ExecutionConfig) normalize() ExecutionConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.CycleWindow <= 0 {
		c.CycleWindow = DefaultCycleWindow
	}
	if c.CycleThreshold <= 0 {
		c.CycleThreshold = DefaultCycleThreshold
	}
	return c
}
