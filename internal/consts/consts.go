package consts

const (
	DefaultTolerance     = 1e-8 // Mismatch stopping threshold (per-unit power)
	DefaultMaxIterations = 10   // Newton iteration ceiling
	FlatStartVm          = 1.0  // Flat-start voltage magnitude (per-unit)
	FlatStartVa          = 0.0  // Flat-start voltage angle (rad)
)
