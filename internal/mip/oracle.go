package mip

// Status classifies the outcome reported by a solving backend.
type Status uint8

const (
	StatusOptimal Status = iota
	StatusTimeLimit
	StatusInfeasible
	StatusUnbounded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusTimeLimit:
		return "time_limit"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "error"
	}
}

// Usable reports whether the backend produced an incumbent worth reading:
// a proven optimum, or the best solution found before a time limit.
func (s Status) Usable() bool {
	return s == StatusOptimal || s == StatusTimeLimit
}

// Options configures a solve call.
type Options struct {
	// TimeLimit in seconds; 0 means no limit.
	TimeLimit float64
	// RelGap is the relative MIP gap tolerance; 0 keeps the backend default.
	RelGap float64
	// Verbose enables backend log output.
	Verbose bool
	// Lower tunes the MILP reduction applied before the backend runs.
	Lower LowerOptions
}

// Solution holds the outcome of one solve.
type Solution struct {
	Status    Status
	Objective float64
	// Gap is the relative MIP gap of the incumbent; zero when proven optimal.
	Gap float64
	// Values holds one entry per source-model column (auxiliaries from the
	// reduction are dropped).
	Values []float64
}

// Value returns the solved value of v.
func (s *Solution) Value(v Var) float64 { return s.Values[v] }

// Oracle is a solving backend. Implementations own the reduction of the
// structured model to whatever form the underlying solver consumes.
type Oracle interface {
	Solve(m *Model, opts Options) (*Solution, error)
}
