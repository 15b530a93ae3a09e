package mip

import (
	"fmt"

	"github.com/bartolsthoorn/gohighs/highs"
)

// HiGHSOracle solves models with the HiGHS solver via gohighs. The model
// is first reduced to a MILP (see Lower); HiGHS then owns branching, its
// own worker threads, and the reported status.
type HiGHSOracle struct{}

// NewHiGHSOracle returns a HiGHS-backed oracle.
func NewHiGHSOracle() *HiGHSOracle { return &HiGHSOracle{} }

// Solve implements Oracle.
func (o *HiGHSOracle) Solve(m *Model, opts Options) (*Solution, error) {
	lw, err := Lower(m, opts.Lower)
	if err != nil {
		return nil, fmt.Errorf("reduce model: %w", err)
	}
	return o.SolveLowered(lw, opts)
}

// SolveLowered solves an already-reduced program. Used directly by the
// infeasibility diagnostic and by callers re-loading an exported MPS file.
func (o *HiGHSOracle) SolveLowered(lw *Lowered, opts Options) (*Solution, error) {
	hm := highs.Model{
		Maximize: lw.Maximize,
		ColCosts: lw.Obj,
		ColLower: lw.ColLower,
		ColUpper: lw.ColUpper,
		RowLower: lw.RowLower,
		RowUpper: lw.RowUpper,
	}
	hm.VarTypes = make([]highs.VariableType, len(lw.ColTypes))
	for i, t := range lw.ColTypes {
		hm.VarTypes[i] = highsVarType(t)
	}
	for r, terms := range lw.Rows {
		for _, t := range terms {
			hm.ConstMatrix = append(hm.ConstMatrix, highs.Nonzero{Row: r, Col: int(t.Var), Val: t.Coef})
		}
	}

	hopts := []highs.SolveOption{highs.WithOutput(opts.Verbose)}
	if opts.TimeLimit > 0 {
		hopts = append(hopts, highs.WithTimeLimit(opts.TimeLimit))
	}
	if opts.RelGap > 0 {
		hopts = append(hopts, highs.WithMIPRelGap(opts.RelGap))
	}

	hs, err := hm.Solve(hopts...)
	if err != nil {
		return nil, fmt.Errorf("highs solve: %w", err)
	}

	sol := &Solution{Status: mapStatus(hs), Objective: hs.Objective}
	if sol.Status.Usable() {
		sol.Values = make([]float64, lw.NumModelVars)
		copy(sol.Values, hs.ColValues[:lw.NumModelVars])
		if sol.Status == StatusTimeLimit {
			sol.Gap = opts.RelGap
		}
	}
	return sol, nil
}

func highsVarType(t VarType) highs.VariableType {
	if t == Continuous {
		return highs.Continuous
	}
	return highs.Integer
}

func mapStatus(hs *highs.Solution) Status {
	switch hs.Status {
	case highs.ModelStatusOptimal:
		return StatusOptimal
	case highs.ModelStatusTimeLimit:
		return StatusTimeLimit
	case highs.ModelStatusInfeasible:
		return StatusInfeasible
	case highs.ModelStatusUnbounded, highs.ModelStatusUnboundedOrInfeasible:
		return StatusUnbounded
	default:
		return StatusError
	}
}
