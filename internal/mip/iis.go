package mip

import (
	"fmt"
	"io"
)

// LoweredSolver solves an already-reduced program. The infeasibility
// diagnostic reruns the backend many times on row subsets, so it works at
// this level rather than on the structured model.
type LoweredSolver interface {
	SolveLowered(lw *Lowered, opts Options) (*Solution, error)
}

// ComputeIIS runs a deletion filter over the rows of an infeasible model
// and returns the indices of an irreducible infeasible row subsystem:
// removing any single remaining row makes the subsystem feasible. Column
// bounds are treated as fixed and are not part of the filter, so the
// subsystem is irreducible with respect to rows only.
func ComputeIIS(m *Model, solver LoweredSolver, opts Options) ([]int, *Lowered, error) {
	lw, err := Lower(m, opts.Lower)
	if err != nil {
		return nil, nil, fmt.Errorf("reduce model: %w", err)
	}

	sol, err := solver.SolveLowered(lw, opts)
	if err != nil {
		return nil, nil, err
	}
	if sol.Status != StatusInfeasible {
		return nil, nil, fmt.Errorf("model is %s, not infeasible", sol.Status)
	}

	active := make([]int, len(lw.Rows))
	for i := range active {
		active[i] = i
	}

	for i := 0; i < len(active); {
		trial := make([]int, 0, len(active)-1)
		trial = append(trial, active[:i]...)
		trial = append(trial, active[i+1:]...)

		sol, err := solver.SolveLowered(lw.subset(trial), opts)
		if err != nil {
			return nil, nil, err
		}
		if sol.Status == StatusInfeasible {
			// Row i is not needed for infeasibility; drop it for good.
			active = trial
		} else {
			i++
		}
	}
	return active, lw, nil
}

// WriteIIS computes the irreducible infeasible subsystem and writes its
// constraint listing to w.
func WriteIIS(w io.Writer, m *Model, solver LoweredSolver, opts Options) error {
	rows, lw, err := ComputeIIS(m, solver, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# irreducible infeasible subsystem: %d of %d rows\n", len(rows), len(lw.Rows))
	return WriteListing(w, lw, rows)
}

// subset returns a shallow copy of lw keeping only the given rows.
func (lw *Lowered) subset(rows []int) *Lowered {
	out := *lw
	out.RowNames = make([]string, 0, len(rows))
	out.RowLower = make([]float64, 0, len(rows))
	out.RowUpper = make([]float64, 0, len(rows))
	out.Rows = make([][]Term, 0, len(rows))
	for _, r := range rows {
		out.RowNames = append(out.RowNames, lw.RowNames[r])
		out.RowLower = append(out.RowLower, lw.RowLower[r])
		out.RowUpper = append(out.RowUpper, lw.RowUpper[r])
		out.Rows = append(out.Rows, lw.Rows[r])
	}
	return &out
}
