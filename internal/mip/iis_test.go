package mip

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

// intervalSolver decides feasibility of single-column systems by
// interval intersection; enough for the deletion filter's row subsets.
type intervalSolver struct{}

func (intervalSolver) SolveLowered(lw *Lowered, opts Options) (*Solution, error) {
	lo := make([]float64, len(lw.ColNames))
	hi := make([]float64, len(lw.ColNames))
	copy(lo, lw.ColLower)
	copy(hi, lw.ColUpper)

	for r, terms := range lw.Rows {
		t := terms[0]
		lo[t.Var] = math.Max(lo[t.Var], lw.RowLower[r]/t.Coef)
		hi[t.Var] = math.Min(hi[t.Var], lw.RowUpper[r]/t.Coef)
	}
	for i := range lo {
		if lo[i] > hi[i] {
			return &Solution{Status: StatusInfeasible}, nil
		}
	}
	vals := make([]float64, lw.NumModelVars)
	copy(vals, lo[:lw.NumModelVars])
	return &Solution{Status: StatusOptimal, Values: vals}, nil
}

func TestComputeIIS(t *testing.T) {
	m := New("iis")
	x := m.AddVar("x", Continuous, 0, 10)
	m.AddGe("c.floor", []Term{{x, 1}}, 5)
	m.AddLe("c.ceiling", []Term{{x, 1}}, 3)
	m.AddLe("c.slack", []Term{{x, 1}}, 8)

	rows, lw, err := ComputeIIS(m, intervalSolver{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("subsystem has %d rows, want 2", len(rows))
	}
	names := map[string]bool{}
	for _, r := range rows {
		names[lw.RowNames[r]] = true
	}
	if !names["c.floor"] || !names["c.ceiling"] {
		t.Fatalf("subsystem %v misses the conflicting pair", names)
	}
}

func TestComputeIISRejectsFeasible(t *testing.T) {
	m := New("ok")
	x := m.AddVar("x", Continuous, 0, 10)
	m.AddGe("c.floor", []Term{{x, 1}}, 5)

	if _, _, err := ComputeIIS(m, intervalSolver{}, Options{}); err == nil {
		t.Fatal("expected error on a feasible model")
	}
}

func TestWriteIIS(t *testing.T) {
	m := New("iis")
	x := m.AddVar("x", Continuous, 0, 10)
	m.AddGe("c.floor", []Term{{x, 1}}, 5)
	m.AddLe("c.ceiling", []Term{{x, 1}}, 3)

	var buf bytes.Buffer
	if err := WriteIIS(&buf, m, intervalSolver{}, Options{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 of 2 rows") {
		t.Fatalf("header missing: %q", out)
	}
	if !strings.Contains(out, "c.floor") || !strings.Contains(out, "c.ceiling") {
		t.Fatalf("listing missing rows: %q", out)
	}
}
