package mip

import (
	"fmt"
	"math"
)

// LowerOptions tunes the MILP reduction.
type LowerOptions struct {
	// PWLSegments is the segment count used when a quadratic or log link
	// is replaced by a piecewise-linear secant chain.
	PWLSegments int
	// BigM is the fallback activation constant used when a column touched
	// by a disjunction has no finite bound to derive one from.
	BigM float64
}

// DefaultLowerOptions returns the reduction defaults.
func DefaultLowerOptions() LowerOptions {
	return LowerOptions{PWLSegments: 32, BigM: 1e6}
}

// Lowered is a pure mixed-integer *linear* program produced from a Model.
// The first NumModelVars columns correspond one-to-one to the source
// model's columns; the rest are auxiliaries introduced by the reduction.
type Lowered struct {
	NumModelVars int
	Maximize     bool

	ColNames []string
	ColTypes []VarType
	ColLower []float64
	ColUpper []float64
	Obj      []float64

	RowNames []string
	RowLower []float64
	RowUpper []float64
	Rows     [][]Term
}

// Lower reduces m to a MILP. Binary products become McCormick envelopes
// (exact for binary factors), complement and threshold rows become big-M
// activations, min-clips gain a selector binary, and quadratic/log links
// become piecewise-linear secant chains over the column's bounds.
func Lower(m *Model, opts LowerOptions) (*Lowered, error) {
	if opts.PWLSegments <= 0 {
		opts.PWLSegments = DefaultLowerOptions().PWLSegments
	}
	if opts.BigM <= 0 {
		opts.BigM = DefaultLowerOptions().BigM
	}

	lw := &Lowered{NumModelVars: m.NumVars(), Maximize: m.IsMaximize()}
	for _, c := range m.cols {
		lw.ColNames = append(lw.ColNames, c.name)
		lw.ColTypes = append(lw.ColTypes, c.typ)
		lw.ColLower = append(lw.ColLower, c.lb)
		lw.ColUpper = append(lw.ColUpper, c.ub)
	}
	lw.Obj = make([]float64, len(lw.ColNames))
	if v, ok := m.ObjectiveVar(); ok {
		lw.Obj[v] = 1
	}

	for _, r := range m.Lin {
		lw.addRow(r.Name, r.Lo, r.Terms, r.Up)
	}
	for _, r := range m.Prod {
		if err := lw.lowerProduct(m, r, opts); err != nil {
			return nil, err
		}
	}
	for _, r := range m.Compl {
		lw.lowerComplement(m, r, opts)
	}
	for _, r := range m.Thresh {
		lw.lowerThreshold(m, r, opts)
	}
	for _, r := range m.MinClip {
		lw.lowerMinClip(m, r, opts)
	}
	for _, r := range m.Quad {
		if err := lw.lowerCurve(m, r.Name, r.Y, r.X, opts,
			func(x float64) float64 { return r.A*x*x + r.B*x + r.C }); err != nil {
			return nil, err
		}
	}
	for _, r := range m.Bilin {
		lw.lowerBilinear(m, r, opts)
	}
	for _, r := range m.Log {
		lx, _ := m.Bounds(r.X)
		if lx <= 0 {
			return nil, fmt.Errorf("lower %s: log link needs a positive lower bound on %s", r.Name, m.VarName(r.X))
		}
		if err := lw.lowerCurve(m, r.Name, r.Y, r.X, opts, math.Log); err != nil {
			return nil, err
		}
	}
	return lw, nil
}

func (lw *Lowered) addCol(name string, typ VarType, lb, ub float64) Var {
	lw.ColNames = append(lw.ColNames, name)
	lw.ColTypes = append(lw.ColTypes, typ)
	lw.ColLower = append(lw.ColLower, lb)
	lw.ColUpper = append(lw.ColUpper, ub)
	lw.Obj = append(lw.Obj, 0)
	return Var(len(lw.ColNames) - 1)
}

func (lw *Lowered) addRow(name string, lo float64, terms []Term, up float64) {
	lw.RowNames = append(lw.RowNames, name)
	lw.RowLower = append(lw.RowLower, lo)
	lw.RowUpper = append(lw.RowUpper, up)
	lw.Rows = append(lw.Rows, terms)
}

// span returns finite activation bounds for x, falling back to ±BigM.
func (lw *Lowered) span(x Var, opts LowerOptions) (lo, hi float64) {
	lo, hi = lw.ColLower[x], lw.ColUpper[x]
	if math.IsInf(lo, -1) {
		lo = -opts.BigM
	}
	if math.IsInf(hi, 1) {
		hi = opts.BigM
	}
	return lo, hi
}

// lowerProduct writes the McCormick envelope of z == bin*x. With bin
// binary the envelope is tight: bin==0 pins z to 0, bin==1 pins z to x.
func (lw *Lowered) lowerProduct(m *Model, r ProductRow, opts LowerOptions) error {
	if m.Type(r.Bin) != Binary {
		return fmt.Errorf("lower %s: product factor %s is not binary", r.Name, m.VarName(r.Bin))
	}
	l, u := lw.span(r.X, opts)
	lw.addRow(r.Name+".mc1", math.Inf(-1), []Term{{r.Z, 1}, {r.Bin, -u}}, 0)
	lw.addRow(r.Name+".mc2", 0, []Term{{r.Z, 1}, {r.Bin, -l}}, math.Inf(1))
	lw.addRow(r.Name+".mc3", math.Inf(-1), []Term{{r.Z, 1}, {r.X, -1}, {r.Bin, -l}}, -l)
	lw.addRow(r.Name+".mc4", -u, []Term{{r.Z, 1}, {r.X, -1}, {r.Bin, -u}}, math.Inf(1))
	return nil
}

func (lw *Lowered) lowerComplement(m *Model, r ComplementRow, opts LowerOptions) {
	l, u := lw.span(r.X, opts)
	if r.When == 1 {
		// bin==1 => x==0:  x <= u*(1-bin),  x >= l*(1-bin)
		lw.addRow(r.Name+".z1", math.Inf(-1), []Term{{r.X, 1}, {r.Bin, u}}, u)
		lw.addRow(r.Name+".z2", l, []Term{{r.X, 1}, {r.Bin, l}}, math.Inf(1))
		return
	}
	// bin==0 => x==0:  x <= u*bin,  x >= l*bin
	lw.addRow(r.Name+".z1", math.Inf(-1), []Term{{r.X, 1}, {r.Bin, -u}}, 0)
	lw.addRow(r.Name+".z2", 0, []Term{{r.X, 1}, {r.Bin, -l}}, math.Inf(1))
}

func (lw *Lowered) lowerThreshold(m *Model, r ThresholdRow, opts LowerOptions) {
	l, u := lw.span(r.X, opts)
	mUp := math.Max(r.Cutoff-l, 0)
	mDn := math.Max(u-r.Cutoff, 0)
	// bin==1 => x >= cutoff:  x - mUp*bin >= cutoff - mUp
	lw.addRow(r.Name+".ge", r.Cutoff-mUp, []Term{{r.X, 1}, {r.Bin, -mUp}}, math.Inf(1))
	// bin==0 => x <= cutoff:  x - mDn*bin <= cutoff
	lw.addRow(r.Name+".le", math.Inf(-1), []Term{{r.X, 1}, {r.Bin, -mDn}}, r.Cutoff)
}

func (lw *Lowered) lowerMinClip(m *Model, r MinClipRow, opts LowerOptions) {
	l, u := lw.span(r.X, opts)
	if u <= r.Cap {
		// The clip can never bind; the min collapses to z == x.
		lw.addRow(r.Name+".eq", 0, []Term{{r.Z, 1}, {r.X, -1}}, 0)
		return
	}
	// z <= x, z <= cap; a selector binary restores equality on one branch.
	lw.addRow(r.Name+".le_x", math.Inf(-1), []Term{{r.Z, 1}, {r.X, -1}}, 0)
	lw.addRow(r.Name+".le_c", math.Inf(-1), []Term{{r.Z, 1}}, r.Cap)
	d := lw.addCol(r.Name+".sel", Binary, 0, 1)
	mx := u - r.Cap         // slack of z >= x when the cap branch is active
	mc := math.Max(r.Cap-l, 0) // slack of z >= cap when the x branch is active
	// d==0 => z >= x:  z - x + mx*d >= 0
	lw.addRow(r.Name+".ge_x", 0, []Term{{r.Z, 1}, {r.X, -1}, {d, mx}}, math.Inf(1))
	// d==1 => z >= cap:  z + mc*(1-d) >= cap
	lw.addRow(r.Name+".ge_c", r.Cap-mc, []Term{{r.Z, 1}, {d, -mc}}, math.Inf(1))
}

// lowerBilinear writes the McCormick envelope of z == k*x*y. For
// continuous factors the envelope is a relaxation that collapses to the
// exact product when either factor's bounds pin it to a constant.
func (lw *Lowered) lowerBilinear(m *Model, r BilinearRow, opts LowerOptions) {
	lx, ux := lw.span(r.X, opts)
	ly, uy := lw.span(r.Y, opts)
	k := r.K
	// z/k >= lx*y + ly*x - lx*ly
	lw.addRow(r.Name+".mc1", -lx*ly, []Term{{r.Z, 1 / k}, {r.Y, -lx}, {r.X, -ly}}, math.Inf(1))
	// z/k >= ux*y + uy*x - ux*uy
	lw.addRow(r.Name+".mc2", -ux*uy, []Term{{r.Z, 1 / k}, {r.Y, -ux}, {r.X, -uy}}, math.Inf(1))
	// z/k <= ux*y + ly*x - ux*ly
	lw.addRow(r.Name+".mc3", math.Inf(-1), []Term{{r.Z, 1 / k}, {r.Y, -ux}, {r.X, -ly}}, -ux*ly)
	// z/k <= lx*y + uy*x - lx*uy
	lw.addRow(r.Name+".mc4", math.Inf(-1), []Term{{r.Z, 1 / k}, {r.Y, -lx}, {r.X, -uy}}, -lx*uy)
}

// lowerCurve replaces y == f(x) with a piecewise-linear secant chain over
// the bounds of x, using the incremental formulation: filling binaries
// force the delta columns to be consumed in order, so the chain is exact
// at every breakpoint and a secant in between.
func (lw *Lowered) lowerCurve(m *Model, name string, y, x Var, opts LowerOptions, f func(float64) float64) error {
	lx, ux := lw.ColLower[x], lw.ColUpper[x]
	if math.IsInf(lx, 0) || math.IsInf(ux, 0) {
		return fmt.Errorf("lower %s: curve link needs finite bounds on %s", name, m.VarName(x))
	}
	if ux <= lx {
		// Degenerate interval: x is fixed, so y is a constant.
		lw.addRow(name+".fix", f(lx), []Term{{y, 1}}, f(lx))
		return nil
	}

	n := opts.PWLSegments
	step := (ux - lx) / float64(n)

	xTerms := []Term{{x, 1}}
	yTerms := []Term{{y, 1}}
	deltas := make([]Var, n)
	for k := 0; k < n; k++ {
		x0 := lx + float64(k)*step
		x1 := lx + float64(k+1)*step
		slope := (f(x1) - f(x0)) / step
		d := lw.addCol(fmt.Sprintf("%s.d%d", name, k), Continuous, 0, step)
		deltas[k] = d
		xTerms = append(xTerms, Term{d, -1})
		yTerms = append(yTerms, Term{d, -slope})
	}
	lw.addRow(name+".x", lx, xTerms, lx)
	lw.addRow(name+".y", f(lx), yTerms, f(lx))

	for k := 0; k < n-1; k++ {
		z := lw.addCol(fmt.Sprintf("%s.z%d", name, k), Binary, 0, 1)
		// delta[k] >= step*z  and  delta[k+1] <= step*z
		lw.addRow(fmt.Sprintf("%s.fill%d", name, k), 0, []Term{{deltas[k], 1}, {z, -step}}, math.Inf(1))
		lw.addRow(fmt.Sprintf("%s.next%d", name, k), math.Inf(-1), []Term{{deltas[k+1], 1}, {z, -step}}, 0)
	}
	return nil
}
