// Package mip holds the mixed-integer model representation shared by the
// optimization builder, the file writers, and the solving backends.
//
// A Model is a plain declaration of columns and rows. Linear rows are kept
// as-is; the nonlinear row kinds (quadratic links, binary products,
// min-clips, threshold branches, log links) are kept structured so a
// backend can lower them with whatever primitive it has, such as McCormick
// envelopes or piecewise-linear secants, instead of relying on literal
// bilinear terms.
package mip

import (
	"fmt"
	"math"
)

// VarType classifies a column.
type VarType uint8

const (
	Continuous VarType = iota
	Binary
	Integer
)

// Var is a handle to a model column.
type Var int

// Term is one coefficient in a linear row.
type Term struct {
	Var  Var
	Coef float64
}

type column struct {
	name string
	typ  VarType
	lb   float64
	ub   float64
}

// LinRow is a ranged linear constraint: Lo <= sum(Terms) <= Up.
type LinRow struct {
	Name  string
	Lo    float64
	Up    float64
	Terms []Term
}

// QuadRow links Y to a quadratic function of X: Y == A*X^2 + B*X + C.
type QuadRow struct {
	Name    string
	Y, X    Var
	A, B, C float64
}

// ProductRow links Z to the product of a binary and a continuous column:
// Z == Bin * X.
type ProductRow struct {
	Name   string
	Z      Var
	Bin, X Var
}

// ComplementRow forces X to zero whenever Bin takes the value When:
// Bin == When  =>  X == 0.
type ComplementRow struct {
	Name string
	Bin  Var
	When int
	X    Var
}

// ThresholdRow is a two-branch disjunction on X around Cutoff:
// Bin == 1 => X >= Cutoff, Bin == 0 => X <= Cutoff.
type ThresholdRow struct {
	Name   string
	Bin, X Var
	Cutoff float64
}

// MinClipRow links Z to the minimum of X and a constant: Z == min(X, Cap).
type MinClipRow struct {
	Name string
	Z, X Var
	Cap  float64
}

// LogRow links Y to the natural logarithm of X: Y == ln(X).
// X must be bounded away from zero.
type LogRow struct {
	Name string
	Y, X Var
}

// BilinearRow links Z to a scaled product of two continuous columns:
// Z == K * X * Y. Backends without a bilinear primitive lower this to a
// McCormick envelope over the factor bounds; the envelope is exact when
// either factor is fixed and tightens with the bounds otherwise.
type BilinearRow struct {
	Name    string
	Z, X, Y Var
	K       float64
}

// Model is an assembled optimization model.
type Model struct {
	Name string

	cols []column

	Lin     []LinRow
	Quad    []QuadRow
	Prod    []ProductRow
	Compl   []ComplementRow
	Thresh  []ThresholdRow
	MinClip []MinClipRow
	Log     []LogRow
	Bilin   []BilinearRow

	objVar   Var
	hasObj   bool
	maximize bool
}

// New creates an empty model.
func New(name string) *Model {
	return &Model{Name: name}
}

// Inf returns positive infinity, for unbounded columns and rows.
func Inf() float64 { return math.Inf(1) }

// AddVar declares one column and returns its handle.
func (m *Model) AddVar(name string, typ VarType, lb, ub float64) Var {
	m.cols = append(m.cols, column{name: name, typ: typ, lb: lb, ub: ub})
	return Var(len(m.cols) - 1)
}

// AddVars declares n columns named name[0] .. name[n-1].
func (m *Model) AddVars(name string, n int, typ VarType, lb, ub float64) []Var {
	vs := make([]Var, n)
	for i := range vs {
		vs[i] = m.AddVar(fmt.Sprintf("%s[%d]", name, i), typ, lb, ub)
	}
	return vs
}

// NumVars returns the number of declared columns.
func (m *Model) NumVars() int { return len(m.cols) }

// VarName returns the declared name of v.
func (m *Model) VarName(v Var) string { return m.cols[v].name }

// Bounds returns the declared bounds of v.
func (m *Model) Bounds(v Var) (lb, ub float64) { return m.cols[v].lb, m.cols[v].ub }

// Type returns the declared type of v.
func (m *Model) Type(v Var) VarType { return m.cols[v].typ }

// SetBounds tightens the declared bounds of v.
func (m *Model) SetBounds(v Var, lb, ub float64) {
	m.cols[v].lb = lb
	m.cols[v].ub = ub
}

// AddRow adds a ranged linear row: lo <= sum(terms) <= up.
func (m *Model) AddRow(name string, lo float64, terms []Term, up float64) {
	m.Lin = append(m.Lin, LinRow{Name: name, Lo: lo, Up: up, Terms: terms})
}

// AddEq adds sum(terms) == rhs.
func (m *Model) AddEq(name string, terms []Term, rhs float64) {
	m.AddRow(name, rhs, terms, rhs)
}

// AddLe adds sum(terms) <= rhs.
func (m *Model) AddLe(name string, terms []Term, rhs float64) {
	m.AddRow(name, math.Inf(-1), terms, rhs)
}

// AddGe adds sum(terms) >= rhs.
func (m *Model) AddGe(name string, terms []Term, rhs float64) {
	m.AddRow(name, rhs, terms, math.Inf(1))
}

// Pin fixes v to a constant with an equality row.
func (m *Model) Pin(name string, v Var, value float64) {
	m.AddEq(name, []Term{{v, 1}}, value)
}

// AddQuad adds y == a*x^2 + b*x + c.
func (m *Model) AddQuad(name string, y, x Var, a, b, c float64) {
	m.Quad = append(m.Quad, QuadRow{Name: name, Y: y, X: x, A: a, B: b, C: c})
}

// AddProduct adds z == bin * x, where bin is a binary column.
func (m *Model) AddProduct(name string, z, bin, x Var) {
	m.Prod = append(m.Prod, ProductRow{Name: name, Z: z, Bin: bin, X: x})
}

// AddComplement adds bin == when => x == 0.
func (m *Model) AddComplement(name string, bin Var, when int, x Var) {
	m.Compl = append(m.Compl, ComplementRow{Name: name, Bin: bin, When: when, X: x})
}

// AddThreshold adds the branch pair bin==1 => x >= cutoff, bin==0 => x <= cutoff.
func (m *Model) AddThreshold(name string, bin, x Var, cutoff float64) {
	m.Thresh = append(m.Thresh, ThresholdRow{Name: name, Bin: bin, X: x, Cutoff: cutoff})
}

// AddMinClip adds z == min(x, cap).
func (m *Model) AddMinClip(name string, z, x Var, cap float64) {
	m.MinClip = append(m.MinClip, MinClipRow{Name: name, Z: z, X: x, Cap: cap})
}

// AddLog adds y == ln(x).
func (m *Model) AddLog(name string, y, x Var) {
	m.Log = append(m.Log, LogRow{Name: name, Y: y, X: x})
}

// AddBilinear adds z == k*x*y for continuous x and y.
func (m *Model) AddBilinear(name string, z, x, y Var, k float64) {
	m.Bilin = append(m.Bilin, BilinearRow{Name: name, Z: z, X: x, Y: y, K: k})
}

// Maximize sets v as the single maximization objective.
func (m *Model) Maximize(v Var) {
	m.objVar = v
	m.hasObj = true
	m.maximize = true
}

// Minimize sets v as the single minimization objective.
func (m *Model) Minimize(v Var) {
	m.objVar = v
	m.hasObj = true
	m.maximize = false
}

// ObjectiveVar reports the objective column, if one was set.
func (m *Model) ObjectiveVar() (Var, bool) { return m.objVar, m.hasObj }

// IsMaximize reports the optimization direction.
func (m *Model) IsMaximize() bool { return m.maximize }

// NumRows returns the total declared row count across all row kinds.
func (m *Model) NumRows() int {
	return len(m.Lin) + len(m.Quad) + len(m.Prod) + len(m.Compl) +
		len(m.Thresh) + len(m.MinClip) + len(m.Log) + len(m.Bilin)
}
