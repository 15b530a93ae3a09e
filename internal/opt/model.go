// Package opt builds and solves the yearly crop-choice, irrigation, and
// groundwater-pumping decision problem for one farmer's field-well pair.
//
// A Model is assembled incrementally: fields, wells, finance, and water
// rights each contribute constraints, the objective is a satisfaction
// proxy over a chosen metric, and Solve hands the assembled system to a
// mixed-integer solving backend. Post-solve, the raw column values are
// turned into structured decisions and the water-right balances for the
// next simulated year.
package opt

import (
	"fmt"
	"math"

	"github.com/hydroecon/farmwell/internal/mip"
)

// Default crop options when the caller passes none.
var defaultCropOptions = []string{"corn", "others"}

// Fixed irrigation technology: center-pivot LEPA.
const (
	techA    = 0.0058   // pumping-rate curve slope
	techB    = 0.212206 // pumping-rate curve intercept
	liftPr   = 12.65    // pressurization head [m]
	costTech = 1.876    // annual technology cost [1e4 $]
	techName = "center pivot LEPA"
)

// Physical constants.
const (
	waterRho = 1000.0 // water density [kg/m3]
	gravity  = 9.8016 // gravitational acceleration [m/s2]
	cmToM    = 0.01
	mHaToM3  = 10000.0
)

type fieldVars struct {
	iCrop     []mip.Var // one binary per crop option
	iRainfed  []mip.Var
	fieldType FieldType
}

type wellVars struct {
	e []mip.Var // well-level pumping energy [PJ]
	q []mip.Var // well-level pumping rate [m-ha/d]
}

// Model is one (farmer, year) optimization instance.
type Model struct {
	ID          string
	Horizon     int
	CropOptions []string

	FieldIDs      []string
	WellIDs       []string
	WaterRightIDs []string

	oracle mip.Oracle
	m      *mip.Model

	nc, nh int

	// Shared horizon-indexed decision variables.
	irrDepth [][]mip.Var // [crop][year] irrigation depth [cm]
	v        []mip.Var   // irrigation volume [m-ha]
	y        [][]mip.Var // crop yield [1e4 bu]
	yY       []mip.Var   // average yield ratio
	e        []mip.Var   // pumping energy [PJ]
	profit   []mip.Var   // per-field-averaged profit [1e4 $]

	// Finance (set by SetupFinanceConstraints).
	rev, costE, annualCost []mip.Var
	financeSet             bool

	// Objective (set by SetupObjective).
	fakeSa    mip.Var
	target    string
	alpha     float64
	scale     float64
	objSet    bool
	finished  bool
	released  bool

	fields map[string]*fieldVars
	wells  map[string]*wellVars

	// ubW is the largest wmax registered so far; it bounds applied water.
	ubW float64

	msg     map[string]map[string]string
	wrsInfo map[string]WaterRightState

	lastSol *mip.Solution
}

// NewModel allocates the shared horizon-indexed variables for one
// instance. The horizon must be at least one year.
func NewModel(id string, horizon int, cropOptions []string, oracle mip.Oracle) (*Model, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("model %s: horizon must be >= 1, got %d", id, horizon)
	}
	if len(cropOptions) == 0 {
		cropOptions = defaultCropOptions
	}

	m := &Model{
		ID:          id,
		Horizon:     horizon,
		CropOptions: cropOptions,
		oracle:      oracle,
		m:           mip.New(id),
		nc:          len(cropOptions),
		nh:          horizon,
		fields:      map[string]*fieldVars{},
		wells:       map[string]*wellVars{},
		msg:         map[string]map[string]string{},
		wrsInfo:     map[string]WaterRightState{},
	}

	inf := mip.Inf()
	m.irrDepth = m.addCropYearVars("irr_depth(cm)", 0, inf)
	m.v = m.m.AddVars("v(m-ha)", m.nh, mip.Continuous, 0, inf)
	m.y = m.addCropYearVars("y(1e4bu)", 0, inf)
	m.yY = m.m.AddVars("y_y", m.nh, mip.Continuous, 0, 1)
	m.e = m.m.AddVars("e(PJ)", m.nh, mip.Continuous, 0, inf)
	m.profit = m.m.AddVars("profit(1e4$)", m.nh, mip.Continuous, math.Inf(-1), inf)

	return m, nil
}

// addCropYearVars declares a (crop x year) block of continuous columns.
func (m *Model) addCropYearVars(name string, lb, ub float64) [][]mip.Var {
	vs := make([][]mip.Var, m.nc)
	for c := range vs {
		vs[c] = make([]mip.Var, m.nh)
		for h := range vs[c] {
			vs[c][h] = m.m.AddVar(fmt.Sprintf("%s[%d,%d]", name, c, h), mip.Continuous, lb, ub)
		}
	}
	return vs
}

// sum builds the terms of sum(vars).
func sum(vars []mip.Var) []mip.Term {
	ts := make([]mip.Term, len(vars))
	for i, v := range vars {
		ts[i] = mip.Term{Var: v, Coef: 1}
	}
	return ts
}

// Summary returns the model summary block. Meaningful after FinishSetup.
func (m *Model) Summary() string {
	return fmt.Sprintf(`
########## Model Summary ##########

Name:   %s

Planning horizon:   %d
No. of Crop fields:    %d
No. of Wells:          %d
No. of Water rights:   %d

Decision settings:
%s
###################################
`, m.ID, m.nh, len(m.FieldIDs), len(m.WellIDs), len(m.WaterRightIDs), m.msgString())
}

func (m *Model) msgString() string {
	s := ""
	for _, fid := range m.FieldIDs {
		s += fmt.Sprintf("\t%s:\n", fid)
		fm := m.msg[fid]
		for _, k := range []string{"Crop types", "Irr tech", "Field type", "Rainfed field"} {
			if v, ok := fm[k]; ok {
				s += fmt.Sprintf("\t\t%s: %s\n", k, v)
			}
		}
	}
	return s
}

// WriteFile exports the assembled model to the given format ("lp", "mps",
// "ilp", "sol"); the extension is appended to filename when missing. The
// "sol" format requires a prior successful Solve.
func (m *Model) WriteFile(filename, ext string) error {
	if m.released {
		return fmt.Errorf("model %s: already released", m.ID)
	}
	return mip.WriteFile(m.m, filename, ext, m.lastSol, mip.DefaultLowerOptions())
}
