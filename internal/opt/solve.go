package opt

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hydroecon/farmwell/internal/mip"
)

// SolveOptions configure one solve call.
type SolveOptions struct {
	TimeLimit float64 // seconds, 0 means solver default
	RelGap    float64 // relative MIP gap, 0 means solver default
	Verbose   bool

	// KeepModel retains the assembled model after extraction, e.g. to
	// compute an infeasibility diagnostic or export files. By default
	// the model is released once results are read.
	KeepModel bool
}

// FieldSolution holds one field's solved binaries, post-processed.
type FieldSolution struct {
	ICrop    []float64
	IRainfed []float64
}

// WellSolution holds one well's solved energy and pumping rate; only
// wells under the transient model report them.
type WellSolution struct {
	E []float64
	Q []float64
}

// Decision is the per-field outcome handed to the calling simulation.
type Decision struct {
	CropType  string
	IrrTech   string
	Irrigated bool
}

// Result mirrors the solved decision variables plus the post-processed
// outputs. HasSolution is false on infeasible or otherwise unusable
// solver status; all other fields are then empty.
type Result struct {
	Status      mip.Status
	HasSolution bool
	Objective   float64
	Gap         float64

	IrrDepth [][]float64 // [crop][year] [cm]
	V        []float64   // [m-ha]
	Y        [][]float64 // [crop][year] [1e4 bu]
	YY       []float64
	E        []float64 // [PJ]
	Profit   []float64 // [1e4 $]

	Fields map[string]*FieldSolution
	Wells  map[string]*WellSolution

	Satisfaction map[string]float64
	WaterRights  map[string]WaterRightState
	Decisions    map[string]Decision
	Report       string
}

// Satisfaction applies the bounded satisfaction transform to a metric
// series: mean over years of 1 - exp(-alpha * max(0, metric/scale)).
// Negative metric values clamp to zero, so the result lies in [0, 1).
func Satisfaction(metric []float64, alpha, scale float64) float64 {
	n := make([]float64, len(metric))
	for i, v := range metric {
		s := v / scale
		if s < 0 {
			s = 0
		}
		n[i] = 1 - math.Exp(-alpha*s)
	}
	return stat.Mean(n, nil)
}

// Solve invokes the solving oracle on the assembled model and extracts
// the results. A non-optimal status is not an error: the returned
// Result reports the status with HasSolution false. Unless KeepModel is
// set, the model is released afterwards and no further solves, exports,
// or diagnostics are possible.
func (m *Model) Solve(opts SolveOptions) (*Result, error) {
	if m.released {
		return nil, fmt.Errorf("model %s: already released", m.ID)
	}
	if !m.finished {
		return nil, fmt.Errorf("model %s: setup not finished", m.ID)
	}

	sol, err := m.oracle.Solve(m.m, mip.Options{
		TimeLimit: opts.TimeLimit,
		RelGap:    opts.RelGap,
		Verbose:   opts.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("model %s: solve: %w", m.ID, err)
	}
	m.lastSol = sol

	if !opts.KeepModel {
		defer m.release()
	}

	if !sol.Status.Usable() {
		return &Result{
			Status: sol.Status,
			Report: "Optimal solution is not found.",
		}, nil
	}

	res := &Result{
		Status:       sol.Status,
		HasSolution:  true,
		Objective:    sol.Objective,
		Gap:          sol.Gap,
		IrrDepth:     m.grid(sol, m.irrDepth),
		V:            m.row(sol, m.v),
		Y:            m.grid(sol, m.y),
		YY:           m.row(sol, m.yY),
		E:            m.row(sol, m.e),
		Profit:       m.row(sol, m.profit),
		Fields:       map[string]*FieldSolution{},
		Wells:        map[string]*WellSolution{},
		Satisfaction: map[string]float64{},
		WaterRights:  map[string]WaterRightState{},
		Decisions:    map[string]Decision{},
	}

	for wid, wv := range m.wells {
		ws := &WellSolution{}
		if len(wv.e) > 0 {
			ws.E = m.row(sol, wv.e)
			ws.Q = m.row(sol, wv.q)
		}
		res.Wells[wid] = ws
	}

	if m.objSet {
		var metric []float64
		switch m.target {
		case TargetProfit:
			metric = res.Profit
		case TargetYieldRate:
			metric = res.YY
		}
		res.Satisfaction[m.target] = Satisfaction(metric, m.alpha, m.scale)
	}

	// Total irrigation applied in the decision year.
	irrYear0 := 0.0
	for ci := 0; ci < m.nc; ci++ {
		irrYear0 += res.IrrDepth[ci][0]
	}

	for fid, fv := range m.fields {
		fs := &FieldSolution{
			ICrop:    m.row(sol, fv.iCrop),
			IRainfed: m.row(sol, fv.iRainfed),
		}
		// A field that drew no irrigation is rainfed whatever the
		// solved binary says, re-masked by the crop choice so only the
		// planted crop reports the flag.
		if irrYear0 <= 0 {
			for ci := range fs.IRainfed {
				fs.IRainfed[ci] = 1
			}
		}
		for ci := range fs.IRainfed {
			fs.IRainfed[ci] *= fs.ICrop[ci]
		}
		res.Fields[fid] = fs
	}

	for id, st := range m.wrsInfo {
		if st.RemainingWR != nil {
			wr := *st.RemainingWR - irrYear0
			st.RemainingWR = &wr
			m.wrsInfo[id] = st
		}
		res.WaterRights[id] = st
	}

	for fid, fs := range res.Fields {
		// Arg-max rather than an equality test, to tolerate solver
		// float slack on the binaries.
		crop := m.CropOptions[floats.MaxIdx(fs.ICrop)]
		rainfedTotal := 0.0
		for _, v := range fs.IRainfed {
			rainfedTotal += v
		}
		res.Decisions[fid] = Decision{
			CropType:  crop,
			IrrTech:   techName,
			Irrigated: math.Round(rainfedTotal) <= 0,
		}
	}

	res.Report = m.report(res)
	return res, nil
}

func (m *Model) release() {
	m.released = true
	m.m = nil
}

// Released reports whether the underlying model has been dropped.
func (m *Model) Released() bool { return m.released }

func (m *Model) row(sol *mip.Solution, vs []mip.Var) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = sol.Value(v)
	}
	return out
}

func (m *Model) grid(sol *mip.Solution, vs [][]mip.Var) [][]float64 {
	out := make([][]float64, len(vs))
	for i := range vs {
		out[i] = m.row(sol, vs[i])
	}
	return out
}

func (m *Model) report(res *Result) string {
	var mean float64
	var n int
	for _, row := range res.IrrDepth {
		for _, v := range row {
			mean += v
			n++
		}
	}
	if n > 0 {
		mean /= float64(n)
	}

	var dec strings.Builder
	fmt.Fprintf(&dec, "\t\tIrrigation depths: %.2f\n", mean)
	for _, fid := range m.FieldIDs {
		d := res.Decisions[fid]
		fmt.Fprintf(&dec, "\t\t%s:\n", fid)
		fmt.Fprintf(&dec, "\t\t\tCrop types: %s\n", d.CropType)
		fmt.Fprintf(&dec, "\t\t\tIrr tech: %s\n", d.IrrTech)
		fmt.Fprintf(&dec, "\t\t\tIrrigated: %t\n", d.Irrigated)
	}

	var sas strings.Builder
	for k, v := range res.Satisfaction {
		fmt.Fprintf(&sas, "\t\t%s: %.4f\n", k, v)
	}

	return fmt.Sprintf(`
########## Model Report ##########

Name:   %s

Planning horizon:   %d
No. of Crop fields:    %d
No. of Wells:          %d
No. of Water rights:   %d

Decision settings:
%s
Solutions (gap %.4f%%):
%s
Satisfaction:
%s
###################################
`, m.ID, m.nh, len(m.FieldIDs), len(m.WellIDs), len(m.WaterRightIDs),
		m.msgString(), res.Gap*100, dec.String(), sas.String())
}

// ComputeIIS writes an irreducible infeasible subsystem of the
// assembled model. Only meaningful after an infeasible solve with
// KeepModel set, and only when the oracle can solve lowered systems
// directly.
func (m *Model) ComputeIIS(w io.Writer, opts SolveOptions) error {
	if m.released {
		return fmt.Errorf("model %s: already released", m.ID)
	}
	ls, ok := m.oracle.(mip.LoweredSolver)
	if !ok {
		return fmt.Errorf("model %s: oracle cannot solve lowered subsystems", m.ID)
	}
	return mip.WriteIIS(w, m.m, ls, mip.Options{
		TimeLimit: opts.TimeLimit,
		RelGap:    opts.RelGap,
	})
}
