package opt

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hydroecon/farmwell/internal/mip"
)

// stubOracle returns a canned solution instead of calling a backend.
type stubOracle struct {
	sol *mip.Solution
	got *mip.Model
}

func (o *stubOracle) Solve(m *mip.Model, opts mip.Options) (*mip.Solution, error) {
	o.got = m
	if o.sol.Values == nil {
		o.sol.Values = make([]float64, m.NumVars())
	}
	return o.sol, nil
}

func testFinance() FinanceConfig {
	return FinanceConfig{
		EnergyPrice: 2000,
		CropPrice:   map[string]float64{"corn": 5.39, "others": 6.11},
		CropCost:    map[string]float64{"corn": 2.31, "others": 2.58},
	}
}

// builtModel assembles a one-field, one-well, one-water-right instance
// over a two-year horizon, ready to solve.
func builtModel(t *testing.T, oracle mip.Oracle) *Model {
	t.Helper()
	m, err := NewModel("sim", 2, nil, oracle)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetupFieldConstraints(testField("f1")); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupWellConstraints(WellConfig{ID: "w1", B: 0.02, LWT: 30, EffPump: 0.77}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupFinanceConstraints(testFinance()); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupWaterRightConstraints(WaterRightConfig{ID: "wr1", Depth: 10, TimeWindow: 2}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupObjective(TargetProfit, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.FinishSetup(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestSolveExtractsDecisions(t *testing.T) {
	stub := &stubOracle{sol: &mip.Solution{Status: mip.StatusOptimal, Objective: 2.5}}
	m := builtModel(t, stub)

	vals := make([]float64, m.m.NumVars())
	fv := m.fields["f1"]
	vals[fv.iCrop[0]] = 1
	vals[m.irrDepth[0][0]] = 4
	vals[m.irrDepth[0][1]] = 6
	vals[m.profit[0]] = 2
	vals[m.profit[1]] = 3
	stub.sol.Values = vals

	res, err := m.Solve(SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasSolution {
		t.Fatal("expected a usable solution")
	}

	d := res.Decisions["f1"]
	if d.CropType != "corn" {
		t.Errorf("crop = %q, want corn", d.CropType)
	}
	if d.IrrTech != "center pivot LEPA" {
		t.Errorf("irr tech = %q", d.IrrTech)
	}
	if !d.Irrigated {
		t.Error("field drew water in year 0, should be irrigated")
	}

	want := Satisfaction([]float64{2, 3}, 1, 11.5)
	if got := res.Satisfaction["profit"]; math.Abs(got-want) > 1e-12 {
		t.Errorf("satisfaction = %g, want %g", got, want)
	}

	// Year-0 usage comes off the carried balance.
	wr := res.WaterRights["wr1"]
	if wr.RemainingWR == nil || *wr.RemainingWR != 10-4 {
		t.Errorf("remaining allotment = %v, want 6", wr.RemainingWR)
	}
	if wr.RemainingTW == nil || *wr.RemainingTW != 1 {
		t.Errorf("remaining window = %v, want 1", wr.RemainingTW)
	}

	if !strings.Contains(res.Report, "Model Report") {
		t.Error("report header missing")
	}
	if !strings.Contains(res.Report, "Crop types: corn") {
		t.Error("report should list the chosen crop")
	}

	// The model is dropped after extraction.
	if !m.Released() {
		t.Fatal("model should be released after solve")
	}
	if _, err := m.Solve(SolveOptions{}); err == nil {
		t.Fatal("second solve on a released model should fail")
	}
	if err := m.WriteFile("x", "lp"); err == nil {
		t.Fatal("export on a released model should fail")
	}
}

func TestSolveRainfedForcing(t *testing.T) {
	stub := &stubOracle{sol: &mip.Solution{Status: mip.StatusOptimal}}
	m := builtModel(t, stub)

	vals := make([]float64, m.m.NumVars())
	fv := m.fields["f1"]
	vals[fv.iCrop[1]] = 1
	// No irrigation anywhere: the field counts as rainfed regardless of
	// the solved binaries, masked to the planted crop.
	stub.sol.Values = vals

	res, err := m.Solve(SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	fs := res.Fields["f1"]
	if fs.IRainfed[0] != 0 || fs.IRainfed[1] != 1 {
		t.Fatalf("rainfed flags = %v, want [0 1]", fs.IRainfed)
	}
	d := res.Decisions["f1"]
	if d.CropType != "others" {
		t.Errorf("crop = %q, want others", d.CropType)
	}
	if d.Irrigated {
		t.Error("dry field should not report as irrigated")
	}
}

func TestSolveInfeasible(t *testing.T) {
	stub := &stubOracle{sol: &mip.Solution{Status: mip.StatusInfeasible}}
	m := builtModel(t, stub)

	res, err := m.Solve(SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.HasSolution {
		t.Fatal("infeasible status must not report a solution")
	}
	if res.Report != "Optimal solution is not found." {
		t.Fatalf("report = %q", res.Report)
	}
	if len(res.Decisions) != 0 {
		t.Fatal("no decisions expected without a solution")
	}
	if !m.Released() {
		t.Fatal("model should still be released")
	}
}

func TestSolveKeepModel(t *testing.T) {
	stub := &stubOracle{sol: &mip.Solution{Status: mip.StatusOptimal}}
	m := builtModel(t, stub)

	if _, err := m.Solve(SolveOptions{KeepModel: true}); err != nil {
		t.Fatal(err)
	}
	if m.Released() {
		t.Fatal("KeepModel should retain the model")
	}
	name := filepath.Join(t.TempDir(), "model")
	if err := m.WriteFile(name, "lp"); err != nil {
		t.Fatalf("export after KeepModel solve: %v", err)
	}
}

func TestSolveRequiresFinishedSetup(t *testing.T) {
	stub := &stubOracle{sol: &mip.Solution{Status: mip.StatusOptimal}}
	m, err := NewModel("sim", 1, nil, stub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Solve(SolveOptions{}); err == nil {
		t.Fatal("solve before FinishSetup should fail")
	}
}

func TestFinishSetupGuards(t *testing.T) {
	m := newHorizonModel(t, 1)
	if err := m.FinishSetup(); err == nil {
		t.Fatal("expected error with no fields")
	}

	m = newHorizonModel(t, 1)
	if err := m.SetupFieldConstraints(testField("f1")); err != nil {
		t.Fatal(err)
	}
	if err := m.FinishSetup(); err == nil {
		t.Fatal("expected error with no finance constraints")
	}
}

func TestObjectiveRejectsUnknownMetric(t *testing.T) {
	m := newHorizonModel(t, 1)
	if err := m.SetupObjective("acreage", nil); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestNewModelRejectsShortHorizon(t *testing.T) {
	if _, err := NewModel("x", 0, nil, nil); err == nil {
		t.Fatal("expected error for zero horizon")
	}
}

func TestSatisfactionTransform(t *testing.T) {
	if got := Satisfaction([]float64{0, 0}, 1, 11.5); got != 0 {
		t.Errorf("zero metric gives %g, want 0", got)
	}
	// Negative values clamp to zero rather than driving satisfaction
	// negative.
	if got := Satisfaction([]float64{-5}, 1, 11.5); got != 0 {
		t.Errorf("negative metric gives %g, want 0", got)
	}

	prev := -1.0
	for _, v := range []float64{0, 1, 5, 20, 100, 1000} {
		s := Satisfaction([]float64{v}, 1, 11.5)
		if s <= prev && v != 0 {
			t.Fatalf("satisfaction not increasing at metric %g", v)
		}
		if s < 0 || s >= 1 {
			t.Fatalf("satisfaction %g out of [0, 1) at metric %g", s, v)
		}
		prev = s
	}
}

func TestSummaryListsSettings(t *testing.T) {
	m := newHorizonModel(t, 2)
	if err := m.SetupFieldConstraints(testField("f1")); err != nil {
		t.Fatal(err)
	}
	s := m.Summary()
	for _, want := range []string{"Model Summary", "f1:", "Field type: optimize", "Planning horizon:   2"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}
