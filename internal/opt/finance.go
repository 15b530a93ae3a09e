package opt

import (
	"fmt"
	"math"

	"github.com/hydroecon/farmwell/internal/mip"
)

// FinanceConfig carries the prices that turn energy and yield into
// money. All monetary quantities are in 1e4 dollars.
type FinanceConfig struct {
	EnergyPrice float64            // [1e4$/PJ]
	CropPrice   map[string]float64 // [$/bu]
	CropCost    map[string]float64 // [$/bu]
}

// SetupFinanceConstraints derives energy cost, revenue, and the fixed
// annual technology cost. Per-field profit is deferred to FinishSetup
// where the final field count is known.
func (m *Model) SetupFinanceConstraints(cfg FinanceConfig) error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}

	margin := make([]float64, m.nc)
	for ci, crop := range m.CropOptions {
		price, ok := cfg.CropPrice[crop]
		if !ok {
			return fmt.Errorf("finance: no price for crop %q", crop)
		}
		cost, ok := cfg.CropCost[crop]
		if !ok {
			return fmt.Errorf("finance: no cost for crop %q", crop)
		}
		margin[ci] = price - cost
	}

	mm := m.m
	inf := mip.Inf()
	m.costE = mm.AddVars("cost_e(1e4$)", m.nh, mip.Continuous, 0, inf)
	m.rev = mm.AddVars("rev(1e4$)", m.nh, mip.Continuous, math.Inf(-1), inf)
	m.annualCost = mm.AddVars("annual_cost(1e4$)", m.nh, mip.Continuous, math.Inf(-1), inf)

	for h := 0; h < m.nh; h++ {
		mm.Pin(fmt.Sprintf("c.annual_cost(1e4$)[%d]", h), m.annualCost[h], costTech)
		mm.AddEq(fmt.Sprintf("c.cost_e[%d]", h),
			[]mip.Term{{Var: m.costE[h], Coef: 1}, {Var: m.e[h], Coef: -cfg.EnergyPrice}}, 0)

		terms := []mip.Term{{Var: m.rev[h], Coef: 1}}
		for ci := 0; ci < m.nc; ci++ {
			terms = append(terms, mip.Term{Var: m.y[ci][h], Coef: -margin[ci]})
		}
		mm.AddEq(fmt.Sprintf("c.rev[%d]", h), terms, 0)
	}

	m.financeSet = true
	return nil
}
