package opt

import (
	"fmt"
	"math"

	"github.com/hydroecon/farmwell/internal/mip"
)

// Supported objective targets.
const (
	TargetProfit    = "profit"
	TargetYieldRate = "yield_rate"
)

// ConsumatParams are the satisfaction-function coefficients used after
// solving: Sa = mean(1 - exp(-alpha * max(0, metric/scale))).
type ConsumatParams struct {
	Alpha map[string]float64
	Scale map[string]float64
}

// DefaultConsumatParams returns the coefficients calibrated for the
// profit metric.
func DefaultConsumatParams() ConsumatParams {
	return ConsumatParams{
		Alpha: map[string]float64{TargetProfit: 1},
		Scale: map[string]float64{TargetProfit: 0.23 * 50},
	}
}

// SetupObjective introduces the satisfaction-proxy variable, constrains
// it to the horizon average of the chosen metric, and sets it as the
// maximization objective. The exponential satisfaction transform is
// applied post-solve; because it is monotonic in the metric, maximizing
// the proxy is equivalent and keeps the solved model quadratic.
func (m *Model) SetupObjective(target string, consumat *ConsumatParams) error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}

	var metric []mip.Var
	switch target {
	case TargetProfit:
		metric = m.profit
	case TargetYieldRate:
		metric = m.yY
	default:
		return fmt.Errorf("objective: %q is not a valid metric", target)
	}

	params := DefaultConsumatParams()
	if consumat != nil {
		params = *consumat
	}
	m.target = target
	m.alpha = params.Alpha[target]
	m.scale = params.Scale[target]
	if m.scale == 0 {
		m.scale = 1
	}

	mm := m.m
	// The proxy is clamped at zero only after solving, inside the
	// satisfaction transform.
	m.fakeSa = mm.AddVar("fakeSa."+target, mip.Continuous, math.Inf(-1), mip.Inf())

	terms := []mip.Term{{Var: m.fakeSa, Coef: 1}}
	for h := 0; h < m.nh; h++ {
		terms = append(terms, mip.Term{Var: metric[h], Coef: -1 / float64(m.nh)})
	}
	mm.AddEq("c.Sa."+target, terms, 0)
	mm.Maximize(m.fakeSa)

	m.objSet = true
	return nil
}

// FinishSetup locks the model: per-field-averaged profit is derived
// from revenue, energy cost, and the fixed annual cost, and well-level
// energy is folded into the shared energy variable. No fields, wells,
// or water rights may be added afterwards.
func (m *Model) FinishSetup() error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}
	nf := len(m.FieldIDs)
	if nf == 0 {
		return fmt.Errorf("model %s: no fields registered", m.ID)
	}
	if !m.financeSet {
		return fmt.Errorf("model %s: finance constraints not set", m.ID)
	}

	mm := m.m
	for h := 0; h < m.nh; h++ {
		mm.AddEq(fmt.Sprintf("c.profit[%d]", h), []mip.Term{
			{Var: m.profit[h], Coef: 1},
			{Var: m.rev[h], Coef: -1 / float64(nf)},
			{Var: m.costE[h], Coef: 1 / float64(nf)},
			{Var: m.annualCost[h], Coef: 1 / float64(nf)},
		}, 0)
	}

	// Wells under the transient model carry their own energy columns;
	// tie the shared energy variable to their total.
	var theis []*wellVars
	for _, wid := range m.WellIDs {
		if wv := m.wells[wid]; len(wv.e) > 0 {
			theis = append(theis, wv)
		}
	}
	if len(theis) > 0 {
		for h := 0; h < m.nh; h++ {
			terms := []mip.Term{{Var: m.e[h], Coef: 1}}
			for _, wv := range theis {
				terms = append(terms, mip.Term{Var: wv.e[h], Coef: -1})
			}
			mm.AddEq(fmt.Sprintf("c.e(PJ)[%d]", h), terms, 0)
		}
	}

	m.finished = true
	return nil
}
