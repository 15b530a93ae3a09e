package opt

import (
	"fmt"
	"math"

	"github.com/hydroecon/farmwell/internal/mip"
)

// WellConfig is the input block for the quadratic-energy well model.
type WellConfig struct {
	ID      string
	DWL     float64 // water level change per year [m/yr]
	B       float64 // aquifer storage coefficient
	LWT     float64 // lift head at the start of the horizon [m]
	EffPump float64 // pump efficiency

	PumpingCapacity *float64 // [m-ha/yr], nil means uncapped

	Rho float64 // water density, defaults to 1000.0 [kg/m3]
	G   float64 // gravity, defaults to 9.8016 [m/s2]
}

// TheisWellConfig is the input block for the transient-drawdown well
// model. Drawdown follows a Theis-type approximation from transmissivity
// (saturated thickness times conductivity) and specific yield.
type TheisWellConfig struct {
	ID          string
	DWL         float64 // water level change per year [m/yr]
	ST          float64 // saturated thickness [m]
	LWT         float64 // lift head at the start of the horizon [m]
	R           float64 // well radius [m]
	K           float64 // hydraulic conductivity [m/day]
	SY          float64 // specific yield
	EffPump     float64
	EffWell     float64
	PumpingDays float64 // operational days per year

	PumpingCapacity *float64

	Rho float64
	G   float64
}

func defaultPhys(rho, g float64) (float64, float64) {
	if rho == 0 {
		rho = waterRho
	}
	if g == 0 {
		g = gravity
	}
	return rho, g
}

// SetupWellConstraints registers a well under the simple energy model:
// lift head and storage coefficient are projected linearly across the
// horizon and pumping energy is quadratic-plus-linear in irrigation
// volume, using the fixed center-pivot-LEPA coefficients.
func (m *Model) SetupWellConstraints(cfg WellConfig) error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}
	wid := cfg.ID
	rho, g := defaultPhys(cfg.Rho, cfg.G)

	mm := m.m
	if cfg.PumpingCapacity != nil {
		for h := 0; h < m.nh; h++ {
			mm.AddLe(fmt.Sprintf("c.%s.pumping_capacity[%d]", wid, h),
				[]mip.Term{{Var: m.v[h], Coef: 1}}, *cfg.PumpingCapacity)
		}
	}

	A := rho * g / cfg.EffPump * 1e-11
	for h := 0; h < m.nh; h++ {
		dwl := cfg.DWL * float64(h)
		lwt := cfg.LWT - dwl
		// Empirical storage-coefficient correction from the sd6
		// precalculation.
		b := cfg.B - 0.00015*dwl

		aab := A * techA * b
		albb := A * (lwt + liftPr + techB*b)
		mm.AddQuad(fmt.Sprintf("c.%s.e(PJ)[%d]", wid, h), m.e[h], m.v[h], aab, albb, 0)
	}

	m.WellIDs = append(m.WellIDs, wid)
	m.wells[wid] = &wellVars{}
	return nil
}

// SetupWellConstraintsTheis registers a well under the transient
// drawdown model. The dimensionless time/radius parameter is pinned per
// year and linked to its logarithm through an explicit log constraint;
// the resulting cone-of-depression lift combines with the static lift
// and pressurization head into total lift, and energy is lift times
// volume with the physical scaling to PJ.
func (m *Model) SetupWellConstraintsTheis(cfg TheisWellConfig) error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}
	wid := cfg.ID
	rho, g := defaultPhys(cfg.Rho, cfg.G)

	mm := m.m
	inf := mip.Inf()

	if cfg.PumpingCapacity != nil {
		for h := 0; h < m.nh; h++ {
			mm.AddLe(fmt.Sprintf("c.%s.pumping_capacity[%d]", wid, h),
				[]mip.Term{{Var: m.v[h], Coef: 1}}, *cfg.PumpingCapacity)
		}
	}

	tr := cfg.ST * cfg.K
	// Keep the transmissivity away from zero before dividing by it.
	if tr < 0.001 {
		tr = 0.001
	}
	fpitr := 4 * math.Pi * tr
	ftrd := 4 * tr * cfg.PumpingDays
	qlnxVal := cfg.R * cfg.R * cfg.SY / ftrd
	lnVal := math.Log(qlnxVal)

	_, vUB := mm.Bounds(m.v[0])
	qUB := inf
	if !math.IsInf(vUB, 1) {
		qUB = techA*vUB + techB
	}
	if cfg.PumpingCapacity != nil {
		qUB = math.Min(qUB, techA*(*cfg.PumpingCapacity)+techB)
	}

	q := mm.AddVars(wid+".q(m-ha/d)", m.nh, mip.Continuous, 0, qUB)
	e := mm.AddVars(wid+".e(PJ)", m.nh, mip.Continuous, 0, inf)
	lt := mm.AddVars(wid+".l_t(m)", m.nh, mip.Continuous, 0, inf)
	qlnx := mm.AddVars(wid+".q_lnx", m.nh, mip.Continuous, qlnxVal, qlnxVal)
	// q_lny stays at or below -0.5772 so the drawdown lift cannot go
	// negative.
	qlny := mm.AddVars(wid+".q_lny", m.nh, mip.Continuous, math.Min(lnVal, -0.5772), -0.5772)
	lcd := mm.AddVars(wid+".l_cd_l_wd(m)", m.nh, mip.Continuous, 0, inf)
	// Euler-constant term of the Theis well function.
	we := mm.AddVars(wid+".w_e", m.nh, mip.Continuous, 0, math.Max(0, -0.5772-lnVal))
	zq := mm.AddVars(wid+".q_w_e", m.nh, mip.Continuous, 0, inf)

	kLift := mHaToM3 / (fpitr * cfg.EffWell)
	kEnergy := rho * g * mHaToM3 / cfg.EffPump / 1e15

	for h := 0; h < m.nh; h++ {
		lwt := cfg.LWT - cfg.DWL*float64(h)

		mm.Pin(fmt.Sprintf("c.%s.q_lnx[%d]", wid, h), qlnx[h], qlnxVal)
		mm.AddLog(fmt.Sprintf("c.%s.q_lny[%d]", wid, h), qlny[h], qlnx[h])

		// Pumping rate from the fixed technology curve.
		mm.AddEq(fmt.Sprintf("c.%s.q(m-ha/d)[%d]", wid, h),
			[]mip.Term{{Var: q[h], Coef: 1}, {Var: m.v[h], Coef: -techA}}, techB)

		mm.AddEq(fmt.Sprintf("c.%s.w_e[%d]", wid, h),
			[]mip.Term{{Var: we[h], Coef: 1}, {Var: qlny[h], Coef: 1}}, -0.5772)
		mm.AddBilinear(fmt.Sprintf("c.%s.q_w_e[%d]", wid, h), zq[h], q[h], we[h], 1)
		mm.AddEq(fmt.Sprintf("c.%s.l_cd_l_wd(m)[%d]", wid, h),
			[]mip.Term{{Var: lcd[h], Coef: 1}, {Var: zq[h], Coef: -kLift}}, 0)

		mm.AddEq(fmt.Sprintf("c.%s.l_t(m)[%d]", wid, h),
			[]mip.Term{{Var: lt[h], Coef: 1}, {Var: lcd[h], Coef: -1}}, lwt+liftPr)

		mm.AddBilinear(fmt.Sprintf("c.%s.e(PJ)[%d]", wid, h), e[h], m.v[h], lt[h], kEnergy)
	}

	// Finite brackets for the energy product.
	weUB := math.Max(0, -0.5772-lnVal)
	if !math.IsInf(qUB, 1) {
		zqUB := qUB * weUB
		lcdUB := kLift * zqUB
		lwtMax := math.Max(cfg.LWT, cfg.LWT-cfg.DWL*float64(m.nh-1))
		ltUB := math.Max(0, lwtMax) + liftPr + lcdUB
		for h := 0; h < m.nh; h++ {
			mm.SetBounds(zq[h], 0, zqUB)
			mm.SetBounds(lcd[h], 0, lcdUB)
			mm.SetBounds(lt[h], 0, ltUB)
			if !math.IsInf(vUB, 1) {
				mm.SetBounds(e[h], 0, kEnergy*vUB*ltUB)
			}
		}
	}

	m.WellIDs = append(m.WellIDs, wid)
	m.wells[wid] = &wellVars{e: e, q: q}
	return nil
}
