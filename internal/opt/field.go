package opt

import (
	"fmt"
	"math"

	"github.com/hydroecon/farmwell/internal/mip"
)

// FieldType selects how a field's irrigation choice is handled.
type FieldType string

const (
	FieldRainfed   FieldType = "rainfed"   // irrigation forced to zero
	FieldIrrigated FieldType = "irrigated" // rainfed flag forced to zero
	FieldOptimize  FieldType = "optimize"  // solver picks, mutually exclusive
)

// WaterYieldCurve maps normalized applied water to a yield ratio via
// A*w^2 + B*w + C, with Ymax the maximum yield [bu/ha] and Wmax the
// maximum beneficial water [cm]. MinYRatio is the agronomic cutoff
// below which the crop counts as failed.
type WaterYieldCurve struct {
	Ymax      float64
	Wmax      float64
	A         float64
	B         float64
	C         float64
	MinYRatio float64
}

// FieldConfig is the per-field input block.
type FieldConfig struct {
	ID     string
	Area   float64 // [ha]
	PrecAW map[string]float64 // available precipitation per crop [cm]
	Curves map[string]WaterYieldCurve

	// Type defaults to FieldOptimize; overridden by IRainfed when given.
	Type FieldType

	// ICrop pins the crop-choice binaries when non-nil (one value per
	// crop option). IRainfed pins the rainfed binaries and also infers
	// the field type: any total above 0.5 means rainfed.
	ICrop    []float64
	IRainfed []float64
}

// quadMin returns the minimum of a*x^2+b*x+c over x in [0,1].
func quadMin(a, b, c float64) float64 {
	lo := math.Min(c, a+b+c)
	if a != 0 {
		vx := -b / (2 * a)
		if vx > 0 && vx < 1 {
			lo = math.Min(lo, a*vx*vx+b*vx+c)
		}
	}
	return lo
}

// SetupFieldConstraints registers one crop field: crop-choice and rainfed
// binaries, the water-yield production function, and the aggregation of
// irrigation volume and yield ratio into the shared horizon variables.
// Must be called before the water-right and objective builders.
func (m *Model) SetupFieldConstraints(cfg FieldConfig) error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}
	fid := cfg.ID

	curves := make([]WaterYieldCurve, m.nc)
	precAW := make([]float64, m.nc)
	for ci, crop := range m.CropOptions {
		cv, ok := cfg.Curves[crop]
		if !ok {
			return fmt.Errorf("field %s: no water-yield curve for crop %q", fid, crop)
		}
		p, ok := cfg.PrecAW[crop]
		if !ok {
			return fmt.Errorf("field %s: no available precipitation for crop %q", fid, crop)
		}
		curves[ci] = cv
		precAW[ci] = p
	}

	fieldType := cfg.Type
	if fieldType == "" {
		fieldType = FieldOptimize
	}
	// A supplied rainfed indicator overrides the field type; anything
	// above 0.5 counts as rainfed to dodge float round-off.
	if cfg.IRainfed != nil {
		total := 0.0
		for _, v := range cfg.IRainfed {
			total += v
		}
		if total > 0.5 {
			fieldType = FieldRainfed
		} else {
			fieldType = FieldIrrigated
		}
	}

	m.msg[fid] = map[string]string{
		"Crop types": "optimize",
		"Irr tech":   "optimize",
		"Field type": string(fieldType),
	}

	// Applied water is capped by the largest beneficial depth, which
	// also bounds the shared irrigation-depth columns. Bounds only ever
	// widen so repeated field registrations stay consistent.
	ubW := 0.0
	for _, cv := range curves {
		ubW = math.Max(ubW, cv.Wmax)
	}
	if ubW > m.ubW {
		m.ubW = ubW
		ubV := float64(m.nc) * cfg.Area * m.ubW * cmToM
		for ci := 0; ci < m.nc; ci++ {
			for h := 0; h < m.nh; h++ {
				m.m.SetBounds(m.irrDepth[ci][h], 0, m.ubW)
			}
		}
		for h := 0; h < m.nh; h++ {
			m.m.SetBounds(m.v[h], 0, ubV)
		}
	}

	mm := m.m
	inf := mip.Inf()

	addBlock := func(name string, lb, ub float64) [][]mip.Var {
		vs := make([][]mip.Var, m.nc)
		for ci := range vs {
			vs[ci] = make([]mip.Var, m.nh)
			for h := range vs[ci] {
				vs[ci][h] = mm.AddVar(fmt.Sprintf("%s.%s[%d,%d]", fid, name, ci, h), mip.Continuous, lb, ub)
			}
		}
		return vs
	}

	w := addBlock("w(cm)", 0, ubW)
	wTemp := addBlock("w_temp", 0, inf)
	wr := addBlock("w_", 0, 1)
	yGate := addBlock("y_", 0, 1)
	ywTemp := addBlock("yw_temp", math.Inf(-1), 1)
	ywGate := addBlock("yw_", 0, 1)
	vc := addBlock("v_c(m-ha)", 0, inf)
	ywBi := make([][]mip.Var, m.nc)
	for ci := range ywBi {
		ywBi[ci] = make([]mip.Var, m.nh)
		for h := range ywBi[ci] {
			ywBi[ci][h] = mm.AddVar(fmt.Sprintf("%s.yw_bi[%d,%d]", fid, ci, h), mip.Binary, 0, 1)
		}
	}
	iCrop := make([]mip.Var, m.nc)
	iRainfed := make([]mip.Var, m.nc)
	for ci := range iCrop {
		iCrop[ci] = mm.AddVar(fmt.Sprintf("%s.i_crop[%d]", fid, ci), mip.Binary, 0, 1)
		iRainfed[ci] = mm.AddVar(fmt.Sprintf("%s.i_rainfed[%d]", fid, ci), mip.Binary, 0, 1)
	}

	// Tighten the intermediates so the downstream reductions have finite
	// brackets: w_temp tops out at ubW/wmax and yw_temp at the curve's
	// minimum over the unit interval.
	for ci, cv := range curves {
		wtUB := ubW / cv.Wmax
		ywLB := quadMin(cv.A, cv.B, cv.C)
		for h := 0; h < m.nh; h++ {
			mm.SetBounds(wTemp[ci][h], 0, wtUB)
			mm.SetBounds(ywTemp[ci][h], ywLB, 1)
			mm.SetBounds(vc[ci][h], 0, cfg.Area*ubW*cmToM)
		}
	}

	if cfg.ICrop != nil {
		for ci := range iCrop {
			mm.Pin(fmt.Sprintf("c.%s.i_crop_input[%d]", fid, ci), iCrop[ci], cfg.ICrop[ci])
		}
		m.msg[fid]["Crop types"] = "user input"
	}

	// One unit area holds exactly one crop.
	mm.AddEq(fmt.Sprintf("c.%s.i_crop", fid), sum(iCrop), 1)

	switch fieldType {
	case FieldRainfed:
		if cfg.IRainfed != nil {
			for ci := range iRainfed {
				mm.Pin(fmt.Sprintf("c.%s.i_rainfed_input[%d]", fid, ci), iRainfed[ci], cfg.IRainfed[ci])
			}
			m.msg[fid]["Rainfed field"] = "user input"
		}
		for ci := 0; ci < m.nc; ci++ {
			mm.AddGe(fmt.Sprintf("c.%s.i_rainfed[%d]", fid, ci),
				[]mip.Term{{Var: iCrop[ci], Coef: 1}, {Var: iRainfed[ci], Coef: -1}}, 0)
			for h := 0; h < m.nh; h++ {
				mm.Pin(fmt.Sprintf("c.%s.irr_rain_fed[%d,%d]", fid, ci, h), m.irrDepth[ci][h], 0)
			}
		}
	case FieldIrrigated:
		for ci := 0; ci < m.nc; ci++ {
			mm.Pin(fmt.Sprintf("c.%s.no_i_rainfed[%d]", fid, ci), iRainfed[ci], 0)
		}
	case FieldOptimize:
		for ci := 0; ci < m.nc; ci++ {
			mm.AddGe(fmt.Sprintf("c.%s.i_rainfed[%d]", fid, ci),
				[]mip.Term{{Var: iCrop[ci], Coef: 1}, {Var: iRainfed[ci], Coef: -1}}, 0)
			for h := 0; h < m.nh; h++ {
				// Irrigating a rainfed crop is contradictory.
				mm.AddComplement(fmt.Sprintf("c.%s.irr_rainfed[%d,%d]", fid, ci, h),
					iRainfed[ci], 1, m.irrDepth[ci][h])
			}
		}
	default:
		return fmt.Errorf("field %s: %q is not a valid field type", fid, fieldType)
	}

	for ci, cv := range curves {
		for h := 0; h < m.nh; h++ {
			n := func(base string) string { return fmt.Sprintf("c.%s.%s[%d,%d]", fid, base, ci, h) }

			mm.AddEq(n("w(cm)"),
				[]mip.Term{{Var: w[ci][h], Coef: 1}, {Var: m.irrDepth[ci][h], Coef: -1}}, precAW[ci])
			mm.AddEq(n("w_temp"),
				[]mip.Term{{Var: wTemp[ci][h], Coef: 1}, {Var: w[ci][h], Coef: -1 / cv.Wmax}}, 0)
			// Water beyond wmax stops adding yield.
			mm.AddMinClip(n("w_"), wr[ci][h], wTemp[ci][h], 1)

			mm.AddQuad(n("yw_temp"), ywTemp[ci][h], wr[ci][h], cv.A, cv.B, cv.C)

			// Fallow cutoff: the binary reads 1 exactly when the raw
			// yield ratio clears the minimum.
			mm.AddThreshold(n("yw_bi"), ywBi[ci][h], ywTemp[ci][h], cv.MinYRatio)
			mm.AddProduct(n("yw_"), ywGate[ci][h], ywBi[ci][h], ywTemp[ci][h])

			mm.AddProduct(n("y_"), yGate[ci][h], iCrop[ci], ywGate[ci][h])
			mm.AddEq(n("y"),
				[]mip.Term{{Var: m.y[ci][h], Coef: 1}, {Var: yGate[ci][h], Coef: -cv.Ymax * cfg.Area * 1e-4}}, 0)

			// A crop that is not planted draws no irrigation.
			mm.AddComplement(n("irr_depth(cm)"), iCrop[ci], 0, m.irrDepth[ci][h])
			mm.AddEq(n("v_c(m-ha)"),
				[]mip.Term{{Var: vc[ci][h], Coef: 1}, {Var: m.irrDepth[ci][h], Coef: -cfg.Area * cmToM}}, 0)
		}
	}

	for h := 0; h < m.nh; h++ {
		vTerms := []mip.Term{{Var: m.v[h], Coef: 1}}
		yyTerms := []mip.Term{{Var: m.yY[h], Coef: 1}}
		for ci := 0; ci < m.nc; ci++ {
			vTerms = append(vTerms, mip.Term{Var: vc[ci][h], Coef: -1})
			yyTerms = append(yyTerms, mip.Term{Var: yGate[ci][h], Coef: -1})
		}
		mm.AddEq(fmt.Sprintf("c.%s.v(m-ha)[%d]", fid, h), vTerms, 0)
		mm.AddEq(fmt.Sprintf("c.%s.y_y[%d]", fid, h), yyTerms, 0)
	}

	m.FieldIDs = append(m.FieldIDs, fid)
	m.fields[fid] = &fieldVars{iCrop: iCrop, iRainfed: iRainfed, fieldType: fieldType}
	return nil
}
