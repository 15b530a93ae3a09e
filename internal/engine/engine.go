// Package engine runs the yearly simulation loop: one optimization per
// farmer per year, followed by the behavioral-state update, aquifer
// bookkeeping, and persistence of the resulting decisions.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/hydroecon/farmwell/internal/agents"
	"github.com/hydroecon/farmwell/internal/aquifer"
	"github.com/hydroecon/farmwell/internal/climate"
	"github.com/hydroecon/farmwell/internal/mip"
	"github.com/hydroecon/farmwell/internal/opt"
	"github.com/hydroecon/farmwell/internal/persistence"
)

// Config holds the simulation-wide knobs.
type Config struct {
	CropOptions []string
	Horizon     int // planning horizon per optimization [yr]

	Finance  opt.FinanceConfig
	Consumat opt.ConsumatParams

	// Aquifer cell shared by all wells in the region.
	Cell aquifer.Cell

	SolveTimeLimit float64 // seconds per farmer-year solve
	SolveRelGap    float64
	SolverOutput   bool
}

// DefaultConfig returns the corn/others scenario settings.
func DefaultConfig() Config {
	return Config{
		CropOptions: []string{"corn", "others"},
		Horizon:     1,
		Finance: opt.FinanceConfig{
			EnergyPrice: 2000,
			CropPrice:   map[string]float64{"corn": 5.39, "others": 6.11},
			CropCost:    map[string]float64{"corn": 2.31, "others": 2.58},
		},
		Consumat:       opt.DefaultConsumatParams(),
		Cell:           aquifer.Cell{RegionalDecline: 0.3},
		SolveTimeLimit: 30,
		SolveRelGap:    0.01,
	}
}

// Simulation holds the region state and wires the systems together.
type Simulation struct {
	Config  Config
	Farmers []*agents.Farmer
	Climate *climate.Generator
	Oracle  mip.Oracle
	DB      *persistence.DB // nil disables persistence

	Year int // last completed year
}

// NewSimulation assembles a simulation from its components.
func NewSimulation(cfg Config, farmers []*agents.Farmer, gen *climate.Generator, oracle mip.Oracle) *Simulation {
	return &Simulation{
		Config:  cfg,
		Farmers: farmers,
		Climate: gen,
		Oracle:  oracle,
	}
}

// YearOutcome summarizes one simulated year.
type YearOutcome struct {
	Year          int
	Solved        int
	Failed        int
	TotalIrrMHa   float64
	TotalProfit   float64 // [1e4 $]
	MeanSatisfied float64
}

// RunYear advances every farmer one year: solve (or repeat), apply the
// decisions, update groundwater and water rights, then shift the
// behavioral states from the realized satisfactions.
func (s *Simulation) RunYear(year int) (*YearOutcome, error) {
	out := &YearOutcome{Year: year}
	records := make([]persistence.DecisionRecord, 0, len(s.Farmers))

	for _, f := range s.Farmers {
		res, err := s.decide(f, year)
		if err != nil {
			return nil, fmt.Errorf("year %d farmer %s: %w", year, f.Name, err)
		}
		if res == nil || !res.HasSolution {
			out.Failed++
			slog.Warn("no usable solution", "farmer", f.Name, "year", year)
			continue
		}
		out.Solved++

		d := res.Decisions[f.Farm.FieldID]
		f.LastCrop = d.CropType
		f.LastRainfed = !d.Irrigated
		f.YearsFarming++

		withdrawal := res.V[0]
		aquifer.Advance(&f.Aquifer, s.Config.Cell, withdrawal)

		if wr, ok := res.WaterRights[f.Farm.WaterRightID]; ok {
			f.WaterRight = &wr
		}

		sa := res.Satisfaction[opt.TargetProfit]
		f.Satisfaction = sa

		out.TotalIrrMHa += withdrawal
		out.TotalProfit += res.Profit[0]
		out.MeanSatisfied += sa

		records = append(records, persistence.DecisionRecord{
			FarmerID:     f.ID.String(),
			Year:         year,
			Crop:         d.CropType,
			Irrigated:    d.Irrigated,
			IrrDepthCm:   sumGrid(res.IrrDepth, 0),
			Yield:        sumGrid(res.Y, 0),
			EnergyPJ:     res.E[0],
			Profit:       res.Profit[0],
			Satisfaction: sa,
			SolverStatus: res.Status.String(),
			Gap:          res.Gap,
		})
	}

	if out.Solved > 0 {
		out.MeanSatisfied /= float64(out.Solved)
	}

	s.shiftStates(out.MeanSatisfied)

	if s.DB != nil {
		if err := s.DB.SaveDecisions(records); err != nil {
			return nil, fmt.Errorf("year %d: save decisions: %w", year, err)
		}
		if err := s.DB.SaveState(s.Farmers, year); err != nil {
			return nil, fmt.Errorf("year %d: save state: %w", year, err)
		}
	}

	s.Year = year
	slog.Info("year complete",
		"year", year,
		"solved", out.Solved,
		"failed", out.Failed,
		"irrigation_m_ha", humanize.CommafWithDigits(out.TotalIrrMHa, 2),
		"profit_1e4usd", humanize.CommafWithDigits(out.TotalProfit, 2),
		"mean_satisfaction", fmt.Sprintf("%.3f", out.MeanSatisfied),
	)
	return out, nil
}

// RunYears runs consecutive years starting after the last completed
// one.
func (s *Simulation) RunYears(n int) error {
	for i := 0; i < n; i++ {
		if _, err := s.RunYear(s.Year + 1); err != nil {
			return err
		}
	}
	return nil
}

// decide builds and solves one farmer's yearly optimization.
func (s *Simulation) decide(f *agents.Farmer, year int) (*opt.Result, error) {
	cfg := s.Config

	m, err := opt.NewModel(
		fmt.Sprintf("%s_%d_%s", f.Name, year, uuid.NewString()[:8]),
		cfg.Horizon, cfg.CropOptions, s.Oracle)
	if err != nil {
		return nil, err
	}

	precAW := s.Climate.YearAW(year, f.Farm.X, f.Farm.Y)

	fieldCfg := opt.FieldConfig{
		ID:     f.Farm.FieldID,
		Area:   f.Farm.AreaHa,
		PrecAW: precAW,
		Curves: f.Farm.Curves,
		Type:   opt.FieldOptimize,
		ICrop:  f.PinnedCrop(cfg.CropOptions),
	}
	// Under repetition the irrigation mode is pinned too, which also
	// fixes the field type.
	if !f.Reoptimizes() && f.LastCrop != "" {
		rain := make([]float64, len(cfg.CropOptions))
		if f.LastRainfed {
			for i, c := range cfg.CropOptions {
				if c == f.LastCrop {
					rain[i] = 1
				}
			}
		}
		fieldCfg.IRainfed = rain
	}
	if err := m.SetupFieldConstraints(fieldCfg); err != nil {
		return nil, err
	}

	aq := f.Aquifer
	if err := m.SetupWellConstraintsTheis(opt.TheisWellConfig{
		ID:              f.Farm.WellID,
		DWL:             aq.DWL,
		ST:              aq.ST,
		LWT:             aq.LWT,
		R:               aq.R,
		K:               aq.K,
		SY:              aq.SY,
		EffPump:         aq.EffPump,
		EffWell:         aq.EffWell,
		PumpingDays:     aq.PumpingDays,
		PumpingCapacity: f.Farm.PumpingCapacity,
	}); err != nil {
		return nil, err
	}

	if err := m.SetupFinanceConstraints(cfg.Finance); err != nil {
		return nil, err
	}

	wrCfg := opt.WaterRightConfig{
		ID:         f.Farm.WaterRightID,
		Depth:      f.Farm.WRDepth,
		TimeWindow: f.Farm.WRTimeWindow,
	}
	if f.WaterRight != nil {
		wrCfg.Depth = f.WaterRight.Depth
		wrCfg.TimeWindow = f.WaterRight.TimeWindow
		wrCfg.RemainingTW = f.WaterRight.RemainingTW
		wrCfg.RemainingWR = f.WaterRight.RemainingWR
		wrCfg.TailMethod = f.WaterRight.TailMethod
	}
	if err := m.SetupWaterRightConstraints(wrCfg); err != nil {
		return nil, err
	}

	if err := m.SetupObjective(opt.TargetProfit, &cfg.Consumat); err != nil {
		return nil, err
	}
	if err := m.FinishSetup(); err != nil {
		return nil, err
	}

	return m.Solve(opt.SolveOptions{
		TimeLimit: cfg.SolveTimeLimit,
		RelGap:    cfg.SolveRelGap,
		Verbose:   cfg.SolverOutput,
	})
}

// shiftStates applies the consumat transition to every farmer and
// resolves imitation targets against the most satisfied neighbor.
func (s *Simulation) shiftStates(neighborhoodAvg float64) {
	var best *agents.Farmer
	for _, f := range s.Farmers {
		if best == nil || f.Satisfaction > best.Satisfaction {
			best = f
		}
	}
	for _, f := range s.Farmers {
		f.UpdateState(f.Satisfaction, neighborhoodAvg)
		if f.State == agents.StateImitation && best != f {
			f.Imitate(best)
		}
	}
}

func sumGrid(g [][]float64, h int) float64 {
	total := 0.0
	for _, row := range g {
		total += row[h]
	}
	return total
}
