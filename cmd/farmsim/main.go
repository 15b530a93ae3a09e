// Command farmsim runs a small region of groundwater-irrigated farms,
// solving each farmer's yearly crop and pumping decision.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hydroecon/farmwell/internal/agents"
	"github.com/hydroecon/farmwell/internal/aquifer"
	"github.com/hydroecon/farmwell/internal/climate"
	"github.com/hydroecon/farmwell/internal/engine"
	"github.com/hydroecon/farmwell/internal/mip"
	"github.com/hydroecon/farmwell/internal/opt"
	"github.com/hydroecon/farmwell/internal/persistence"
)

func main() {
	var (
		seed    = flag.Int64("seed", 42, "random seed for region and climate")
		years   = flag.Int("years", 10, "number of years to simulate")
		farms   = flag.Int("farms", 8, "number of farmer agents")
		dbPath  = flag.String("db", "data/farmwell.db", "sqlite database path")
		verbose = flag.Bool("verbose", false, "solver output to stdout")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting farmwell simulation",
		"seed", *seed, "years", *years, "farms", *farms)

	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	cfg := engine.DefaultConfig()
	cfg.SolverOutput = *verbose

	clim := climate.DefaultConfig()
	clim.Seed = *seed
	gen := climate.NewGenerator(clim)

	var farmers []*agents.Farmer
	startYear := 0

	if db.HasState() {
		slog.Info("found saved state, loading...")
		farmers, err = db.LoadFarmers()
		if err != nil {
			slog.Error("failed to load farmers", "error", err)
			os.Exit(1)
		}
		if yearStr, err := db.GetMeta("last_year"); err == nil {
			if y, err := strconv.Atoi(yearStr); err == nil {
				startYear = y
			}
		}
		slog.Info("state restored", "farmers", len(farmers), "year", startYear)
	} else {
		slog.Info("no saved state found, generating region...")
		farmers = generateRegion(*seed, *farms)
		for _, f := range farmers {
			slog.Info("farmer",
				"name", f.Name,
				"area_ha", f.Farm.AreaHa,
				"wr_depth_cm", f.Farm.WRDepth,
				"lift_m", fmt.Sprintf("%.1f", f.Aquifer.LWT),
			)
		}
	}

	sim := engine.NewSimulation(cfg, farmers, gen, mip.NewHiGHSOracle())
	sim.DB = db
	sim.Year = startYear

	if err := sim.RunYears(*years); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nSimulated %d years for %d farms. Results in %s.\n",
		*years, len(farmers), *dbPath)
}

// generateRegion seeds a deterministic set of farms over an aquifer.
func generateRegion(seed int64, n int) []*agents.Farmer {
	rng := rand.New(rand.NewSource(seed))

	curves := map[string]opt.WaterYieldCurve{
		"corn":   {Ymax: 248.1, Wmax: 76.1, A: -2.5529, B: 5.3935, C: -1.8486, MinYRatio: 0.3},
		"others": {Ymax: 65.8, Wmax: 63.2, A: -2.0787, B: 4.4438, C: -1.3673},
	}

	farmers := make([]*agents.Farmer, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("farmer_%02d", i+1)
		farm := agents.Farm{
			FieldID:      fmt.Sprintf("f%02d", i+1),
			WellID:       fmt.Sprintf("w%02d", i+1),
			AreaHa:       40 + rng.Float64()*20,
			X:            rng.Float64() * 30,
			Y:            rng.Float64() * 30,
			Curves:       curves,
			WaterRightID: fmt.Sprintf("wr%02d", i+1),
			WRDepth:      60 + rng.Float64()*20,
			WRTimeWindow: 5,
		}
		aq := aquifer.State{
			WellID:      farm.WellID,
			LWT:         30 + rng.Float64()*20,
			ST:          20 + rng.Float64()*15,
			DWL:         -0.4,
			R:           0.4064,
			K:           66.8,
			SY:          0.055,
			EffPump:     0.77,
			EffWell:     0.5,
			PumpingDays: 90,
			FootprintHa: farm.AreaHa,
		}
		farmers = append(farmers, agents.NewFarmer(name, farm, aq))
	}
	return farmers
}
