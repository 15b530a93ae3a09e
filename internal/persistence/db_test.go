package persistence

import (
	"path/filepath"
	"testing"

	"github.com/hydroecon/farmwell/internal/agents"
	"github.com/hydroecon/farmwell/internal/aquifer"
	"github.com/hydroecon/farmwell/internal/opt"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleFarmer(name string) *agents.Farmer {
	f := agents.NewFarmer(name, agents.Farm{
		FieldID: name + "_field",
		WellID:  name + "_well",
		AreaHa:  50,
		X:       12, Y: 34,
		Curves: map[string]opt.WaterYieldCurve{
			"corn": {Ymax: 10, Wmax: 20, A: -0.001, B: 0.05},
		},
		WaterRightID: name + "_wr",
		WRDepth:      60,
		WRTimeWindow: 5,
	}, aquifer.State{
		WellID: name + "_well",
		LWT:    35, ST: 25, DWL: -0.4,
		R: 0.4064, K: 66.8, SY: 0.055,
		EffPump: 0.77, EffWell: 0.5, PumpingDays: 90,
		FootprintHa: 50,
	})
	f.LastCrop = "corn"
	f.YearsFarming = 3
	f.Satisfaction = 0.72
	f.State = agents.StateRepetition
	return f
}

func TestFarmerRoundTrip(t *testing.T) {
	db := openTestDB(t)

	in := sampleFarmer("ada")
	balance := 42.5
	tw := 3
	in.WaterRight = &opt.WaterRightState{
		Depth: 60, TimeWindow: 5,
		RemainingTW: &tw, RemainingWR: &balance,
	}

	if err := db.SaveFarmers([]*agents.Farmer{in, sampleFarmer("bo")}); err != nil {
		t.Fatal(err)
	}
	out, err := db.LoadFarmers()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("loaded %d farmers, want 2", len(out))
	}

	var got *agents.Farmer
	for _, f := range out {
		if f.Name == "ada" {
			got = f
		}
	}
	if got == nil {
		t.Fatal("ada not restored")
	}
	if got.ID != in.ID {
		t.Errorf("id %s, want %s", got.ID, in.ID)
	}
	if got.State != agents.StateRepetition || got.LastCrop != "corn" || got.YearsFarming != 3 {
		t.Errorf("behavioral fields lost: %+v", got)
	}
	if got.Farm.AreaHa != 50 || got.Farm.Curves["corn"].Wmax != 20 {
		t.Errorf("farm fields lost: %+v", got.Farm)
	}
	if got.Aquifer.LWT != 35 || got.Aquifer.DWL != -0.4 {
		t.Errorf("aquifer fields lost: %+v", got.Aquifer)
	}
	if got.WaterRight == nil {
		t.Fatal("water right lost")
	}
	if got.WaterRight.RemainingWR == nil || *got.WaterRight.RemainingWR != 42.5 {
		t.Errorf("water right balance lost: %+v", got.WaterRight)
	}
	if got.Threshold != 0.6 {
		t.Errorf("threshold not restored to default: %g", got.Threshold)
	}

	// Save is a full replace.
	if err := db.SaveFarmers([]*agents.Farmer{sampleFarmer("cy")}); err != nil {
		t.Fatal(err)
	}
	out, err = db.LoadFarmers()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Name != "cy" {
		t.Fatalf("replace left %d farmers", len(out))
	}
}

func TestDecisions(t *testing.T) {
	db := openTestDB(t)

	records := []DecisionRecord{
		{FarmerID: "a", Year: 1, Crop: "corn", Irrigated: true, IrrDepthCm: 12.5,
			Yield: 1.8, EnergyPJ: 0.002, Profit: 3.1, Satisfaction: 0.4,
			SolverStatus: "optimal", Gap: 0.001},
		{FarmerID: "b", Year: 1, Crop: "others", SolverStatus: "optimal"},
		{FarmerID: "a", Year: 2, Crop: "corn", SolverStatus: "optimal"},
	}
	if err := db.SaveDecisions(records); err != nil {
		t.Fatal(err)
	}

	y1, err := db.DecisionsForYear(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(y1) != 2 {
		t.Fatalf("year 1 has %d rows, want 2", len(y1))
	}
	if y1[0].FarmerID != "a" || !y1[0].Irrigated || y1[0].IrrDepthCm != 12.5 {
		t.Errorf("row mismatch: %+v", y1[0])
	}

	// Empty saves are a no-op, not an error.
	if err := db.SaveDecisions(nil); err != nil {
		t.Fatal(err)
	}
}

func TestStateMarker(t *testing.T) {
	db := openTestDB(t)

	if db.HasState() {
		t.Fatal("fresh database should have no state")
	}
	if err := db.SaveState([]*agents.Farmer{sampleFarmer("ada")}, 7); err != nil {
		t.Fatal(err)
	}
	if !db.HasState() {
		t.Fatal("saved state not detected")
	}
	year, err := db.GetMeta("last_year")
	if err != nil {
		t.Fatal(err)
	}
	if year != "7" {
		t.Fatalf("last_year = %q, want 7", year)
	}

	// Overwrite wins.
	if err := db.SaveMeta("last_year", "8"); err != nil {
		t.Fatal(err)
	}
	if year, _ := db.GetMeta("last_year"); year != "8" {
		t.Fatalf("last_year = %q after overwrite", year)
	}
}
