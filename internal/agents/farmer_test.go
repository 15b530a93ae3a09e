package agents

import (
	"testing"

	"github.com/hydroecon/farmwell/internal/aquifer"
)

func TestNewFarmerDefaults(t *testing.T) {
	f := NewFarmer("ada", Farm{FieldID: "f1"}, aquifer.State{WellID: "w1"})
	if f.State != StateDeliberation {
		t.Fatalf("opening state = %s, want deliberation", StateName(f.State))
	}
	if f.Threshold != 0.6 || f.Uncertainty != 0.2 {
		t.Fatalf("defaults = (%g, %g)", f.Threshold, f.Uncertainty)
	}
	if f.ID.String() == "" {
		t.Fatal("farmer needs an identity")
	}
}

func TestUpdateStateQuadrants(t *testing.T) {
	cases := []struct {
		name         string
		satisfaction float64
		neighborhood float64
		want         BehavioralState
	}{
		{"satisfied and sure", 0.8, 0.7, StateRepetition},
		{"satisfied but lagging", 0.7, 0.95, StateSocialComparison},
		{"unsatisfied and sure", 0.3, 0.4, StateDeliberation},
		{"unsatisfied and lagging", 0.2, 0.6, StateImitation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFarmer("x", Farm{}, aquifer.State{})
			f.UpdateState(tc.satisfaction, tc.neighborhood)
			if f.State != tc.want {
				t.Fatalf("state = %s, want %s", StateName(f.State), StateName(tc.want))
			}
			if f.Satisfaction != tc.satisfaction {
				t.Fatalf("satisfaction not stored")
			}
		})
	}
}

func TestReoptimizes(t *testing.T) {
	f := NewFarmer("x", Farm{}, aquifer.State{})
	for st, want := range map[BehavioralState]bool{
		StateDeliberation:     true,
		StateSocialComparison: true,
		StateRepetition:       false,
		StateImitation:        false,
	} {
		f.State = st
		if f.Reoptimizes() != want {
			t.Errorf("%s reoptimizes = %t, want %t", StateName(st), f.Reoptimizes(), want)
		}
	}
}

func TestPinnedCrop(t *testing.T) {
	crops := []string{"corn", "others"}

	f := NewFarmer("x", Farm{}, aquifer.State{})
	f.State = StateRepetition
	f.LastCrop = "others"
	if got := f.PinnedCrop(crops); got == nil || got[0] != 0 || got[1] != 1 {
		t.Fatalf("pin = %v, want [0 1]", got)
	}

	// Deliberation leaves the choice open.
	f.State = StateDeliberation
	if f.PinnedCrop(crops) != nil {
		t.Fatal("deliberating farmer should not pin")
	}

	// Nothing to repeat the first year.
	g := NewFarmer("y", Farm{}, aquifer.State{})
	g.State = StateRepetition
	if g.PinnedCrop(crops) != nil {
		t.Fatal("no pin without a previous crop")
	}
}

func TestImitate(t *testing.T) {
	best := NewFarmer("best", Farm{}, aquifer.State{})
	best.LastCrop = "corn"
	best.LastRainfed = false

	f := NewFarmer("x", Farm{}, aquifer.State{})
	f.LastCrop = "others"
	f.LastRainfed = true
	f.Imitate(best)
	if f.LastCrop != "corn" || f.LastRainfed {
		t.Fatalf("imitation did not copy the choice: %s rainfed=%t", f.LastCrop, f.LastRainfed)
	}

	// A model farmer with no history changes nothing.
	f.LastCrop = "others"
	f.Imitate(NewFarmer("fresh", Farm{}, aquifer.State{}))
	if f.LastCrop != "others" {
		t.Fatal("imitating a fresh farmer should be a no-op")
	}
	f.Imitate(nil)
	if f.LastCrop != "others" {
		t.Fatal("imitating nil should be a no-op")
	}
}
