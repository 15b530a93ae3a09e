// Package agents provides the farmer data model and the behavioral
// state machine that consumes the optimizer's satisfaction signal.
package agents

import (
	"github.com/google/uuid"

	"github.com/hydroecon/farmwell/internal/aquifer"
	"github.com/hydroecon/farmwell/internal/opt"
)

// BehavioralState is the consumat-style decision mode a farmer is in
// for the coming year.
type BehavioralState uint8

const (
	StateDeliberation BehavioralState = iota // full re-optimization
	StateRepetition                          // repeat last year's choice
	StateSocialComparison                    // compare against neighbors, then optimize
	StateImitation                           // copy the best-off neighbor
)

// StateName returns a human-readable behavioral state name.
func StateName(s BehavioralState) string {
	switch s {
	case StateDeliberation:
		return "Deliberation"
	case StateRepetition:
		return "Repetition"
	case StateSocialComparison:
		return "Social comparison"
	case StateImitation:
		return "Imitation"
	default:
		return "Unknown"
	}
}

// Farm is one field-well pair's static description.
type Farm struct {
	FieldID string  `json:"field_id"`
	WellID  string  `json:"well_id"`
	AreaHa  float64 `json:"area_ha"`

	// Location in the region, used to sample correlated climate.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	Curves map[string]opt.WaterYieldCurve `json:"curves"`

	WaterRightID    string   `json:"water_right_id"`
	WRDepth         float64  `json:"wr_depth"`      // [cm] per window
	WRTimeWindow    int      `json:"wr_time_window"`
	PumpingCapacity *float64 `json:"pumping_capacity,omitempty"`
}

// Farmer is one decision-making agent. The optimizer runs once per
// farmer per year; Satisfaction and the water-right carryover link the
// years together.
type Farmer struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	Farm    Farm          `json:"farm"`
	Aquifer aquifer.State `json:"aquifer"`

	// Carryover from the previous year's solve, nil on the first year.
	WaterRight *opt.WaterRightState `json:"water_right,omitempty"`

	// Behavioral state.
	State        BehavioralState `json:"state"`
	Satisfaction float64         `json:"satisfaction"`
	Threshold    float64         `json:"threshold"`  // satisfaction level that feels "good enough"
	Uncertainty  float64         `json:"uncertainty"` // gap to neighbors that feels alarming

	// Last applied decision, reused under repetition.
	LastCrop     string `json:"last_crop,omitempty"`
	LastRainfed  bool   `json:"last_rainfed"`
	YearsFarming int    `json:"years_farming"`
}

// NewFarmer creates a farmer with a fresh identity and deliberation as
// the opening state; nobody repeats a decision they have not made yet.
func NewFarmer(name string, farm Farm, aq aquifer.State) *Farmer {
	return &Farmer{
		ID:        uuid.New(),
		Name:      name,
		Farm:      farm,
		Aquifer:   aq,
		State:     StateDeliberation,
		Threshold: 0.6,
		Uncertainty: 0.2,
	}
}

// UpdateState moves the farmer to next year's behavioral state from
// this year's satisfaction and the gap to the neighborhood average.
// Satisfied and sure: repeat. Satisfied but unsure: compare. Unsat and
// sure: deliberate. Unsat and unsure: imitate.
func (f *Farmer) UpdateState(satisfaction, neighborhoodAvg float64) {
	f.Satisfaction = satisfaction
	gap := neighborhoodAvg - satisfaction

	satisfied := satisfaction >= f.Threshold
	uncertain := gap > f.Uncertainty

	switch {
	case satisfied && !uncertain:
		f.State = StateRepetition
	case satisfied && uncertain:
		f.State = StateSocialComparison
	case !satisfied && !uncertain:
		f.State = StateDeliberation
	default:
		f.State = StateImitation
	}
}

// Reoptimizes reports whether the current state re-runs the optimizer.
// Repetition and imitation reuse existing choices by pinning them.
func (f *Farmer) Reoptimizes() bool {
	return f.State == StateDeliberation || f.State == StateSocialComparison
}

// PinnedCrop returns the crop-choice pin vector for states that do not
// deliberate, or nil when the solver is free to choose.
func (f *Farmer) PinnedCrop(cropOptions []string) []float64 {
	if f.Reoptimizes() || f.LastCrop == "" {
		return nil
	}
	pin := make([]float64, len(cropOptions))
	for i, c := range cropOptions {
		if c == f.LastCrop {
			pin[i] = 1
		}
	}
	return pin
}

// Imitate copies the crop choice of the given model farmer.
func (f *Farmer) Imitate(other *Farmer) {
	if other == nil || other.LastCrop == "" {
		return
	}
	f.LastCrop = other.LastCrop
	f.LastRainfed = other.LastRainfed
}
