// Package aquifer carries per-well hydrogeological state across
// simulated years: water-table lift, saturated thickness, and the
// perceived drawdown rate the optimizer projects forward.
package aquifer

// State is one well's groundwater condition at the start of a pumping
// season. The simulation owns it and updates it after each year's
// realized withdrawal.
type State struct {
	WellID string  `json:"well_id"`
	LWT    float64 `json:"l_wt"` // lift from water table to surface [m]
	ST     float64 `json:"st"`   // saturated thickness [m]
	DWL    float64 `json:"dwl"`  // perceived water level change [m/yr], negative when falling

	// Static well/aquifer parameters.
	R           float64 `json:"r"`            // well radius [m]
	K           float64 `json:"k"`            // hydraulic conductivity [m/day]
	SY          float64 `json:"sy"`           // specific yield
	EffPump     float64 `json:"eff_pump"`
	EffWell     float64 `json:"eff_well"`
	PumpingDays float64 `json:"pumping_days"`

	// Area [ha] over which withdrawals draw down the table.
	FootprintHa float64 `json:"footprint_ha"`
}

// Cell is a shared aquifer block: wells in the same cell see the same
// regional decline on top of their own withdrawal.
type Cell struct {
	RegionalDecline float64 // [m/yr], positive means a falling table
}

// Advance applies one year of withdrawal to the state: the water table
// drops by the withdrawal spread over the footprint divided by specific
// yield, plus the regional decline, and the perceived rate is a blend
// of last year's perception and the realized change.
func Advance(s *State, cell Cell, withdrawalMHa float64) {
	drop := cell.RegionalDecline
	if s.FootprintHa > 0 && s.SY > 0 {
		// m-ha over ha gives meters of water, divided by specific
		// yield for the table drop.
		drop += withdrawalMHa / s.FootprintHa / s.SY
	}

	s.LWT += drop
	s.ST -= drop
	if s.ST < 0 {
		s.ST = 0
	}

	// Farmers perceive a smoothed rate, not the raw jump. A drop in the
	// table is a negative water level change.
	s.DWL = 0.7*s.DWL + 0.3*(-drop)
}
