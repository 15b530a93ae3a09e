package opt

import (
	"fmt"
	"strconv"

	"github.com/hydroecon/farmwell/internal/mip"
)

// WaterRightConfig caps cumulative irrigation depth over a rolling
// multi-year window. RemainingTW/RemainingWR carry a partially used
// window over from the previous invocation; nil means a fresh window.
type WaterRightConfig struct {
	ID         string
	Depth      float64 // window allotment [cm]
	TimeWindow int     // window length [yr], defaults to 1

	RemainingTW *int
	RemainingWR *float64

	// TailMethod allocates the allotment to a trailing partial window:
	// "proportion" scales Depth by tail/window, "all" grants full
	// Depth, and a numeric string is used verbatim as the cap.
	TailMethod string
}

// WaterRightState is the carryover record handed to the next year's
// model. The caller owns persistence between invocations.
type WaterRightState struct {
	Depth       float64  `json:"wr_depth"`
	TimeWindow  int      `json:"time_window"`
	RemainingTW *int     `json:"remaining_tw"`
	RemainingWR *float64 `json:"remaining_wr"`
	TailMethod  string   `json:"tail_method"`
}

func tailCap(method string, depth float64, tail, window int) (float64, error) {
	switch method {
	case "", "proportion":
		return depth * float64(tail) / float64(window), nil
	case "all":
		return depth, nil
	}
	v, err := strconv.ParseFloat(method, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tail method %q", method)
	}
	return v, nil
}

// capWindow bounds total irrigation depth across all crops over years
// [start, start+length).
func (m *Model) capWindow(wrID string, seq int, start, length int, limit float64) {
	var terms []mip.Term
	for ci := 0; ci < m.nc; ci++ {
		for h := start; h < start+length; h++ {
			terms = append(terms, mip.Term{Var: m.irrDepth[ci][h], Coef: 1})
		}
	}
	m.m.AddLe(fmt.Sprintf("c.%s.wr_%d(cm)", wrID, seq), terms, limit)
}

// SetupWaterRightConstraints builds the sliding-window caps for one
// water right and records its carryover state for the next invocation.
// The recorded state transition is independent of solved usage; the
// decrement by realized irrigation happens in Solve.
func (m *Model) SetupWaterRightConstraints(cfg WaterRightConfig) error {
	if m.finished {
		return fmt.Errorf("model %s: setup already finished", m.ID)
	}
	window := cfg.TimeWindow
	if window == 0 {
		window = 1
	}
	if window < 1 {
		return fmt.Errorf("water right %s: time window must be >= 1, got %d", cfg.ID, window)
	}

	seq := 0
	start := 0
	remaining := m.nh

	if cfg.RemainingTW != nil && cfg.RemainingWR != nil {
		rtw := *cfg.RemainingTW
		// Rolling annual use keeps multi-year windows open past a short
		// horizon; cap as much of the window as the horizon shows.
		if rtw > m.nh {
			rtw = m.nh
		}
		m.capWindow(cfg.ID, seq, 0, rtw, *cfg.RemainingWR)
		seq++
		start = rtw
		remaining = m.nh - rtw
	}

	for remaining >= window {
		m.capWindow(cfg.ID, seq, start, window, cfg.Depth)
		seq++
		start += window
		remaining -= window
	}

	if remaining > 0 {
		limit, err := tailCap(cfg.TailMethod, cfg.Depth, remaining, window)
		if err != nil {
			return fmt.Errorf("water right %s: %w", cfg.ID, err)
		}
		m.capWindow(cfg.ID, seq, start, remaining, limit)
	}

	// Carryover for next year, assuming the caller re-optimizes
	// annually and applies this year's solved irrigation.
	var nextTW *int
	var nextWR *float64
	if window > 1 {
		switch {
		case cfg.RemainingTW == nil:
			// First year of a fresh window.
			wr := cfg.Depth
			tw := window - 1
			nextWR, nextTW = &wr, &tw
		case *cfg.RemainingTW-1 == 0:
			// Window closes this year; next call starts a new round.
			tw := window
			nextTW = &tw
			nextWR = nil
		default:
			tw := *cfg.RemainingTW - 1
			nextTW = &tw
			nextWR = cfg.RemainingWR
		}
	}

	m.wrsInfo[cfg.ID] = WaterRightState{
		Depth:       cfg.Depth,
		TimeWindow:  window,
		RemainingTW: nextTW,
		RemainingWR: nextWR,
		TailMethod:  cfg.TailMethod,
	}
	m.WaterRightIDs = append(m.WaterRightIDs, cfg.ID)
	return nil
}
