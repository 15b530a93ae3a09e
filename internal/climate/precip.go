// Package climate generates per-crop available precipitation series
// using layered simplex noise, so successive years are correlated the
// way real wet/dry spells are rather than independent draws.
package climate

import (
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Config holds precipitation generation parameters.
type Config struct {
	Seed int64 // 0 = random

	// MeanAW and Spread define the per-crop available-water band [cm]:
	// a year's value is MeanAW[crop] +/- Spread*noise.
	MeanAW map[string]float64
	Spread float64

	// WetDryScale stretches the noise field along the year axis; larger
	// values make wet and dry spells last longer.
	WetDryScale float64
}

// DefaultConfig returns a configuration calibrated for the corn/others
// crop pair in a semi-arid setting.
func DefaultConfig() Config {
	return Config{
		MeanAW: map[string]float64{
			"corn":   12.0,
			"others": 10.0,
		},
		Spread:      6.0,
		WetDryScale: 0.35,
	}
}

// Generator produces correlated yearly precipitation per crop.
type Generator struct {
	cfg   Config
	noise map[string]opensimplex.Noise
}

// NewGenerator builds one noise layer per crop from the seed.
func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	g := &Generator{cfg: cfg, noise: make(map[string]opensimplex.Noise)}
	crops := make([]string, 0, len(cfg.MeanAW))
	for crop := range cfg.MeanAW {
		crops = append(crops, crop)
	}
	// Layer assignment must not depend on map iteration order or the
	// seed stops being reproducible.
	sort.Strings(crops)
	for i, crop := range crops {
		g.noise[crop] = opensimplex.NewNormalized(seed + int64(i))
	}
	return g
}

// YearAW returns available precipitation [cm] per crop for one
// simulated year at one farm location. Values are clamped at zero.
func (g *Generator) YearAW(year int, farmX, farmY float64) map[string]float64 {
	out := make(map[string]float64, len(g.cfg.MeanAW))
	t := float64(year) * g.cfg.WetDryScale
	for crop, mean := range g.cfg.MeanAW {
		n := octaveNoise(g.noise[crop], farmX+t, farmY, 3, 0.06, 0.5)
		aw := mean + (n-0.5)*2*g.cfg.Spread
		if aw < 0 {
			aw = 0
		}
		out[crop] = aw
	}
	return out
}

// octaveNoise layers multiple noise frequencies for a natural spectrum.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
