package climate

import (
	"testing"
)

func TestYearAWDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42

	// Many constructions, so a layer assignment leaking map iteration
	// order cannot slip through on a lucky ordering.
	a := NewGenerator(cfg)
	for trial := 0; trial < 20; trial++ {
		b := NewGenerator(cfg)
		for year := 0; year < 5; year++ {
			want := a.YearAW(year, 10, 20)
			got := b.YearAW(year, 10, 20)
			for crop, v := range want {
				if got[crop] != v {
					t.Fatalf("same seed gave %g then %g for %s in year %d", v, got[crop], crop, year)
				}
			}
		}
	}
}

func TestYearAWCoversAllCrops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	g := NewGenerator(cfg)

	for year := 0; year < 20; year++ {
		aw := g.YearAW(year, 0, 0)
		if len(aw) != len(cfg.MeanAW) {
			t.Fatalf("year %d produced %d crops, want %d", year, len(aw), len(cfg.MeanAW))
		}
		for crop, v := range aw {
			if v < 0 {
				t.Fatalf("year %d %s precipitation %g below zero", year, crop, v)
			}
			if v > cfg.MeanAW[crop]+2*cfg.Spread {
				t.Fatalf("year %d %s precipitation %g beyond the band", year, crop, v)
			}
		}
	}
}

func TestYearAWVariesAcrossYears(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 11
	g := NewGenerator(cfg)

	seen := map[float64]bool{}
	for year := 0; year < 10; year++ {
		seen[g.YearAW(year, 5, 5)["corn"]] = true
	}
	if len(seen) < 2 {
		t.Fatal("ten years of identical precipitation is not a climate")
	}
}
