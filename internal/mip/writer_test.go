package mip

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func roundTripModel() *Model {
	m := New("trip")
	irr := m.AddVars("irr_depth(cm)", 2, Continuous, 0, 40)
	v := m.AddVar("v(m-ha)", Continuous, 0, 100)
	b := m.AddVar("pick", Binary, 0, 1)
	profit := m.AddVar("profit", Continuous, math.Inf(-1), math.Inf(1))

	m.AddEq("c.v", []Term{{v, 1}, {irr[0], -0.5}, {irr[1], -0.5}}, 0)
	m.AddLe("c.cap", []Term{{irr[0], 1}, {irr[1], 1}}, 60)
	m.AddGe("c.floor", []Term{{irr[0], 1}, {b, 10}}, 5)
	m.AddRow("c.band", 2, []Term{{v, 1}, {b, -1}}, 8) // ranged
	m.AddEq("c.profit", []Term{{profit, 1}, {v, -3}}, -1.5)
	m.Maximize(profit)
	return m
}

func termMap(terms []Term) map[Var]float64 {
	out := make(map[Var]float64, len(terms))
	for _, t := range terms {
		out[t.Var] += t.Coef
	}
	return out
}

func TestMPSRoundTrip(t *testing.T) {
	lw, err := Lower(roundTripModel(), LowerOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMPS(&buf, lw); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMPS(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.Maximize != lw.Maximize {
		t.Fatal("objective sense lost")
	}
	if len(got.ColNames) != len(lw.ColNames) {
		t.Fatalf("got %d columns, want %d", len(got.ColNames), len(lw.ColNames))
	}
	if len(got.RowNames) != len(lw.RowNames) {
		t.Fatalf("got %d rows, want %d", len(got.RowNames), len(lw.RowNames))
	}

	// The writer rewrites names into the restricted MPS charset, and the
	// reader assigns column indices in COLUMNS order; map both sides by
	// name.
	gotCol := make(map[string]int)
	for i, n := range got.ColNames {
		gotCol[n] = i
	}
	for i, n := range lw.ColNames {
		j, ok := gotCol[safeName(n)]
		if !ok {
			t.Fatalf("column %q missing after round trip", n)
		}
		if got.ColTypes[j] != lw.ColTypes[i] {
			t.Errorf("column %q type %v, want %v", n, got.ColTypes[j], lw.ColTypes[i])
		}
		if got.ColLower[j] != lw.ColLower[i] || got.ColUpper[j] != lw.ColUpper[i] {
			t.Errorf("column %q bounds %g..%g, want %g..%g",
				n, got.ColLower[j], got.ColUpper[j], lw.ColLower[i], lw.ColUpper[i])
		}
		if got.Obj[j] != lw.Obj[i] {
			t.Errorf("column %q objective %g, want %g", n, got.Obj[j], lw.Obj[i])
		}
	}

	gotRow := make(map[string]int)
	for i, n := range got.RowNames {
		gotRow[n] = i
	}
	for i, n := range lw.RowNames {
		j, ok := gotRow[safeName(n)]
		if !ok {
			t.Fatalf("row %q missing after round trip", n)
		}
		if got.RowLower[j] != lw.RowLower[i] || got.RowUpper[j] != lw.RowUpper[i] {
			t.Errorf("row %q bounds %g..%g, want %g..%g",
				n, got.RowLower[j], got.RowUpper[j], lw.RowLower[i], lw.RowUpper[i])
		}
		want := termMap(lw.Rows[i])
		gotTerms := make(map[Var]float64)
		for cv, coef := range termMap(got.Rows[j]) {
			name := got.ColNames[cv]
			for k, orig := range lw.ColNames {
				if safeName(orig) == name {
					gotTerms[Var(k)] += coef
				}
			}
		}
		if len(gotTerms) != len(want) {
			t.Errorf("row %q has %d terms, want %d", n, len(gotTerms), len(want))
			continue
		}
		for v, c := range want {
			if gotTerms[v] != c {
				t.Errorf("row %q coefficient on %s = %g, want %g",
					n, lw.ColNames[v], gotTerms[v], c)
			}
		}
	}
}

func TestMPSIntegralityMarkers(t *testing.T) {
	lw, err := Lower(roundTripModel(), LowerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteMPS(&buf, lw); err != nil {
		t.Fatal(err)
	}

	// Marker lines are <name> 'MARKER' <keyword>, three tokens.
	sawOrg := false
	for _, line := range strings.Split(buf.String(), "\n") {
		f := strings.Fields(line)
		if len(f) == 0 || (f[len(f)-1] != "'INTORG'" && f[len(f)-1] != "'INTEND'") {
			continue
		}
		if len(f) != 3 || f[1] != "'MARKER'" {
			t.Fatalf("bad marker line %q", line)
		}
		sawOrg = sawOrg || f[2] == "'INTORG'"
	}
	if !sawOrg {
		t.Fatal("no INTORG marker for the binary column")
	}

	got, err := ReadMPS(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range got.ColNames {
		want := Continuous
		if n == "pick" {
			want = Binary
		}
		if got.ColTypes[i] != want {
			t.Errorf("column %q read back as %v, want %v", n, got.ColTypes[i], want)
		}
	}
}

func TestReadMPSAcceptsPrefixedMarkers(t *testing.T) {
	// Some writers put an extra leading token on marker lines.
	src := `NAME trip
ROWS
 N obj
 L c.cap
COLUMNS
 MARKER M1 'MARKER' 'INTORG'
 pick obj 1
 pick c.cap 1
 MARKER M2 'MARKER' 'INTEND'
RHS
 RHS c.cap 1
BOUNDS
 BV BND pick
ENDATA
`
	got, err := ReadMPS(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ColNames) != 1 || got.ColNames[0] != "pick" {
		t.Fatalf("columns %v, want [pick]", got.ColNames)
	}
	if got.ColTypes[0] != Binary {
		t.Fatalf("pick read back as %v, want Binary", got.ColTypes[0])
	}
}

func TestWriteFileAppendsExtension(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "model")
	if err := WriteFile(roundTripModel(), base, "mps", nil, LowerOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(base + ".mps"); err != nil {
		t.Fatalf("model.mps not written: %v", err)
	}

	data, err := os.ReadFile(base + ".mps")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(data)), "ENDATA") {
		t.Fatal("missing ENDATA terminator")
	}
}

func TestWriteFileLP(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "model.lp")
	if err := WriteFile(roundTripModel(), name, ".lp", nil, LowerOptions{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"Maximize", "Subject To", "Bounds", "Binaries", "End"} {
		if !strings.Contains(text, want) {
			t.Fatalf("LP output missing %q section", want)
		}
	}
}

func TestWriteFileSolRequiresSolution(t *testing.T) {
	dir := t.TempDir()
	err := WriteFile(roundTripModel(), filepath.Join(dir, "model"), "sol", nil, LowerOptions{})
	if err == nil {
		t.Fatal("expected error writing .sol with no solution")
	}
}

func TestWriteFileUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	err := WriteFile(roundTripModel(), filepath.Join(dir, "model"), "xyz", nil, LowerOptions{})
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
