package mip

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// WriteFile serializes the model to one of the supported formats:
// "lp" (CPLEX LP), "mps" (free MPS), "ilp" (constraint listing) or
// "sol" (solution listing; requires sol). The extension is appended to
// filename when missing.
func WriteFile(m *Model, filename, ext string, sol *Solution, lopts LowerOptions) error {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !strings.HasSuffix(filename, ext) {
		filename += ext
	}

	lw, err := Lower(m, lopts)
	if err != nil {
		return fmt.Errorf("reduce model: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	switch ext {
	case ".lp":
		err = WriteLP(w, lw)
	case ".mps":
		err = WriteMPS(w, lw)
	case ".ilp":
		err = WriteListing(w, lw, nil)
	case ".sol":
		if sol == nil {
			return fmt.Errorf("write %s: no solution available", filename)
		}
		err = WriteSol(w, m, sol)
	default:
		return fmt.Errorf("write %s: unsupported extension %q", filename, ext)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// safeName rewrites a declared name into the restricted charset shared by
// the LP and MPS formats.
func safeName(s string) string {
	r := strings.NewReplacer(" ", "_", "(", "_", ")", "", "[", "_", "]", "", ",", "_", "*", "x")
	return r.Replace(s)
}

func writeTerms(sb *strings.Builder, terms []Term, names []string) {
	for i, t := range terms {
		c := t.Coef
		if i == 0 {
			if c < 0 {
				sb.WriteString("- ")
				c = -c
			}
		} else {
			if c < 0 {
				sb.WriteString(" - ")
				c = -c
			} else {
				sb.WriteString(" + ")
			}
		}
		if c == 1 {
			sb.WriteString(names[t.Var])
		} else {
			fmt.Fprintf(sb, "%g %s", c, names[t.Var])
		}
	}
}

// WriteLP writes the reduced model in CPLEX LP format.
func WriteLP(w io.Writer, lw *Lowered) error {
	names := make([]string, len(lw.ColNames))
	for i, n := range lw.ColNames {
		names[i] = safeName(n)
	}

	if lw.Maximize {
		fmt.Fprintln(w, "Maximize")
	} else {
		fmt.Fprintln(w, "Minimize")
	}
	var obj strings.Builder
	obj.WriteString(" obj:")
	for i, c := range lw.Obj {
		if c == 0 {
			continue
		}
		fmt.Fprintf(&obj, " %+g %s", c, names[i])
	}
	fmt.Fprintln(w, obj.String())

	fmt.Fprintln(w, "Subject To")
	for r, terms := range lw.Rows {
		lo, up := lw.RowLower[r], lw.RowUpper[r]
		name := safeName(lw.RowNames[r])
		var sb strings.Builder
		writeTerms(&sb, terms, names)
		switch {
		case lo == up:
			fmt.Fprintf(w, " %s: %s = %g\n", name, sb.String(), lo)
		case math.IsInf(lo, -1) && !math.IsInf(up, 1):
			fmt.Fprintf(w, " %s: %s <= %g\n", name, sb.String(), up)
		case !math.IsInf(lo, -1) && math.IsInf(up, 1):
			fmt.Fprintf(w, " %s: %s >= %g\n", name, sb.String(), lo)
		default:
			// Ranged row: emit both sides.
			fmt.Fprintf(w, " %s_lo: %s >= %g\n", name, sb.String(), lo)
			fmt.Fprintf(w, " %s_up: %s <= %g\n", name, sb.String(), up)
		}
	}

	fmt.Fprintln(w, "Bounds")
	for i := range names {
		lb, ub := lw.ColLower[i], lw.ColUpper[i]
		if lw.ColTypes[i] == Binary {
			continue
		}
		switch {
		case math.IsInf(lb, -1) && math.IsInf(ub, 1):
			fmt.Fprintf(w, " %s free\n", names[i])
		case math.IsInf(lb, -1):
			fmt.Fprintf(w, " -inf <= %s <= %g\n", names[i], ub)
		case math.IsInf(ub, 1):
			if lb != 0 {
				fmt.Fprintf(w, " %s >= %g\n", names[i], lb)
			}
		default:
			fmt.Fprintf(w, " %g <= %s <= %g\n", lb, names[i], ub)
		}
	}

	var bins, gens []string
	for i, t := range lw.ColTypes {
		switch t {
		case Binary:
			bins = append(bins, names[i])
		case Integer:
			gens = append(gens, names[i])
		}
	}
	if len(bins) > 0 {
		fmt.Fprintln(w, "Binaries")
		fmt.Fprintf(w, " %s\n", strings.Join(bins, " "))
	}
	if len(gens) > 0 {
		fmt.Fprintln(w, "Generals")
		fmt.Fprintf(w, " %s\n", strings.Join(gens, " "))
	}
	_, err := fmt.Fprintln(w, "End")
	return err
}

// rowKind classifies a ranged row for MPS emission.
func rowKind(lo, up float64) (kind byte, rhs, rng float64, hasRange bool) {
	switch {
	case lo == up:
		return 'E', lo, 0, false
	case math.IsInf(lo, -1) && !math.IsInf(up, 1):
		return 'L', up, 0, false
	case !math.IsInf(lo, -1) && math.IsInf(up, 1):
		return 'G', lo, 0, false
	default:
		return 'L', up, up - lo, true
	}
}

// WriteMPS writes the reduced model in free MPS format.
func WriteMPS(w io.Writer, lw *Lowered) error {
	names := make([]string, len(lw.ColNames))
	for i, n := range lw.ColNames {
		names[i] = safeName(n)
	}
	rnames := make([]string, len(lw.RowNames))
	for i, n := range lw.RowNames {
		rnames[i] = safeName(n)
	}

	fmt.Fprintln(w, "NAME model")
	if lw.Maximize {
		fmt.Fprintln(w, "OBJSENSE")
		fmt.Fprintln(w, " MAX")
	}
	fmt.Fprintln(w, "ROWS")
	fmt.Fprintln(w, " N obj")
	for r := range lw.Rows {
		kind, _, _, _ := rowKind(lw.RowLower[r], lw.RowUpper[r])
		fmt.Fprintf(w, " %c %s\n", kind, rnames[r])
	}

	// Column-major entries.
	byCol := make([][]Term, len(names)) // Term.Var reused as row index
	for r, terms := range lw.Rows {
		for _, t := range terms {
			byCol[t.Var] = append(byCol[t.Var], Term{Var: Var(r), Coef: t.Coef})
		}
	}

	fmt.Fprintln(w, "COLUMNS")
	inInt := false
	for i := range names {
		isInt := lw.ColTypes[i] != Continuous
		if isInt && !inInt {
			fmt.Fprintln(w, " M1 'MARKER' 'INTORG'")
			inInt = true
		}
		if !isInt && inInt {
			fmt.Fprintln(w, " M2 'MARKER' 'INTEND'")
			inInt = false
		}
		if lw.Obj[i] != 0 {
			fmt.Fprintf(w, " %s obj %.17g\n", names[i], lw.Obj[i])
		}
		for _, t := range byCol[i] {
			fmt.Fprintf(w, " %s %s %.17g\n", names[i], rnames[t.Var], t.Coef)
		}
	}
	if inInt {
		fmt.Fprintln(w, " M3 'MARKER' 'INTEND'")
	}

	fmt.Fprintln(w, "RHS")
	for r := range lw.Rows {
		_, rhs, _, _ := rowKind(lw.RowLower[r], lw.RowUpper[r])
		if rhs != 0 {
			fmt.Fprintf(w, " RHS %s %.17g\n", rnames[r], rhs)
		}
	}

	anyRange := false
	for r := range lw.Rows {
		if _, _, _, hasRange := rowKind(lw.RowLower[r], lw.RowUpper[r]); hasRange {
			anyRange = true
			break
		}
	}
	if anyRange {
		fmt.Fprintln(w, "RANGES")
		for r := range lw.Rows {
			if _, _, rng, hasRange := rowKind(lw.RowLower[r], lw.RowUpper[r]); hasRange {
				fmt.Fprintf(w, " RNG %s %.17g\n", rnames[r], rng)
			}
		}
	}

	fmt.Fprintln(w, "BOUNDS")
	for i := range names {
		lb, ub := lw.ColLower[i], lw.ColUpper[i]
		if lw.ColTypes[i] == Binary {
			fmt.Fprintf(w, " BV BND %s\n", names[i])
			continue
		}
		switch {
		case math.IsInf(lb, -1) && math.IsInf(ub, 1):
			fmt.Fprintf(w, " FR BND %s\n", names[i])
		case math.IsInf(lb, -1):
			fmt.Fprintf(w, " MI BND %s\n", names[i])
			fmt.Fprintf(w, " UP BND %s %.17g\n", names[i], ub)
		default:
			if lb != 0 {
				fmt.Fprintf(w, " LO BND %s %.17g\n", names[i], lb)
			}
			if !math.IsInf(ub, 1) {
				fmt.Fprintf(w, " UP BND %s %.17g\n", names[i], ub)
			}
		}
	}
	_, err := fmt.Fprintln(w, "ENDATA")
	return err
}

// WriteListing writes a human-readable constraint listing. keep selects a
// row subset by index; nil lists every row.
func WriteListing(w io.Writer, lw *Lowered, keep []int) error {
	names := make([]string, len(lw.ColNames))
	for i, n := range lw.ColNames {
		names[i] = safeName(n)
	}
	rows := keep
	if rows == nil {
		rows = make([]int, len(lw.Rows))
		for i := range rows {
			rows[i] = i
		}
	}
	for _, r := range rows {
		var sb strings.Builder
		writeTerms(&sb, lw.Rows[r], names)
		lo, up := lw.RowLower[r], lw.RowUpper[r]
		switch {
		case lo == up:
			fmt.Fprintf(w, "%s: %s = %g\n", safeName(lw.RowNames[r]), sb.String(), lo)
		case math.IsInf(lo, -1):
			fmt.Fprintf(w, "%s: %s <= %g\n", safeName(lw.RowNames[r]), sb.String(), up)
		case math.IsInf(up, 1):
			fmt.Fprintf(w, "%s: %s >= %g\n", safeName(lw.RowNames[r]), sb.String(), lo)
		default:
			fmt.Fprintf(w, "%s: %g <= %s <= %g\n", safeName(lw.RowNames[r]), lo, sb.String(), up)
		}
	}
	return nil
}

// WriteSol writes the solved value of every source-model column.
func WriteSol(w io.Writer, m *Model, sol *Solution) error {
	fmt.Fprintf(w, "# status %s\n", sol.Status)
	fmt.Fprintf(w, "# objective %.17g\n", sol.Objective)
	for i := 0; i < m.NumVars(); i++ {
		fmt.Fprintf(w, "%s %.17g\n", safeName(m.VarName(Var(i))), sol.Values[i])
	}
	return nil
}
