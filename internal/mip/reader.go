package mip

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadMPS parses a free-format MPS file covering the subset this package
// emits (OBJSENSE, ROWS, COLUMNS with integrality markers, RHS, RANGES,
// BOUNDS). It returns the program as a Lowered with NumModelVars equal to
// the full column count, which a backend can solve directly.
func ReadMPS(r io.Reader) (*Lowered, error) {
	lw := &Lowered{}
	colIdx := map[string]int{}
	rowIdx := map[string]int{}
	rowKinds := map[string]byte{}

	section := ""
	intMode := false

	col := func(name string) int {
		i, ok := colIdx[name]
		if !ok {
			i = len(lw.ColNames)
			colIdx[name] = i
			lw.ColNames = append(lw.ColNames, name)
			typ := Continuous
			if intMode {
				typ = Integer
			}
			lw.ColTypes = append(lw.ColTypes, typ)
			lw.ColLower = append(lw.ColLower, 0)
			lw.ColUpper = append(lw.ColUpper, math.Inf(1))
			lw.Obj = append(lw.Obj, 0)
		}
		return i
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "*") {
			continue
		}
		f := strings.Fields(trimmed)

		// Section headers start in column one.
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			section = f[0]
			continue
		}

		switch section {
		case "OBJSENSE":
			lw.Maximize = strings.EqualFold(f[0], "MAX") || strings.EqualFold(f[0], "MAXIMIZE")

		case "ROWS":
			if len(f) != 2 {
				return nil, fmt.Errorf("mps line %d: malformed row", lineno)
			}
			kind := f[0][0]
			if kind == 'N' {
				continue // objective row
			}
			rowIdx[f[1]] = len(lw.RowNames)
			rowKinds[f[1]] = kind
			lw.RowNames = append(lw.RowNames, f[1])
			lw.Rows = append(lw.Rows, nil)
			switch kind {
			case 'E':
				lw.RowLower = append(lw.RowLower, 0)
				lw.RowUpper = append(lw.RowUpper, 0)
			case 'L':
				lw.RowLower = append(lw.RowLower, math.Inf(-1))
				lw.RowUpper = append(lw.RowUpper, 0)
			case 'G':
				lw.RowLower = append(lw.RowLower, 0)
				lw.RowUpper = append(lw.RowUpper, math.Inf(1))
			default:
				return nil, fmt.Errorf("mps line %d: unknown row kind %q", lineno, kind)
			}

		case "COLUMNS":
			// Marker lines vary between two and four tokens in the wild;
			// key off the quoted keyword rather than its position.
			if marker, ok := markerLine(f); ok {
				intMode = marker == "'INTORG'"
				continue
			}
			// name row value [row value]
			if len(f) < 3 || len(f)%2 == 0 {
				return nil, fmt.Errorf("mps line %d: malformed column", lineno)
			}
			ci := col(f[0])
			for k := 1; k+1 < len(f); k += 2 {
				v, err := strconv.ParseFloat(f[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("mps line %d: %w", lineno, err)
				}
				if f[k] == "obj" {
					lw.Obj[ci] = v
					continue
				}
				ri, ok := rowIdx[f[k]]
				if !ok {
					return nil, fmt.Errorf("mps line %d: unknown row %q", lineno, f[k])
				}
				lw.Rows[ri] = append(lw.Rows[ri], Term{Var: Var(ci), Coef: v})
			}

		case "RHS":
			// setname row value [row value]
			for k := 1; k+1 < len(f); k += 2 {
				ri, ok := rowIdx[f[k]]
				if !ok {
					return nil, fmt.Errorf("mps line %d: unknown row %q", lineno, f[k])
				}
				v, err := strconv.ParseFloat(f[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("mps line %d: %w", lineno, err)
				}
				switch rowKinds[f[k]] {
				case 'E':
					lw.RowLower[ri], lw.RowUpper[ri] = v, v
				case 'L':
					lw.RowUpper[ri] = v
				case 'G':
					lw.RowLower[ri] = v
				}
			}

		case "RANGES":
			for k := 1; k+1 < len(f); k += 2 {
				ri, ok := rowIdx[f[k]]
				if !ok {
					return nil, fmt.Errorf("mps line %d: unknown row %q", lineno, f[k])
				}
				v, err := strconv.ParseFloat(f[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("mps line %d: %w", lineno, err)
				}
				// Emitted only for L rows: lower = rhs - |range|.
				lw.RowLower[ri] = lw.RowUpper[ri] - math.Abs(v)
			}

		case "BOUNDS":
			if len(f) < 3 {
				return nil, fmt.Errorf("mps line %d: malformed bound", lineno)
			}
			ci, ok := colIdx[f[2]]
			if !ok {
				return nil, fmt.Errorf("mps line %d: unknown column %q", lineno, f[2])
			}
			var v float64
			if len(f) > 3 {
				var err error
				if v, err = strconv.ParseFloat(f[3], 64); err != nil {
					return nil, fmt.Errorf("mps line %d: %w", lineno, err)
				}
			}
			switch f[0] {
			case "LO":
				lw.ColLower[ci] = v
			case "UP":
				lw.ColUpper[ci] = v
			case "FX":
				lw.ColLower[ci], lw.ColUpper[ci] = v, v
			case "FR":
				lw.ColLower[ci] = math.Inf(-1)
				lw.ColUpper[ci] = math.Inf(1)
			case "MI":
				lw.ColLower[ci] = math.Inf(-1)
			case "PL":
				lw.ColUpper[ci] = math.Inf(1)
			case "BV":
				lw.ColTypes[ci] = Binary
				lw.ColLower[ci], lw.ColUpper[ci] = 0, 1
			default:
				return nil, fmt.Errorf("mps line %d: unknown bound kind %q", lineno, f[0])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	lw.NumModelVars = len(lw.ColNames)
	return lw, nil
}

// markerLine reports whether the fields form an integrality marker line
// and, if so, which keyword it carries.
func markerLine(f []string) (string, bool) {
	for _, tok := range f {
		if tok == "'INTORG'" || tok == "'INTEND'" {
			return tok, true
		}
	}
	return "", false
}
