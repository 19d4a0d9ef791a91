package crystal

import (
	"fmt"
	"math"
)

// Cell is a 3×3 matrix whose rows are the lattice vectors.
type Cell [3][3]float64

// CellParameters are the lengths (a, b, c) and angles in degrees (alpha, beta, gamma).
type CellParameters struct {
	A, B, C            float64
	Alpha, Beta, Gamma float64
}

// cosSin returns the cosine and sine of an angle in degrees, exact for right angles.
func cosSin(deg float64) (float64, float64) {
	if deg == 90 {
		return 0, 1
	}
	rad := deg * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

// CellFromParameters builds lattice vectors with a along x and b in the xy-plane.
func CellFromParameters(p CellParameters) (Cell, error) {
	var cell Cell
	if p.A <= 0 || p.B <= 0 || p.C <= 0 {
		return cell, fmt.Errorf("cell lengths must be positive: a=%g b=%g c=%g", p.A, p.B, p.C)
	}
	cosA, _ := cosSin(p.Alpha)
	cosB, _ := cosSin(p.Beta)
	cosG, sinG := cosSin(p.Gamma)
	if math.Abs(sinG) < 1e-10 {
		return cell, fmt.Errorf("degenerate cell: gamma=%g", p.Gamma)
	}

	cx := cosB
	cy := (cosA - cosB*cosG) / sinG
	cz2 := 1 - cx*cx - cy*cy
	if cz2 <= 0 {
		return cell, fmt.Errorf("degenerate cell: alpha=%g beta=%g gamma=%g", p.Alpha, p.Beta, p.Gamma)
	}

	cell[0] = [3]float64{p.A, 0, 0}
	cell[1] = [3]float64{p.B * cosG, p.B * sinG, 0}
	cell[2] = [3]float64{p.C * cx, p.C * cy, p.C * math.Sqrt(cz2)}
	return cell, nil
}

// Cartesian converts a fractional position to Cartesian coordinates.
func (c Cell) Cartesian(frac [3]float64) [3]float64 {
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = frac[0]*c[0][j] + frac[1]*c[1][j] + frac[2]*c[2][j]
	}
	return out
}

// Rows returns the cell as a slice of rows.
func (c Cell) Rows() [][]float64 {
	return [][]float64{c[0][:], c[1][:], c[2][:]}
}
