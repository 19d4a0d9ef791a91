// Package crystal builds atomic structures from crystallographic descriptions:
// a space group, a fractional basis, chemical symbols and cell parameters.
package crystal

import (
	"fmt"
	"math"
)

// Placeholder is the element label used when symbols cannot be matched to sites.
const Placeholder = "X"

// DefaultTolerance is the fractional-coordinate distance under which two
// symmetry-generated sites are considered the same site.
const DefaultTolerance = 1e-5

// Crystal is one expanded structure.
type Crystal struct {
	Symbols   []string
	Scaled    [][3]float64
	Positions [][3]float64
	Cell      Cell
}

// Spec describes a structure to build.
type Spec struct {
	Symbols    []string
	Basis      [][]float64
	SpaceGroup any
	Params     CellParameters
	Tolerance  float64
}

// Build expands the basis under the space group and places it in the cell.
//
// Labels follow the basis when len(Symbols) == len(Basis). Otherwise symbols
// are used verbatim if they match the expanded site count, and every site is
// labelled Placeholder when they do not (or when no symbols are given).
func Build(spec Spec) (*Crystal, error) {
	sg, err := LookupSpaceGroup(spec.SpaceGroup)
	if err != nil {
		return nil, err
	}
	ops, err := sg.Operations()
	if err != nil {
		return nil, err
	}
	cell, err := CellFromParameters(spec.Params)
	if err != nil {
		return nil, err
	}
	if len(spec.Basis) == 0 {
		return nil, fmt.Errorf("empty basis")
	}
	tol := spec.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	var sites [][3]float64
	var kinds []int
	for kind, b := range spec.Basis {
		if len(b) != 3 {
			return nil, fmt.Errorf("basis atom %d: want 3 coordinates, got %d", kind, len(b))
		}
		p := [3]float64{b[0], b[1], b[2]}
		for _, op := range ops {
			site := op.Apply(p)
			if containsSite(sites, site, tol) {
				continue
			}
			sites = append(sites, site)
			kinds = append(kinds, kind)
		}
	}

	c := &Crystal{
		Symbols:   labels(spec.Symbols, len(spec.Basis), kinds),
		Scaled:    sites,
		Positions: make([][3]float64, len(sites)),
		Cell:      cell,
	}
	for i, s := range sites {
		c.Positions[i] = cell.Cartesian(s)
	}
	return c, nil
}

// containsSite reports whether site coincides with an existing site, modulo
// lattice translations.
func containsSite(sites [][3]float64, site [3]float64, tol float64) bool {
	for _, s := range sites {
		same := true
		for i := 0; i < 3; i++ {
			d := math.Abs(s[i] - site[i])
			if d > tol && math.Abs(d-1) > tol {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func labels(symbols []string, nBasis int, kinds []int) []string {
	out := make([]string, len(kinds))
	switch {
	case len(symbols) > 0 && len(symbols) == nBasis:
		for i, k := range kinds {
			out[i] = symbols[k]
		}
	case len(symbols) == len(kinds):
		copy(out, symbols)
	default:
		for i := range out {
			out[i] = Placeholder
		}
	}
	return out
}
