// Package units converts physical quantities between the unit spellings
// found in OpenKIM records and the units used by the archive.
package units

import (
	"fmt"
	"strings"
)

// Dimension groups units that can be converted into one another.
type Dimension string

const (
	Length      Dimension = "length"
	Energy      Dimension = "energy"
	Temperature Dimension = "temperature"
	Pressure    Dimension = "pressure"
	Frequency   Dimension = "frequency"
)

// PlanckConstant in J·s (exact, SI 2019).
const PlanckConstant = 6.62607015e-34

type unit struct {
	dim   Dimension
	scale float64 // value in SI base unit per one of this unit
}

var table = map[string]unit{
	"m":        {Length, 1},
	"cm":       {Length, 1e-2},
	"nm":       {Length, 1e-9},
	"angstrom": {Length, 1e-10},
	"a":        {Length, 1e-10},
	"bohr":     {Length, 5.29177210903e-11},

	"j":   {Energy, 1},
	"ev":  {Energy, 1.602176634e-19},
	"mev": {Energy, 1.602176634e-22},
	"ha":  {Energy, 4.3597447222071e-18},
	"ry":  {Energy, 2.1798723611035e-18},

	"k": {Temperature, 1},

	"pa":  {Pressure, 1},
	"gpa": {Pressure, 1e9},
	"bar": {Pressure, 1e5},

	"hz":  {Frequency, 1},
	"thz": {Frequency, 1e12},
}

// UnknownUnitError reports a unit spelling missing from the table.
type UnknownUnitError struct {
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit %q", e.Unit)
}

func lookup(name string) (unit, error) {
	u, ok := table[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return unit{}, &UnknownUnitError{Unit: name}
	}
	return u, nil
}

// Convert converts value from one unit to another of the same dimension.
func Convert(value float64, from, to string) (float64, error) {
	f, err := lookup(from)
	if err != nil {
		return 0, err
	}
	t, err := lookup(to)
	if err != nil {
		return 0, err
	}
	if f.dim != t.dim {
		return 0, fmt.Errorf("cannot convert %s (%s) to %s (%s)", from, f.dim, to, t.dim)
	}
	if f.scale == t.scale {
		return value, nil
	}
	return value * f.scale / t.scale, nil
}

// ConvertAll converts every element of values in place and returns it.
func ConvertAll(values []float64, from, to string) ([]float64, error) {
	for i, v := range values {
		c, err := Convert(v, from, to)
		if err != nil {
			return nil, err
		}
		values[i] = c
	}
	return values, nil
}

// DimensionOf returns the dimension of a unit spelling.
func DimensionOf(name string) (Dimension, error) {
	u, err := lookup(name)
	if err != nil {
		return "", err
	}
	return u.dim, nil
}

// FrequencyToEnergy converts a frequency in Hz to an energy in J (E = h·f).
func FrequencyToEnergy(hz float64) float64 {
	return PlanckConstant * hz
}
