package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/crystal"
	"github.com/roach88/kimconv/internal/record"
	"github.com/roach88/kimconv/internal/units"
)

// createdOnLayout is the timestamp format of meta.created_on.
const createdOnLayout = "2006-01-02 15:04:05.999999"

// extractProgram sets the program version and compilation time.
// The timestamp is read as UTC and stored as seconds since the epoch.
func (c *Converter) extractProgram(res *runResult, v *record.View) {
	res.run.Program.Version = v.String(record.KeyRunnerShortID, "")

	if !v.Has(record.KeyCreatedOn) {
		return
	}
	raw, ok := v.Peek(record.KeyCreatedOn).(string)
	if !ok {
		res.fail(KindAttribute, record.KeyCreatedOn, -1, &record.TypeError{
			Key: record.KeyCreatedOn, Want: "string", Got: v.Peek(record.KeyCreatedOn),
		})
		return
	}
	t, err := time.ParseInLocation(createdOnLayout, raw, time.UTC)
	if err != nil {
		res.fail(KindAttribute, record.KeyCreatedOn, -1, err)
		return
	}
	v.Consume(record.KeyCreatedOn)
	secs := float64(t.UnixMicro()) / 1e6
	res.run.Program.CompilationDatetime = &secs
}

// unitKey returns the si-unit key that qualifies an si-value key.
func unitKey(valueKey string) string {
	return strings.TrimSuffix(valueKey, ".si-value") + ".si-unit"
}

// structureKeys are the record keys read while reconstructing structures.
var structureKeys = []string{
	record.KeySpecies, record.KeyBasis, record.KeySpaceGroup,
	record.KeyA, record.KeyB, record.KeyC,
	unitKey(record.KeyA), unitKey(record.KeyB), unitKey(record.KeyC),
	record.KeyAlpha, record.KeyBeta, record.KeyGamma,
}

// extractStructures reconstructs one system per lattice-parameter entry.
// A record without a lattice constant yields no systems. When no system
// could be built the crystallographic keys are left for passthrough.
func (c *Converter) extractStructures(res *runResult, v *record.View) {
	if !v.Has(record.KeyA) {
		return
	}
	before := len(res.run.System)
	defer func() {
		if len(res.run.System) == before {
			v.Release(structureKeys...)
		}
	}()

	lengths, err := c.latticeLengths(v)
	if err != nil {
		res.fail(KindStructure, record.KeyA, -1, err)
		return
	}

	var angles [3]float64
	for i, key := range []string{record.KeyAlpha, record.KeyBeta, record.KeyGamma} {
		f, err := v.Float(key)
		if err != nil {
			res.fail(KindStructure, key, -1, err)
			return
		}
		angles[i] = f
	}

	symbols, err := v.Strings(record.KeySpecies)
	if err != nil {
		res.fail(KindStructure, record.KeySpecies, -1, err)
		symbols = nil
	}
	basis, err := v.Matrix(record.KeyBasis)
	if err != nil {
		res.fail(KindStructure, record.KeyBasis, -1, err)
		return
	}
	spaceGroup, _ := v.Value(record.KeySpaceGroup)

	a, b, cc := lengths[0], lengths[1], lengths[2]
	for n := range a {
		if n >= len(b) || n >= len(cc) {
			res.fail(KindStructure, record.KeyA, n, fmt.Errorf("b or c has no entry %d", n))
			continue
		}
		xtal, err := crystal.Build(crystal.Spec{
			Symbols:    symbols,
			Basis:      basis,
			SpaceGroup: spaceGroup,
			Params: crystal.CellParameters{
				A: a[n], B: b[n], C: cc[n],
				Alpha: angles[0], Beta: angles[1], Gamma: angles[2],
			},
			Tolerance: c.opts.Tolerance,
		})
		if err != nil {
			res.fail(KindStructure, record.KeyA, n, err)
			continue
		}
		res.run.AddSystem(atomsOf(xtal, c.opts.LengthUnit))
	}
}

// latticeLengths reads a, b and c converted to the working length unit.
// b and c default to a; their units default to a's unit.
func (c *Converter) latticeLengths(v *record.View) ([3][]float64, error) {
	var out [3][]float64
	aUnit := v.String(unitKey(record.KeyA), record.Defaults[record.KeyLengthUnit].(string))

	for i, key := range []string{record.KeyA, record.KeyB, record.KeyC} {
		if i > 0 && !v.Has(key) {
			out[i] = out[0]
			continue
		}
		vals, err := v.Floats(key)
		if err != nil {
			return out, err
		}
		from := aUnit
		if i > 0 {
			from = v.String(unitKey(key), aUnit)
		}
		converted, err := units.ConvertAll(vals, from, c.opts.LengthUnit)
		if err != nil {
			return out, fmt.Errorf("%s: %w", key, err)
		}
		out[i] = converted
	}
	return out, nil
}

func atomsOf(x *crystal.Crystal, lengthUnit string) archive.Atoms {
	positions := make([][]float64, len(x.Positions))
	for i, p := range x.Positions {
		positions[i] = []float64{p[0], p[1], p[2]}
	}
	return archive.Atoms{
		Labels:         x.Symbols,
		Positions:      positions,
		LatticeVectors: x.Cell.Rows(),
		Periodic:       []bool{true, true, true},
		LengthUnit:     lengthUnit,
	}
}
